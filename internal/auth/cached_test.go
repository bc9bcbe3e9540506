package auth

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

type countingDirectory struct {
	next     Directory
	resolves atomic.Int64
	details  atomic.Int64
}

func (c *countingDirectory) Resolve(ctx context.Context, token string) (model.Principal, error) {
	c.resolves.Add(1)
	return c.next.Resolve(ctx, token)
}

func (c *countingDirectory) Details(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	c.details.Add(1)
	return c.next.Details(ctx, userID)
}

func TestCachedDirectoryServesRepeatsFromCache(t *testing.T) {
	backend := &countingDirectory{next: testDirectory()}
	cached := NewCachedDirectory(backend)

	first, err := cached.Resolve(context.Background(), "alice-token")
	require.NoError(t, err)

	second, err := cached.Resolve(context.Background(), "alice-token")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), backend.resolves.Load())
}

func TestCachedDirectoryDoesNotCacheMisses(t *testing.T) {
	backend := &countingDirectory{next: testDirectory()}
	cached := NewCachedDirectory(backend)

	_, err := cached.Resolve(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = cached.Resolve(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrTokenNotFound)

	assert.Equal(t, int64(2), backend.resolves.Load(), "misses must hit the backend every time")
}

func TestCachedDirectoryDetails(t *testing.T) {
	dir := testDirectory()
	p, err := dir.Resolve(context.Background(), "alice-token")
	require.NoError(t, err)

	backend := &countingDirectory{next: dir}
	cached := NewCachedDirectory(backend)

	det, err := cached.Details(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", det.Email)

	_, err = cached.Details(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), backend.details.Load())
}
