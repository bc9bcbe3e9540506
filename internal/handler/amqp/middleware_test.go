package amqp

import (
	"fmt"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
)

func staleHarness() (message.HandlerFunc, *int) {
	calls := 0
	inner := func(*message.Message) ([]*message.Message, error) {
		calls++
		return nil, nil
	}
	return DiscardStaleMiddleware(slog.New(slog.DiscardHandler))(inner), &calls
}

func TestDiscardStalePassesFreshNotices(t *testing.T) {
	handler, calls := staleHarness()

	msg := message.NewMessage(uuid.NewString(), nil)
	msg.Metadata.Set(pubsub.MetadataSentAt, strconv.FormatInt(time.Now().UnixMilli(), 10))

	_, err := handler(msg)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
}

func TestDiscardStaleDropsExpiredNotices(t *testing.T) {
	handler, calls := staleHarness()

	old := time.Now().Add(-time.Hour).UnixMilli()
	msg := message.NewMessage(uuid.NewString(), nil)
	msg.Metadata.Set(pubsub.MetadataSentAt, strconv.FormatInt(old, 10))

	_, err := handler(msg)
	require.NoError(t, err, "stale notices are acked, not retried")
	assert.Equal(t, 0, *calls)
}

func TestDiscardStalePassesNoticesWithoutTimestamp(t *testing.T) {
	handler, calls := staleHarness()

	_, err := handler(message.NewMessage(uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
}

func TestTraceIDMiddlewareGeneratesAndPreservesIDs(t *testing.T) {
	var seen string
	inner := func(msg *message.Message) ([]*message.Message, error) {
		seen = msg.Metadata.Get("trace_id")
		return nil, nil
	}
	handler := TraceIDMiddleware(inner)

	msg := message.NewMessage(uuid.NewString(), nil)
	_, err := handler(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seen, "a missing trace id is generated")

	tagged := message.NewMessage(uuid.NewString(), nil)
	tagged.Metadata.Set("trace_id", "fixed-trace")
	_, err = handler(tagged)
	require.NoError(t, err)
	assert.Equal(t, "fixed-trace", seen, "an existing trace id is preserved")
}

func TestLoggingMiddlewarePassesResultThrough(t *testing.T) {
	wantErr := fmt.Errorf("downstream failure")
	inner := func(*message.Message) ([]*message.Message, error) {
		return nil, wantErr
	}
	handler := LoggingMiddleware(slog.New(slog.DiscardHandler))(inner)

	_, err := handler(message.NewMessage(uuid.NewString(), nil))
	assert.ErrorIs(t, err, wantErr)
}
