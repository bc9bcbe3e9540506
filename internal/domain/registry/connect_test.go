package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
)

func TestConnectorSendAndRecv(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 4)
	defer conn.Close()

	ev := event.NewChatMessage("lobby", "alice", "hi")
	require.True(t, conn.Send(ev, 50*time.Millisecond))

	got := <-conn.Recv()
	assert.Same(t, ev, got)
}

func TestConnectorSendAfterCloseFails(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 4)
	recv := conn.Recv()
	conn.Close()

	assert.False(t, conn.Send(event.NewErrorReply("late"), 10*time.Millisecond))

	_, ok := <-recv
	assert.False(t, ok, "closed mailbox must signal the pump via !ok")
}

func TestConnectorCloseIsIdempotent(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 4)
	conn.Close()
	conn.Close() // must not panic
}

func TestConnectorShedsLowPriorityOnSaturation(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 1)
	defer conn.Close()

	require.True(t, conn.Send(event.NewChatMessage("lobby", "a", "fill"), 10*time.Millisecond))

	// Buffer is full: a low-priority event is dropped without blocking.
	catalog := event.NewCatalogEvent(GroupStaff, nil)
	assert.False(t, conn.Send(catalog, 10*time.Millisecond))

	// A high-priority reply evicts the queued normal-priority message.
	reply := event.NewErrorReply("urgent")
	assert.True(t, conn.Send(reply, 10*time.Millisecond))
	got := <-conn.Recv()
	assert.Equal(t, event.ErrorReply, got.GetKind())
}
