package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

func newTestConn(t *testing.T) Connector {
	t.Helper()
	conn := NewConnector(context.Background(), uuid.New(), 256)
	t.Cleanup(conn.Close)
	return conn
}

// drain collects n events from the connector or fails the test.
func drain(t *testing.T, conn Connector, n int) []event.Eventer {
	t.Helper()
	events := make([]event.Eventer, 0, n)
	recv := conn.Recv()
	for len(events) < n {
		select {
		case ev, ok := <-recv:
			require.True(t, ok, "mailbox closed early")
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestHubPublishPreservesOrderPerGroup(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	a := newTestConn(t)
	b := newTestConn(t)
	h.Join("lobby", a)
	h.Join("lobby", b)

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, h.Publish("lobby", event.NewChatMessage("lobby", "alice", fmt.Sprintf("m%d", i))))
	}

	for _, conn := range []Connector{a, b} {
		events := drain(t, conn, n)
		for i, ev := range events {
			msg := ev.GetPayload().(*model.ChatMessage)
			assert.Equal(t, fmt.Sprintf("m%d", i), msg.Text)
		}
	}
}

func TestHubLeaveIsEffectiveForSubsequentPublishes(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	stay := newTestConn(t)
	gone := newTestConn(t)
	h.Join("lobby", stay)
	h.Join("lobby", gone)

	h.Leave("lobby", gone.GetID())

	h.Publish("lobby", event.NewChatMessage("lobby", "alice", "after-leave"))

	drain(t, stay, 1)

	select {
	case ev := <-gone.Recv():
		t.Fatalf("departed connection received %v", ev.GetKind())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	conn := newTestConn(t)
	h.Join("lobby", conn)
	h.Join("lobby", conn)

	require.Equal(t, 1, h.Members("lobby"))

	h.Publish("lobby", event.NewChatMessage("lobby", "alice", "once"))
	drain(t, conn, 1)

	select {
	case <-conn.Recv():
		t.Fatal("double join duplicated the delivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubEmptyGroupIsReclaimed(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	conn := newTestConn(t)
	h.Join("lobby", conn)
	require.Equal(t, 1, h.Members("lobby"))

	h.Leave("lobby", conn.GetID())
	require.Equal(t, 0, h.Members("lobby"))

	// Publishing into a reclaimed group reaches nobody and does not panic.
	assert.False(t, h.Publish("lobby", event.NewChatMessage("lobby", "alice", "void")))

	// A later join recreates non-stale membership.
	again := newTestConn(t)
	h.Join("lobby", again)
	require.Equal(t, 1, h.Members("lobby"))
	require.True(t, h.Publish("lobby", event.NewChatMessage("lobby", "alice", "fresh")))
	drain(t, again, 1)
}

func TestHubPublishToUnknownGroupReturnsFalse(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()
	assert.False(t, h.Publish("nowhere", event.NewChatMessage("nowhere", "alice", "hi")))
}

func TestHubConcurrentJoinLeavePublish(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			group := fmt.Sprintf("room-%d", i%4)
			for j := 0; j < 50; j++ {
				conn := NewConnector(context.Background(), uuid.New(), 16)
				h.Join(group, conn)
				h.Publish(group, event.NewChatMessage(group, "user", "x"))
				h.Leave(group, conn.GetID())
				conn.Close()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, h.Members(fmt.Sprintf("room-%d", i)))
	}
}
