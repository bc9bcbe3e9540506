package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
)

// cell implements isolated delivery for a single group.
type cell struct {
	// [IDENTITY]
	// The group name served by this actor instance.
	name string

	// [MAILBOX]
	// Buffered channel that decouples publishers from fan-out. A single
	// loop goroutine drains it, which is what guarantees that all members
	// observe publishes to this group in the same order.
	mailbox chan event.Eventer

	// [MEMBERS]
	// Registry of currently attached connections. Membership is read at
	// delivery time, so a detach is effective for every later publish.
	members map[uuid.UUID]Connector

	// Fine-grained lock for the members map. RWMutex because deliveries
	// outnumber membership changes.
	mu sync.RWMutex

	// [LIFECYCLE_CONTROL]
	// Closed exactly once to terminate the loop goroutine.
	done     chan struct{}
	stopOnce sync.Once

	// stopped guards against attaching to a cell that a concurrent Leave
	// already reclaimed.
	stopped bool

	sendTimeout time.Duration
}

func newCell(name string, mailboxSize int, sendTimeout time.Duration) *cell {
	c := &cell{
		name:        name,
		mailbox:     make(chan event.Eventer, mailboxSize),
		members:     make(map[uuid.UUID]Connector),
		done:        make(chan struct{}),
		sendTimeout: sendTimeout,
	}
	go c.loop()
	return c
}

// attach adds the connection to the membership set. It reports false when
// the cell was already stopped, in which case the caller must retry with a
// fresh cell.
func (c *cell) attach(conn Connector) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.members[conn.GetID()] = conn
	return true
}

// detach removes the connection and reports whether the cell became empty.
// The membership change is visible to every delivery that starts afterwards.
func (c *cell) detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, connID)
	if len(c.members) == 0 {
		c.stopped = true
		return true
	}
	return false
}

func (c *cell) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// push enqueues an event for ordered fan-out. Returns false on overflow:
// publishers are never blocked by a congested group.
func (c *cell) push(ev event.Eventer) bool {
	select {
	case c.mailbox <- ev:
		return true
	default:
		return false
	}
}

func (c *cell) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

// deliver fans the event out to the membership set as it exists right now.
// Delivery to each member is a bounded, best-effort handoff to that member's
// own mailbox: a dead or saturated connection affects only itself.
func (c *cell) deliver(ev event.Eventer) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, conn := range c.members {
		conn.Send(ev, c.sendTimeout)
	}
}

func (c *cell) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}
