package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the channel identity the fabric uses to address one specific
// connection. The concrete type is unexported to force interface usage.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Close() // Terminate connection and release resources
}

type connect struct {
	id             uuid.UUID
	userID         uuid.UUID
	createdAt      time.Time
	ctx            context.Context
	cancelFn       context.CancelFunc
	sendCh         chan event.Eventer
	closeOnce      sync.Once // [PROTECTION]
	lastActivityAt int64     // [ATOMIC_FIELD]
	droppedCount   uint64    // [ATOMIC_FIELD]
}

// [POOL] SYNC.POOL FOR OBJECT REUSE (REDUCES GC PRESSURE)
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector builds the per-connection mailbox handle owned by exactly one
// handler goroutine. The fabric writes into it, the owner drains it.
func NewConnector(ctx context.Context, userID uuid.UUID, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, userID, bufferSize)
	return c
}

// reset re-initializes the connector's internal state using a struct literal,
// wiping stale data from pooled objects and re-arming the sync.Once guard.
func (c *connect) reset(ctx context.Context, userID uuid.UUID, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:             uuid.New(),
		userID:         userID,
		createdAt:      time.Now(),
		ctx:            childCtx,
		cancelFn:       cancel,
		sendCh:         make(chan event.Eventer, bufferSize),
		lastActivityAt: time.Now().UnixNano(),
	}
}

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }

// Send attempts to push an event into the mailbox, waiting up to timeout for
// space so the group cell is not held hostage by a single stalled session.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	// [LIFECYCLE_GATE] Abort immediately if the connection is already dead.
	case <-c.ctx.Done():
		return false

	case c.sendCh <- ev:
		atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
		return true

	// [BACKPRESSURE_THRESHOLD] Buffer stayed saturated for the whole window:
	// a persistently slow consumer. Shed load instead of blocking the group.
	case <-ctx.Done():
		return c.handleBackpressure(ev, timeout)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer, timeout time.Duration) bool {
	// Low-priority traffic is dropped outright to keep room for replies.
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// Try to evict one queued lower-priority event to make room.
	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			c.sendCh <- ev
			return true
		}
		// The displaced event mattered too; put it back, best effort.
		select {
		case c.sendCh <- oldEv:
		default:
		}
	case <-time.After(timeout):
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

// Close terminates the session, triggers cleanup, and recycles the object.
// Safe to call from the hub, the owning handler, or a failing writer pump;
// the teardown runs exactly once.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		// Cancel first so pending Sends bail out before the channel closes.
		c.cancelFn()

		// Closing the mailbox signals the transport pump (via !ok) to exit
		// its loop gracefully.
		if c.sendCh != nil {
			close(c.sendCh)
		}

		// Zero the reference so the pooled object holds nothing alive.
		c.sendCh = nil

		connectPool.Put(c)
	})
}
