/*
Package registry implements the group broadcast fabric: the process-wide
publish/subscribe mechanism that maps a group name to the set of currently
connected members and fans events out to all of them.

Key architectural concepts:
  - Group Cells: every active group is an isolated actor with a single
    delivery goroutine draining a mailbox. One writer per group gives a
    total publish order per group without a global lock.
  - Decoupling & Backpressure: delivery to a member goes through that
    member's own bounded connector mailbox, so a slow or dying connection
    never blocks the group loop or other members.
  - Concurrency Management: lock-free group lookups via sync.Map and
    fine-grained locking inside individual cells.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
)

// Reserved groups that always exist process-wide. Every accepted connection
// joins GroupAllUsers; privileged principals additionally join GroupStaff.
const (
	GroupAllUsers = "users.all"
	GroupStaff    = "users.staff"
)

// Hubber defines the gateway for group membership management and event
// routing. It is the single shared mutable resource of the subsystem.
type Hubber interface {
	Join(group string, conn Connector)
	Leave(group string, connID uuid.UUID)
	Publish(group string, ev event.Eventer) bool
	Members(group string) int
	Shutdown()
}

type hubConfig struct {
	mailboxSize int
	sendTimeout time.Duration
}

// Hub routes events to group cells. Groups are created lazily on first Join
// and reclaimed when the last member leaves.
type Hub struct {
	// cells stores Map[string]*cell, keyed by group name.
	cells  sync.Map
	config hubConfig
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			mailboxSize: 2048,
			sendTimeout: 500 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join adds the connection to the group, creating the group cell on first
// use. Joining a group twice is a no-op.
func (h *Hub) Join(group string, conn Connector) {
	for {
		val, ok := h.cells.Load(group)
		if !ok {
			fresh := newCell(group, h.config.mailboxSize, h.config.sendTimeout)
			actual, loaded := h.cells.LoadOrStore(group, fresh)
			if loaded {
				// Lost the race; reclaim the loop we just started.
				fresh.stop()
			}
			val = actual
		}

		// The loaded cell may have been stopped by a concurrent Leave that
		// emptied it. Drop the stale entry and try again with a fresh cell.
		if val.(*cell).attach(conn) {
			return
		}
		h.cells.CompareAndDelete(group, val)
	}
}

// Leave removes the connection from the group. When the group becomes empty
// its cell is stopped and purged so a future Join starts from a clean slate.
func (h *Hub) Leave(group string, connID uuid.UUID) {
	val, ok := h.cells.Load(group)
	if !ok {
		return
	}
	c := val.(*cell)
	if c.detach(connID) {
		c.stop()
		h.cells.CompareAndDelete(group, val)
	}
}

// Publish enqueues the event for delivery to every current member of the
// group, preserving the order of Publish calls for the same group. Returns
// false when the group has no cell or its mailbox overflowed.
func (h *Hub) Publish(group string, ev event.Eventer) bool {
	if val, ok := h.cells.Load(group); ok {
		return val.(*cell).push(ev)
	}
	return false
}

// Members reports the current membership size of the group.
func (h *Hub) Members(group string) int {
	if val, ok := h.cells.Load(group); ok {
		return val.(*cell).size()
	}
	return 0
}

// Shutdown stops every group cell. Connectors are closed by their owning
// handlers, not here; the fabric only reclaims its own goroutines.
func (h *Hub) Shutdown() {
	h.cells.Range(func(key, val any) bool {
		val.(*cell).stop()
		h.cells.Delete(key)
		return true
	})
}
