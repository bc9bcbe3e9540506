package service

import (
	"context"
	"time"

	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS
type Deliverer interface {
	// Subscribe creates the channel identity for an accepted connection and
	// joins it to its primary group plus the reserved groups. The returned
	// slice lists every group joined, in join order. Joining cannot fail:
	// the fabric creates group cells lazily.
	Subscribe(ctx context.Context, principal model.Principal, group string) (registry.Connector, []string)
	// Unsubscribe leaves every joined group and releases the connector.
	// Unconditional: it runs the same way for a clean close, a network
	// error, and a protocol violation.
	Unsubscribe(conn registry.Connector, joined []string)
	// Broadcast publishes the event to all current members of its group.
	Broadcast(group string, ev event.Eventer) bool
	// Reply delivers an event to one connection only, bypassing the fabric.
	Reply(conn registry.Connector, ev event.Eventer) bool
}

// [IMPLEMENTATION] PRIVATE TO ENFORCE INTERFACE USAGE
type DeliveryService struct {
	hub         registry.Hubber
	mailboxSize int
	sendTimeout time.Duration
}

// NewDeliveryService returns a production-ready instance of the service.
func NewDeliveryService(hub registry.Hubber) *DeliveryService {
	return &DeliveryService{
		hub:         hub,
		mailboxSize: 1024,
		sendTimeout: 500 * time.Millisecond,
	}
}

func (s *DeliveryService) Subscribe(ctx context.Context, principal model.Principal, group string) (registry.Connector, []string) {
	conn := registry.NewConnector(ctx, principal.ID, s.mailboxSize)

	// Join order: client-named group first, then the reserved groups.
	joined := make([]string, 0, 3)
	for _, g := range s.groupsFor(principal, group) {
		s.hub.Join(g, conn)
		joined = append(joined, g)
	}

	return conn, joined
}

func (s *DeliveryService) Unsubscribe(conn registry.Connector, joined []string) {
	for _, g := range joined {
		s.hub.Leave(g, conn.GetID())
	}
	conn.Close()
}

func (s *DeliveryService) Broadcast(group string, ev event.Eventer) bool {
	return s.hub.Publish(group, ev)
}

func (s *DeliveryService) Reply(conn registry.Connector, ev event.Eventer) bool {
	return conn.Send(ev, s.sendTimeout)
}

// groupsFor computes the membership for a principal: the named group, the
// all-users group, and the staff group for privileged identities only.
func (s *DeliveryService) groupsFor(principal model.Principal, group string) []string {
	groups := []string{group, registry.GroupAllUsers}
	if principal.Privileged {
		groups = append(groups, registry.GroupStaff)
	}
	return groups
}
