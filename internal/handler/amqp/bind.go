package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) (event.Eventer, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling panic recovery,
// locality, and fan-out into the fabric.
func Bind[T any](h *NoticeHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [LOCALITY_FILTER]
		// Skip work when nobody on this node would see the broadcast.
		if h.hub.Members(registry.GroupStaff) == 0 {
			return nil // ACK: no local audience.
		}

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: poison pill protection.
		}

		// [EXECUTION]
		ev, err := fn(msg.Context(), payload)
		if err != nil {
			return err // NACK: business failure triggers the retry policy.
		}

		if ev == nil {
			return nil
		}

		// [LOCAL_DISPATCH]
		// Best-effort delivery into the fabric; an overflowing staff group
		// drops the notice rather than blocking the bus consumer.
		h.hub.Publish(ev.GetGroup(), ev)

		return nil
	}
}
