package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
)

// MetadataSentAt is the metadata key carrying the producer-side timestamp
// (unix millis) on every exported event.
const MetadataSentAt = "sent_at"

// EventDispatcher defines the high-level contract for outgoing events.
// This allows callers to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		logger:    logger,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exportable, ok := ev.(event.Exportable)
	if !ok {
		return nil // local-only event, nothing to export
	}
	topic := exportable.GetRoutingKey()
	if topic == "" {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataSentAt, strconv.FormatInt(ev.GetOccurredAt(), 10))

	d.logger.Debug("EVENT_EXPORTED", "topic", topic, "event_id", ev.GetID())
	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

// NopDispatcher is used when no bus is configured: exports become no-ops so
// the rest of the pipeline is unaffected.
type NopDispatcher struct{}

func NewNopDispatcher() EventDispatcher { return NopDispatcher{} }

func (NopDispatcher) Publish(context.Context, event.Eventer) error { return nil }
func (NopDispatcher) Publisher() message.Publisher                 { return nil }
