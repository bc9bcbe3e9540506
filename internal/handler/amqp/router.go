package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	CatalogEventsExchange = "catalog.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicCatalogAction = "catalog.#.action.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	NoticeProcessorQueue = "chat-relay.catalog-notices.v1"
	NoticePoisonTopic    = "chat-relay.catalog-notices.v1.poison"
)

// NoticeHandler bridges bus notices into the broadcast fabric so connected
// staff see catalog changes as they are ingested.
type NoticeHandler struct {
	hub        registry.Hubber
	logger     *slog.Logger
	dispatcher pubsub.EventDispatcher
}

func NewNoticeHandler(hub registry.Hubber, logger *slog.Logger, dispatcher pubsub.EventDispatcher) *NoticeHandler {
	return &NoticeHandler{hub, logger, dispatcher}
}

// RegisterHandlers wires the consumer pipeline into the watermill router.
func (h *NoticeHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), NoticePoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_CATALOG_ACTION", CatalogEventsExchange, TopicCatalogAction, Bind(h, h.OnCatalogActionV1)},
	}

	for _, c := range configs {
		// [UNIQUE_HANDLER_QUEUE]
		// Each node gets its own queue so every instance observes every
		// notice and can serve its locally connected staff.
		instanceID := uuid.NewString()[:8]
		handlerQueue := fmt.Sprintf("%s.%s.%s", NoticeProcessorQueue, instanceID, c.name)

		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			DiscardStaleMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", NoticeProcessorQueue)
	return nil
}
