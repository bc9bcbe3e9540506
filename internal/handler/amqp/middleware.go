package amqp

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
)

type traceContextKey string

const traceIDKey traceContextKey = "trace_id"

// noticeTTL bounds how long a catalog notice stays worth broadcasting.
// Anything older reaches staff with the catalog already moved on.
const noticeTTL = 5 * time.Minute

// [TRACE_ID_MIDDLEWARE]
// Tags every notice with a trace id so one catalog change can be followed
// from the ingestion consumer through the broadcast fabric.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get("trace_id")
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set("trace_id", traceID)
		}

		msg.SetContext(context.WithValue(msg.Context(), traceIDKey, traceID))
		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// One structured line per handled notice, with latency and trace id.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("NOTICE_HANDLED",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get("trace_id"),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

// [STALENESS_FILTER]
// Drops (acks) notices whose producer timestamp is older than the TTL.
// Happens after an outage: the backlog drains, but only fresh changes are
// worth interrupting staff for.
func DiscardStaleMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			raw := msg.Metadata.Get(pubsub.MetadataSentAt)
			if raw != "" {
				millis, err := strconv.ParseInt(raw, 10, 64)
				if err == nil && time.Since(time.UnixMilli(millis)) > noticeTTL {
					logger.Warn("STALE_NOTICE_DISCARDED",
						"msg_id", msg.UUID,
						"sent_at", raw,
					)
					return nil, nil
				}
			}
			return h(msg)
		}
	}
}

// [RETRY_MIDDLEWARE]
// Transient failures back off exponentially before the poison queue takes
// over.
func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: time.Second * 2,
		MaxInterval:     time.Second * 15,
		Multiplier:      2.0,
	}
}
