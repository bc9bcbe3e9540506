package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// detailerMiddleware implements [DECORATOR_PATTERN] to add observability to
// sender resolution without touching the lookup logic.
type detailerMiddleware struct {
	next   Detailer
	logger *slog.Logger
}

func (m *detailerMiddleware) Resolve(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	start := time.Now()

	details, err := m.next.Resolve(ctx, userID)
	if err != nil {
		m.logger.Warn("SENDER_RESOLUTION_FAILED",
			"user_id", userID,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return details, err
	}

	m.logger.Debug("SENDER_RESOLVED",
		"user_id", userID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return details, nil
}
