package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// directoryMiddleware adds observability to directory lookups without
// touching the lookup logic itself.
type directoryMiddleware struct {
	next   Directory
	logger *slog.Logger
}

func NewDirectoryMiddleware(next Directory, logger *slog.Logger) Directory {
	return &directoryMiddleware{next: next, logger: logger}
}

func (m *directoryMiddleware) Resolve(ctx context.Context, token string) (model.Principal, error) {
	start := time.Now()

	p, err := m.next.Resolve(ctx, token)
	if err != nil {
		// The token itself never reaches the log.
		m.logger.Debug("TOKEN_RESOLVE_MISS",
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return p, err
	}

	m.logger.Debug("TOKEN_RESOLVED",
		"user_id", p.ID,
		"privileged", p.Privileged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return p, nil
}

func (m *directoryMiddleware) Details(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	start := time.Now()

	det, err := m.next.Details(ctx, userID)
	if err != nil {
		m.logger.Warn("USER_DETAILS_FAILED",
			"user_id", userID,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return det, err
}
