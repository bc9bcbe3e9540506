package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/auth"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// Detailer resolves sender details for message attribution.
type Detailer interface {
	Resolve(ctx context.Context, userID uuid.UUID) (model.UserDetails, error)
}

type DetailService struct {
	directory auth.Directory
}

func NewDetailService(directory auth.Directory) *DetailService {
	return &DetailService{directory: directory}
}

// Resolve fetches the directory projection for the principal id. A lookup
// miss is reported to the caller; it must surface to the sender only.
func (s *DetailService) Resolve(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	if userID == uuid.Nil {
		return model.UserDetails{}, auth.ErrUserNotFound
	}

	details, err := s.directory.Details(ctx, userID)
	if err != nil {
		return model.UserDetails{}, fmt.Errorf("resolve sender %s: %w", userID, err)
	}
	return details, nil
}
