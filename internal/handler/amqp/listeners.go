package amqp

import (
	"context"
	"fmt"

	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
	"github.com/bookrelay/chat-relay-service/internal/service/dto"
)

// [ON_CATALOG_ACTION]
// Turns one ingested catalog notice into a staff-group broadcast.
func (h *NoticeHandler) OnCatalogActionV1(_ context.Context, raw *dto.CatalogEventV1) (event.Eventer, error) {
	if raw.Notice.Action == "" {
		return nil, fmt.Errorf("catalog notice without action")
	}

	return event.NewCatalogEvent(registry.GroupStaff, raw.Notice.ToDomain()), nil
}
