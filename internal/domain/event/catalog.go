package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

var (
	_ Eventer    = (*CatalogEvent)(nil)
	_ Exportable = (*CatalogEvent)(nil)
)

// CatalogEvent carries one ingested catalog action towards connected staff.
// It is the only event that crosses process boundaries: the ingestion
// consumer exports it to the bus and the server's notice listener re-enters
// it into the fabric.
type CatalogEvent struct {
	ID     uuid.UUID            `json:"id"`
	Group  string               `json:"-"`
	Notice *model.CatalogNotice `json:"notice"`
	SentAt int64                `json:"sent_at"`
}

// NewCatalogEvent binds a persisted catalog action to a destination group.
func NewCatalogEvent(group string, notice *model.CatalogNotice) *CatalogEvent {
	return &CatalogEvent{
		ID:     uuid.New(),
		Group:  group,
		Notice: notice,
		SentAt: time.Now().UnixMilli(),
	}
}

func (e *CatalogEvent) GetID() string              { return e.ID.String() }
func (e *CatalogEvent) GetKind() EventKind         { return CatalogNotice }
func (e *CatalogEvent) GetGroup() string           { return e.Group }
func (e *CatalogEvent) GetPriority() EventPriority { return PriorityLow }
func (e *CatalogEvent) GetOccurredAt() int64       { return e.SentAt }
func (e *CatalogEvent) GetPayload() any            { return e.Notice }

// GetRoutingKey generates the bus topic for catalog notices.
// [PATTERN] catalog.{action}.action.v1
func (e *CatalogEvent) GetRoutingKey() string {
	if e.Notice == nil || e.Notice.Action == "" {
		return ""
	}
	return fmt.Sprintf("catalog.%s.action.v1", e.Notice.Action)
}
