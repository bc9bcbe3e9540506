package dto

import "github.com/bookrelay/chat-relay-service/internal/domain/model"

// CatalogActionV1 is the wire shape of one catalog notice on the bus and of
// the value half of an ingested log record.
type CatalogActionV1 struct {
	Action   string `json:"action,omitempty"`
	BookID   int64  `json:"book_id"`
	AuthorID int64  `json:"author_id"`
}

func (d *CatalogActionV1) ToDomain() *model.CatalogNotice {
	return &model.CatalogNotice{
		Action:   d.Action,
		BookID:   d.BookID,
		AuthorID: d.AuthorID,
	}
}

// CatalogEventV1 is the bus envelope around one catalog notice, as exported
// by the ingestion consumer.
type CatalogEventV1 struct {
	ID     string          `json:"id"`
	Notice CatalogActionV1 `json:"notice"`
	SentAt int64           `json:"sent_at"`
}
