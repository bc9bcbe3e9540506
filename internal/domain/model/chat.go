package model

import "time"

// ChatMessage is the broadcast payload for a user-authored message.
type ChatMessage struct {
	Username string
	Text     string
}

// JoinedPayload announces a newly accepted connection to the all-users group.
type JoinedPayload struct {
	Username string
	JoinedAt time.Time
}

// ErrorPayload is a recoverable protocol error reported to the sender only.
type ErrorPayload struct {
	Reason string
}

// ReplyPayload is a direct acknowledgement addressed to the sender only.
type ReplyPayload struct {
	Response string
	Details  UserDetails
}

// CatalogNotice is a catalog change fan-out to connected staff. The json
// tags are the bus wire format for the notice half of a catalog event.
type CatalogNotice struct {
	Action   string `json:"action"`
	BookID   int64  `json:"book_id"`
	AuthorID int64  `json:"author_id"`
}

// CatalogAction is one durable audit row written by the ingestion consumer.
// Writes are duplicate-tolerant: redelivered records produce additional rows.
type CatalogAction struct {
	Action     string
	AuthorID   int64
	BookID     int64
	OccurredAt time.Time
}
