package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*Event)(nil)

// Event is a generic envelope for everything the fabric routes: chat
// messages, join notices, and sender-only replies.
type Event struct {
	id         string
	group      string
	kind       EventKind
	priority   EventPriority
	occurredAt int64
	payload    any
}

func (e *Event) GetID() string              { return e.id }
func (e *Event) GetKind() EventKind         { return e.kind }
func (e *Event) GetGroup() string           { return e.group }
func (e *Event) GetPriority() EventPriority { return e.priority }
func (e *Event) GetOccurredAt() int64       { return e.occurredAt }
func (e *Event) GetPayload() any            { return e.payload }

// New is the universal factory for fabric events.
func New(group string, kind EventKind, priority EventPriority, payload any) *Event {
	return &Event{
		id:         uuid.NewString(),
		group:      group,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// NewChatMessage wraps a user-authored message for broadcast to its group.
func NewChatMessage(group, username, text string) *Event {
	return New(group, ChatMessage, PriorityNormal, &model.ChatMessage{
		Username: username,
		Text:     text,
	})
}

// NewUserJoined announces an accepted connection to the all-users group.
func NewUserJoined(group, username string, joinedAt time.Time) *Event {
	return New(group, UserJoined, PriorityNormal, &model.JoinedPayload{
		Username: username,
		JoinedAt: joinedAt,
	})
}

// NewErrorReply builds a sender-only recoverable error frame.
func NewErrorReply(reason string) *Event {
	return New("", ErrorReply, PriorityHigh, &model.ErrorPayload{Reason: reason})
}

// NewDirectReply builds a sender-only acknowledgement with directory details.
func NewDirectReply(response string, details model.UserDetails) *Event {
	return New("", DirectReply, PriorityHigh, &model.ReplyPayload{
		Response: response,
		Details:  details,
	})
}
