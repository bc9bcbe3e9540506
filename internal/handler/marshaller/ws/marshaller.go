package wsmarshaller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// Outbound frame shapes. The wire discriminates by shape, not by a shared
// envelope: chat history clients predate the typed frames.
type chatFrame struct {
	Message string `json:"message"`
}

type joinedFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

type errorFrame struct {
	Error string `json:"error"`
}

type replyFrame struct {
	Response    string            `json:"response"`
	UserDetails model.UserDetails `json:"user_details"`
}

type catalogFrame struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	BookID   int64  `json:"book_id"`
	AuthorID int64  `json:"author_id"`
}

// MarshallDeliveryEvent serializes a fabric event into its wire frame.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	switch p := ev.GetPayload().(type) {
	case *model.ChatMessage:
		return json.Marshal(&chatFrame{
			Message: fmt.Sprintf("%s: %s", p.Username, p.Text),
		})

	case *model.JoinedPayload:
		return json.Marshal(&joinedFrame{
			Type:     "user_joined",
			Username: p.Username,
			JoinedAt: p.JoinedAt.UTC().Format(time.RFC3339),
		})

	case *model.ErrorPayload:
		return json.Marshal(&errorFrame{Error: p.Reason})

	case *model.ReplyPayload:
		return json.Marshal(&replyFrame{
			Response:    p.Response,
			UserDetails: p.Details,
		})

	case *model.CatalogNotice:
		return json.Marshal(&catalogFrame{
			Type:     "catalog_event",
			Action:   p.Action,
			BookID:   p.BookID,
			AuthorID: p.AuthorID,
		})

	default:
		return nil, fmt.Errorf("ws marshaller: unsupported payload %T for event kind %d", p, ev.GetKind())
	}
}
