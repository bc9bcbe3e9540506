package wsmarshaller

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
)

func roundtrip(t *testing.T, ev event.Eventer) map[string]any {
	t.Helper()
	data, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)
	frame := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestMarshallChatMessageAttributesSender(t *testing.T) {
	frame := roundtrip(t, event.NewChatMessage("lobby", "alice", "hi"))
	assert.Equal(t, "alice: hi", frame["message"])
}

func TestMarshallUserJoined(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	frame := roundtrip(t, event.NewUserJoined(registry.GroupAllUsers, "alice", at))

	assert.Equal(t, "user_joined", frame["type"])
	assert.Equal(t, "alice", frame["username"])
	assert.Equal(t, "2026-03-14T09:26:53Z", frame["joined_at"])
}

func TestMarshallErrorReply(t *testing.T) {
	frame := roundtrip(t, event.NewErrorReply("Received empty message"))
	assert.Equal(t, "Received empty message", frame["error"])
}

func TestMarshallDirectReply(t *testing.T) {
	frame := roundtrip(t, event.NewDirectReply("Message sent", model.UserDetails{
		Username: "alice",
		Email:    "alice@example.com",
	}))

	assert.Equal(t, "Message sent", frame["response"])
	details := frame["user_details"].(map[string]any)
	assert.Equal(t, "alice@example.com", details["email"])
}

func TestMarshallCatalogNotice(t *testing.T) {
	frame := roundtrip(t, event.NewCatalogEvent(registry.GroupStaff, &model.CatalogNotice{
		Action:   "book_created",
		BookID:   7,
		AuthorID: 3,
	}))

	assert.Equal(t, "catalog_event", frame["type"])
	assert.Equal(t, "book_created", frame["action"])
	assert.EqualValues(t, 7, frame["book_id"])
}
