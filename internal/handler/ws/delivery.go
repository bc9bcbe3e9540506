package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/bookrelay/chat-relay-service/internal/auth"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
	wsmarshaller "github.com/bookrelay/chat-relay-service/internal/handler/marshaller/ws"
	"github.com/bookrelay/chat-relay-service/internal/service"
)

const (
	writeWait    = 10 * time.Second
	closeGrace   = time.Second
	replyTimeout = 500 * time.Millisecond
)

// Recoverable protocol errors reported to the sender only. None of them
// close the connection.
const (
	errEmptyMessage   = "Received empty message"
	errInvalidPayload = "Invalid payload"
	errUserNotFound   = "User not found"
)

// inboundMessage is the legacy inbound frame shape.
type inboundMessage struct {
	Message string `json:"message"`
}

// ChatHandler owns one persistent connection's lifecycle per request:
// accept or reject on connect, subscribe to groups, validate inbound frames,
// republish them through the fabric, and pump fabric events back out.
type ChatHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	detailer  service.Detailer
	upgrader  websocket.Upgrader
}

func NewChatHandler(logger *slog.Logger, deliverer service.Deliverer, detailer service.Detailer) *ChatHandler {
	return &ChatHandler{
		logger:    logger,
		deliverer: deliverer,
		detailer:  detailer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	groupName := chi.URLParam(r, "group_name")
	principal := auth.PrincipalFrom(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	// [REJECTED] Anonymous principals never hold an open connection. No
	// group is joined and nothing is broadcast for the attempt.
	if principal.Anonymous {
		h.logger.Info("ws connection rejected", "group", groupName)
		deadline := time.Now().Add(closeGrace)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"), deadline)
		return
	}

	l := h.logger.With(
		slog.String("user_id", principal.ID.String()),
		slog.String("group", groupName),
	)

	// [ACCEPTED] Join the named group plus the reserved groups.
	conn, joined := h.deliverer.Subscribe(r.Context(), principal, groupName)

	// [RESOURCE_RECLAMATION]
	// Unconditional cleanup: leaves every joined group and closes the
	// connector exactly once, whatever path ends the session.
	defer func() {
		h.deliverer.Unsubscribe(conn, joined)
		l.Info("ws closed and resources reclaimed", "conn_id", conn.GetID())
	}()

	l.Info("ws opened", "conn_id", conn.GetID())

	// Announce the join to everyone currently connected.
	h.deliverer.Broadcast(registry.GroupAllUsers,
		event.NewUserJoined(registry.GroupAllUsers, principal.Username, time.Now()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writePump(ctx, cancel, ws, conn, l)

	h.readLoop(ctx, ws, conn, principal, groupName, l)
}

// readLoop drains inbound frames until the client goes away or the pump
// kills the socket. Malformed frames are recoverable and keep the loop
// running.
func (h *ChatHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn registry.Connector, principal model.Principal, groupName string, l *slog.Logger) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Warn("ws read failed", "error", err)
			}
			return
		}
		h.handleInbound(ctx, conn, principal, groupName, raw)
	}
}

// handleInbound validates one frame and either republishes it to the
// connection's primary group or reports a recoverable error to the sender.
func (h *ChatHandler) handleInbound(ctx context.Context, conn registry.Connector, principal model.Principal, groupName string, raw []byte) {
	// A frame with no payload at all reads as an empty message, not as a
	// decoding failure.
	if len(bytes.TrimSpace(raw)) == 0 {
		h.deliverer.Reply(conn, event.NewErrorReply(errEmptyMessage))
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.deliverer.Reply(conn, event.NewErrorReply(errInvalidPayload))
		return
	}

	if strings.TrimSpace(msg.Message) == "" {
		h.deliverer.Reply(conn, event.NewErrorReply(errEmptyMessage))
		return
	}

	details, err := h.detailer.Resolve(ctx, principal.ID)
	if err != nil {
		h.deliverer.Reply(conn, event.NewErrorReply(errUserNotFound))
		return
	}

	h.deliverer.Broadcast(groupName,
		event.NewChatMessage(groupName, details.Username, msg.Message))

	h.deliverer.Reply(conn, event.NewDirectReply("Message sent", details))
}

// writePump serializes every fabric event delivered to this connection and
// writes it to the socket. A write failure tears the socket down, which
// funnels the session into the exact same cleanup path as a client close.
func (h *ChatHandler) writePump(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, conn registry.Connector, l *slog.Logger) {
	defer cancel()

	// Capture once: Close replaces the channel reference, the closed
	// channel itself still yields !ok.
	events := conn.Recv()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				l.Error("failed to marshal ws event", "error", err, "event_id", ev.GetID())
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				l.Warn("ws send failed", "error", err, "conn_id", conn.GetID())
				// Unblock the read loop so cleanup runs exactly once.
				_ = ws.Close()
				return
			}
		}
	}
}
