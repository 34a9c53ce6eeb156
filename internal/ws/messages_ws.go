package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/identity"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
	"chat-sync/internal/sync"
)

// MessagesWebSocketHandler streams one room's message timeline.
type MessagesWebSocketHandler struct {
	hub     *Hub
	facade  *sync.Facade
	manager *identity.Manager
}

// NewMessagesWebSocketHandler constructs a MessagesWebSocketHandler.
func NewMessagesWebSocketHandler(hub *Hub, facade *sync.Facade, manager *identity.Manager) *MessagesWebSocketHandler {
	return &MessagesWebSocketHandler{hub: hub, facade: facade, manager: manager}
}

// Handle upgrades the connection and streams the room's messages. Only
// room members may attach.
func (h *MessagesWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ident, err := authenticate(c, h.manager)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.facade.IsMember(c.Request.Context(), roomID, ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := NewClient(conn)

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      ident.UserID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	session := h.facade.NewSession(sync.SessionHooks{
		OnMessages: func(messages []models.Message) {
			if err := client.Send(Event{Type: "messages", Messages: messages}); err != nil {
				h.hub.ReportWriteError(client, err)
				_ = client.Close()
			}
		},
		OnError: func(err error) {
			_ = client.Send(Event{Type: "error", Error: err.Error()})
			_ = client.Close()
		},
	})

	h.hub.Add("messages", client, info, session.Stop)
	observability.IncWSActive("messages")
	observability.IncWSEvent("messages", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.messages", observability.EventEnvelope{
		EventType: "ws_connect",
		RoomID:    roomID,
		UserID:    info.UserID,
		RequestID: info.RequestID,
		ConnID:    info.ConnID,
	})

	if err := session.StartMessages(context.Background(), roomID); err != nil {
		h.teardown(client, roomID, info, session, err.Error())
		return
	}

	go h.readLoop(client, conn, roomID, info, session)
}

func (h *MessagesWebSocketHandler) readLoop(client *Client, conn *websocket.Conn, roomID string, info ConnInfo, session *sync.Session) {
	var closeReason string
	defer func() {
		h.teardown(client, roomID, info, session, closeReason)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("messages", "ws_error")
			}
			return
		}
	}
}

func (h *MessagesWebSocketHandler) teardown(client *Client, roomID string, info ConnInfo, session *sync.Session, reason string) {
	session.Stop()
	h.hub.Remove(client)
	_ = client.Close()
	observability.DecWSActive("messages")
	observability.IncWSEvent("messages", "ws_disconnect")
	_ = observability.PublishEvent(context.Background(), "ws_events.messages", observability.EventEnvelope{
		EventType:  "ws_disconnect",
		RoomID:     roomID,
		UserID:     info.UserID,
		RequestID:  info.RequestID,
		ConnID:     info.ConnID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     reason,
	})
}
