package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/identity"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/sync"
)

// SyncWebSocketHandler serves the per-user sync stream: room list, friend
// list and friend-request notifications over one connection.
type SyncWebSocketHandler struct {
	hub     *Hub
	facade  *sync.Facade
	manager *identity.Manager
}

// NewSyncWebSocketHandler constructs a SyncWebSocketHandler.
func NewSyncWebSocketHandler(hub *Hub, facade *sync.Facade, manager *identity.Manager) *SyncWebSocketHandler {
	return &SyncWebSocketHandler{hub: hub, facade: facade, manager: manager}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientCommand is the shape of frames read from the client.
type clientCommand struct {
	Type string `json:"type"`
}

// Handle upgrades the connection and streams room list and friend graph
// updates until the client goes away.
func (h *SyncWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ident, err := authenticate(c, h.manager)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
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
		OnRooms: func(rooms []models.Room) {
			h.deliver(client, Event{Type: "rooms", Rooms: rooms})
		},
		OnFriends: func(friends []string) {
			h.deliver(client, Event{Type: "friends", Friends: friends})
		},
		OnFriendRequest: func(requesterID string) {
			h.deliver(client, Event{Type: "friend_request", RequesterID: requesterID})
		},
		OnError: func(err error) {
			_ = client.Send(Event{Type: "error", Error: err.Error()})
			_ = client.Close()
		},
	})

	h.hub.Add("sync", client, info, session.Stop)
	observability.IncWSActive("sync")
	observability.IncWSEvent("sync", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sync", observability.EventEnvelope{
		EventType: "ws_connect",
		UserID:    info.UserID,
		RequestID: info.RequestID,
		ConnID:    info.ConnID,
	})

	// Subscriptions outlive the handshake request, so they hang off the
	// background context and end via session.Stop.
	subCtx := context.Background()
	if err := session.StartRooms(subCtx, ident.UserID); err != nil {
		h.teardown(client, info, session.Stop, err.Error())
		return
	}
	if err := session.StartFriendGraph(subCtx, ident.UserID); err != nil {
		h.teardown(client, info, session.Stop, err.Error())
		return
	}

	go h.readLoop(client, conn, info, session)
}

func (h *SyncWebSocketHandler) deliver(client *Client, event Event) {
	if err := client.Send(event); err != nil {
		h.hub.ReportWriteError(client, err)
		_ = client.Close()
	}
}

func (h *SyncWebSocketHandler) readLoop(client *Client, conn *websocket.Conn, info ConnInfo, session *sync.Session) {
	var closeReason string
	defer h.teardown(client, info, session.Stop, closeReason)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("sync", "ws_error")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			continue
		}
		if cmd.Type == "ack" {
			session.AcknowledgeFriendRequest()
			observability.IncWSEvent("sync", "ack")
		}
	}
}

func (h *SyncWebSocketHandler) teardown(client *Client, info ConnInfo, stop func(), reason string) {
	stop()
	h.hub.Remove(client)
	_ = client.Close()
	observability.DecWSActive("sync")
	observability.IncWSEvent("sync", "ws_disconnect")
	_ = observability.PublishEvent(context.Background(), "ws_events.sync", observability.EventEnvelope{
		EventType:  "ws_disconnect",
		UserID:     info.UserID,
		RequestID:  info.RequestID,
		ConnID:     info.ConnID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     reason,
	})
}
