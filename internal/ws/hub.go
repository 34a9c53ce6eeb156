package ws

import (
	"context"
	"sync"
	"time"

	"chat-sync/internal/observability"
)

// Hub tracks live websocket clients so shutdown can close them and
// write failures can be reported with connection context.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]clientEntry
}

type clientEntry struct {
	kind string
	info ConnInfo
	stop func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]clientEntry)}
}

// Add registers a client. stop tears down the client's subscriptions and
// is invoked on CloseAll.
func (h *Hub) Add(kind string, client *Client, info ConnInfo, stop func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = clientEntry{kind: kind, info: info, stop: stop}
}

// Remove unregisters a client.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Len reports the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll stops every client's subscriptions and closes the connections.
// Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	entries := h.clients
	h.clients = make(map[*Client]clientEntry)
	h.mu.Unlock()

	for client, entry := range entries {
		entry.stop()
		_ = client.Close()
	}
}

// ReportWriteError publishes a ws_error event for a failed client write.
func (h *Hub) ReportWriteError(client *Client, err error) {
	h.mu.RLock()
	entry, ok := h.clients[client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	observability.IncWSEvent(entry.kind, "ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events."+entry.kind, observability.EventEnvelope{
		EventType:  "ws_error",
		UserID:     entry.info.UserID,
		RequestID:  entry.info.RequestID,
		ConnID:     entry.info.ConnID,
		DurationMS: time.Since(entry.info.ConnectedAt).Milliseconds(),
		Reason:     err.Error(),
	})
}
