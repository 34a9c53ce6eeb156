package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"chat-sync/internal/models"
)

// Event is the frame shape pushed to websocket clients.
type Event struct {
	Type        string           `json:"type"`
	Rooms       []models.Room    `json:"rooms,omitempty"`
	Messages    []models.Message `json:"messages,omitempty"`
	Friends     []string         `json:"friends,omitempty"`
	RequesterID string           `json:"requester_id,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Client wraps one websocket connection with serialized writes. Snapshot
// callbacks for different streams fire concurrently, gorilla conns do not
// tolerate concurrent writers.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send writes one event frame. The returned error means the connection is
// no longer usable.
func (c *Client) Send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
