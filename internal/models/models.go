package models

import "time"

// Collection paths used by the sync layer. Messages live in a subcollection
// under their room.
const (
	CollectionRooms   = "chat-rooms"
	CollectionUsers   = "users"
	CollectionPublic  = "user-public"
	SubcollectionMsgs = "messages"
)

// MessagesPath returns the message subcollection path for a room.
func MessagesPath(roomID string) string {
	return CollectionRooms + "/" + roomID + "/" + SubcollectionMsgs
}

// Room is a chat room projection. CreatedAt and LastMessageAt are
// store-assigned; a zero value means the store has not resolved them yet.
type Room struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedBy     string    `json:"created_by"`
	Members       []string  `json:"members"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// DisplayTitle falls back to a placeholder for rooms saved with a blank
// title.
func (r Room) DisplayTitle() string {
	if r.Title == "" {
		return "Untitled room"
	}
	return r.Title
}

// Message is an immutable chat message. SenderName is denormalized at send
// time and never re-derived.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserProfile is the private per-user record owning the friend graph
// arrays.
type UserProfile struct {
	ID               string   `json:"id"`
	Friends          []string `json:"friends"`
	IncomingRequests []string `json:"incoming_requests"`
}

// PublicProfile is the lookup-facing projection of a user.
type PublicProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EmailLower string `json:"email_lower"`
}
