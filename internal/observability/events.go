package observability

// Routing keys for domain events published to the broker.
const (
	EventMessageSent    = "chatsync.message.sent"
	EventRoomCreated    = "chatsync.room.created"
	EventRoomDeleted    = "chatsync.room.deleted"
	EventMemberInvited  = "chatsync.room.member_invited"
	EventFriendRequest  = "chatsync.friend.requested"
	EventFriendAccepted = "chatsync.friend.accepted"
	EventFriendRejected = "chatsync.friend.rejected"
)

// EventEnvelope is the wire shape of a domain event.
type EventEnvelope struct {
	EventType  string `json:"event_type"`
	RoomID     string `json:"room_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	OtherID    string `json:"other_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ConnID     string `json:"conn_id,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
