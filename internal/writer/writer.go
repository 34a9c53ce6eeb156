package writer

import (
	"context"
	"log"
	"strings"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
)

// MaxTitleLen is the clamp applied to room titles. Overlong titles are
// truncated, not rejected.
const MaxTitleLen = 100

// ValidationError rejects an operation before any store call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrEmptyMessage = &ValidationError{Reason: "message is empty"}
	ErrEmptyTitle   = &ValidationError{Reason: "title is empty"}
	ErrEmptyEmail   = &ValidationError{Reason: "email is empty"}
)

// Coordinator performs the validated multi-document writes of the sync
// layer. All writes use merge/union semantics and are safe to repeat; the
// store's atomic commit is used wherever a multi-field invariant must hold.
type Coordinator struct {
	store store.Store
}

// NewCoordinator builds a Coordinator over the given store.
func NewCoordinator(st store.Store) *Coordinator {
	return &Coordinator{store: st}
}

// SendMessage appends a message document and then updates the room's
// last-message summary. The append is authoritative; the summary update is
// advisory, so its failure is logged and not reported as a send failure.
func (c *Coordinator) SendMessage(ctx context.Context, roomID, senderID, senderName, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}

	id, err := c.store.Add(ctx, models.MessagesPath(roomID), map[string]any{
		"text":       trimmed,
		"senderId":   senderID,
		"senderName": senderName,
		"createdAt":  store.ServerTimestamp(),
	})
	if err != nil {
		observability.IncStoreOp("send_message", false)
		return "", err
	}

	if err := c.store.Update(ctx, models.CollectionRooms, roomID, map[string]any{
		"lastMessage":   trimmed,
		"lastMessageAt": store.ServerTimestamp(),
	}); err != nil {
		log.Printf("room summary update failed room=%s: %v", roomID, err)
	}

	observability.IncStoreOp("send_message", true)
	return id, nil
}

// CreateRoom writes a room document with the creator as sole member and
// returns the store-assigned id. Blank titles are rejected; overlong titles
// are clamped to MaxTitleLen runes.
func (c *Coordinator) CreateRoom(ctx context.Context, title, creatorID string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", ErrEmptyTitle
	}
	if runes := []rune(trimmed); len(runes) > MaxTitleLen {
		trimmed = string(runes[:MaxTitleLen])
	}

	id, err := c.store.Add(ctx, models.CollectionRooms, map[string]any{
		"title":         trimmed,
		"createdBy":     creatorID,
		"members":       []string{creatorID},
		"createdAt":     store.ServerTimestamp(),
		"lastMessage":   "",
		"lastMessageAt": nil,
	})
	observability.IncStoreOp("create_room", err == nil)
	return id, err
}

// DeleteRoom removes the room and every message in it as one atomic
// commit: either all documents go or none do. Rooms larger than the store's
// per-commit operation limit (500 for the managed backend) are not handled.
func (c *Coordinator) DeleteRoom(ctx context.Context, roomID string) error {
	msgPath := models.MessagesPath(roomID)
	docs, err := c.store.GetAll(ctx, store.Query{Path: msgPath})
	if err != nil {
		observability.IncStoreOp("delete_room", false)
		return err
	}

	ops := make([]store.WriteOp, 0, len(docs)+1)
	for _, doc := range docs {
		ops = append(ops, store.WriteOp{Kind: store.OpDelete, Path: msgPath, ID: doc.ID})
	}
	ops = append(ops, store.WriteOp{Kind: store.OpDelete, Path: models.CollectionRooms, ID: roomID})

	err = c.store.Commit(ctx, ops)
	observability.IncStoreOp("delete_room", err == nil)
	return err
}

// InviteMember adds a member to the room with union semantics: inviting an
// existing member is a no-op, not an error.
func (c *Coordinator) InviteMember(ctx context.Context, roomID, memberID string) error {
	err := c.store.Update(ctx, models.CollectionRooms, roomID, map[string]any{
		"members": store.ArrayUnion(memberID),
	})
	observability.IncStoreOp("invite_member", err == nil)
	return err
}

// SendFriendRequest unions the sender into the target's incoming requests,
// creating the target's private record if absent. A self-request is a
// silent no-op with zero store calls.
func (c *Coordinator) SendFriendRequest(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return nil
	}
	err := c.store.SetMerge(ctx, models.CollectionUsers, toID, map[string]any{
		"incoming_requests": store.ArrayUnion(fromID),
	})
	observability.IncStoreOp("send_friend_request", err == nil)
	return err
}

// AcceptFriendRequest makes the friendship symmetric and clears the request
// in one atomic commit, so "I see them as a friend but they don't see me"
// is never observable. Union/remove semantics make repeats idempotent.
func (c *Coordinator) AcceptFriendRequest(ctx context.Context, selfID, otherID string) error {
	if selfID == otherID {
		return nil
	}
	err := c.store.Commit(ctx, []store.WriteOp{
		{
			Kind: store.OpSetMerge, Path: models.CollectionUsers, ID: selfID,
			Fields: map[string]any{"friends": store.ArrayUnion(otherID)},
		},
		{
			Kind: store.OpSetMerge, Path: models.CollectionUsers, ID: otherID,
			Fields: map[string]any{"friends": store.ArrayUnion(selfID)},
		},
		{
			Kind: store.OpSetMerge, Path: models.CollectionUsers, ID: selfID,
			Fields: map[string]any{"incoming_requests": store.ArrayRemove(otherID)},
		},
	})
	observability.IncStoreOp("accept_friend_request", err == nil)
	return err
}

// RejectFriendRequest removes the request without touching either friends
// array.
func (c *Coordinator) RejectFriendRequest(ctx context.Context, selfID, otherID string) error {
	if selfID == otherID {
		return nil
	}
	err := c.store.SetMerge(ctx, models.CollectionUsers, selfID, map[string]any{
		"incoming_requests": store.ArrayRemove(otherID),
	})
	observability.IncStoreOp("reject_friend_request", err == nil)
	return err
}

// EnsureProfile upserts the private and public user records on first
// authentication. Merge semantics keep it idempotent and never overwrite
// existing friend-graph arrays.
func (c *Coordinator) EnsureProfile(ctx context.Context, userID, name, email string) error {
	emailLower := strings.ToLower(strings.TrimSpace(email))
	if emailLower == "" {
		return ErrEmptyEmail
	}
	if err := c.store.SetMerge(ctx, models.CollectionUsers, userID, map[string]any{}); err != nil {
		observability.IncStoreOp("ensure_profile", false)
		return err
	}
	err := c.store.SetMerge(ctx, models.CollectionPublic, userID, map[string]any{
		"name":       name,
		"emailLower": emailLower,
	})
	observability.IncStoreOp("ensure_profile", err == nil)
	return err
}
