package sync

import (
	"context"
	"errors"
	"strings"

	"chat-sync/internal/directory"
	"chat-sync/internal/identity"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
	"chat-sync/internal/writer"
)

// Facade is the single entry point the transport layer talks to: write
// operations forward to the coordinator, read-side state flows through
// per-consumer Sessions.
type Facade struct {
	store     store.Store
	writer    *writer.Coordinator
	directory *directory.Directory
}

// NewFacade wires the facade over its collaborators.
func NewFacade(st store.Store, w *writer.Coordinator, d *directory.Directory) *Facade {
	return &Facade{store: st, writer: w, directory: d}
}

// SessionHooks carries the consumer callbacks of one Session. Nil hooks are
// skipped.
type SessionHooks struct {
	OnRooms         func([]models.Room)
	OnMessages      func([]models.Message)
	OnFriends       func([]string)
	OnFriendRequest func(requesterID string)
	OnError         func(error)
}

// Session owns the live subscriptions of one consumer (typically one
// websocket connection). All Start calls replace rather than stack, and
// Stop is safe to call redundantly.
type Session struct {
	subs     *Subscriptions
	rooms    *RoomSync
	messages *MessageSync
	friends  *FriendGraphSync
}

// NewSession builds a Session delivering into hooks.
func (f *Facade) NewSession(hooks SessionHooks) *Session {
	subs := NewSubscriptions(f.store)
	onError := func(err error) {
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
	}
	publishRooms := func(rooms []models.Room) {
		if hooks.OnRooms != nil {
			hooks.OnRooms(rooms)
		}
	}
	publishMessages := func(messages []models.Message) {
		if hooks.OnMessages != nil {
			hooks.OnMessages(messages)
		}
	}
	publishFriends := func(friends []string) {
		if hooks.OnFriends != nil {
			hooks.OnFriends(friends)
		}
	}
	notify := func(requesterID string) {
		if hooks.OnFriendRequest != nil {
			hooks.OnFriendRequest(requesterID)
		}
	}
	return &Session{
		subs:     subs,
		rooms:    NewRoomSync(subs, publishRooms, onError),
		messages: NewMessageSync(subs, publishMessages, onError),
		friends:  NewFriendGraphSync(subs, notify, publishFriends, onError),
	}
}

// StartRooms begins streaming the user's room list.
func (s *Session) StartRooms(ctx context.Context, userID string) error {
	return s.rooms.Start(ctx, userID)
}

// StartMessages begins streaming one room's messages, replacing any room
// previously streamed by this session.
func (s *Session) StartMessages(ctx context.Context, roomID string) error {
	return s.messages.Start(ctx, roomID)
}

// StartFriendGraph begins watching the user's friend graph.
func (s *Session) StartFriendGraph(ctx context.Context, userID string) error {
	return s.friends.Start(ctx, userID)
}

// AcknowledgeFriendRequest re-arms the friend-request notification after
// the consumer's dialog closed.
func (s *Session) AcknowledgeFriendRequest() {
	s.friends.Acknowledge()
}

// Stop tears down every subscription of the session. No callback fires
// after Stop returns.
func (s *Session) Stop() {
	s.subs.StopAll()
}

// SendMessage validates and sends a message as the given identity,
// denormalizing the sender name at send time.
func (f *Facade) SendMessage(ctx context.Context, roomID string, ident identity.Identity, text string) (string, error) {
	return f.writer.SendMessage(ctx, roomID, ident.UserID, ident.SenderName(), text)
}

// CreateRoom creates a room owned by creatorID.
func (f *Facade) CreateRoom(ctx context.Context, title, creatorID string) (string, error) {
	return f.writer.CreateRoom(ctx, title, creatorID)
}

// DeleteRoom removes the room and all of its messages atomically.
func (f *Facade) DeleteRoom(ctx context.Context, roomID string) error {
	return f.writer.DeleteRoom(ctx, roomID)
}

// InviteMember adds a user to a room's member set.
func (f *Facade) InviteMember(ctx context.Context, roomID, memberID string) error {
	return f.writer.InviteMember(ctx, roomID, memberID)
}

// SendFriendRequestByEmail resolves the target by email and sends a
// request. Requesting oneself is a silent no-op.
func (f *Facade) SendFriendRequestByEmail(ctx context.Context, selfID, email string) error {
	target, err := f.directory.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	return f.writer.SendFriendRequest(ctx, selfID, target.ID)
}

// AcceptFriendRequest completes the friendship protocol atomically.
func (f *Facade) AcceptFriendRequest(ctx context.Context, selfID, otherID string) error {
	return f.writer.AcceptFriendRequest(ctx, selfID, otherID)
}

// RejectFriendRequest drops the pending request.
func (f *Facade) RejectFriendRequest(ctx context.Context, selfID, otherID string) error {
	return f.writer.RejectFriendRequest(ctx, selfID, otherID)
}

// IsMember reports whether userID belongs to the room. A missing room is
// not an error, just a negative answer.
func (f *Facade) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	doc, err := f.store.Get(ctx, models.CollectionRooms, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	room := models.MapRoom(doc.ID, doc.Fields)
	for _, member := range room.Members {
		if member == userID {
			return true, nil
		}
	}
	return false, nil
}

// Friends resolves the user's friends into public profiles. An absent user
// document yields an empty list, not an error.
func (f *Facade) Friends(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	doc, err := f.store.Get(ctx, models.CollectionUsers, userID)
	if errors.Is(err, store.ErrNotFound) {
		return []models.PublicProfile{}, nil
	}
	if err != nil {
		return nil, err
	}
	profile := models.MapUserProfile(doc.ID, doc.Fields)
	return f.directory.Profiles(ctx, profile.Friends)
}

// EnsureProfile bootstraps the user's private and public records after
// authentication and drops any stale cached profile.
func (f *Facade) EnsureProfile(ctx context.Context, ident identity.Identity) error {
	if err := f.writer.EnsureProfile(ctx, ident.UserID, ident.SenderName(), ident.Email); err != nil {
		return err
	}
	f.directory.Invalidate(ctx, ident.UserID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
