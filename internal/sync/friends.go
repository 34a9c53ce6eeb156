package sync

import (
	"context"
	"sort"
	"strings"
	"sync"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
)

const scopeFriendGraph = "friend-graph"

// FriendGraphSync watches the current user's private document and turns the
// continuously changing incoming-request set into discrete, non-repeating
// notifications.
//
// A notification is a function of request-set identity, not of write
// frequency: unrelated writes to the same document (the friends array
// growing after an accept, say) must not re-show the consumer's dialog. The
// guard is a signature over the sorted requester ids plus a pending flag
// that holds while the consumer's dialog is open:
//
//   - non-empty set, new signature, nothing pending: emit one notification
//     carrying the lowest requester id and remember the signature
//   - same signature, or pending not yet acknowledged: emit nothing
//   - Acknowledge (dialog closed, any outcome): re-arm, keeping the
//     signature so an unchanged set stays quiet
//   - empty set: clear the signature so a repeat request from the same
//     person notifies again
type FriendGraphSync struct {
	subs           *Subscriptions
	notify         func(requesterID string)
	publishFriends func([]string)
	onError        func(error)

	mu            sync.Mutex
	lastSignature string
	pending       bool
}

// NewFriendGraphSync wires a FriendGraphSync to its consumer callbacks.
func NewFriendGraphSync(subs *Subscriptions, notify func(string), publishFriends func([]string), onError func(error)) *FriendGraphSync {
	return &FriendGraphSync{
		subs:           subs,
		notify:         notify,
		publishFriends: publishFriends,
		onError:        onError,
	}
}

// Start subscribes to the user's private document.
func (f *FriendGraphSync) Start(ctx context.Context, userID string) error {
	q := store.Query{Path: models.CollectionUsers, DocID: userID}
	return f.subs.Replace(ctx, scopeFriendGraph, q, f.handleSnapshot, f.onError)
}

// Stop tears down the subscription. The signature survives so a restart
// does not re-notify for a set that was already seen.
func (f *FriendGraphSync) Stop() {
	f.subs.Stop(scopeFriendGraph)
	f.mu.Lock()
	f.pending = false
	f.mu.Unlock()
}

// Acknowledge re-arms notification after the consumer's dialog closed,
// regardless of the accept/reject/dismiss outcome. Only a signature change
// triggers the next notification.
func (f *FriendGraphSync) Acknowledge() {
	f.mu.Lock()
	f.pending = false
	f.mu.Unlock()
}

func (f *FriendGraphSync) handleSnapshot(snap store.Snapshot) {
	if len(snap) == 0 {
		// profile document not created yet
		return
	}
	profile := models.MapUserProfile(snap[0].ID, snap[0].Fields)
	observability.IncSnapshot("friend-graph")
	if f.publishFriends != nil {
		f.publishFriends(profile.Friends)
	}

	requests := append([]string(nil), profile.IncomingRequests...)
	sort.Strings(requests)

	f.mu.Lock()
	if len(requests) == 0 {
		f.lastSignature = ""
		f.mu.Unlock()
		return
	}
	signature := strings.Join(requests, "|")
	if signature == f.lastSignature || f.pending {
		f.mu.Unlock()
		return
	}
	f.lastSignature = signature
	f.pending = true
	f.mu.Unlock()

	observability.IncNotification()
	f.notify(requests[0])
}
