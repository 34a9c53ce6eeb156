package sync

import (
	"context"
	"sort"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
)

const scopeRooms = "rooms"

// RoomSync keeps a sorted room list derived from "rooms where I am a
// member". The descending sort runs locally so the backend needs no
// composite index.
type RoomSync struct {
	subs    *Subscriptions
	publish func([]models.Room)
	onError func(error)
}

// NewRoomSync wires a RoomSync to its consumer callbacks.
func NewRoomSync(subs *Subscriptions, publish func([]models.Room), onError func(error)) *RoomSync {
	return &RoomSync{subs: subs, publish: publish, onError: onError}
}

// Start subscribes to the user's rooms, replacing any previous room
// subscription of this consumer.
func (r *RoomSync) Start(ctx context.Context, userID string) error {
	q := store.Query{
		Path:          models.CollectionRooms,
		WhereContains: &store.Where{Field: "members", Value: userID},
	}
	return r.subs.Replace(ctx, scopeRooms, q, r.handleSnapshot, r.onError)
}

// Stop tears down the room subscription.
func (r *RoomSync) Stop() {
	r.subs.Stop(scopeRooms)
}

func (r *RoomSync) handleSnapshot(snap store.Snapshot) {
	rooms := make([]models.Room, 0, len(snap))
	for _, doc := range snap {
		rooms = append(rooms, models.MapRoom(doc.ID, doc.Fields))
	}
	sortRooms(rooms)
	observability.IncSnapshot("rooms")
	r.publish(rooms)
}

// sortRooms orders newest first. Rooms whose createdAt the store has not
// resolved yet sort as oldest; ties break on id so identical snapshots
// always produce identical output.
func sortRooms(rooms []models.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if a.CreatedAt.IsZero() != b.CreatedAt.IsZero() {
			return !a.CreatedAt.IsZero()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
