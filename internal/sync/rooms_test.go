package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func TestRoomSyncPublishesMemberRoomsNewestFirst(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	addRoom := func(title string, at time.Time, members []string) string {
		st.SetClock(func() time.Time { return at })
		id, err := st.Add(ctx, models.CollectionRooms, map[string]any{
			"title":     title,
			"members":   members,
			"createdAt": store.ServerTimestamp(),
		})
		require.NoError(t, err)
		return id
	}

	addRoom("old", base, []string{"u1"})
	addRoom("new", base.Add(time.Hour), []string{"u1", "u2"})
	addRoom("foreign", base.Add(2*time.Hour), []string{"u2"})

	var published [][]models.Room
	rs := NewRoomSync(NewSubscriptions(st),
		func(rooms []models.Room) { published = append(published, rooms) },
		func(err error) { t.Fatalf("unexpected error: %v", err) })
	require.NoError(t, rs.Start(ctx, "u1"))

	require.Len(t, published, 1)
	require.Len(t, published[0], 2, "non-member rooms are excluded")
	assert.Equal(t, "new", published[0][0].Title)
	assert.Equal(t, "old", published[0][1].Title)
}

func TestRoomSyncRepublishesOnChange(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	var published [][]models.Room
	rs := NewRoomSync(NewSubscriptions(st),
		func(rooms []models.Room) { published = append(published, rooms) },
		func(err error) { t.Fatalf("unexpected error: %v", err) })
	require.NoError(t, rs.Start(ctx, "u1"))
	require.Len(t, published, 1)

	_, err := st.Add(ctx, models.CollectionRooms, map[string]any{
		"title":     "general",
		"members":   []string{"u1"},
		"createdAt": store.ServerTimestamp(),
	})
	require.NoError(t, err)
	require.Len(t, published, 2)
	require.Len(t, published[1], 1)

	rs.Stop()
	_, err = st.Add(ctx, models.CollectionRooms, map[string]any{
		"title":   "late",
		"members": []string{"u1"},
	})
	require.NoError(t, err)
	assert.Len(t, published, 2)
}

func TestSortRoomsUnresolvedTimestampsLast(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rooms := []models.Room{
		{ID: "b", CreatedAt: time.Time{}},
		{ID: "c", CreatedAt: at},
		{ID: "a", CreatedAt: time.Time{}},
		{ID: "d", CreatedAt: at.Add(time.Minute)},
	}
	sortRooms(rooms)

	ids := []string{rooms[0].ID, rooms[1].ID, rooms[2].ID, rooms[3].ID}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids)
}

func TestSortRoomsTieBreaksOnID(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rooms := []models.Room{
		{ID: "z", CreatedAt: at},
		{ID: "a", CreatedAt: at},
	}
	sortRooms(rooms)
	assert.Equal(t, "a", rooms[0].ID)
}
