package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/store"
)

func TestReplaceDeliversInitialSnapshot(t *testing.T) {
	st := store.NewMemStore()
	subs := NewSubscriptions(st)

	var snaps []store.Snapshot
	err := subs.Replace(context.Background(), "rooms", store.Query{Path: "chat-rooms"},
		func(snap store.Snapshot) { snaps = append(snaps, snap) },
		func(error) {})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}

func TestReplaceSupersedesPreviousScope(t *testing.T) {
	st := store.NewMemStore()
	subs := NewSubscriptions(st)
	ctx := context.Background()

	var first, second int
	require.NoError(t, subs.Replace(ctx, "messages", store.Query{Path: "chat-rooms/r1/messages"},
		func(store.Snapshot) { first++ }, func(error) {}))
	require.NoError(t, subs.Replace(ctx, "messages", store.Query{Path: "chat-rooms/r2/messages"},
		func(store.Snapshot) { second++ }, func(error) {}))

	require.Equal(t, 1, first)
	require.Equal(t, 1, second)

	_, err := st.Add(ctx, "chat-rooms/r1/messages", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, first, "superseded subscription receives nothing")

	_, err = st.Add(ctx, "chat-rooms/r2/messages", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, second)
}

func TestStopPreventsFurtherDelivery(t *testing.T) {
	st := store.NewMemStore()
	subs := NewSubscriptions(st)
	ctx := context.Background()

	var snaps int
	require.NoError(t, subs.Replace(ctx, "rooms", store.Query{Path: "chat-rooms"},
		func(store.Snapshot) { snaps++ }, func(error) {}))
	require.Equal(t, 1, snaps)

	subs.Stop("rooms")
	subs.Stop("rooms") // idempotent

	_, err := st.Add(ctx, "chat-rooms", map[string]any{"title": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, snaps)
}

func TestErrorDeliveryIsOneShotAndTerminal(t *testing.T) {
	st := store.NewMemStore()
	subs := NewSubscriptions(st)
	ctx := context.Background()

	var snaps, errs int
	require.NoError(t, subs.Replace(ctx, "rooms", store.Query{Path: "chat-rooms"},
		func(store.Snapshot) { snaps++ },
		func(error) { errs++ }))

	st.FailSubscriptions("chat-rooms", store.ErrUnavailable)
	require.Equal(t, 1, errs)

	// the scope is gone, a second failure cannot re-fire
	st.FailSubscriptions("chat-rooms", store.ErrUnavailable)
	assert.Equal(t, 1, errs)

	_, err := st.Add(ctx, "chat-rooms", map[string]any{"title": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, snaps, "no snapshots after the terminal error")
}

func TestStopAll(t *testing.T) {
	st := store.NewMemStore()
	subs := NewSubscriptions(st)
	ctx := context.Background()

	var rooms, friends int
	require.NoError(t, subs.Replace(ctx, "rooms", store.Query{Path: "chat-rooms"},
		func(store.Snapshot) { rooms++ }, func(error) {}))
	require.NoError(t, subs.Replace(ctx, "friend-graph", store.Query{Path: "users", DocID: "u1"},
		func(store.Snapshot) { friends++ }, func(error) {}))

	subs.StopAll()

	_, err := st.Add(ctx, "chat-rooms", map[string]any{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, st.SetMerge(ctx, "users", "u1", map[string]any{"friends": []string{"u2"}}))

	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, friends)
}
