package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/cache"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func seedProfile(t *testing.T, st *store.MemStore, id, name, email string) {
	t.Helper()
	require.NoError(t, st.SetMerge(context.Background(), models.CollectionPublic, id, map[string]any{
		"name":       name,
		"emailLower": email,
	}))
}

func TestFindByEmail(t *testing.T) {
	st := store.NewMemStore()
	d := New(st, cache.NewMemoryCache())
	seedProfile(t, st, "u1", "Ann", "ann@x.io")

	profile, err := d.FindByEmail(context.Background(), "ann@x.io")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "Ann", profile.Name)
}

func TestFindByEmailUnknown(t *testing.T) {
	d := New(store.NewMemStore(), nil)
	_, err := d.FindByEmail(context.Background(), "nobody@x.io")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfilesSkipsUnknownIDs(t *testing.T) {
	st := store.NewMemStore()
	d := New(st, nil)
	seedProfile(t, st, "u1", "Ann", "ann@x.io")
	seedProfile(t, st, "u3", "Carl", "carl@x.io")

	profiles, err := d.Profiles(context.Background(), []string{"u1", "ghost", "u3"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Ann", profiles[0].Name)
	assert.Equal(t, "Carl", profiles[1].Name)
}

func TestProfilesCapsBatchSize(t *testing.T) {
	st := store.NewMemStore()
	d := New(st, nil)

	ids := make([]string, 0, maxBatch+5)
	for i := 0; i < maxBatch+5; i++ {
		id := string(rune('a' + i))
		seedProfile(t, st, id, "User "+id, id+"@x.io")
		ids = append(ids, id)
	}

	profiles, err := d.Profiles(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, profiles, maxBatch)
}

func TestProfilesReadsThroughCache(t *testing.T) {
	st := store.NewMemStore()
	d := New(st, cache.NewMemoryCache())
	seedProfile(t, st, "u1", "Ann", "ann@x.io")

	profiles, err := d.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	// second lookup is served from cache, not the store
	st.FailNext("get", store.ErrUnavailable)
	profiles, err = d.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ann", profiles[0].Name)
}

func TestInvalidateDropsCachedProfile(t *testing.T) {
	st := store.NewMemStore()
	d := New(st, cache.NewMemoryCache())
	seedProfile(t, st, "u1", "Ann", "ann@x.io")

	_, err := d.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)

	d.Invalidate(context.Background(), "u1")

	seedProfile(t, st, "u1", "Anna", "ann@x.io")
	profiles, err := d.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Anna", profiles[0].Name)
}

func TestCacheFailureFallsBackToStore(t *testing.T) {
	st := store.NewMemStore()
	c := new(mocks.CacheMock)
	d := New(st, c)
	seedProfile(t, st, "u1", "Ann", "ann@x.io")

	c.On("Get", mock.Anything, "profile:u1").Return("", assert.AnError)
	c.On("Set", mock.Anything, "profile:u1", mock.Anything, mock.Anything).Return(assert.AnError)

	profiles, err := d.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ann", profiles[0].Name)
	c.AssertExpectations(t)
}
