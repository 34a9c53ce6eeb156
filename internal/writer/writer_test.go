package writer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func TestSendMessageRejectsBlankTextWithoutStoreCalls(t *testing.T) {
	st := new(mocks.StoreMock)
	coordinator := NewCoordinator(st)

	_, err := coordinator.SendMessage(context.Background(), "r1", "u1", "Ann", "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	st.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageAppendsAndUpdatesSummary(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	roomID, err := coordinator.CreateRoom(ctx, "general", "u1")
	require.NoError(t, err)

	msgID, err := coordinator.SendMessage(ctx, roomID, "u1", "Ann", "  hello  ")
	require.NoError(t, err)

	msg, err := st.Get(ctx, models.MessagesPath(roomID), msgID)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Fields["text"], "text is trimmed before writing")
	assert.Equal(t, "u1", msg.Fields["senderId"])
	assert.Equal(t, "Ann", msg.Fields["senderName"])
	assert.IsType(t, time.Time{}, msg.Fields["createdAt"])

	room, err := st.Get(ctx, models.CollectionRooms, roomID)
	require.NoError(t, err)
	assert.Equal(t, "hello", room.Fields["lastMessage"])
}

func TestSendMessageSummaryFailureIsNotSurfaced(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	roomID, err := coordinator.CreateRoom(ctx, "general", "u1")
	require.NoError(t, err)

	st.FailNext("update", store.ErrUnavailable)
	msgID, err := coordinator.SendMessage(ctx, roomID, "u1", "Ann", "hello")
	require.NoError(t, err, "the message append is authoritative")
	assert.NotEmpty(t, msgID)

	room, err := st.Get(ctx, models.CollectionRooms, roomID)
	require.NoError(t, err)
	assert.Equal(t, "", room.Fields["lastMessage"], "summary stays stale after the failed update")
}

func TestCreateRoomValidation(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	_, err := coordinator.CreateRoom(ctx, "   ", "u1")
	require.ErrorIs(t, err, ErrEmptyTitle)

	long := strings.Repeat("x", MaxTitleLen+25)
	roomID, err := coordinator.CreateRoom(ctx, long, "u1")
	require.NoError(t, err)

	doc, err := st.Get(ctx, models.CollectionRooms, roomID)
	require.NoError(t, err)
	title := doc.Fields["title"].(string)
	assert.Len(t, title, MaxTitleLen, "overlong titles are clamped, not rejected")
	assert.Equal(t, []string{"u1"}, doc.Fields["members"])
	assert.Equal(t, "u1", doc.Fields["createdBy"])
	assert.Equal(t, "", doc.Fields["lastMessage"])
}

func TestDeleteRoomRemovesRoomAndMessages(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	roomID, err := coordinator.CreateRoom(ctx, "general", "u1")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := coordinator.SendMessage(ctx, roomID, "u1", "Ann", text)
		require.NoError(t, err)
	}

	require.NoError(t, coordinator.DeleteRoom(ctx, roomID))
	assert.Zero(t, st.DocCount(models.MessagesPath(roomID)))
	_, err = st.Get(ctx, models.CollectionRooms, roomID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRoomIsAtomic(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	roomID, err := coordinator.CreateRoom(ctx, "general", "u1")
	require.NoError(t, err)
	_, err = coordinator.SendMessage(ctx, roomID, "u1", "Ann", "hello")
	require.NoError(t, err)

	st.FailNext("commit", store.ErrUnavailable)
	require.ErrorIs(t, coordinator.DeleteRoom(ctx, roomID), store.ErrUnavailable)

	// nothing was deleted: no orphaned messages, room still present
	assert.Equal(t, 1, st.DocCount(models.MessagesPath(roomID)))
	_, err = st.Get(ctx, models.CollectionRooms, roomID)
	assert.NoError(t, err)
}

func TestInviteMemberIsIdempotent(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	roomID, err := coordinator.CreateRoom(ctx, "general", "u1")
	require.NoError(t, err)

	require.NoError(t, coordinator.InviteMember(ctx, roomID, "u2"))
	require.NoError(t, coordinator.InviteMember(ctx, roomID, "u2"))

	doc, err := st.Get(ctx, models.CollectionRooms, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, doc.Fields["members"])
}

func TestInviteMemberMissingRoom(t *testing.T) {
	coordinator := NewCoordinator(store.NewMemStore())
	err := coordinator.InviteMember(context.Background(), "missing", "u2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendFriendRequestSelfIsNoOp(t *testing.T) {
	st := new(mocks.StoreMock)
	coordinator := NewCoordinator(st)

	require.NoError(t, coordinator.SendFriendRequest(context.Background(), "u1", "u1"))
	st.AssertNotCalled(t, "SetMerge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendFriendRequestCreatesTargetRecord(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	require.NoError(t, coordinator.SendFriendRequest(ctx, "u1", "u2"))
	require.NoError(t, coordinator.SendFriendRequest(ctx, "u1", "u2"))

	doc, err := st.Get(ctx, models.CollectionUsers, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, doc.Fields["incoming_requests"], "repeat requests do not duplicate")
}

func TestAcceptFriendRequest(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	require.NoError(t, coordinator.SendFriendRequest(ctx, "u2", "u1"))
	require.NoError(t, coordinator.AcceptFriendRequest(ctx, "u1", "u2"))

	self, err := st.Get(ctx, models.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, self.Fields["friends"])
	assert.Empty(t, self.Fields["incoming_requests"])

	other, err := st.Get(ctx, models.CollectionUsers, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, other.Fields["friends"])

	// repeating the accept changes nothing
	require.NoError(t, coordinator.AcceptFriendRequest(ctx, "u1", "u2"))
	self, err = st.Get(ctx, models.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, self.Fields["friends"])
}

func TestAcceptFriendRequestAtomic(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	require.NoError(t, coordinator.SendFriendRequest(ctx, "u2", "u1"))
	st.FailNext("commit", store.ErrUnavailable)
	require.ErrorIs(t, coordinator.AcceptFriendRequest(ctx, "u1", "u2"), store.ErrUnavailable)

	// neither side sees a half-applied friendship
	self, err := st.Get(ctx, models.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Empty(t, self.Fields["friends"])
	assert.Equal(t, []string{"u2"}, self.Fields["incoming_requests"])
	_, err = st.Get(ctx, models.CollectionUsers, "u2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRejectFriendRequest(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	require.NoError(t, coordinator.SendFriendRequest(ctx, "u2", "u1"))
	require.NoError(t, coordinator.RejectFriendRequest(ctx, "u1", "u2"))

	doc, err := st.Get(ctx, models.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Empty(t, doc.Fields["friends"])
	assert.Empty(t, doc.Fields["incoming_requests"])
}

func TestEnsureProfile(t *testing.T) {
	st := store.NewMemStore()
	coordinator := NewCoordinator(st)
	ctx := context.Background()

	require.ErrorIs(t, coordinator.EnsureProfile(ctx, "u1", "Ann", "  "), ErrEmptyEmail)

	require.NoError(t, coordinator.EnsureProfile(ctx, "u1", "Ann", "Ann@X.io"))
	pub, err := st.Get(ctx, models.CollectionPublic, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@x.io", pub.Fields["emailLower"])

	// a re-login after the user made friends must not clobber the graph
	require.NoError(t, st.SetMerge(ctx, models.CollectionUsers, "u1", map[string]any{
		"friends": []string{"u2"},
	}))
	require.NoError(t, coordinator.EnsureProfile(ctx, "u1", "Ann", "ann@x.io"))
	doc, err := st.Get(ctx, models.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, doc.Fields["friends"])
}
