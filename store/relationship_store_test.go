package store

import (
	"context"
	"testing"
	"time"

	"github.com/murakami-kaito-dev/bouldering-app-sub000/bus"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RelationshipStore, *source.FakeRelationshipSource) {
	t.Helper()
	src := source.NewFakeRelationshipSource()
	s := NewRelationshipStore("me", src, nil)
	require.Nil(t, s.Load(context.Background()))
	return s, src
}

func TestAddFavoriteUserIsIdempotent(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.AddFavoriteUser(ctx, "alice"))
	assert.Equal(t, 1, src.MutationCalls)
	assert.True(t, s.ContainsFavoriteUser("alice"))

	// Second add succeeds without another network round-trip.
	require.Nil(t, s.AddFavoriteUser(ctx, "alice"))
	assert.Equal(t, 1, src.MutationCalls)
	assert.True(t, s.ContainsFavoriteUser("alice"))
}

func TestRemoveNonExistentEdgeIsSuccess(t *testing.T) {
	s, src := newTestStore(t)

	require.Nil(t, s.RemoveFavoriteUser(context.Background(), "ghost"))
	assert.Equal(t, 0, src.MutationCalls)
}

func TestSelfEdgeRejectedWithoutNetworkCall(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	assert.True(t, model.IsValidationError(s.AddFavoriteUser(ctx, "me")))
	assert.True(t, model.IsValidationError(s.BlockUser(ctx, "me")))
	assert.True(t, model.IsValidationError(s.RemoveFavoriteUser(ctx, "me")))
	assert.Equal(t, 0, src.MutationCalls)
}

func TestEmptyTargetRejected(t *testing.T) {
	s, _ := newTestStore(t)

	assert.True(t, model.IsValidationError(s.AddFavoriteUser(context.Background(), "")))
}

func TestFavoriteGymValidation(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	assert.True(t, model.IsValidationError(s.AddFavoriteGym(ctx, 0)))
	assert.True(t, model.IsValidationError(s.AddFavoriteGym(ctx, -3)))
	assert.Equal(t, 0, src.MutationCalls)

	require.Nil(t, s.AddFavoriteGym(ctx, 5))
	assert.True(t, s.ContainsFavoriteGym(5))
}

func TestOptimisticToggleRollback(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	src.MutationErr = errors.New("gateway timeout")
	err := s.AddFavoriteGym(ctx, 5)
	require.NotNil(t, err)

	// The local set must be unchanged after the failed call resolves.
	assert.False(t, s.ContainsFavoriteGym(5))
	assert.Equal(t, model.EdgeConfirmedAbsent, s.GymStatus(5))

	src.MutationErr = nil
	require.Nil(t, s.AddFavoriteGym(ctx, 5))
	assert.True(t, s.ContainsFavoriteGym(5))
}

func TestBlockRollbackKeepsSetUnchanged(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.BlockUser(ctx, "bob"))
	src.MutationErr = errors.New("connection reset")
	require.NotNil(t, s.UnblockUser(ctx, "bob"))
	assert.True(t, s.IsBlocked("bob"))
}

func TestListsAreSortedAndDeduplicated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.AddFavoriteUser(ctx, "carol"))
	require.Nil(t, s.AddFavoriteUser(ctx, "alice"))
	require.Nil(t, s.AddFavoriteUser(ctx, "bob"))
	require.Nil(t, s.AddFavoriteUser(ctx, "alice"))
	assert.Equal(t, []string{"alice", "bob", "carol"}, s.ListFavoriteUsers())

	require.Nil(t, s.AddFavoriteGym(ctx, 9))
	require.Nil(t, s.AddFavoriteGym(ctx, 2))
	require.Nil(t, s.AddFavoriteGym(ctx, 31))
	assert.Equal(t, []int64{2, 9, 31}, s.ListFavoriteGyms())
}

func TestBlockedListKeepsRowsAcrossToggle(t *testing.T) {
	src := source.NewFakeRelationshipSource()
	ctx := context.Background()
	require.Nil(t, src.AddBlockUser(ctx, "me", "bob"))
	require.Nil(t, src.AddBlockUser(ctx, "me", "alice"))

	s := NewRelationshipStore("me", src, nil)
	require.Nil(t, s.Load(ctx))

	entries := s.BlockedListEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserId)
	assert.Equal(t, model.EdgeConfirmedPresent, entries[0].Status)

	// Unblocking keeps the row, only its status flips, until a reload.
	require.Nil(t, s.UnblockUser(ctx, "alice"))
	entries = s.BlockedListEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.EdgeConfirmedAbsent, entries[0].Status)
	assert.Equal(t, model.EdgeConfirmedPresent, entries[1].Status)

	require.Nil(t, s.ReloadBlockedList(ctx))
	entries = s.BlockedListEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].UserId)
}

func TestBlockChangePublishedOnBus(t *testing.T) {
	eventBus := bus.NewEventBus()
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := bus.SubscribeBlockSetChanged(ctx, eventBus)
	require.Nil(t, err)

	src := source.NewFakeRelationshipSource()
	s := NewRelationshipStore("me", src, eventBus)
	require.Nil(t, s.Load(ctx))

	require.Nil(t, s.BlockUser(ctx, "bob"))

	select {
	case msg := <-messages:
		event, err := bus.DecodeBlockSetChanged(msg)
		msg.Ack()
		require.Nil(t, err)
		assert.Equal(t, "bob", event.TargetId)
		assert.True(t, event.Blocked)
	case <-time.After(2 * time.Second):
		t.Fatal("no block change event received")
	}
}

func TestFetchFavoritedBySortedDeduplicated(t *testing.T) {
	src := source.NewFakeRelationshipSource()
	ctx := context.Background()
	require.Nil(t, src.AddFavoriteUser(ctx, "zoe", "me"))
	require.Nil(t, src.AddFavoriteUser(ctx, "adam", "me"))

	s := NewRelationshipStore("me", src, nil)
	require.Nil(t, s.Load(ctx))

	users, err := s.FetchFavoritedBy(ctx)
	require.Nil(t, err)
	assert.Equal(t, []string{"adam", "zoe"}, users)
}

func TestStatusReportsPendingDuringMutation(t *testing.T) {
	// EdgeStatus over the three states: absent, present, and pending while a
	// backend call is in flight.
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, model.EdgeConfirmedAbsent, s.Status(model.EdgeFavoriteUser, "alice"))
	require.Nil(t, s.AddFavoriteUser(ctx, "alice"))
	assert.Equal(t, model.EdgeConfirmedPresent, s.Status(model.EdgeFavoriteUser, "alice"))
}

func TestStatusRoutesGymKind(t *testing.T) {
	// The gym kind must read the gym set, not fall through to favorite users.
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.AddFavoriteGym(ctx, 7))
	require.Nil(t, s.AddFavoriteUser(ctx, "7"))

	assert.Equal(t, model.EdgeConfirmedPresent, s.Status(model.EdgeFavoriteGym, "7"))
	assert.Equal(t, model.EdgeConfirmedAbsent, s.Status(model.EdgeFavoriteGym, "8"))
	assert.Equal(t, model.EdgeConfirmedAbsent, s.Status(model.EdgeFavoriteGym, "not-a-number"))

	require.Nil(t, s.RemoveFavoriteGym(ctx, 7))
	// The user edge "7" must not leak into the gym view.
	assert.Equal(t, model.EdgeConfirmedAbsent, s.Status(model.EdgeFavoriteGym, "7"))
	assert.Equal(t, model.EdgeConfirmedPresent, s.Status(model.EdgeFavoriteUser, "7"))
}
