package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/moderation"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedBase = time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)

// seedContent seeds n items with strictly descending recency: item i is
// posted i minutes after the base, so higher ids are newer.
func seedContent(src *source.FakeContentSource, n int, author string, gymId int64) {
	for i := 0; i < n; i++ {
		src.Seed(&model.ContentItem{
			AuthorId:    author,
			GymId:       gymId,
			Body:        "session log",
			VisitedDate: seedBase,
			PostedAt:    seedBase.Add(time.Duration(i) * time.Minute),
		})
	}
}

func newTestCoordinator(t *testing.T, src *source.FakeContentSource, pageSize int) *Coordinator {
	t.Helper()
	rels := store.NewRelationshipStore("me", source.NewFakeRelationshipSource(), nil)
	require.Nil(t, rels.Load(context.Background()))
	engine := moderation.NewEngine(moderation.StaticTermList{"死ね"})
	return NewCoordinator("me", src, rels, engine, WithPageSize(pageSize))
}

func TestFetchMorePaginationTerminates(t *testing.T) {
	src := source.NewFakeContentSource()
	seedContent(src, 7, "alice", 1)
	c := newTestCoordinator(t, src, 3)
	ctx := context.Background()
	key := model.GlobalFeed()

	snap, err := c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.Equal(t, 3, len(snap.Items))
	assert.True(t, snap.HasMore)

	snap, err = c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.Equal(t, 6, len(snap.Items))
	assert.True(t, snap.HasMore)

	// Short page: source exhausted.
	snap, err = c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.Equal(t, 7, len(snap.Items))
	assert.False(t, snap.HasMore)

	// Further calls are no-ops.
	snap, err = c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.Equal(t, 7, len(snap.Items))
	assert.Equal(t, StatePopulated, snap.State)
}

func TestFetchMoreCursorMonotonicityRoundTrip(t *testing.T) {
	src := source.NewFakeContentSource()
	seedContent(src, 10, "alice", 1)
	c := newTestCoordinator(t, src, 4)
	ctx := context.Background()
	key := model.GlobalFeed()

	for {
		snap, err := c.FetchMore(ctx, key)
		require.Nil(t, err)
		if !snap.HasMore {
			break
		}
	}

	snap := c.cacheFor(key).Snapshot()
	require.Equal(t, 10, len(snap.Items))

	// Concatenating all pages reproduces the full descending listing with no
	// duplicates.
	want, err := src.ListGlobal(ctx, "", 100)
	require.Nil(t, err)
	gotIds := make([]int64, 0, len(snap.Items))
	seen := map[int64]bool{}
	for i, item := range snap.Items {
		if i > 0 {
			assert.False(t, item.PostedAt.After(snap.Items[i-1].PostedAt))
		}
		assert.False(t, seen[item.Id])
		seen[item.Id] = true
		gotIds = append(gotIds, item.Id)
	}
	wantIds := make([]int64, 0, len(want))
	for _, item := range want {
		wantIds = append(wantIds, item.Id)
	}
	assert.Empty(t, cmp.Diff(wantIds, gotIds))
}

func TestFetchMoreKeepsSameTimestampItemsAcrossPages(t *testing.T) {
	src := source.NewFakeContentSource()
	// Five items on one posted-at instant: every page boundary falls inside
	// the tie and nothing may be skipped or repeated.
	for i := 0; i < 5; i++ {
		src.Seed(&model.ContentItem{AuthorId: "alice", GymId: 1, Body: "x", PostedAt: seedBase})
	}
	c := newTestCoordinator(t, src, 2)
	ctx := context.Background()
	key := model.GlobalFeed()

	for {
		snap, err := c.FetchMore(ctx, key)
		require.Nil(t, err)
		if !snap.HasMore {
			break
		}
	}

	snap := c.cacheFor(key).Snapshot()
	require.Equal(t, 5, len(snap.Items))
	seen := map[int64]bool{}
	for _, item := range snap.Items {
		assert.False(t, seen[item.Id])
		seen[item.Id] = true
	}
}

func TestEmptyPageLeavesCursorUnchanged(t *testing.T) {
	src := source.NewFakeContentSource()
	seedContent(src, 3, "alice", 1)
	c := newTestCoordinator(t, src, 3)
	ctx := context.Background()
	key := model.GlobalFeed()

	snap, err := c.FetchMore(ctx, key)
	require.Nil(t, err)
	require.True(t, snap.HasMore)
	cursorAfterFirst := snap.Cursor

	// Next page is empty: hasMore flips, cursor stays.
	snap, err = c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.False(t, snap.HasMore)
	assert.Equal(t, cursorAfterFirst, snap.Cursor)
}

func TestFetchMoreNoOpWhileInFlight(t *testing.T) {
	cache := NewCache(model.GlobalFeed())

	_, ok := cache.beginFetch()
	require.True(t, ok)

	_, ok = cache.beginFetch()
	assert.False(t, ok)
}

func TestRefreshSupersedesInFlightFetch(t *testing.T) {
	cache := NewCache(model.GlobalFeed())

	stale, ok := cache.beginFetch()
	require.True(t, ok)

	fresh := cache.beginRefresh()

	// The stale fetch result arrives after the refresh started: discarded.
	stalePage := []*model.ContentItem{{Id: 99, PostedAt: seedBase}}
	assert.False(t, cache.completeFetch(stale, stalePage, 1))
	assert.Equal(t, 0, len(cache.Snapshot().Items))

	freshPage := []*model.ContentItem{{Id: 1, PostedAt: seedBase}}
	assert.True(t, cache.completeFetch(fresh, freshPage, 2))
	snap := cache.Snapshot()
	assert.Equal(t, 1, len(snap.Items))
	assert.False(t, snap.HasMore)
	assert.Equal(t, StatePopulated, snap.State)
}

func TestFailedFetchPreservesLoadedItems(t *testing.T) {
	src := source.NewFakeContentSource()
	seedContent(src, 6, "alice", 1)
	c := newTestCoordinator(t, src, 3)
	ctx := context.Background()
	key := model.GlobalFeed()

	snap, err := c.FetchMore(ctx, key)
	require.Nil(t, err)
	require.Equal(t, 3, len(snap.Items))

	src.NextErr = assert.AnError
	snap, err = c.FetchMore(ctx, key)
	require.NotNil(t, err)
	assert.Equal(t, 3, len(snap.Items))
	assert.True(t, snap.HasMore)

	// The in-flight slot was released, the next fetch proceeds.
	snap, err = c.FetchMore(ctx, key)
	require.Nil(t, err)
	assert.Equal(t, 6, len(snap.Items))
}

func TestOffsetFeedsPaginateIndependently(t *testing.T) {
	src := source.NewFakeContentSource()
	seedContent(src, 5, "alice", 1)
	seedContent(src, 2, "bob", 2)
	c := newTestCoordinator(t, src, 4)
	ctx := context.Background()

	aliceKey := model.AuthorFeed("alice")
	snap, err := c.FetchMore(ctx, aliceKey)
	require.Nil(t, err)
	assert.Equal(t, 4, len(snap.Items))
	assert.True(t, snap.HasMore)

	gymKey := model.LocationFeed(2)
	snap, err = c.FetchMore(ctx, gymKey)
	require.Nil(t, err)
	assert.Equal(t, 2, len(snap.Items))
	assert.False(t, snap.HasMore)

	snap, err = c.FetchMore(ctx, aliceKey)
	require.Nil(t, err)
	assert.Equal(t, 5, len(snap.Items))
	assert.False(t, snap.HasMore)
	for _, item := range snap.Items {
		assert.Equal(t, "alice", item.AuthorId)
	}
}

func TestFeedKeyValidationAtFetch(t *testing.T) {
	src := source.NewFakeContentSource()
	c := newTestCoordinator(t, src, 3)

	_, err := c.FetchMore(context.Background(), model.AuthorFeed(""))
	assert.True(t, model.IsValidationError(err))
}
