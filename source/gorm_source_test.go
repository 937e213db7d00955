package source

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit a real postgres instance and are skipped where none is
// configured. CI provides the DB_* env vars.
func newTestGormSource(t *testing.T) *GormSource {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set, skipping postgres-backed tests")
	}
	db, _ := utils.CreateTempDB(t, SetupAndMigrate)
	return NewGormSource(db)
}

func publishTestLog(t *testing.T, src *GormSource, authorId string, gymId int64, body string) int64 {
	t.Helper()
	id, err := src.Publish(context.Background(), &model.ContentItem{
		AuthorId:    authorId,
		GymId:       gymId,
		Body:        body,
		VisitedDate: time.Now(),
	})
	require.Nil(t, err)
	return id
}

func TestGormPublishAndListGlobal(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	first := publishTestLog(t, src, "alice", 1, "slab day")
	second := publishTestLog(t, src, "bob", 2, "overhang day")

	items, err := src.ListGlobal(ctx, "", 10)
	require.Nil(t, err)
	require.Equal(t, 2, len(items))
	// Newest first; same-timestamp rows fall back to descending id.
	assert.Equal(t, second, items[0].Id)
	assert.Equal(t, first, items[1].Id)
}

func TestGormListByAuthorAndLocation(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	publishTestLog(t, src, "alice", 1, "a1")
	publishTestLog(t, src, "alice", 2, "a2")
	publishTestLog(t, src, "bob", 1, "b1")

	byAuthor, err := src.ListByAuthor(ctx, "alice", 0, 10)
	require.Nil(t, err)
	assert.Equal(t, 2, len(byAuthor))

	byGym, err := src.ListByLocation(ctx, 1, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, 2, len(byGym))
}

func TestGormListFavoritesOnly(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	publishTestLog(t, src, "alice", 1, "from favorite")
	publishTestLog(t, src, "bob", 1, "from stranger")
	require.Nil(t, src.AddFavoriteUser(ctx, "me", "alice"))

	items, err := src.ListFavoritesOnly(ctx, "me", "", 10)
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	assert.Equal(t, "alice", items[0].AuthorId)
}

func TestGormEditAndDelete(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	id := publishTestLog(t, src, "alice", 1, "draft")
	body := "final"
	require.Nil(t, src.Edit(ctx, id, ContentEdit{Body: &body}))

	items, err := src.ListByAuthor(ctx, "alice", 0, 10)
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	assert.Equal(t, "final", items[0].Body)

	require.Nil(t, src.Delete(ctx, id))
	assert.True(t, errors.Is(src.Delete(ctx, id), model.ErrNotFound))
	assert.True(t, errors.Is(src.Edit(ctx, id, ContentEdit{Body: &body}), model.ErrNotFound))
}

func TestGormLikeIsIdempotentPerUser(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	id := publishTestLog(t, src, "alice", 1, "proud send")
	require.Nil(t, src.Like(ctx, id, "me"))
	// A second like from the same user does not double count.
	require.Nil(t, src.Like(ctx, id, "me"))
	require.Nil(t, src.Like(ctx, id, "other"))

	items, err := src.ListByAuthor(ctx, "alice", 0, 10)
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	assert.Equal(t, 2, items[0].LikedCount)

	require.Nil(t, src.Unlike(ctx, id, "me"))
	items, err = src.ListByAuthor(ctx, "alice", 0, 10)
	require.Nil(t, err)
	assert.Equal(t, 1, items[0].LikedCount)
}

func TestGormRelationshipEdges(t *testing.T) {
	src := newTestGormSource(t)
	ctx := context.Background()

	require.Nil(t, src.AddFavoriteUser(ctx, "me", "alice"))
	require.Nil(t, src.AddFavoriteUser(ctx, "me", "alice"))
	require.Nil(t, src.AddBlockUser(ctx, "me", "bob"))
	require.Nil(t, src.AddFavoriteGym(ctx, "me", 7))

	favorites, err := src.ListFavoriteUsers(ctx, "me")
	require.Nil(t, err)
	assert.Equal(t, []string{"alice"}, favorites)

	blocked, err := src.ListBlockedUsers(ctx, "me")
	require.Nil(t, err)
	assert.Equal(t, []string{"bob"}, blocked)

	gyms, err := src.ListFavoriteGyms(ctx, "me")
	require.Nil(t, err)
	assert.Equal(t, []int64{7}, gyms)

	favoritedBy, err := src.ListFavoritedByUsers(ctx, "alice")
	require.Nil(t, err)
	assert.Equal(t, []string{"me"}, favoritedBy)

	// Removing twice is fine, the second remove is a no-op success.
	require.Nil(t, src.RemoveFavoriteUser(ctx, "me", "alice"))
	require.Nil(t, src.RemoveFavoriteUser(ctx, "me", "alice"))
	favorites, err = src.ListFavoriteUsers(ctx, "me")
	require.Nil(t, err)
	assert.Empty(t, favorites)
}
