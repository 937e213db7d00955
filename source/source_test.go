package source

import (
	"context"
	"testing"
	"time"

	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	postedAt := time.Date(2021, 10, 1, 12, 30, 45, 123456789, time.UTC)
	cursor := FormatCursor(postedAt, 42)
	parsed, id, err := ParseCursor(cursor)
	require.Nil(t, err)
	assert.True(t, parsed.Equal(postedAt))
	assert.Equal(t, int64(42), id)
}

func TestParseCursorEmptyIsZero(t *testing.T) {
	parsed, id, err := ParseCursor("")
	require.Nil(t, err)
	assert.True(t, parsed.IsZero())
	assert.Zero(t, id)
}

func TestParseCursorWithoutTiebreak(t *testing.T) {
	// A bare timestamp token resumes on strictly-older timestamps only.
	postedAt := time.Date(2021, 10, 1, 12, 30, 45, 0, time.UTC)
	parsed, id, err := ParseCursor(postedAt.Format(CursorTimeFormat))
	require.Nil(t, err)
	assert.True(t, parsed.Equal(postedAt))
	assert.Zero(t, id)
}

func TestParseCursorMalformed(t *testing.T) {
	_, _, err := ParseCursor("yesterday-ish")
	assert.True(t, model.IsValidationError(err))
	_, _, err = ParseCursor("2021-10-01T12:30:45Z|not-an-id")
	assert.True(t, model.IsValidationError(err))
}

func TestCursorResumeKeepsSameTimestampItems(t *testing.T) {
	src := NewFakeContentSource()
	ts := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	// Three items sharing one posted-at instant, page size two: the page
	// boundary falls inside the tie and the third item must still arrive.
	for i := 0; i < 3; i++ {
		src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "x", PostedAt: ts})
	}

	first, err := src.ListGlobal(context.Background(), "", 2)
	require.Nil(t, err)
	require.Equal(t, 2, len(first))

	cursor := FormatCursor(first[1].PostedAt, first[1].Id)
	second, err := src.ListGlobal(context.Background(), cursor, 2)
	require.Nil(t, err)
	require.Equal(t, 1, len(second))
	assert.NotEqual(t, first[0].Id, second[0].Id)
	assert.NotEqual(t, first[1].Id, second[0].Id)
}

func TestValidatePageLimit(t *testing.T) {
	assert.Nil(t, ValidatePageLimit(MinPageLimit))
	assert.Nil(t, ValidatePageLimit(MaxPageLimit))
	assert.True(t, model.IsValidationError(ValidatePageLimit(0)))
	assert.True(t, model.IsValidationError(ValidatePageLimit(MaxPageLimit+1)))
}

func TestValidateOffsetArgs(t *testing.T) {
	assert.Nil(t, ValidateOffsetArgs(0, 10))
	assert.True(t, model.IsValidationError(ValidateOffsetArgs(-1, 10)))
	assert.True(t, model.IsValidationError(ValidateOffsetArgs(0, 0)))
}

func TestFakeContentSourceOrdering(t *testing.T) {
	src := NewFakeContentSource()
	base := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	// Seed out of order, listing must come back newest first.
	src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "x", PostedAt: base.Add(time.Minute)})
	src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "y", PostedAt: base.Add(3 * time.Minute)})
	src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "z", PostedAt: base.Add(2 * time.Minute)})

	items, err := src.ListGlobal(context.Background(), "", 10)
	require.Nil(t, err)
	require.Equal(t, 3, len(items))
	assert.Equal(t, "y", items[0].Body)
	assert.Equal(t, "z", items[1].Body)
	assert.Equal(t, "x", items[2].Body)
}

func TestFakeContentSourceTieBreakById(t *testing.T) {
	src := NewFakeContentSource()
	ts := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	first := src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "x", PostedAt: ts})
	second := src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "y", PostedAt: ts})

	items, err := src.ListGlobal(context.Background(), "", 10)
	require.Nil(t, err)
	require.Equal(t, 2, len(items))
	assert.Equal(t, second.Id, items[0].Id)
	assert.Equal(t, first.Id, items[1].Id)
}

func TestFakeContentSourceNextErrIsOneShot(t *testing.T) {
	src := NewFakeContentSource()
	src.NextErr = assert.AnError

	_, err := src.ListGlobal(context.Background(), "", 10)
	assert.NotNil(t, err)

	_, err = src.ListGlobal(context.Background(), "", 10)
	assert.Nil(t, err)
}

func TestFakeContentSourceListingsReturnCopies(t *testing.T) {
	src := NewFakeContentSource()
	src.Seed(&model.ContentItem{AuthorId: "a", GymId: 1, Body: "original",
		PostedAt: time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)})

	items, err := src.ListGlobal(context.Background(), "", 10)
	require.Nil(t, err)
	items[0].Body = "mutated"

	again, err := src.ListGlobal(context.Background(), "", 10)
	require.Nil(t, err)
	assert.Equal(t, "original", again[0].Body)
}

func TestFakeRelationshipSourceStickyMutationErr(t *testing.T) {
	src := NewFakeRelationshipSource()
	src.MutationErr = assert.AnError

	assert.NotNil(t, src.AddFavoriteUser(context.Background(), "me", "alice"))
	assert.NotNil(t, src.AddBlockUser(context.Background(), "me", "bob"))
	assert.Equal(t, 2, src.MutationCalls)

	src.MutationErr = nil
	require.Nil(t, src.AddFavoriteUser(context.Background(), "me", "alice"))
	list, err := src.ListFavoriteUsers(context.Background(), "me")
	require.Nil(t, err)
	assert.Equal(t, []string{"alice"}, list)
}
