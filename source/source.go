// Package source defines the abstract backend collaborators the client cache
// layer consumes, plus a postgres-backed reference implementation and
// in-memory fakes for tests.
package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
)

const (
	MinPageLimit = 1
	MaxPageLimit = 100
)

// CursorTimeFormat serializes the posted-at timestamp of the last item in a
// page inside the opaque resume token for the next page. The token also
// carries the item id, so items sharing a posted-at timestamp are not skipped
// when a page boundary falls between them.
const CursorTimeFormat = time.RFC3339Nano

// cursorDelimiter separates the timestamp from the id tiebreak in a resume
// token. Never appears inside an RFC3339 timestamp.
const cursorDelimiter = "|"

// ContentEdit is the set of author-editable fields. Nil pointer means "leave
// unchanged".
type ContentEdit struct {
	Body        *string
	VisitedDate *time.Time
	MediaRefs   *[]string
	MovieRef    *string
}

// ContentSource lists and mutates visit logs. All listings return items in
// strictly descending posted-at order, ties broken by descending id.
type ContentSource interface {
	// ListGlobal pages through every visit log. An empty cursor starts from
	// the newest item.
	ListGlobal(ctx context.Context, cursor string, limit int) ([]*model.ContentItem, error)
	ListByAuthor(ctx context.Context, authorId string, offset, limit int) ([]*model.ContentItem, error)
	ListByLocation(ctx context.Context, gymId int64, offset, limit int) ([]*model.ContentItem, error)
	// ListFavoritesOnly pages through visit logs authored by users the given
	// user favorited.
	ListFavoritesOnly(ctx context.Context, userId string, cursor string, limit int) ([]*model.ContentItem, error)

	Publish(ctx context.Context, item *model.ContentItem) (int64, error)
	Edit(ctx context.Context, id int64, edit ContentEdit) error
	Delete(ctx context.Context, id int64) error
	Like(ctx context.Context, id int64, userId string) error
	Unlike(ctx context.Context, id int64, userId string) error
}

// RelationshipSource mutates and lists directed relationship edges. Mutations
// report success by returning a nil error.
type RelationshipSource interface {
	ListFavoriteUsers(ctx context.Context, userId string) ([]string, error)
	// ListFavoritedByUsers is the reverse listing: users who favorited userId.
	ListFavoritedByUsers(ctx context.Context, userId string) ([]string, error)
	AddFavoriteUser(ctx context.Context, userId, targetId string) error
	RemoveFavoriteUser(ctx context.Context, userId, targetId string) error

	ListBlockedUsers(ctx context.Context, userId string) ([]string, error)
	AddBlockUser(ctx context.Context, userId, targetId string) error
	RemoveBlockUser(ctx context.Context, userId, targetId string) error

	ListFavoriteGyms(ctx context.Context, userId string) ([]int64, error)
	AddFavoriteGym(ctx context.Context, userId string, gymId int64) error
	RemoveFavoriteGym(ctx context.Context, userId string, gymId int64) error
}

// ValidatePageLimit bounds the page size of every listing.
func ValidatePageLimit(limit int) error {
	if limit < MinPageLimit || limit > MaxPageLimit {
		return model.NewValidationError("limit must be within [%d, %d], got %d", MinPageLimit, MaxPageLimit, limit)
	}
	return nil
}

// ValidateOffsetArgs bounds the offset-based listing variants.
func ValidateOffsetArgs(offset, limit int) error {
	if offset < 0 {
		return model.NewValidationError("offset must be >= 0, got %d", offset)
	}
	return ValidatePageLimit(limit)
}

// ParseCursor decodes the opaque resume token into the posted-at timestamp
// and id of the last consumed item. Empty means "from the newest". A zero id
// means the token carries no tiebreak and resume falls back to strictly-older
// timestamps only.
func ParseCursor(cursor string) (time.Time, int64, error) {
	if cursor == "" {
		return time.Time{}, 0, nil
	}
	ts := cursor
	var id int64
	if i := strings.LastIndex(cursor, cursorDelimiter); i >= 0 {
		parsed, err := strconv.ParseInt(cursor[i+1:], 10, 64)
		if err != nil {
			return time.Time{}, 0, model.NewValidationError("malformed cursor %q", cursor)
		}
		ts, id = cursor[:i], parsed
	}
	t, err := time.Parse(CursorTimeFormat, ts)
	if err != nil {
		return time.Time{}, 0, model.NewValidationError("malformed cursor %q", cursor)
	}
	return t, id, nil
}

// FormatCursor encodes the resume position after a page.
func FormatCursor(postedAt time.Time, id int64) string {
	return postedAt.Format(CursorTimeFormat) + cursorDelimiter + strconv.FormatInt(id, 10)
}

// olderThanCursor is the resume predicate shared by the in-memory listings:
// strictly older, or same instant with a smaller id when the token carries
// the tiebreak.
func olderThanCursor(item *model.ContentItem, resume time.Time, resumeId int64) bool {
	if item.PostedAt.Before(resume) {
		return true
	}
	return resumeId > 0 && item.PostedAt.Equal(resume) && item.Id < resumeId
}
