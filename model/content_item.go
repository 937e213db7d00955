package model

import (
	"strings"
	"time"
)

const (
	// MaxBodyRunes is the upper bound of a visit log body after trimming.
	MaxBodyRunes = 400
	// MaxMediaRefs caps the photo references attached to one visit log.
	MaxMediaRefs = 5
)

/*

ContentItem is one posted visit log ("tweet") as seen by the client cache layer

Id: server-assigned numeric primary key
AuthorId: id of the user who posted the log
GymId: the gym the visit belongs to
Body: plain text body, at most 400 characters after trimming
VisitedDate: the day of the visit, never in the future
PostedAt: server-assigned creation timestamp, immutable, also the feed cursor
LikedCount: number of likes from other users
MediaRefs: ordered photo references, at most 5, mutually exclusive with MovieRef
MovieRef: optional single video reference

*/
type ContentItem struct {
	Id          int64     `json:"id"`
	AuthorId    string    `json:"author_id"`
	GymId       int64     `json:"gym_id"`
	Body        string    `json:"body"`
	VisitedDate time.Time `json:"visited_date"`
	PostedAt    time.Time `json:"posted_at"`
	LikedCount  int       `json:"liked_count"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	MovieRef    string    `json:"movie_ref,omitempty"`
}

// Validate checks the item shape locally, before any network call. now is
// injected so callers (and tests) control what "today" means.
func (c *ContentItem) Validate(now time.Time) error {
	body := strings.TrimSpace(c.Body)
	if body == "" {
		return NewValidationError("body must not be empty")
	}
	if len([]rune(body)) > MaxBodyRunes {
		return NewValidationError("body exceeds %d characters", MaxBodyRunes)
	}
	if c.GymId <= 0 {
		return NewValidationError("gym id must be a positive integer, got %d", c.GymId)
	}
	if len(c.MediaRefs) > MaxMediaRefs {
		return NewValidationError("at most %d media references allowed", MaxMediaRefs)
	}
	if len(c.MediaRefs) > 0 && c.MovieRef != "" {
		return NewValidationError("media references and movie reference are mutually exclusive")
	}
	if dateOnly(c.VisitedDate).After(dateOnly(now)) {
		return NewValidationError("visited date must not be in the future")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
