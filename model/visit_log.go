package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*

VisitLog is the authoritative backend row behind a ContentItem

Id: auto-increment primary key, server assigned
CreatedAt: time when entity is created, doubles as PostedAt on the client
DeletedAt: time when entity is deleted
AuthorId: user who posted the log
GymId: gym the visit belongs to
Body: plain text body
VisitedDate: day of the visit
LikedCount: denormalized like counter, kept in sync with VisitLogLike rows
MediaRefs: photo references in display order
MovieRef: optional single video reference

*/
type VisitLog struct {
	Id          int64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time
	DeletedAt   gorm.DeletedAt
	AuthorId    string `gorm:"index"`
	GymId       int64  `gorm:"index"`
	Body        string
	VisitedDate datatypes.Date
	LikedCount  int
	MediaRefs   pq.StringArray `gorm:"type:text[]"`
	MovieRef    string
}

// ToContentItem converts a backend row to the client-side view.
func (v *VisitLog) ToContentItem() *ContentItem {
	return &ContentItem{
		Id:          v.Id,
		AuthorId:    v.AuthorId,
		GymId:       v.GymId,
		Body:        v.Body,
		VisitedDate: time.Time(v.VisitedDate),
		PostedAt:    v.CreatedAt,
		LikedCount:  v.LikedCount,
		MediaRefs:   append([]string{}, v.MediaRefs...),
		MovieRef:    v.MovieRef,
	}
}

/*

VisitLogLike is a "many-to-many" relation of user likes a visit log

UserId: user id
VisitLogId: visit log id
CreatedAt: time when relation is created

*/
type VisitLogLike struct {
	UserId     string `gorm:"primaryKey"`
	VisitLogId int64  `gorm:"primaryKey"`
	CreatedAt  time.Time
}
