package model

import (
	"fmt"
	"strconv"
)

// FeedKind distinguishes the independent paginated views of visit logs.
type FeedKind int

const (
	FeedGlobal FeedKind = iota
	FeedAuthor
	FeedLocation
	FeedFavorites
)

func (k FeedKind) String() string {
	switch k {
	case FeedGlobal:
		return "global"
	case FeedAuthor:
		return "user"
	case FeedLocation:
		return "gym"
	case FeedFavorites:
		return "favorites"
	}
	return "unknown"
}

// FeedKey identifies one independently paginated feed. The same pagination
// state machine backs every kind, the key only selects which listing of the
// content source feeds it.
type FeedKey struct {
	Kind FeedKind
	// UserId is set for FeedAuthor (the author) and FeedFavorites (the viewer).
	UserId string
	// GymId is set for FeedLocation.
	GymId int64
}

func GlobalFeed() FeedKey {
	return FeedKey{Kind: FeedGlobal}
}

func AuthorFeed(userId string) FeedKey {
	return FeedKey{Kind: FeedAuthor, UserId: userId}
}

func LocationFeed(gymId int64) FeedKey {
	return FeedKey{Kind: FeedLocation, GymId: gymId}
}

func FavoritesFeed(userId string) FeedKey {
	return FeedKey{Kind: FeedFavorites, UserId: userId}
}

// Validate rejects keys that cannot address any listing.
func (k FeedKey) Validate() error {
	switch k.Kind {
	case FeedGlobal:
		return nil
	case FeedAuthor, FeedFavorites:
		if k.UserId == "" {
			return NewValidationError("feed key of kind %s requires a user id", k.Kind)
		}
		return nil
	case FeedLocation:
		if k.GymId <= 0 {
			return NewValidationError("feed key of kind %s requires a positive gym id", k.Kind)
		}
		return nil
	}
	return NewValidationError("unknown feed kind %d", int(k.Kind))
}

// String is the canonical map key / log tag for a feed.
func (k FeedKey) String() string {
	switch k.Kind {
	case FeedGlobal:
		return "global"
	case FeedLocation:
		return "gym:" + strconv.FormatInt(k.GymId, 10)
	default:
		return fmt.Sprintf("%s:%s", k.Kind, k.UserId)
	}
}
