package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
)

// FakeContentSource is an in-memory ContentSource for tests. Fault injection
// works by setting NextErr, which fails the next call and resets.
type FakeContentSource struct {
	mu     sync.Mutex
	items  []*model.ContentItem
	nextId int64

	// Now is the clock used for server-assigned PostedAt. Defaults to
	// time.Now, override for deterministic cursors.
	Now func() time.Time

	// NextErr fails the next operation with the given error, then clears.
	NextErr error

	// PublishCalls counts Publish round-trips that reached the fake backend.
	PublishCalls int

	// FavoriteAuthors backs ListFavoritesOnly. Tests set it to the authors
	// the viewer favorited.
	FavoriteAuthors map[string]bool
}

func NewFakeContentSource() *FakeContentSource {
	return &FakeContentSource{Now: time.Now}
}

// Seed inserts an item directly, bypassing moderation and validation, the way
// pre-existing server content would.
func (f *FakeContentSource) Seed(item *model.ContentItem) *model.ContentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextId++
	item.Id = f.nextId
	if item.PostedAt.IsZero() {
		item.PostedAt = f.Now()
	}
	f.items = append(f.items, item)
	f.sortLocked()
	return item
}

func (f *FakeContentSource) takeErr() error {
	err := f.NextErr
	f.NextErr = nil
	return err
}

func (f *FakeContentSource) sortLocked() {
	sort.SliceStable(f.items, func(i, j int) bool {
		if !f.items[i].PostedAt.Equal(f.items[j].PostedAt) {
			return f.items[i].PostedAt.After(f.items[j].PostedAt)
		}
		return f.items[i].Id > f.items[j].Id
	})
}

func copyItems(items []*model.ContentItem) []*model.ContentItem {
	out := make([]*model.ContentItem, 0, len(items))
	for _, item := range items {
		var dup model.ContentItem
		copier.Copy(&dup, item)
		out = append(out, &dup)
	}
	return out
}

func (f *FakeContentSource) listFiltered(cursor string, limit int, keep func(*model.ContentItem) bool) ([]*model.ContentItem, error) {
	if err := ValidatePageLimit(limit); err != nil {
		return nil, err
	}
	resume, resumeId, err := ParseCursor(cursor)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}

	var page []*model.ContentItem
	for _, item := range f.items {
		if !resume.IsZero() && !olderThanCursor(item, resume, resumeId) {
			continue
		}
		if !keep(item) {
			continue
		}
		page = append(page, item)
		if len(page) == limit {
			break
		}
	}
	return copyItems(page), nil
}

func (f *FakeContentSource) listOffset(offset, limit int, keep func(*model.ContentItem) bool) ([]*model.ContentItem, error) {
	if err := ValidateOffsetArgs(offset, limit); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}

	var matched []*model.ContentItem
	for _, item := range f.items {
		if keep(item) {
			matched = append(matched, item)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return copyItems(matched[offset:end]), nil
}

func (f *FakeContentSource) ListGlobal(ctx context.Context, cursor string, limit int) ([]*model.ContentItem, error) {
	return f.listFiltered(cursor, limit, func(*model.ContentItem) bool { return true })
}

func (f *FakeContentSource) ListByAuthor(ctx context.Context, authorId string, offset, limit int) ([]*model.ContentItem, error) {
	return f.listOffset(offset, limit, func(item *model.ContentItem) bool {
		return item.AuthorId == authorId
	})
}

func (f *FakeContentSource) ListByLocation(ctx context.Context, gymId int64, offset, limit int) ([]*model.ContentItem, error) {
	return f.listOffset(offset, limit, func(item *model.ContentItem) bool {
		return item.GymId == gymId
	})
}

func (f *FakeContentSource) ListFavoritesOnly(ctx context.Context, userId string, cursor string, limit int) ([]*model.ContentItem, error) {
	authors := f.FavoriteAuthors
	return f.listFiltered(cursor, limit, func(item *model.ContentItem) bool {
		return authors != nil && authors[item.AuthorId]
	})
}

func (f *FakeContentSource) Publish(ctx context.Context, item *model.ContentItem) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return 0, err
	}
	f.PublishCalls++
	f.nextId++
	var dup model.ContentItem
	copier.Copy(&dup, item)
	dup.Id = f.nextId
	dup.PostedAt = f.Now()
	f.items = append(f.items, &dup)
	f.sortLocked()
	return dup.Id, nil
}

func (f *FakeContentSource) find(id int64) *model.ContentItem {
	for _, item := range f.items {
		if item.Id == id {
			return item
		}
	}
	return nil
}

func (f *FakeContentSource) Edit(ctx context.Context, id int64, edit ContentEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	item := f.find(id)
	if item == nil {
		return model.ErrNotFound
	}
	if edit.Body != nil {
		item.Body = *edit.Body
	}
	if edit.VisitedDate != nil {
		item.VisitedDate = *edit.VisitedDate
	}
	if edit.MediaRefs != nil {
		item.MediaRefs = append([]string{}, (*edit.MediaRefs)...)
	}
	if edit.MovieRef != nil {
		item.MovieRef = *edit.MovieRef
	}
	return nil
}

func (f *FakeContentSource) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	for i, item := range f.items {
		if item.Id == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *FakeContentSource) Like(ctx context.Context, id int64, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	item := f.find(id)
	if item == nil {
		return model.ErrNotFound
	}
	item.LikedCount++
	return nil
}

func (f *FakeContentSource) Unlike(ctx context.Context, id int64, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	item := f.find(id)
	if item == nil {
		return model.ErrNotFound
	}
	if item.LikedCount > 0 {
		item.LikedCount--
	}
	return nil
}

// FakeRelationshipSource is an in-memory RelationshipSource. Setting
// MutationErr makes every mutation fail until cleared, which is how tests
// exercise optimistic rollback.
type FakeRelationshipSource struct {
	mu            sync.Mutex
	favoriteUsers map[string]map[string]bool
	blockedUsers  map[string]map[string]bool
	favoriteGyms  map[string]map[int64]bool

	MutationErr   error
	MutationCalls int
}

func NewFakeRelationshipSource() *FakeRelationshipSource {
	return &FakeRelationshipSource{
		favoriteUsers: map[string]map[string]bool{},
		blockedUsers:  map[string]map[string]bool{},
		favoriteGyms:  map[string]map[int64]bool{},
	}
}

func stringEdgeList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (f *FakeRelationshipSource) ListFavoriteUsers(ctx context.Context, userId string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return stringEdgeList(f.favoriteUsers[userId]), nil
}

func (f *FakeRelationshipSource) ListFavoritedByUsers(ctx context.Context, userId string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for source, targets := range f.favoriteUsers {
		if targets[userId] {
			out = append(out, source)
		}
	}
	return out, nil
}

func (f *FakeRelationshipSource) mutate(apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MutationCalls++
	if f.MutationErr != nil {
		return f.MutationErr
	}
	apply()
	return nil
}

func (f *FakeRelationshipSource) AddFavoriteUser(ctx context.Context, userId, targetId string) error {
	return f.mutate(func() {
		if f.favoriteUsers[userId] == nil {
			f.favoriteUsers[userId] = map[string]bool{}
		}
		f.favoriteUsers[userId][targetId] = true
	})
}

func (f *FakeRelationshipSource) RemoveFavoriteUser(ctx context.Context, userId, targetId string) error {
	return f.mutate(func() {
		delete(f.favoriteUsers[userId], targetId)
	})
}

func (f *FakeRelationshipSource) ListBlockedUsers(ctx context.Context, userId string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return stringEdgeList(f.blockedUsers[userId]), nil
}

func (f *FakeRelationshipSource) AddBlockUser(ctx context.Context, userId, targetId string) error {
	return f.mutate(func() {
		if f.blockedUsers[userId] == nil {
			f.blockedUsers[userId] = map[string]bool{}
		}
		f.blockedUsers[userId][targetId] = true
	})
}

func (f *FakeRelationshipSource) RemoveBlockUser(ctx context.Context, userId, targetId string) error {
	return f.mutate(func() {
		delete(f.blockedUsers[userId], targetId)
	})
}

func (f *FakeRelationshipSource) ListFavoriteGyms(ctx context.Context, userId string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := range f.favoriteGyms[userId] {
		out = append(out, id)
	}
	return out, nil
}

func (f *FakeRelationshipSource) AddFavoriteGym(ctx context.Context, userId string, gymId int64) error {
	return f.mutate(func() {
		if f.favoriteGyms[userId] == nil {
			f.favoriteGyms[userId] = map[int64]bool{}
		}
		f.favoriteGyms[userId][gymId] = true
	})
}

func (f *FakeRelationshipSource) RemoveFavoriteGym(ctx context.Context, userId string, gymId int64) error {
	return f.mutate(func() {
		delete(f.favoriteGyms[userId], gymId)
	})
}
