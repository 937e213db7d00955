// Package feed implements the per-key paginated feed caches and the
// coordinator that orchestrates fetches, publishes and cross-cutting
// invalidation for one session.
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
)

// State of one feed cache. Refreshing is reachable from any populated state
// and resets accumulated items before loading again.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePopulated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	case StateRefreshing:
		return "refreshing"
	}
	return "unknown"
}

// Snapshot is the immutable view of one feed cache. A mutation produces a new
// snapshot, readers never observe a torn state.
type Snapshot struct {
	Key     model.FeedKey
	State   State
	Items   []*model.ContentItem
	Cursor  string
	HasMore bool
}

// Cache accumulates pages for one feed key. Exactly one coordinating task
// mutates it at a time; concurrent reads go through the atomic snapshot.
type Cache struct {
	key model.FeedKey

	mu         sync.Mutex
	snap       atomic.Value // *Snapshot
	inFlight   bool
	generation uint64
	offset     int
}

// fetchToken captures the resume position of one outstanding fetch together
// with the generation it belongs to. A refresh bumps the generation, which
// makes any older token's completion a discard.
type fetchToken struct {
	generation uint64
	cursor     string
	offset     int
}

func NewCache(key model.FeedKey) *Cache {
	c := &Cache{key: key}
	c.snap.Store(&Snapshot{Key: key, State: StateEmpty, HasMore: true})
	return c
}

func (c *Cache) Key() model.FeedKey {
	return c.key
}

// Snapshot returns the current immutable view. Never blocks on mutators.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load().(*Snapshot)
}

func (c *Cache) storeLocked(state State, items []*model.ContentItem, cursor string, hasMore bool) {
	c.snap.Store(&Snapshot{
		Key:     c.key,
		State:   state,
		Items:   items,
		Cursor:  cursor,
		HasMore: hasMore,
	})
}

// beginFetch reserves the next page fetch. ok is false when a fetch is
// already in flight for this key or the feed is exhausted, both no-ops.
func (c *Cache) beginFetch() (fetchToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.Snapshot()
	if c.inFlight || !snap.HasMore {
		return fetchToken{}, false
	}
	c.inFlight = true
	c.storeLocked(StateLoading, snap.Items, snap.Cursor, snap.HasMore)
	return fetchToken{generation: c.generation, cursor: snap.Cursor, offset: c.offset}, true
}

// beginRefresh clears accumulated items and cursor and reserves the first
// fetch of a new generation. It logically supersedes any in-flight fetch:
// the stale result is discarded when it eventually completes.
func (c *Cache) beginRefresh() fetchToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.inFlight = true
	c.offset = 0
	c.storeLocked(StateRefreshing, nil, "", true)
	return fetchToken{generation: c.generation}
}

// completeFetch appends the fetched page. Returns false when the token is
// stale (a refresh superseded the fetch) so callers know the result was
// discarded rather than merged.
func (c *Cache) completeFetch(token fetchToken, page []*model.ContentItem, pageSize int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token.generation != c.generation {
		return false
	}

	snap := c.Snapshot()
	items := snap.Items
	cursor := snap.Cursor
	if len(page) > 0 {
		items = make([]*model.ContentItem, 0, len(snap.Items)+len(page))
		items = append(items, snap.Items...)
		items = append(items, page...)
		last := page[len(page)-1]
		cursor = source.FormatCursor(last.PostedAt, last.Id)
	}
	// A short or empty page means the source is exhausted. The cursor stays
	// where it is on an empty page.
	hasMore := len(page) == pageSize

	c.inFlight = false
	c.offset += len(page)
	c.storeLocked(StatePopulated, items, cursor, hasMore)
	return true
}

// failFetch releases the in-flight slot keeping whatever was already loaded.
func (c *Cache) failFetch(token fetchToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token.generation != c.generation {
		return
	}
	snap := c.Snapshot()
	state := StatePopulated
	if len(snap.Items) == 0 {
		state = StateEmpty
	}
	c.inFlight = false
	c.storeLocked(state, snap.Items, snap.Cursor, snap.HasMore)
}
