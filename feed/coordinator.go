package feed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/bus"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/moderation"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/store"
	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
	"github.com/pkg/errors"
)

const defaultPageSize = 30

// LikeStatusStore tracks which visit logs the current user already liked so a
// render pass does not need a network round-trip. Implemented by the redis
// status store; nil disables tracking.
type LikeStatusStore interface {
	GetItemsLikedStatus(itemIds []string, userId string) ([]bool, error)
	SetItemsLikedStatus(itemIds []string, userId string, liked bool) error
}

// Coordinator orchestrates fetch-more/refresh against the content source,
// gates every publish through the moderation engine, and filters blocked
// authors out of every read. One coordinator per authenticated session.
type Coordinator struct {
	userId   string
	content  source.ContentSource
	rels     *store.RelationshipStore
	mod      *moderation.Engine
	pageSize int

	statsd *statsd.Client   // optional
	likes  LikeStatusStore  // optional
	now    func() time.Time

	mu     sync.Mutex
	caches map[string]*Cache

	invalidateMu sync.Mutex
	onInvalidate func(bus.BlockSetChanged)
}

type CoordinatorOption func(*Coordinator)

func WithPageSize(size int) CoordinatorOption {
	return func(c *Coordinator) {
		if size >= source.MinPageLimit && size <= source.MaxPageLimit {
			c.pageSize = size
		}
	}
}

func WithStatsd(client *statsd.Client) CoordinatorOption {
	return func(c *Coordinator) {
		c.statsd = client
	}
}

func WithLikeStatusStore(likes LikeStatusStore) CoordinatorOption {
	return func(c *Coordinator) {
		c.likes = likes
	}
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(userId string, content source.ContentSource, rels *store.RelationshipStore,
	mod *moderation.Engine, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		userId:   userId,
		content:  content,
		rels:     rels,
		mod:      mod,
		pageSize: defaultPageSize,
		now:      time.Now,
		caches:   map[string]*Cache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) incr(name string, tags []string) {
	if c.statsd == nil {
		return
	}
	if err := c.statsd.Incr(name, tags, 1); err != nil {
		Logger.Log.Info("cannot report metric ", name)
	}
}

func (c *Coordinator) cacheFor(key model.FeedKey) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.caches[key.String()]
	if !ok {
		cache = NewCache(key)
		c.caches[key.String()] = cache
	}
	return cache
}

func (c *Coordinator) fetchPage(ctx context.Context, key model.FeedKey, token fetchToken) ([]*model.ContentItem, error) {
	switch key.Kind {
	case model.FeedGlobal:
		return c.content.ListGlobal(ctx, token.cursor, c.pageSize)
	case model.FeedAuthor:
		return c.content.ListByAuthor(ctx, key.UserId, token.offset, c.pageSize)
	case model.FeedLocation:
		return c.content.ListByLocation(ctx, key.GymId, token.offset, c.pageSize)
	case model.FeedFavorites:
		return c.content.ListFavoritesOnly(ctx, key.UserId, token.cursor, c.pageSize)
	}
	return nil, model.NewValidationError("unknown feed kind %d", int(key.Kind))
}

// FetchMore requests the next page for the given feed. It is a no-op when a
// fetch is already in flight for the key or the feed is exhausted. A failed
// fetch preserves whatever was already loaded.
func (c *Coordinator) FetchMore(ctx context.Context, key model.FeedKey) (*Snapshot, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	cache := c.cacheFor(key)
	token, ok := cache.beginFetch()
	if !ok {
		return cache.Snapshot(), nil
	}
	return c.runFetch(ctx, cache, key, token)
}

// Refresh clears the feed and behaves as the very first FetchMore. Safe to
// call with a fetch in flight: the superseded result is discarded via the
// generation counter.
func (c *Coordinator) Refresh(ctx context.Context, key model.FeedKey) (*Snapshot, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	cache := c.cacheFor(key)
	token := cache.beginRefresh()
	return c.runFetch(ctx, cache, key, token)
}

func (c *Coordinator) runFetch(ctx context.Context, cache *Cache, key model.FeedKey, token fetchToken) (*Snapshot, error) {
	page, err := c.fetchPage(ctx, key, token)
	if err != nil {
		cache.failFetch(token)
		c.incr("feed.fetch.error", []string{"feed:" + key.Kind.String()})
		return cache.Snapshot(), errors.Wrapf(err, "failure when get items for feed %s", key)
	}
	if !cache.completeFetch(token, page, c.pageSize) {
		Logger.Log.Info("discard superseded fetch result for feed: ", key.String())
	}
	c.incr("feed.fetch", []string{"feed:" + key.Kind.String()})
	return cache.Snapshot(), nil
}

// Visible returns the feed's accumulated items minus those authored by users
// the current user blocks. The filter runs at read time over the cached
// snapshot: blocking hides items immediately and unblocking restores them,
// neither requires a refetch.
func (c *Coordinator) Visible(key model.FeedKey) []*model.ContentItem {
	snap := c.cacheFor(key).Snapshot()
	visible := make([]*model.ContentItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		if c.rels != nil && c.rels.IsBlocked(item.AuthorId) {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// Publish gates the body through moderation and validation before any network
// call, so a rejected post never wastes a round-trip. On success the returned
// item carries the server-assigned id; it shows up at the head of feeds on
// the next refresh.
func (c *Coordinator) Publish(ctx context.Context, item *model.ContentItem) (*model.ContentItem, error) {
	item.AuthorId = c.userId

	if err := item.Validate(c.now()); err != nil {
		return nil, err
	}
	verdict := c.mod.Check(item.Body)
	if !verdict.Allowed {
		c.incr("publish.blocked", nil)
		return nil, &model.ModerationBlockedError{
			MatchedTerms: verdict.MatchedTerms,
			Suggestion:   verdict.Suggestion,
		}
	}

	id, err := c.content.Publish(ctx, item)
	if err != nil {
		return nil, errors.Wrap(err, "fail to publish visit log")
	}
	item.Id = id
	c.incr("publish.ok", nil)
	return item, nil
}

// Edit forwards author-editable fields. Editing an item cached under another
// author is rejected locally; a vanished item surfaces the backend not-found.
func (c *Coordinator) Edit(ctx context.Context, id int64, edit source.ContentEdit) error {
	if author, ok := c.cachedAuthor(id); ok && author != c.userId {
		return model.NewValidationError("only the author can edit visit log %d", id)
	}
	if edit.Body != nil {
		verdict := c.mod.Check(*edit.Body)
		if !verdict.Allowed {
			return &model.ModerationBlockedError{
				MatchedTerms: verdict.MatchedTerms,
				Suggestion:   verdict.Suggestion,
			}
		}
	}
	return c.content.Edit(ctx, id, edit)
}

func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	if author, ok := c.cachedAuthor(id); ok && author != c.userId {
		return model.NewValidationError("only the author can delete visit log %d", id)
	}
	return c.content.Delete(ctx, id)
}

func (c *Coordinator) cachedAuthor(id int64) (string, bool) {
	c.mu.Lock()
	caches := make([]*Cache, 0, len(c.caches))
	for _, cache := range c.caches {
		caches = append(caches, cache)
	}
	c.mu.Unlock()

	for _, cache := range caches {
		for _, item := range cache.Snapshot().Items {
			if item.Id == id {
				return item.AuthorId, true
			}
		}
	}
	return "", false
}

// Like records a like and remembers it in the like-status store so render
// passes stay local.
func (c *Coordinator) Like(ctx context.Context, id int64) error {
	if err := c.content.Like(ctx, id, c.userId); err != nil {
		return errors.Wrapf(err, "fail to like visit log %d", id)
	}
	c.setLiked(id, true)
	return nil
}

func (c *Coordinator) Unlike(ctx context.Context, id int64) error {
	if err := c.content.Unlike(ctx, id, c.userId); err != nil {
		return errors.Wrapf(err, "fail to unlike visit log %d", id)
	}
	c.setLiked(id, false)
	return nil
}

func (c *Coordinator) setLiked(id int64, liked bool) {
	if c.likes == nil {
		return
	}
	key := strconv.FormatInt(id, 10)
	if err := c.likes.SetItemsLikedStatus([]string{key}, c.userId, liked); err != nil {
		// Read-path state only, never fail the caller over it.
		Logger.Log.Error("fail to persist liked status: ", err)
	}
}

// LikedStatus reports which of the given items the current user liked. A
// render-pass query: it degrades to all-false on any failure and logs rather
// than failing the caller.
func (c *Coordinator) LikedStatus(ids []int64) []bool {
	status := make([]bool, len(ids))
	if c.likes == nil {
		return status
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatInt(id, 10)
	}
	fetched, err := c.likes.GetItemsLikedStatus(keys, c.userId)
	if err != nil || len(fetched) != len(ids) {
		Logger.Log.Error("fail to read liked status, defaulting to unliked: ", err)
		return status
	}
	return fetched
}

// OnInvalidate registers the hook invoked whenever the block set changes, so
// the display layer re-renders its feeds. Filtering itself happens in
// Visible, this is purely a notification.
func (c *Coordinator) OnInvalidate(hook func(bus.BlockSetChanged)) {
	c.invalidateMu.Lock()
	defer c.invalidateMu.Unlock()
	c.onInvalidate = hook
}

func (c *Coordinator) notifyInvalidate(event bus.BlockSetChanged) {
	c.invalidateMu.Lock()
	hook := c.onInvalidate
	c.invalidateMu.Unlock()
	if hook != nil {
		hook(event)
	}
}

// Run subscribes to block-set changes on the session event bus and consumes
// them until ctx is done. Callers that need the subscription live before any
// mutation can happen should subscribe themselves and hand the channel to
// Consume instead.
func (c *Coordinator) Run(ctx context.Context, eventBus *gochannel.GoChannel) error {
	messages, err := bus.SubscribeBlockSetChanged(ctx, eventBus)
	if err != nil {
		return errors.Wrap(err, "fail to subscribe block set changes")
	}
	c.Consume(messages)
	return nil
}

// Consume drains block-set changes until the channel closes. Every active
// feed cache is notified through the invalidation hook.
func (c *Coordinator) Consume(messages <-chan *message.Message) {
	for msg := range messages {
		event, err := bus.DecodeBlockSetChanged(msg)
		msg.Ack()
		if err != nil {
			Logger.Log.Error("drop malformed block set change: ", err)
			continue
		}
		Logger.Log.Info("block set changed, invalidating feed views, target: ",
			event.TargetId, " blocked: ", event.Blocked)
		c.incr("relationship.block_change", nil)
		c.notifyInvalidate(event)
	}
}
