// Package store keeps the session-scoped authoritative caches of the current
// user's relationship edges (favorite user, block user, favorite gym).
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/bus"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
	"github.com/pkg/errors"
)

// snapshot is the immutable state readers observe. Mutations build a new
// snapshot and swap it in atomically, so membership checks on the render path
// never take a lock and never see a torn state.
type snapshot struct {
	favoriteUsers map[string]bool
	blockedUsers  map[string]bool
	favoriteGyms  map[int64]bool

	pendingUsers map[string]bool // keyed by kind + "|" + target
	pendingGyms  map[int64]bool

	// blockedListView freezes the "users I have blocked" list at load time.
	// Unblocking only flips the computed status of a row, the row itself
	// stays until an explicit reload.
	blockedListView []string
}

func emptySnapshot() *snapshot {
	return &snapshot{
		favoriteUsers: map[string]bool{},
		blockedUsers:  map[string]bool{},
		favoriteGyms:  map[int64]bool{},
		pendingUsers:  map[string]bool{},
		pendingGyms:   map[int64]bool{},
	}
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		favoriteUsers:   make(map[string]bool, len(s.favoriteUsers)),
		blockedUsers:    make(map[string]bool, len(s.blockedUsers)),
		favoriteGyms:    make(map[int64]bool, len(s.favoriteGyms)),
		pendingUsers:    make(map[string]bool, len(s.pendingUsers)),
		pendingGyms:     make(map[int64]bool, len(s.pendingGyms)),
		blockedListView: s.blockedListView,
	}
	for k, v := range s.favoriteUsers {
		next.favoriteUsers[k] = v
	}
	for k, v := range s.blockedUsers {
		next.blockedUsers[k] = v
	}
	for k, v := range s.favoriteGyms {
		next.favoriteGyms[k] = v
	}
	for k, v := range s.pendingUsers {
		next.pendingUsers[k] = v
	}
	for k, v := range s.pendingGyms {
		next.pendingGyms[k] = v
	}
	return next
}

func pendingKey(kind model.EdgeKind, target string) string {
	return string(kind) + "|" + target
}

// RelationshipStore caches the directed relationship edges of one
// authenticated user. One store instance per session, torn down at logout.
// Mutations are serialized, reads are lock-free snapshot reads.
type RelationshipStore struct {
	userId string
	src    source.RelationshipSource
	bus    *gochannel.GoChannel // optional, nil disables events

	mu   sync.Mutex // serializes mutators
	snap atomic.Value
}

func NewRelationshipStore(userId string, src source.RelationshipSource, eventBus *gochannel.GoChannel) *RelationshipStore {
	s := &RelationshipStore{userId: userId, src: src, bus: eventBus}
	s.snap.Store(emptySnapshot())
	return s
}

func (s *RelationshipStore) UserId() string {
	return s.userId
}

func (s *RelationshipStore) current() *snapshot {
	return s.snap.Load().(*snapshot)
}

// Load rebuilds every edge set from the backend. Called once at login and on
// explicit full reloads.
func (s *RelationshipStore) Load(ctx context.Context) error {
	favorites, err := s.src.ListFavoriteUsers(ctx, s.userId)
	if err != nil {
		return errors.Wrap(err, "fail to load favorite users")
	}
	blocked, err := s.src.ListBlockedUsers(ctx, s.userId)
	if err != nil {
		return errors.Wrap(err, "fail to load blocked users")
	}
	gyms, err := s.src.ListFavoriteGyms(ctx, s.userId)
	if err != nil {
		return errors.Wrap(err, "fail to load favorite gyms")
	}

	next := emptySnapshot()
	for _, id := range favorites {
		if id != "" {
			next.favoriteUsers[id] = true
		}
	}
	for _, id := range blocked {
		if id != "" {
			next.blockedUsers[id] = true
		}
	}
	for _, id := range gyms {
		if id > 0 {
			next.favoriteGyms[id] = true
		}
	}
	next.blockedListView = sortedStringSet(next.blockedUsers)

	s.mu.Lock()
	s.snap.Store(next)
	s.mu.Unlock()

	Logger.Log.Info("relationship store loaded for user: ", s.userId,
		" favorites: ", len(favorites), " blocked: ", len(blocked), " gyms: ", len(gyms))
	return nil
}

func (s *RelationshipStore) validateUserTarget(targetId string) error {
	if targetId == "" {
		return model.NewValidationError("target user id must not be empty")
	}
	if targetId == s.userId {
		return model.NewValidationError("self-target edge is not allowed")
	}
	return nil
}

// userEdgeSet returns the live set for a user-keyed edge kind on a snapshot.
func userEdgeSet(snap *snapshot, kind model.EdgeKind) map[string]bool {
	if kind == model.EdgeBlockUser {
		return snap.blockedUsers
	}
	return snap.favoriteUsers
}

// addUserEdge implements the shared optimistic add path for user-keyed kinds.
// The local set changes only after the backend confirms, a failed call leaves
// it untouched so the UI can revert.
func (s *RelationshipStore) addUserEdge(ctx context.Context, kind model.EdgeKind, targetId string,
	mutate func(context.Context, string, string) error) error {
	if err := s.validateUserTarget(targetId); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if userEdgeSet(s.current(), kind)[targetId] {
		// Idempotent: re-adding an existing edge succeeds without a network
		// round-trip.
		return nil
	}

	s.setUserPendingLocked(kind, targetId, true)
	err := mutate(ctx, s.userId, targetId)
	next := s.current().clone()
	delete(next.pendingUsers, pendingKey(kind, targetId))
	if err == nil {
		userEdgeSet(next, kind)[targetId] = true
	}
	s.snap.Store(next)
	if err != nil {
		return errors.Wrapf(err, "fail to add %s edge to %s", kind, targetId)
	}

	if kind == model.EdgeBlockUser {
		s.publishBlockChange(targetId, true)
	}
	return nil
}

func (s *RelationshipStore) removeUserEdge(ctx context.Context, kind model.EdgeKind, targetId string,
	mutate func(context.Context, string, string) error) error {
	if err := s.validateUserTarget(targetId); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !userEdgeSet(s.current(), kind)[targetId] {
		// Removing a non-existent edge is a success, same as add.
		return nil
	}

	s.setUserPendingLocked(kind, targetId, true)
	err := mutate(ctx, s.userId, targetId)
	if err != nil && errors.Is(err, model.ErrNotFound) {
		// The edge vanished server-side, treat as a successful removal.
		err = nil
	}
	next := s.current().clone()
	delete(next.pendingUsers, pendingKey(kind, targetId))
	if err == nil {
		delete(userEdgeSet(next, kind), targetId)
	}
	s.snap.Store(next)
	if err != nil {
		return errors.Wrapf(err, "fail to remove %s edge to %s", kind, targetId)
	}

	if kind == model.EdgeBlockUser {
		s.publishBlockChange(targetId, false)
	}
	return nil
}

func (s *RelationshipStore) setUserPendingLocked(kind model.EdgeKind, targetId string, pending bool) {
	next := s.current().clone()
	if pending {
		next.pendingUsers[pendingKey(kind, targetId)] = true
	} else {
		delete(next.pendingUsers, pendingKey(kind, targetId))
	}
	s.snap.Store(next)
}

func (s *RelationshipStore) publishBlockChange(targetId string, blocked bool) {
	if s.bus == nil {
		return
	}
	err := bus.PublishBlockSetChanged(s.bus, bus.BlockSetChanged{
		UserId:   s.userId,
		TargetId: targetId,
		Blocked:  blocked,
	})
	if err != nil {
		Logger.Log.Error("fail to publish block set change: ", err)
	}
}

func (s *RelationshipStore) AddFavoriteUser(ctx context.Context, targetId string) error {
	return s.addUserEdge(ctx, model.EdgeFavoriteUser, targetId, s.src.AddFavoriteUser)
}

func (s *RelationshipStore) RemoveFavoriteUser(ctx context.Context, targetId string) error {
	return s.removeUserEdge(ctx, model.EdgeFavoriteUser, targetId, s.src.RemoveFavoriteUser)
}

func (s *RelationshipStore) BlockUser(ctx context.Context, targetId string) error {
	return s.addUserEdge(ctx, model.EdgeBlockUser, targetId, s.src.AddBlockUser)
}

func (s *RelationshipStore) UnblockUser(ctx context.Context, targetId string) error {
	return s.removeUserEdge(ctx, model.EdgeBlockUser, targetId, s.src.RemoveBlockUser)
}

func (s *RelationshipStore) AddFavoriteGym(ctx context.Context, gymId int64) error {
	if gymId <= 0 {
		return model.NewValidationError("gym id must be a positive integer, got %d", gymId)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current().favoriteGyms[gymId] {
		return nil
	}

	next := s.current().clone()
	next.pendingGyms[gymId] = true
	s.snap.Store(next)

	err := s.src.AddFavoriteGym(ctx, s.userId, gymId)
	next = s.current().clone()
	delete(next.pendingGyms, gymId)
	if err == nil {
		next.favoriteGyms[gymId] = true
	}
	s.snap.Store(next)
	if err != nil {
		return errors.Wrapf(err, "fail to add favorite gym %d", gymId)
	}
	return nil
}

func (s *RelationshipStore) RemoveFavoriteGym(ctx context.Context, gymId int64) error {
	if gymId <= 0 {
		return model.NewValidationError("gym id must be a positive integer, got %d", gymId)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current().favoriteGyms[gymId] {
		return nil
	}

	next := s.current().clone()
	next.pendingGyms[gymId] = true
	s.snap.Store(next)

	err := s.src.RemoveFavoriteGym(ctx, s.userId, gymId)
	if err != nil && errors.Is(err, model.ErrNotFound) {
		err = nil
	}
	next = s.current().clone()
	delete(next.pendingGyms, gymId)
	if err == nil {
		delete(next.favoriteGyms, gymId)
	}
	s.snap.Store(next)
	if err != nil {
		return errors.Wrapf(err, "fail to remove favorite gym %d", gymId)
	}
	return nil
}

// ContainsFavoriteUser reads only the local cache. It defaults to false on
// any uncertainty: an edge is presumed absent rather than present.
func (s *RelationshipStore) ContainsFavoriteUser(targetId string) bool {
	return s.current().favoriteUsers[targetId]
}

// IsBlocked reads only the local cache. It also defaults to false on
// uncertainty, so blocked-content hiding degrades to showing content once
// rather than over-hiding.
func (s *RelationshipStore) IsBlocked(targetId string) bool {
	return s.current().blockedUsers[targetId]
}

func (s *RelationshipStore) ContainsFavoriteGym(gymId int64) bool {
	return s.current().favoriteGyms[gymId]
}

// Status exposes the three-state view of an edge for "in flight"
// affordances. The gym kind takes the target as a numeric id string and
// routes to GymStatus; a non-numeric target reads as confirmed-absent, in
// line with the fail-closed membership checks.
func (s *RelationshipStore) Status(kind model.EdgeKind, targetId string) model.EdgeStatus {
	if kind == model.EdgeFavoriteGym {
		gymId, err := strconv.ParseInt(targetId, 10, 64)
		if err != nil {
			return model.EdgeConfirmedAbsent
		}
		return s.GymStatus(gymId)
	}
	snap := s.current()
	if snap.pendingUsers[pendingKey(kind, targetId)] {
		return model.EdgePending
	}
	if userEdgeSet(snap, kind)[targetId] {
		return model.EdgeConfirmedPresent
	}
	return model.EdgeConfirmedAbsent
}

func (s *RelationshipStore) GymStatus(gymId int64) model.EdgeStatus {
	snap := s.current()
	if snap.pendingGyms[gymId] {
		return model.EdgePending
	}
	if snap.favoriteGyms[gymId] {
		return model.EdgeConfirmedPresent
	}
	return model.EdgeConfirmedAbsent
}

func sortedStringSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListFavoriteUsers returns the cached favorite set, de-duplicated and
// lexicographically sorted. The ordering is a presentation contract.
func (s *RelationshipStore) ListFavoriteUsers() []string {
	return sortedStringSet(s.current().favoriteUsers)
}

func (s *RelationshipStore) ListBlockedUsers() []string {
	return sortedStringSet(s.current().blockedUsers)
}

// ListFavoriteGyms returns the cached gym set in ascending numeric order.
func (s *RelationshipStore) ListFavoriteGyms() []int64 {
	snap := s.current()
	out := make([]int64, 0, len(snap.favoriteGyms))
	for id := range snap.favoriteGyms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FetchFavoritedBy queries the reverse listing from the backend, returning it
// de-duplicated and sorted. It is not cached: the reverse set belongs to
// other users and goes stale immediately.
func (s *RelationshipStore) FetchFavoritedBy(ctx context.Context) ([]string, error) {
	sources, err := s.src.ListFavoritedByUsers(ctx, s.userId)
	if err != nil {
		return nil, errors.Wrap(err, "fail to list favorited-by users")
	}
	set := make(map[string]bool, len(sources))
	for _, id := range sources {
		if id != "" {
			set[id] = true
		}
	}
	return sortedStringSet(set), nil
}

// BlockedListEntries returns the frozen "users I have blocked" view with the
// current status of each row. Toggling a row changes its status, not its
// membership, until ReloadBlockedList.
func (s *RelationshipStore) BlockedListEntries() []model.UserListEntry {
	snap := s.current()
	entries := make([]model.UserListEntry, 0, len(snap.blockedListView))
	for _, id := range snap.blockedListView {
		entries = append(entries, model.UserListEntry{
			UserId: id,
			Status: s.Status(model.EdgeBlockUser, id),
		})
	}
	return entries
}

// ReloadBlockedList refetches the block set and refreezes the list view.
func (s *RelationshipStore) ReloadBlockedList(ctx context.Context) error {
	blocked, err := s.src.ListBlockedUsers(ctx, s.userId)
	if err != nil {
		return errors.Wrap(err, "fail to reload blocked users")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current().clone()
	next.blockedUsers = map[string]bool{}
	for _, id := range blocked {
		if id != "" {
			next.blockedUsers[id] = true
		}
	}
	next.blockedListView = sortedStringSet(next.blockedUsers)
	s.snap.Store(next)
	return nil
}
