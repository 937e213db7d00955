// Package session wires one authenticated user's stores and coordinator into
// an explicit lifecycle object: constructed at login, passed by reference to
// consumers, torn down at logout. No ambient global state.
package session

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/bus"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/feed"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/moderation"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/store"
	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
	"github.com/pkg/errors"
)

// Session owns everything scoped to one authenticated user.
type Session struct {
	Id     string
	UserId string

	Relationships *store.RelationshipStore
	Feeds         *feed.Coordinator

	eventBus *gochannel.GoChannel
	cancel   context.CancelFunc
}

// New builds the session state from the authoritative backend: loads the
// relationship sets, constructs the moderation engine and feed coordinator,
// and starts the invalidation consumer.
func New(ctx context.Context, userId string, content source.ContentSource,
	relationships source.RelationshipSource, terms moderation.TermSource,
	engineOpts []moderation.Option, coordinatorOpts ...feed.CoordinatorOption) (*Session, error) {
	if userId == "" {
		return nil, errors.New("session requires a user id")
	}

	eventBus := bus.NewEventBus()
	rels := store.NewRelationshipStore(userId, relationships, eventBus)
	if err := rels.Load(ctx); err != nil {
		eventBus.Close()
		return nil, errors.Wrap(err, "fail to build session")
	}

	engine := moderation.NewEngine(terms, engineOpts...)
	coordinator := feed.NewCoordinator(userId, content, rels, engine, coordinatorOpts...)

	// Subscribe before returning: the bus is non-persistent, so a block
	// toggled right after login must find the subscription already attached.
	runCtx, cancel := context.WithCancel(context.Background())
	messages, err := bus.SubscribeBlockSetChanged(runCtx, eventBus)
	if err != nil {
		cancel()
		eventBus.Close()
		return nil, errors.Wrap(err, "fail to subscribe block set changes")
	}
	go coordinator.Consume(messages)

	s := &Session{
		Id:            uuid.New().String(),
		UserId:        userId,
		Relationships: rels,
		Feeds:         coordinator,
		eventBus:      eventBus,
		cancel:        cancel,
	}
	Logger.Log.Info("session started: ", s.Id, " user: ", userId)
	return s, nil
}

// Close tears the session down at logout. All cached feed and relationship
// state dies with it.
func (s *Session) Close() {
	s.cancel()
	if err := s.eventBus.Close(); err != nil {
		Logger.Log.Error("fail to close session event bus: ", err)
	}
	Logger.Log.Info("session closed: ", s.Id)
}
