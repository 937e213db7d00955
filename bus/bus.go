// Package bus hosts the in-process event bus shared by one authenticated
// session. For now we use a golang channel implementation for the EventBus,
// but later when needed we could substitute it with a broker-backed one.
package bus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

// TopicBlockSetChanged carries confirmed changes of the current user's
// block set. Feed consumers subscribe so newly blocked authors disappear
// from display without a refetch.
const TopicBlockSetChanged = "relationship.blockset.changed"

// BlockSetChanged is the payload published on TopicBlockSetChanged.
type BlockSetChanged struct {
	UserId   string `json:"user_id"`
	TargetId string `json:"target_id"`
	Blocked  bool   `json:"blocked"`
}

func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
}

func PublishBlockSetChanged(bus *gochannel.GoChannel, event BlockSetChanged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "fail to marshal block set change")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return bus.Publish(TopicBlockSetChanged, msg)
}

func SubscribeBlockSetChanged(ctx context.Context, bus *gochannel.GoChannel) (<-chan *message.Message, error) {
	return bus.Subscribe(ctx, TopicBlockSetChanged)
}

func DecodeBlockSetChanged(msg *message.Message) (BlockSetChanged, error) {
	var event BlockSetChanged
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return event, errors.Wrap(err, "fail to unmarshal block set change")
	}
	return event, nil
}
