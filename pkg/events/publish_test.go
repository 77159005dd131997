package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"
)

func TestPublisherManagerFansOutWithSequenceNumbers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := pubSub.Subscribe(ctx, "chat")
	require.NoError(t, err)

	pm := NewPublisherManager()
	pm.SubscribePublisher("chat", pubSub)

	pm.PublishBlind(New(EventTypeTurnStarted))
	pm.PublishBlind(New(EventTypeAssistantReply))

	// the gochannel pubsub does not guarantee delivery order, so collect
	// both messages and assert on what was stamped, not on arrival order
	byType := map[string]string{}
	for i := 0; i < 2; i++ {
		msg := <-msgs
		msg.Ack()

		var ev Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		require.Equal(t, string(ev.Type), msg.Metadata.Get("event_type"))
		byType[string(ev.Type)] = msg.Metadata.Get("sequence_number")
	}

	require.Equal(t, map[string]string{
		string(EventTypeTurnStarted):    "0",
		string(EventTypeAssistantReply): "1",
	}, byType)
}

func TestPublishBlindOnNilManagerIsNoop(t *testing.T) {
	var pm *PublisherManager
	pm.PublishBlind(New(EventTypeError))
}
