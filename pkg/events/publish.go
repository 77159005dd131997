package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PublisherManager distributes events to a set of watermill Publishers.
// You "subscribe" a publisher to a topic; Publish fans the serialized
// event out to every publisher on its subscribed topic, stamping a
// sequence number in the order events are handled.
type PublisherManager struct {
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.publishers[topic] = append(s.publishers[topic], pub)
}

// Publish serializes the event and distributes it across all topics.
func (s *PublisherManager) Publish(ev Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", s.sequenceNumber))
	msg.Metadata.Set("event_type", string(ev.Type))
	s.sequenceNumber++

	for topic, pubs := range s.publishers {
		for _, pub := range pubs {
			if err := pub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
			}
		}
	}

	return nil
}

// PublishBlind publishes and only logs failures. Event emission must never
// break a turn.
func (s *PublisherManager) PublishBlind(ev Event) {
	if s == nil {
		return
	}
	if err := s.Publish(ev); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}
}
