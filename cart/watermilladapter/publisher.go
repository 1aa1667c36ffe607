// Package watermilladapter fans cart lifecycle events out to a Watermill
// publisher, so hosts can forward them to a message bus (Kafka, AMQP, the
// in-process gochannel pubsub, ...) without writing dispatcher plumbing.
package watermilladapter

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"

	"github.com/shopkit/conditional-cart-go/cart"
)

const (
	metadataEventName  = "event_name"
	metadataOccurredAt = "occurred_at"
)

var ErrNilPublisher = errors.New("nil publisher supplied")
var ErrEmptyTopic = errors.New("empty topic supplied")

// envelope is the published wire form of a cart.Event. The payload is
// marshaled best effort; payload types that fail to marshal are published
// with a null payload rather than blocking the mutation.
type envelope struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher implements cart.Dispatcher by publishing every event to one
// topic. It never vetoes: publishing is fan-out, not a hook, so a failed
// or slow broker must not block a cart mutation. Publish errors go to the
// optional logger.
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    cart.Logger
}

// NewPublisher creates a dispatcher that publishes to the given topic.
func NewPublisher(publisher message.Publisher, topic string, logger cart.Logger) (*Publisher, error) {
	if publisher == nil {
		return nil, ErrNilPublisher
	}

	if topic == "" {
		return nil, ErrEmptyTopic
	}

	return &Publisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

// Dispatch publishes the event and always returns Proceed.
func (p *Publisher) Dispatch(ctx context.Context, event cart.Event) cart.DispatchResult {
	payload, marshalErr := jsoniter.ConfigFastest.Marshal(envelope{
		ID:         event.ID,
		Name:       event.Name,
		OccurredAt: event.OccurredAt,
		Payload:    event.Payload,
	})
	if marshalErr != nil {
		payload, _ = jsoniter.ConfigFastest.Marshal(envelope{
			ID:         event.ID,
			Name:       event.Name,
			OccurredAt: event.OccurredAt,
		})
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataEventName, event.Name)
	msg.Metadata.Set(metadataOccurredAt, event.OccurredAt.Format(time.RFC3339Nano))

	if publishErr := p.publisher.Publish(p.topic, msg); publishErr != nil {
		if p.logger != nil {
			p.logger.Error("failed to publish cart event", "error", publishErr.Error(), "event", event.Name)
		}
	}

	return cart.Proceed
}
