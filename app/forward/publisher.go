package forward

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ShadowedAttributePrefix prefixes a provider attribute that collided with
// bridge.AcknowledgementHeader. AckMiddleware restores it before the handler
// runs.
const ShadowedAttributePrefix = "_bridge_attr_"

// ErrManualAckUnsupported is returned when a manual message reaches a
// PublisherConsumer that has no AckRegistry.
var ErrManualAckUnsupported = errors.New("publisher consumer cannot carry manual acknowledgements")

// PublisherConsumer forwards bridge messages to a watermill topic.
type PublisherConsumer struct {
	publisher message.Publisher
	topic     string
	acks      *AckRegistry
}

// NewPublisherConsumer builds a consumer publishing to topic. acks may be nil
// when the bridge runs in auto mode.
func NewPublisherConsumer(publisher message.Publisher, topic string, acks *AckRegistry) *PublisherConsumer {
	return &PublisherConsumer{publisher: publisher, topic: topic, acks: acks}
}

func (c *PublisherConsumer) Consume(ctx context.Context, msg *bridge.Message) error {
	wm := ToWatermill(ctx, msg)

	var ackID string
	if msg.Acknowledger != nil {
		if c.acks == nil {
			return ErrManualAckUnsupported
		}
		if v, ok := wm.Metadata[bridge.AcknowledgementHeader]; ok {
			wm.Metadata.Set(ShadowedAttributePrefix+bridge.AcknowledgementHeader, v)
		}
		ackID = c.acks.Register(msg.Acknowledger)
		wm.Metadata.Set(bridge.AcknowledgementHeader, ackID)
	}

	if err := c.publisher.Publish(c.topic, wm); err != nil {
		if ackID != "" {
			c.acks.Forget(ackID)
		}
		return fmt.Errorf("failed to publish message %s to %s: %w", msg.UUID, c.topic, err)
	}
	return nil
}
