package forward

import (
	"context"
	"fmt"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/ThreeDotsLabs/watermill/message"
)

// TopicMetadataKey names the metadata entry a handler sets on produced
// messages to choose their topic.
const TopicMetadataKey = "topic"

// Dispatcher runs a watermill handler chain inline for every bridge message.
// Messages the handler produces are published when a publisher is set.
type Dispatcher struct {
	handler   message.HandlerFunc
	publisher message.Publisher
}

// NewDispatcher wraps handler with middlewares, outermost first.
func NewDispatcher(handler message.HandlerFunc, publisher message.Publisher, middlewares ...message.HandlerMiddleware) *Dispatcher {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return &Dispatcher{handler: h, publisher: publisher}
}

func (d *Dispatcher) Consume(ctx context.Context, msg *bridge.Message) error {
	produced, err := d.handler(ToWatermill(ctx, msg))
	if err != nil {
		return err
	}
	if len(produced) == 0 {
		return nil
	}
	if d.publisher == nil {
		return fmt.Errorf("handler produced %d messages but no publisher is configured", len(produced))
	}
	for _, out := range produced {
		topic := out.Metadata.Get(TopicMetadataKey)
		if topic == "" {
			return fmt.Errorf("produced message %s has no %q metadata", out.UUID, TopicMetadataKey)
		}
		if err := d.publisher.Publish(topic, out); err != nil {
			return fmt.Errorf("failed to publish produced message to %s: %w", topic, err)
		}
	}
	return nil
}

// NoPublish adapts a handler that produces nothing.
func NoPublish(h message.NoPublishHandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		return nil, h(msg)
	}
}
