package forward

import (
	"log/slog"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/ThreeDotsLabs/watermill/message"
)

// AckMiddleware settles manual acknowledgements parked in acks by handler
// outcome: success acks, failure nacks. Once a message is nacked the broker
// owns redelivery, so the error is not returned to the router.
// Only ids issued by acks are acted on; any other message, including one whose
// provider attributes happen to carry the reserved key, passes through with
// its error intact.
func AckMiddleware(acks *AckRegistry, logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			id := msg.Metadata.Get(bridge.AcknowledgementHeader)
			if !acks.Owns(id) {
				return h(msg)
			}
			restoreAttributes(msg)

			produced, err := h(msg)
			if err != nil {
				if nackErr := acks.Nack(id); nackErr != nil {
					logger.Debug("Acknowledgement already settled", "message_uuid", msg.UUID)
				}
				logger.Warn("Handler failed, message returned to broker",
					"message_uuid", msg.UUID,
					"error", err,
				)
				return nil, nil
			}

			if ackErr := acks.Ack(id); ackErr != nil {
				logger.Debug("Acknowledgement already settled", "message_uuid", msg.UUID)
			}
			return produced, nil
		}
	}
}

// restoreAttributes removes the registry id and puts back a provider
// attribute that PublisherConsumer shadowed.
func restoreAttributes(msg *message.Message) {
	shadow := ShadowedAttributePrefix + bridge.AcknowledgementHeader
	if v, ok := msg.Metadata[shadow]; ok {
		msg.Metadata.Set(bridge.AcknowledgementHeader, v)
		delete(msg.Metadata, shadow)
		return
	}
	delete(msg.Metadata, bridge.AcknowledgementHeader)
}
