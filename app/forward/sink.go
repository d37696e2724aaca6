package forward

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// LogSink returns a terminal handler that logs each message. An inline
// manual acknowledger found in the message context is acked.
func LogSink(logger *slog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		logger.InfoContext(msg.Context(), "Message received",
			"message_uuid", msg.UUID,
			"payload_bytes", len(msg.Payload),
			"metadata", map[string]string(msg.Metadata),
		)
		if ack, ok := AcknowledgerFromContext(msg.Context()); ok {
			ack.Ack()
		}
		return nil
	}
}
