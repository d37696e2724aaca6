package forward

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
)

// NewJetStreamPublisher creates a watermill publisher writing to NATS
// JetStream. Streams are provisioned on first publish.
func NewJetStreamPublisher(natsURL string, logger *slog.Logger, opts ...nc.Option) (message.Publisher, error) {
	options := []nc.Option{
		nc.Name("pubsub-bridge"),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.MaxReconnects(-1),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription", "subject", s.Subject, "error", err)
			} else {
				logger.Error("Error in connection", "error", err)
			}
		}),
	}
	options = append(options, opts...)

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: options,
			Marshaler:   &wmnats.NATSMarshaler{},
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: true,
			},
			SubjectCalculator: wmnats.DefaultSubjectCalculator,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill NATS publisher: %w", err)
	}
	return publisher, nil
}
