package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
)

// InProcessConfig describes an in-process pipeline.
type InProcessConfig struct {
	// Topic receives bridge messages.
	Topic string
	// PoisonTopic receives messages whose handler kept failing.
	PoisonTopic string
	// Handler processes every message on Topic.
	Handler message.NoPublishHandlerFunc
	// MaxRetries bounds handler retries before a message is poisoned.
	MaxRetries int
	// PoisonHandler consumes PoisonTopic. Defaults to logging each message
	// and counting it in pubsub_bridge_poisoned_messages_total.
	PoisonHandler message.NoPublishHandlerFunc
	// Registerer enables watermill router and poison metrics when non-nil.
	Registerer prometheus.Registerer
}

// InProcess is a gochannel pub/sub with a watermill router consuming Topic.
type InProcess struct {
	PubSub *gochannel.GoChannel
	Router *message.Router
	Acks   *AckRegistry

	topic    string
	logger   *slog.Logger
	poisoned *prometheus.CounterVec
}

// NewInProcess builds the pipeline. Run must be called before messages are
// published; gochannel drops messages published without a subscriber.
func NewInProcess(cfg InProcessConfig, logger *slog.Logger) (*InProcess, error) {
	if cfg.Topic == "" {
		return nil, errors.New("in-process topic is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("in-process handler is required")
	}
	if cfg.PoisonTopic == "" {
		cfg.PoisonTopic = cfg.Topic + ".poison"
	}

	wmLogger := watermill.NewSlogLogger(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	poisoned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pubsub_bridge",
		Name:      "poisoned_messages_total",
		Help:      "Messages moved to the poison topic after their handler kept failing.",
	}, []string{"topic"})

	if cfg.Registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(cfg.Registerer, "pubsub_bridge", "router")
		builder.AddPrometheusRouterMetrics(router)

		if err := cfg.Registerer.Register(poisoned); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("failed to register poison metrics: %w", err)
			}
			poisoned = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}

	poison, err := middleware.PoisonQueue(pubSub, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue middleware: %w", err)
	}

	acks := NewAckRegistry()
	p := &InProcess{
		PubSub:   pubSub,
		Router:   router,
		Acks:     acks,
		topic:    cfg.Topic,
		logger:   logger,
		poisoned: poisoned,
	}

	router.AddMiddleware(middleware.CorrelationID)

	handler := router.AddNoPublisherHandler(
		"bridge."+cfg.Topic,
		cfg.Topic,
		pubSub,
		cfg.Handler,
	)
	handler.AddMiddleware(
		poison,
		AckMiddleware(acks, logger),
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)

	poisonHandler := cfg.PoisonHandler
	if poisonHandler == nil {
		poisonHandler = p.logPoisoned
	}
	router.AddNoPublisherHandler(
		"bridge."+cfg.PoisonTopic,
		cfg.PoisonTopic,
		pubSub,
		poisonHandler,
	).AddMiddleware(middleware.Recoverer)

	return p, nil
}

// logPoisoned is the default poison handler. Under automatic acknowledgement
// the broker message was already acked at handoff, so this is the last record
// of the failure.
func (p *InProcess) logPoisoned(msg *message.Message) error {
	p.poisoned.WithLabelValues(p.topic).Inc()
	p.logger.ErrorContext(msg.Context(), "Message poisoned",
		"message_uuid", msg.UUID,
		"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		"payload_bytes", len(msg.Payload),
	)
	return nil
}

// Consumer returns a bridge consumer publishing into the pipeline.
func (p *InProcess) Consumer() *PublisherConsumer {
	return NewPublisherConsumer(p.PubSub, p.topic, p.Acks)
}

// Run blocks until ctx is done or the router is closed.
func (p *InProcess) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting in-process router", "topic", p.topic)
	return p.Router.Run(ctx)
}

// Running is closed once the router subscribed its handlers.
func (p *InProcess) Running() chan struct{} {
	return p.Router.Running()
}

// Close stops the router, then the pub/sub.
func (p *InProcess) Close() error {
	var errs []error
	if err := p.Router.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close router: %w", err))
	}
	if err := p.PubSub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close pubsub: %w", err))
	}
	return errors.Join(errs...)
}
