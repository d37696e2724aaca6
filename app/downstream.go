package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/Black-And-White-Club/pubsub-bridge/app/forward"
	"github.com/Black-And-White-Club/pubsub-bridge/config"
	"github.com/Black-And-White-Club/pubsub-bridge/internal/jetstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Downstream is where the bridge delivers messages.
type Downstream interface {
	Consumer() bridge.Consumer
	// Run blocks until ctx is done. Downstreams without a loop return at once.
	Run(ctx context.Context) error
	// Running is closed once the downstream accepts messages.
	Running() <-chan struct{}
	Close() error
}

func newDownstream(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (Downstream, error) {
	logger = logger.With("downstream", cfg.Downstream.Kind)
	sink := forward.LogSink(logger)

	switch cfg.Downstream.Kind {
	case config.DownstreamDispatch:
		return &dispatchDownstream{
			dispatcher: forward.NewDispatcher(forward.NoPublish(sink), nil, middleware.CorrelationID, middleware.Recoverer),
		}, nil

	case config.DownstreamInProcess:
		p, err := forward.NewInProcess(forward.InProcessConfig{
			Topic:      cfg.Downstream.Topic,
			Handler:    sink,
			MaxRetries: cfg.Downstream.MaxRetries,
			Registerer: reg,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &inProcessDownstream{p: p}, nil

	case config.DownstreamNATS:
		creds := natsCredentials(cfg)
		opts, err := creds.Options()
		if err != nil {
			return nil, err
		}
		pub, err := forward.NewJetStreamPublisher(cfg.NATS.URL, logger, opts...)
		if err != nil {
			return nil, err
		}
		return &publisherDownstream{publisher: pub, consumer: forward.NewPublisherConsumer(pub, cfg.Downstream.Topic, nil)}, nil
	}
	return nil, fmt.Errorf("unknown downstream kind %q", cfg.Downstream.Kind)
}

func natsCredentials(cfg *config.Config) *jetstream.Credentials {
	return &jetstream.Credentials{
		NKeySeed:  cfg.NATS.NKeySeed,
		CredsFile: cfg.NATS.CredsFile,
		Token:     cfg.NATS.Token,
	}
}

var ready = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

type dispatchDownstream struct {
	dispatcher *forward.Dispatcher
}

func (d *dispatchDownstream) Consumer() bridge.Consumer { return d.dispatcher }
func (d *dispatchDownstream) Run(context.Context) error { return nil }
func (d *dispatchDownstream) Running() <-chan struct{} { return ready }
func (d *dispatchDownstream) Close() error { return nil }

type inProcessDownstream struct {
	p *forward.InProcess
}

func (d *inProcessDownstream) Consumer() bridge.Consumer { return d.p.Consumer() }
func (d *inProcessDownstream) Run(ctx context.Context) error { return d.p.Run(ctx) }
func (d *inProcessDownstream) Running() <-chan struct{} { return d.p.Running() }
func (d *inProcessDownstream) Close() error { return d.p.Close() }

type publisherDownstream struct {
	publisher message.Publisher
	consumer  *forward.PublisherConsumer
}

func (d *publisherDownstream) Consumer() bridge.Consumer { return d.consumer }
func (d *publisherDownstream) Run(context.Context) error { return nil }
func (d *publisherDownstream) Running() <-chan struct{} { return ready }
func (d *publisherDownstream) Close() error { return d.publisher.Close() }
