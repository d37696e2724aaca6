package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/Black-And-White-Club/pubsub-bridge/config"
	"github.com/Black-And-White-Club/pubsub-bridge/internal/gcppubsub"
	"github.com/Black-And-White-Club/pubsub-bridge/internal/jetstream"
	"github.com/Black-And-White-Club/pubsub-bridge/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App wires one inbound bridge to its downstream.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Bridge   *bridge.InboundBridge

	downstream Downstream
	server     *observability.Server
}

// NewApp initializes the application from a validated configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := observability.NewLogger(os.Stdout, cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", "pubsub-bridge")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := bridge.NewPrometheusMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register bridge metrics: %w", err)
	}

	connector, creds, err := newConnector(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	downstream, err := newDownstream(cfg, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize downstream: %w", err)
	}

	mode, _ := cfg.AckMode()
	b := bridge.NewInboundBridge(bridge.Config{
		Subscription: cfg.SubscriptionName(),
		Credentials:  creds,
		AckMode:      mode,
	}, connector, downstream.Consumer(),
		bridge.WithLogger(logger),
		bridge.WithMetrics(metrics),
	)

	a := &App{
		Cfg:        cfg,
		Logger:     logger,
		Registry:   reg,
		Bridge:     b,
		downstream: downstream,
	}
	if cfg.Observability.MetricsAddress != "" {
		a.server = observability.NewServer(cfg.Observability.MetricsAddress, reg, b.Running, logger)
	}

	logger.InfoContext(ctx, "Application initialized",
		"provider", cfg.Bridge.Provider,
		"subscription", cfg.SubscriptionName().String(),
		"ack_mode", mode.String(),
		"downstream", cfg.Downstream.Kind,
	)
	return a, nil
}

func newConnector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (bridge.Connector, bridge.CredentialsProvider, error) {
	switch cfg.Bridge.Provider {
	case config.ProviderJetStream:
		return jetstream.NewConnector(jetstream.Config{
			URL:             cfg.NATS.URL,
			PullMaxMessages: cfg.NATS.PullMaxMessages,
		}, logger), natsCredentials(cfg), nil

	case config.ProviderGCP:
		var creds *gcppubsub.Credentials
		var err error
		switch {
		case cfg.PubSub.EmulatorHost != "":
			creds = gcppubsub.EmulatorCredentials(cfg.PubSub.EmulatorHost)
		case cfg.PubSub.CredentialsFile != "":
			creds, err = gcppubsub.CredentialsFromFile(ctx, cfg.PubSub.CredentialsFile)
		default:
			creds, err = gcppubsub.DefaultCredentials(ctx)
		}
		if err != nil {
			return nil, nil, err
		}
		return gcppubsub.NewConnector(gcppubsub.ReceiveSettings{
			MaxOutstandingMessages: cfg.PubSub.MaxOutstandingMessages,
			NumGoroutines:          cfg.PubSub.NumGoroutines,
		}, logger), creds, nil
	}
	return nil, nil, fmt.Errorf("unknown provider %q", cfg.Bridge.Provider)
}
