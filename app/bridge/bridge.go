package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config is fixed for the lifetime of an InboundBridge.
type Config struct {
	Subscription SubscriptionName
	Credentials  CredentialsProvider
	AckMode      AckMode
}

// Option customises an InboundBridge.
type Option func(*InboundBridge)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *InboundBridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTracer sets the tracer used for per-message spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *InboundBridge) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to NoOpMetrics.
func WithMetrics(metrics Metrics) Option {
	return func(b *InboundBridge) {
		if metrics != nil {
			b.metrics = metrics
		}
	}
}

// InboundBridge relays one subscription into a Consumer.
type InboundBridge struct {
	cfg       Config
	connector Connector
	consumer  Consumer
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   Metrics

	mu      sync.Mutex
	session Session
	lastGen uint64

	// generation identifies the running session; zero while stopped.
	// Callbacks carrying any other value are rejected.
	generation atomic.Uint64
}

// NewInboundBridge builds a stopped bridge.
func NewInboundBridge(cfg Config, connector Connector, consumer Consumer, opts ...Option) *InboundBridge {
	b := &InboundBridge{
		cfg:       cfg,
		connector: connector,
		consumer:  consumer,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/Black-And-White-Club/pubsub-bridge/app/bridge"),
		metrics:   NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(
		"subscription", cfg.Subscription.String(),
		"ack_mode", cfg.AckMode.String(),
	)
	return b
}

// AckMode returns the configured acknowledgement mode.
func (b *InboundBridge) AckMode() AckMode { return b.cfg.AckMode }

// Subscription returns the configured subscription identity.
func (b *InboundBridge) Subscription() SubscriptionName { return b.cfg.Subscription }

// Running reports whether a session is active.
func (b *InboundBridge) Running() bool { return b.generation.Load() != 0 }

// Start opens a subscriber session. It is a no-op while already running.
// ctx bounds session setup only; the session lives until Stop.
func (b *InboundBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		b.logger.DebugContext(ctx, "Bridge already running")
		return nil
	}
	if err := b.validate(ctx); err != nil {
		b.logger.ErrorContext(ctx, "Bridge configuration rejected", "error", err)
		return err
	}

	b.lastGen++
	gen := b.lastGen
	b.generation.Store(gen)

	handler := func(ctx context.Context, raw *RawMessage, ack Acknowledger) error {
		return b.handle(ctx, gen, raw, ack)
	}

	session, err := b.connector.Connect(ctx, b.cfg.Subscription, b.cfg.Credentials, handler)
	if err != nil {
		b.generation.Store(0)
		b.logger.ErrorContext(ctx, "Failed to open subscriber session", "error", err)
		return fmt.Errorf("failed to open subscriber session: %w", err)
	}
	b.session = session

	b.logger.InfoContext(ctx, "Bridge started")
	return nil
}

// Stop asks the session to halt without waiting for in-flight callbacks.
// Safe to call when stopped or never started.
func (b *InboundBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return
	}
	b.generation.Store(0)
	b.session.Stop()
	b.session = nil

	b.logger.Info("Bridge stopped")
}

func (b *InboundBridge) validate(ctx context.Context) error {
	if b.connector == nil {
		return &ConfigurationError{Field: "connector", Err: errMissing}
	}
	if b.consumer == nil {
		return &ConfigurationError{Field: "consumer", Err: errMissing}
	}
	if !b.cfg.AckMode.Valid() {
		return &ConfigurationError{Field: "ack_mode", Err: fmt.Errorf("unsupported value %d", int(b.cfg.AckMode))}
	}
	if err := b.cfg.Subscription.validate(); err != nil {
		return err
	}
	if b.cfg.Credentials == nil {
		return &ConfigurationError{Field: "credentials", Err: errMissing}
	}
	if err := b.cfg.Credentials.Validate(ctx); err != nil {
		return &ConfigurationError{Field: "credentials", Err: err}
	}
	return nil
}

// HandleMessage runs raw through the current session's policy. It is the
// entry point for clients that deliver outside a Connector, such as push
// endpoints. Deliveries while stopped are nacked and return ErrNotRunning.
func (b *InboundBridge) HandleMessage(ctx context.Context, raw *RawMessage, ack Acknowledger) error {
	return b.handle(ctx, b.generation.Load(), raw, ack)
}

func (b *InboundBridge) handle(ctx context.Context, gen uint64, raw *RawMessage, ack Acknowledger) error {
	if raw == nil || ack == nil {
		return ErrNilMessage
	}

	sub := b.cfg.Subscription.String()
	b.metrics.RecordReceived(sub)

	if gen == 0 || b.generation.Load() != gen {
		// Late delivery from a stopped session; hand it back to the broker.
		ack.Nack()
		b.metrics.RecordRejected(sub)
		b.logger.DebugContext(ctx, "Rejected delivery after stop", "message_id", raw.ID)
		return ErrNotRunning
	}

	ctx, span := b.tracer.Start(ctx, "bridge.HandleMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.message.id", raw.ID),
			attribute.String("messaging.destination.subscription.name", sub),
			attribute.Int("messaging.message.body.size", len(raw.Data)),
			attribute.String("bridge.ack_mode", b.cfg.AckMode.String()),
		),
	)
	defer span.End()

	msg := Translate(raw, ack, b.cfg.AckMode)

	start := time.Now()
	err := b.forward(ctx, msg)
	b.metrics.RecordForwardDuration(sub, time.Since(start))

	if err != nil {
		if b.cfg.AckMode == AckModeAuto {
			ack.Nack()
			b.metrics.RecordNack(sub)
		}
		b.metrics.RecordForwardFailure(sub, b.cfg.AckMode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward failed")
		b.logger.WarnContext(ctx, "Forwarding failed",
			"message_id", msg.UUID,
			"delivery_attempt", raw.DeliveryAttempt,
			"error", err,
		)
		return &ForwardingError{MessageID: msg.UUID, Mode: b.cfg.AckMode, Err: err}
	}

	if b.cfg.AckMode == AckModeAuto {
		ack.Ack()
		b.metrics.RecordAck(sub)
	}
	b.logger.DebugContext(ctx, "Message forwarded", "message_id", msg.UUID)
	return nil
}

// forward calls the consumer, turning a panic into an error.
func (b *InboundBridge) forward(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panic: %v", r)
		}
	}()
	return b.consumer.Consume(ctx, msg)
}
