// Package jetstream opens bridge sessions on NATS JetStream durable pull
// consumers. The stream plays the role of the project and the durable
// consumer the role of the subscription.
package jetstream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"
)

// Config configures the NATS connection.
type Config struct {
	URL string
	// PullMaxMessages bounds messages buffered by the pull consumer.
	PullMaxMessages int
}

// Connector implements bridge.Connector.
type Connector struct {
	cfg    Config
	logger *slog.Logger
}

func NewConnector(cfg Config, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{cfg: cfg, logger: logger}
}

func (c *Connector) Connect(ctx context.Context, sub bridge.SubscriptionName, provider bridge.CredentialsProvider, handler bridge.Handler) (bridge.Session, error) {
	creds, ok := provider.(*Credentials)
	if !ok {
		return nil, fmt.Errorf("jetstream: unsupported credentials provider %T", provider)
	}
	authOpts, err := creds.Options()
	if err != nil {
		return nil, err
	}

	logger := c.logger.With("stream", sub.Project, "consumer", sub.Name)
	options := append([]nats.Option{
		nats.Name("pubsub-bridge"),
		nats.Timeout(30 * time.Second),
		nats.ReconnectWait(1 * time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription", "subject", s.Subject, "error", err)
			} else {
				logger.Error("Error in connection", "error", err)
			}
		}),
	}, authOpts...)

	conn, err := nats.Connect(c.cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumer, err := js.Consumer(ctx, sub.Project, sub.Name)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get consumer %s on stream %s: %w", sub.Name, sub.Project, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	failures := &rate.Sometimes{First: 3, Interval: 10 * time.Second}

	var pullOpts []jetstream.PullConsumeOpt
	if c.cfg.PullMaxMessages > 0 {
		pullOpts = append(pullOpts, jetstream.PullMaxMessages(c.cfg.PullMaxMessages))
	}
	pullOpts = append(pullOpts, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		logger.Warn("Pull consumer error", "error", err)
	}))

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := rawFromJetStream(msg)
		if err := handler(runCtx, raw, &acknowledger{msg: msg, logger: logger}); err != nil {
			failures.Do(func() {
				logger.WarnContext(runCtx, "Message handling failed", "message_id", raw.ID, "error", err)
			})
		}
	}, pullOpts...)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.InfoContext(ctx, "Consuming from JetStream")
	return &Session{consume: consumeCtx, conn: conn, cancel: cancel, logger: logger}, nil
}

// Session is a running pull consumer.
type Session struct {
	consume jetstream.ConsumeContext
	conn    *nats.Conn
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// Stop stops pulling and drains the connection in the background.
func (s *Session) Stop() {
	s.consume.Stop()
	s.cancel()
	if err := s.conn.Drain(); err != nil {
		s.logger.Warn("Failed to drain NATS connection", "error", err)
	}
}

// Done is closed once the consumer has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.consume.Closed()
}

func rawFromJetStream(msg jetstream.Msg) *bridge.RawMessage {
	raw := &bridge.RawMessage{Data: msg.Data()}

	headers := msg.Headers()
	if len(headers) > 0 {
		raw.Attributes = make(map[string]string, len(headers))
		for k := range headers {
			raw.Attributes[k] = headers.Get(k)
		}
	}
	raw.ID = headers.Get(nats.MsgIdHdr)

	if md, err := msg.Metadata(); err == nil {
		raw.PublishTime = md.Timestamp
		raw.DeliveryAttempt = int(md.NumDelivered)
		if raw.ID == "" {
			raw.ID = md.Stream + "-" + strconv.FormatUint(md.Sequence.Stream, 10)
		}
	}
	return raw
}

// acknowledger adapts a JetStream message to bridge.Acknowledger.
type acknowledger struct {
	msg    jetstream.Msg
	logger *slog.Logger
}

func (a *acknowledger) Ack() {
	if err := a.msg.Ack(); err != nil {
		a.logger.Warn("Failed to ack message", "subject", a.msg.Subject(), "error", err)
	}
}

func (a *acknowledger) Nack() {
	if err := a.msg.Nak(); err != nil {
		a.logger.Warn("Failed to nak message", "subject", a.msg.Subject(), "error", err)
	}
}
