// Package gcppubsub opens bridge sessions on Google Cloud Pub/Sub
// subscriptions using streaming pull.
package gcppubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"golang.org/x/time/rate"
)

// ErrSubscriptionNotFound is returned by Connect when the subscription does
// not exist.
var ErrSubscriptionNotFound = errors.New("pubsub subscription not found")

// ReceiveSettings tunes streaming pull flow control.
type ReceiveSettings struct {
	MaxOutstandingMessages int
	NumGoroutines          int
}

// Connector implements bridge.Connector.
type Connector struct {
	settings ReceiveSettings
	logger   *slog.Logger
}

func NewConnector(settings ReceiveSettings, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{settings: settings, logger: logger}
}

// Connect verifies the subscription exists and starts receiving in the
// background. ctx bounds only the setup.
func (c *Connector) Connect(ctx context.Context, sub bridge.SubscriptionName, provider bridge.CredentialsProvider, handler bridge.Handler) (bridge.Session, error) {
	creds, ok := provider.(*Credentials)
	if !ok {
		return nil, fmt.Errorf("gcppubsub: unsupported credentials provider %T", provider)
	}

	client, err := pubsub.NewClient(ctx, sub.Project, creds.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	subscription := client.Subscription(sub.Name)
	exists, err := subscription.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check subscription %s: %w", sub, err)
	}
	if !exists {
		client.Close()
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, sub)
	}

	if c.settings.MaxOutstandingMessages > 0 {
		subscription.ReceiveSettings.MaxOutstandingMessages = c.settings.MaxOutstandingMessages
	}
	if c.settings.NumGoroutines > 0 {
		subscription.ReceiveSettings.NumGoroutines = c.settings.NumGoroutines
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{cancel: cancel, done: make(chan struct{})}
	logger := c.logger.With("subscription", sub.String())
	failures := &rate.Sometimes{First: 3, Interval: 10 * time.Second}

	go func() {
		defer close(s.done)
		defer client.Close()

		logger.InfoContext(runCtx, "Receiving from subscription")
		s.err = subscription.Receive(runCtx, func(ctx context.Context, msg *pubsub.Message) {
			if err := handler(ctx, rawFromPubsub(msg), msg); err != nil {
				failures.Do(func() {
					logger.WarnContext(ctx, "Message handling failed", "message_id", msg.ID, "error", err)
				})
			}
		})
		if s.err != nil {
			logger.Error("Subscription receive stopped with error", "error", s.err)
			return
		}
		logger.Info("Subscription receive stopped")
	}()

	return s, nil
}

func rawFromPubsub(msg *pubsub.Message) *bridge.RawMessage {
	raw := &bridge.RawMessage{
		ID:          msg.ID,
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		PublishTime: msg.PublishTime,
	}
	if msg.DeliveryAttempt != nil {
		raw.DeliveryAttempt = *msg.DeliveryAttempt
	}
	return raw
}

// Session is a running streaming pull.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Stop cancels the pull without waiting for in-flight callbacks.
func (s *Session) Stop() {
	s.cancel()
}

// Done is closed once Receive has returned and the client is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the Receive error. Valid after Done is closed.
func (s *Session) Err() error {
	<-s.done
	return s.err
}
