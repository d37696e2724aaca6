package bridge

import "context"

// Consumer receives translated messages. A returned error is a forwarding
// failure.
type Consumer interface {
	Consume(ctx context.Context, msg *Message) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, msg *Message) error

func (f ConsumerFunc) Consume(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Handler is the per-message callback a session invokes, possibly from many
// goroutines at once.
type Handler func(ctx context.Context, raw *RawMessage, ack Acknowledger) error

// Session is a running subscriber session.
type Session interface {
	// Stop asks the client to stop issuing callbacks. It must not wait for
	// in-flight callbacks.
	Stop()
}

// CredentialsProvider supplies authenticated access for a Connector.
// Concrete connectors type-assert to their own provider type.
type CredentialsProvider interface {
	Validate(ctx context.Context) error
}

// Connector opens subscriber sessions.
type Connector interface {
	Connect(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error) {
	return f(ctx, sub, creds, handler)
}
