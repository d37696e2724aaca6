package bridge

import (
	"context"
	"sync"
)

// ------------------------
// Fake Acknowledger
// ------------------------

// FakeAcknowledger counts terminal actions for one message.
type FakeAcknowledger struct {
	ID string

	mu    sync.Mutex
	acks  int
	nacks int
}

func (f *FakeAcknowledger) Ack() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
}

func (f *FakeAcknowledger) Nack() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
}

func (f *FakeAcknowledger) Counts() (acks, nacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks, f.nacks
}

// ------------------------
// Fake Session / Connector
// ------------------------

type FakeSession struct {
	mu    sync.Mutex
	stops int
}

func (s *FakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *FakeSession) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// FakeConnector records Connect calls and keeps the handler of each session.
type FakeConnector struct {
	trace []string

	ConnectFunc func(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error)

	mu       sync.Mutex
	handlers []Handler
	sessions []*FakeSession
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{trace: []string{}}
}

func (f *FakeConnector) Connect(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error) {
	f.mu.Lock()
	f.trace = append(f.trace, "Connect")
	f.mu.Unlock()

	if f.ConnectFunc != nil {
		return f.ConnectFunc(ctx, sub, creds, handler)
	}

	session := &FakeSession{}
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()
	return session, nil
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeConnector) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Handler returns the handler registered by the i-th Connect call.
func (f *FakeConnector) Handler(i int) Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[i]
}

func (f *FakeConnector) Session(i int) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

// ------------------------
// Fake Credentials
// ------------------------

type FakeCredentials struct {
	ValidateFunc func(ctx context.Context) error
}

func (f *FakeCredentials) Validate(ctx context.Context) error {
	if f.ValidateFunc != nil {
		return f.ValidateFunc(ctx)
	}
	return nil
}

// ------------------------
// Fake Consumer
// ------------------------

// FakeConsumer records every message it receives.
type FakeConsumer struct {
	ConsumeFunc func(ctx context.Context, msg *Message) error

	mu       sync.Mutex
	received []*Message
}

func (f *FakeConsumer) Consume(ctx context.Context, msg *Message) error {
	f.mu.Lock()
	f.received = append(f.received, msg)
	f.mu.Unlock()
	if f.ConsumeFunc != nil {
		return f.ConsumeFunc(ctx, msg)
	}
	return nil
}

func (f *FakeConsumer) Received() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.received))
	copy(out, f.received)
	return out
}
