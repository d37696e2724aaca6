package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var testSubscription = SubscriptionName{Project: "project", Name: "orders"}

func newTestBridge(t *testing.T, mode AckMode, consumer Consumer, connector Connector, opts ...Option) *InboundBridge {
	t.Helper()
	cfg := Config{
		Subscription: testSubscription,
		Credentials:  &FakeCredentials{},
		AckMode:      mode,
	}
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	}, opts...)
	return NewInboundBridge(cfg, connector, consumer, opts...)
}

func startedBridge(t *testing.T, mode AckMode, consumer Consumer) (*InboundBridge, Handler) {
	t.Helper()
	connector := NewFakeConnector()
	b := newTestBridge(t, mode, consumer, connector)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b, connector.Handler(0)
}

func TestInboundBridge_Scenarios(t *testing.T) {
	downstreamErr := errors.New("downstream exploded")

	tests := []struct {
		name        string
		mode        AckMode
		consumeErr  error
		wantHeaders map[string]string
		wantHandle  bool
		wantAcks    int
		wantNacks   int
		wantErr     bool
	}{
		{
			name:        "auto success acks once",
			mode:        AckModeAuto,
			wantHeaders: map[string]string{"k": "v"},
			wantAcks:    1,
		},
		{
			name:        "manual success leaves ack to downstream",
			mode:        AckModeManual,
			wantHeaders: map[string]string{"k": "v"},
			wantHandle:  true,
		},
		{
			name:        "auto failure nacks once and propagates",
			mode:        AckModeAuto,
			consumeErr:  downstreamErr,
			wantHeaders: map[string]string{"k": "v"},
			wantNacks:   1,
			wantErr:     true,
		},
		{
			name:        "manual failure propagates without ack action",
			mode:        AckModeManual,
			consumeErr:  downstreamErr,
			wantHeaders: map[string]string{"k": "v"},
			wantHandle:  true,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := &FakeConsumer{
				ConsumeFunc: func(ctx context.Context, msg *Message) error {
					return tt.consumeErr
				},
			}
			_, handler := startedBridge(t, tt.mode, consumer)
			ack := &FakeAcknowledger{ID: "m-1"}

			err := handler(context.Background(), &RawMessage{
				ID:         "m-1",
				Data:       []byte("hello"),
				Attributes: map[string]string{"k": "v"},
			}, ack)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrForwardingFailed)
				assert.ErrorIs(t, err, downstreamErr)
				var fwdErr *ForwardingError
				require.ErrorAs(t, err, &fwdErr)
				assert.Equal(t, "m-1", fwdErr.MessageID)
				assert.Equal(t, tt.mode, fwdErr.Mode)
			} else {
				require.NoError(t, err)
			}

			received := consumer.Received()
			require.Len(t, received, 1)
			assert.Equal(t, []byte("hello"), received[0].Payload)
			assert.Equal(t, tt.wantHeaders, received[0].Headers)
			if tt.wantHandle {
				assert.Same(t, ack, received[0].Acknowledger)
			} else {
				assert.Nil(t, received[0].Acknowledger)
			}

			acks, nacks := ack.Counts()
			assert.Equal(t, tt.wantAcks, acks)
			assert.Equal(t, tt.wantNacks, nacks)
		})
	}
}

func TestInboundBridge_AckHappensAfterForward(t *testing.T) {
	ack := &FakeAcknowledger{ID: "m-1"}
	var acksDuringForward int
	consumer := &FakeConsumer{
		ConsumeFunc: func(ctx context.Context, msg *Message) error {
			acksDuringForward, _ = ack.Counts()
			return nil
		},
	}
	_, handler := startedBridge(t, AckModeAuto, consumer)

	require.NoError(t, handler(context.Background(), &RawMessage{ID: "m-1"}, ack))

	assert.Zero(t, acksDuringForward)
	acks, _ := ack.Counts()
	assert.Equal(t, 1, acks)
}

func TestInboundBridge_ManualDownstreamSettlesOwnMessage(t *testing.T) {
	consumer := &FakeConsumer{
		ConsumeFunc: func(ctx context.Context, msg *Message) error {
			if !msg.Ack() {
				return errors.New("no acknowledger")
			}
			return nil
		},
	}
	_, handler := startedBridge(t, AckModeManual, consumer)
	ack := &FakeAcknowledger{ID: "m-1"}

	require.NoError(t, handler(context.Background(), &RawMessage{ID: "m-1"}, ack))

	acks, nacks := ack.Counts()
	assert.Equal(t, 1, acks, "exactly the downstream ack")
	assert.Zero(t, nacks)
}

func TestInboundBridge_ConsumerPanic(t *testing.T) {
	tests := []struct {
		name      string
		mode      AckMode
		wantNacks int
	}{
		{name: "auto nacks", mode: AckModeAuto, wantNacks: 1},
		{name: "manual leaves handle alone", mode: AckModeManual, wantNacks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := ConsumerFunc(func(ctx context.Context, msg *Message) error {
				panic("boom")
			})
			_, handler := startedBridge(t, tt.mode, consumer)
			ack := &FakeAcknowledger{}

			err := handler(context.Background(), &RawMessage{ID: "m-1"}, ack)

			require.ErrorIs(t, err, ErrForwardingFailed)
			assert.Contains(t, err.Error(), "boom")
			acks, nacks := ack.Counts()
			assert.Zero(t, acks)
			assert.Equal(t, tt.wantNacks, nacks)
		})
	}
}

func TestInboundBridge_ConcurrentDeliveries(t *testing.T) {
	consumer := &FakeConsumer{
		ConsumeFunc: func(ctx context.Context, msg *Message) error {
			if msg.Headers["fail"] == "true" {
				return errors.New("rejected")
			}
			return nil
		},
	}
	_, handler := startedBridge(t, AckModeAuto, consumer)

	const n = 64
	acks := make([]*FakeAcknowledger, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		acks[i] = &FakeAcknowledger{}
		fail := "false"
		if i%3 == 0 {
			fail = "true"
		}
		wg.Add(1)
		go func(i int, fail string) {
			defer wg.Done()
			_ = handler(context.Background(), &RawMessage{Attributes: map[string]string{"fail": fail}}, acks[i])
		}(i, fail)
	}
	wg.Wait()

	for i, ack := range acks {
		a, na := ack.Counts()
		assert.Equal(t, 1, a+na, "message %d must be settled exactly once", i)
		if i%3 == 0 {
			assert.Equal(t, 1, na, "message %d", i)
		} else {
			assert.Equal(t, 1, a, "message %d", i)
		}
	}
	assert.Len(t, consumer.Received(), n)
}

func TestInboundBridge_StartValidation(t *testing.T) {
	credsErr := errors.New("token expired")

	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name:      "missing project",
			cfg:       Config{Subscription: SubscriptionName{Name: "orders"}, Credentials: &FakeCredentials{}},
			wantField: "subscription.project",
		},
		{
			name:      "missing subscription name",
			cfg:       Config{Subscription: SubscriptionName{Project: "project", Name: "  "}, Credentials: &FakeCredentials{}},
			wantField: "subscription.name",
		},
		{
			name:      "missing credentials",
			cfg:       Config{Subscription: testSubscription},
			wantField: "credentials",
		},
		{
			name: "invalid credentials",
			cfg: Config{Subscription: testSubscription, Credentials: &FakeCredentials{
				ValidateFunc: func(ctx context.Context) error { return credsErr },
			}},
			wantField: "credentials",
		},
		{
			name:      "unknown ack mode",
			cfg:       Config{Subscription: testSubscription, Credentials: &FakeCredentials{}, AckMode: AckMode(9)},
			wantField: "ack_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector := NewFakeConnector()
			b := NewInboundBridge(tt.cfg, connector, &FakeConsumer{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

			err := b.Start(context.Background())

			require.ErrorIs(t, err, ErrInvalidConfiguration)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.False(t, b.Running())
			assert.Empty(t, connector.Trace(), "connector must not be called")
		})
	}
}

func TestInboundBridge_ConnectFailure(t *testing.T) {
	connector := NewFakeConnector()
	connector.ConnectFunc = func(ctx context.Context, sub SubscriptionName, creds CredentialsProvider, handler Handler) (Session, error) {
		return nil, errors.New("permission denied")
	}
	b := newTestBridge(t, AckModeAuto, &FakeConsumer{}, connector)

	err := b.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.False(t, b.Running())
}

func TestInboundBridge_StartStopIdempotent(t *testing.T) {
	connector := NewFakeConnector()
	b := newTestBridge(t, AckModeAuto, &FakeConsumer{}, connector)

	b.Stop() // never started

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.Running())
	assert.Equal(t, []string{"Connect"}, connector.Trace())

	b.Stop()
	b.Stop()
	assert.False(t, b.Running())
	assert.Equal(t, 1, connector.Session(0).Stops())

	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, []string{"Connect", "Connect"}, connector.Trace())
	b.Stop()
}

func TestInboundBridge_LateDeliveryAfterStop(t *testing.T) {
	tests := []struct {
		name string
		mode AckMode
	}{
		{name: "auto", mode: AckModeAuto},
		{name: "manual", mode: AckModeManual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector := NewFakeConnector()
			consumer := &FakeConsumer{}
			b := newTestBridge(t, tt.mode, consumer, connector)
			require.NoError(t, b.Start(context.Background()))
			staleHandler := connector.Handler(0)

			b.Stop()
			ack := &FakeAcknowledger{}
			err := staleHandler(context.Background(), &RawMessage{ID: "late"}, ack)

			assert.ErrorIs(t, err, ErrNotRunning)
			assert.Empty(t, consumer.Received())
			_, nacks := ack.Counts()
			assert.Equal(t, 1, nacks)

			// A handler from a previous run stays rejected after a restart.
			require.NoError(t, b.Start(context.Background()))
			defer b.Stop()
			err = staleHandler(context.Background(), &RawMessage{ID: "late-2"}, &FakeAcknowledger{})
			assert.ErrorIs(t, err, ErrNotRunning)

			require.NoError(t, connector.Handler(1)(context.Background(), &RawMessage{ID: "fresh"}, &FakeAcknowledger{}))
			assert.Len(t, consumer.Received(), 1)
		})
	}
}

func TestInboundBridge_HandleMessage(t *testing.T) {
	consumer := &FakeConsumer{}
	b := newTestBridge(t, AckModeAuto, consumer, NewFakeConnector())

	ack := &FakeAcknowledger{}
	err := b.HandleMessage(context.Background(), &RawMessage{ID: "early"}, ack)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	ack = &FakeAcknowledger{}
	require.NoError(t, b.HandleMessage(context.Background(), &RawMessage{ID: "m"}, ack))
	acks, _ := ack.Counts()
	assert.Equal(t, 1, acks)

	assert.ErrorIs(t, b.HandleMessage(context.Background(), nil, ack), ErrNilMessage)
}

func TestInboundBridge_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	connector := NewFakeConnector()
	consumer := &FakeConsumer{
		ConsumeFunc: func(ctx context.Context, msg *Message) error {
			if msg.UUID == "bad" {
				return errors.New("nope")
			}
			return nil
		},
	}
	b := newTestBridge(t, AckModeAuto, consumer, connector, WithMetrics(metrics))
	require.NoError(t, b.Start(context.Background()))
	handler := connector.Handler(0)

	_ = handler(context.Background(), &RawMessage{ID: "good"}, &FakeAcknowledger{})
	_ = handler(context.Background(), &RawMessage{ID: "bad"}, &FakeAcknowledger{})
	b.Stop()
	_ = handler(context.Background(), &RawMessage{ID: "late"}, &FakeAcknowledger{})

	pm := metrics.(*prometheusMetrics)
	sub := testSubscription.String()
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.received.WithLabelValues(sub)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.acked.WithLabelValues(sub)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.nacked.WithLabelValues(sub)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.rejected.WithLabelValues(sub)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.forwardFailures.WithLabelValues(sub, "auto")))

	_, err = NewPrometheusMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}
