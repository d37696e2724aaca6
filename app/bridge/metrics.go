package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records bridge activity per subscription.
type Metrics interface {
	RecordReceived(subscription string)
	RecordAck(subscription string)
	RecordNack(subscription string)
	RecordRejected(subscription string)
	RecordForwardFailure(subscription string, mode AckMode)
	RecordForwardDuration(subscription string, d time.Duration)
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordReceived(string) {}
func (NoOpMetrics) RecordAck(string) {}
func (NoOpMetrics) RecordNack(string) {}
func (NoOpMetrics) RecordRejected(string) {}
func (NoOpMetrics) RecordForwardFailure(string, AckMode) {}
func (NoOpMetrics) RecordForwardDuration(string, time.Duration) {}

type prometheusMetrics struct {
	received        *prometheus.CounterVec
	acked           *prometheus.CounterVec
	nacked          *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	forwardFailures *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the bridge collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (Metrics, error) {
	m := &prometheusMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubsub_bridge",
			Name:      "messages_received_total",
			Help:      "Messages delivered to the bridge by the subscriber client.",
		}, []string{"subscription"}),
		acked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubsub_bridge",
			Name:      "messages_acked_total",
			Help:      "Messages acknowledged by the bridge.",
		}, []string{"subscription"}),
		nacked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubsub_bridge",
			Name:      "messages_nacked_total",
			Help:      "Messages negatively acknowledged by the bridge.",
		}, []string{"subscription"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubsub_bridge",
			Name:      "messages_rejected_total",
			Help:      "Messages delivered outside a running session.",
		}, []string{"subscription"}),
		forwardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubsub_bridge",
			Name:      "forward_failures_total",
			Help:      "Consumer failures while forwarding a message.",
		}, []string{"subscription", "ack_mode"}),
		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pubsub_bridge",
			Name:      "forward_duration_seconds",
			Help:      "Time spent inside the consumer per message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"subscription"}),
	}

	for _, c := range []prometheus.Collector{
		m.received, m.acked, m.nacked, m.rejected, m.forwardFailures, m.forwardDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusMetrics) RecordReceived(sub string) { m.received.WithLabelValues(sub).Inc() }
func (m *prometheusMetrics) RecordAck(sub string) { m.acked.WithLabelValues(sub).Inc() }
func (m *prometheusMetrics) RecordNack(sub string) { m.nacked.WithLabelValues(sub).Inc() }
func (m *prometheusMetrics) RecordRejected(sub string) { m.rejected.WithLabelValues(sub).Inc() }

func (m *prometheusMetrics) RecordForwardFailure(sub string, mode AckMode) {
	m.forwardFailures.WithLabelValues(sub, mode.String()).Inc()
}

func (m *prometheusMetrics) RecordForwardDuration(sub string, d time.Duration) {
	m.forwardDuration.WithLabelValues(sub).Observe(d.Seconds())
}
