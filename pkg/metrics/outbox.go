package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the outbox relay.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	lag       prometheus.Histogram
	batches   prometheus.Counter
	stuck     prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receiving_outbox_published_total",
			Help: "Outbox events forwarded by the relay.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receiving_outbox_failed_total",
			Help: "Outbox publish attempts that failed; terminal failures will not be retried.",
		}, []string{"event_type", "terminal"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "receiving_outbox_lag_seconds",
			Help:    "Time between an event occurring and the relay publishing it.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receiving_outbox_batches_total",
			Help: "Non-empty batches processed by the relay.",
		}),
		stuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receiving_outbox_stuck_events",
			Help: "Unpublished events that exhausted their publish attempts.",
		}),
	}
	reg.MustRegister(m.published, m.failed, m.lag, m.batches, m.stuck)
	return m
}

func (m *OutboxMetrics) ObservePublished(eventType string, occurredAt time.Time, now time.Time) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
	if !occurredAt.IsZero() {
		m.lag.Observe(now.Sub(occurredAt).Seconds())
	}
}

func (m *OutboxMetrics) IncFailed(eventType string, terminal bool) {
	if m == nil || m.failed == nil {
		return
	}
	label := "false"
	if terminal {
		label = "true"
	}
	m.failed.WithLabelValues(normalizeLabel(eventType), label).Inc()
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}

func (m *OutboxMetrics) SetStuck(n int64) {
	if m == nil || m.stuck == nil {
		return
	}
	m.stuck.Set(float64(n))
}

// StuckGauge exposes the stuck-events gauge.
func (m *OutboxMetrics) StuckGauge() prometheus.Gauge {
	return m.stuck
}

// PublishedCounter exposes the published counter for one event type.
func (m *OutboxMetrics) PublishedCounter(eventType string) prometheus.Counter {
	return m.published.WithLabelValues(normalizeLabel(eventType))
}
