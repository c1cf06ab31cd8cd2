package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReceivingMetrics records reconciliation activity for GRN and QC sessions.
type ReceivingMetrics struct {
	persistence *prometheus.HistogramVec
	saved       *prometheus.CounterVec
	deleted     *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
}

// NewReceivingMetrics registers the receiving metrics on the provided registerer.
func NewReceivingMetrics(reg prometheus.Registerer) *ReceivingMetrics {
	if reg == nil {
		return &ReceivingMetrics{}
	}
	persistence := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receiving_persistence_duration_seconds",
		Help:    "Duration of session load/save/delete calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow", "operation", "outcome"})
	saved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_sessions_saved_total",
		Help: "Receiving sessions committed.",
	}, []string{"workflow"})
	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_sessions_deleted_total",
		Help: "Receiving sessions deleted.",
	}, []string{"workflow"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_entry_rejections_total",
		Help: "Entry edits rejected by validation.",
	}, []string{"workflow", "field"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_integrity_anomalies_total",
		Help: "Stored data anomalies detected while loading sessions.",
	}, []string{"workflow", "kind"})
	reg.MustRegister(persistence, saved, deleted, rejections, anomalies)
	return &ReceivingMetrics{
		persistence: persistence,
		saved:       saved,
		deleted:     deleted,
		rejections:  rejections,
		anomalies:   anomalies,
	}
}

// ObservePersistence records how long a persistence call took.
func (m *ReceivingMetrics) ObservePersistence(workflow, operation string, duration time.Duration, err error) {
	if m == nil || m.persistence == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.persistence.WithLabelValues(normalizeLabel(workflow), normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

// IncSaved increments the saved session counter.
func (m *ReceivingMetrics) IncSaved(workflow string) {
	if m == nil || m.saved == nil {
		return
	}
	m.saved.WithLabelValues(normalizeLabel(workflow)).Inc()
}

// IncDeleted increments the deleted session counter.
func (m *ReceivingMetrics) IncDeleted(workflow string) {
	if m == nil || m.deleted == nil {
		return
	}
	m.deleted.WithLabelValues(normalizeLabel(workflow)).Inc()
}

// IncRejection increments the validation rejection counter for a field.
func (m *ReceivingMetrics) IncRejection(workflow, field string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(workflow), normalizeLabel(field)).Inc()
}

// IncAnomaly increments the integrity anomaly counter.
func (m *ReceivingMetrics) IncAnomaly(workflow, kind string) {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.WithLabelValues(normalizeLabel(workflow), normalizeLabel(kind)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
