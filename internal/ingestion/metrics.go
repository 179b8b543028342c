package ingestion

import (
	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	skipReasonReconcile = "reconcile"
	skipReasonDuplicate = "duplicate"
	skipReasonInsert    = "insert"
)

// Metrics counts records flowing through ingestion, per source.
type Metrics struct {
	submitted *prometheus.CounterVec
	persisted *prometheus.CounterVec
	skipped   *prometheus.CounterVec
}

// NewMetrics builds the ingestion counters and registers them with reg when
// it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "records_submitted_total",
			Help:      "Normalized anomaly records submitted for persistence.",
		}, []string{"source"}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "records_persisted_total",
			Help:      "Anomaly records written to the database.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "records_skipped_total",
			Help:      "Records dropped during ingestion, by reason.",
		}, []string{"source", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.submitted, m.persisted, m.skipped)
	}
	return m
}

func (m *Metrics) observe(source domain.OriginSystem, summary Summary) {
	if m == nil {
		return
	}
	label := string(source)
	m.submitted.WithLabelValues(label).Add(float64(summary.Submitted))
	m.persisted.WithLabelValues(label).Add(float64(summary.Persisted))
	m.skipped.WithLabelValues(label, skipReasonReconcile).Add(float64(summary.Skipped))
	m.skipped.WithLabelValues(label, skipReasonDuplicate).Add(float64(summary.Duplicates))
	m.skipped.WithLabelValues(label, skipReasonInsert).Add(float64(summary.Failed))
}
