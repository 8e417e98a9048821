package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the ledger. All record methods are nil-safe so tests
// can pass a nil *Metrics.
type Metrics struct {
	decisionsRecorded  prometheus.Counter
	correctionsApplied prometheus.Counter
	vectorWriteErrors  prometheus.Counter
	fallbackSearches   prometheus.Counter
}

// NewMetrics registers ledger metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "ledger",
			Name:      "decisions_recorded_total",
			Help:      "Decisions durably written to the audit ledger.",
		}),
		correctionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "ledger",
			Name:      "corrections_applied_total",
			Help:      "Human corrections recorded against decisions.",
		}),
		vectorWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "ledger",
			Name:      "vector_write_errors_total",
			Help:      "Asynchronous vector index writes that failed (non-fatal).",
		}),
		fallbackSearches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "ledger",
			Name:      "fingerprint_fallback_total",
			Help:      "Similar-decision lookups served by the exact-fingerprint fallback.",
		}),
	}
}

func (m *Metrics) recordDecision() {
	if m != nil {
		m.decisionsRecorded.Inc()
	}
}

func (m *Metrics) recordCorrection() {
	if m != nil {
		m.correctionsApplied.Inc()
	}
}

func (m *Metrics) recordVectorWriteError() {
	if m != nil {
		m.vectorWriteErrors.Inc()
	}
}

func (m *Metrics) recordFallbackSearch() {
	if m != nil {
		m.fallbackSearches.Inc()
	}
}
