package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks bootstrap seeding. All methods are safe on a nil receiver.
type Metrics struct {
	seedsFed prometheus.Counter
	skips    prometheus.Counter
}

// NewMetrics registers bootstrap metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		seedsFed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "bootstrap",
			Name:      "seeds_fed_total",
			Help:      "Historical records replayed into the learner at cold start.",
		}),
		skips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "bootstrap",
			Name:      "skips_total",
			Help:      "Bootstrap runs that were skipped.",
		}),
	}
}

func (m *Metrics) recordSeeds(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.seedsFed.Add(float64(n))
}

func (m *Metrics) recordSkip() {
	if m == nil {
		return
	}
	m.skips.Inc()
}
