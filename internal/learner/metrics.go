package learner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the learner. All record methods are nil-safe.
type Metrics struct {
	promotions      prometheus.Counter
	trajectoriesFed prometheus.Counter
	queueDrops      prometheus.Counter
	flushes         prometheus.Counter
}

// NewMetrics registers learner metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		promotions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "learner",
			Name:      "promotions_total",
			Help:      "Corrections promoted into durable patterns.",
		}),
		trajectoriesFed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "learner",
			Name:      "trajectories_fed_total",
			Help:      "Learning signals written to the vector index.",
		}),
		queueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "learner",
			Name:      "queue_drops_total",
			Help:      "Learning signals dropped because the trajectory queue was full.",
		}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "learner",
			Name:      "flushes_total",
			Help:      "Trajectory batch flushes, scheduled or forced.",
		}),
	}
}

func (m *Metrics) recordPromotion() {
	if m != nil {
		m.promotions.Inc()
	}
}

func (m *Metrics) recordTrajectories(n int) {
	if m != nil {
		m.trajectoriesFed.Add(float64(n))
	}
}

func (m *Metrics) recordQueueDrop() {
	if m != nil {
		m.queueDrops.Inc()
	}
}

func (m *Metrics) recordFlush() {
	if m != nil {
		m.flushes.Inc()
	}
}
