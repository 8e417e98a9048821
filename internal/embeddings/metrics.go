package embeddings

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the embedding pipeline.
type Metrics struct {
	attempts  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	cacheHits prometheus.Counter
}

// NewMetrics registers pipeline metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production, a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "embeddings",
			Name:      "provider_attempts_total",
			Help:      "Embedding attempts per provider.",
		}, []string{"provider"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "embeddings",
			Name:      "provider_failures_total",
			Help:      "Embedding failures per provider (recovered by fallback).",
		}, []string{"provider"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentmem",
			Subsystem: "embeddings",
			Name:      "generation_seconds",
			Help:      "Embedding generation latency by winning provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentmem",
			Subsystem: "embeddings",
			Name:      "cache_hits_total",
			Help:      "Embedding cache hits.",
		}),
	}
}

func (m *Metrics) recordAttempt(provider string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider).Inc()
}

func (m *Metrics) recordFailure(provider string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(provider).Inc()
}

func (m *Metrics) recordSuccess(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
