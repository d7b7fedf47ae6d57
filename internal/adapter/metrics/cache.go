package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds metrics for the results cache and the redis client underneath it.
type CacheMetrics struct {
	Hits                *prometheus.CounterVec
	Misses              *prometheus.CounterVec
	Invalidations       prometheus.Counter
	RedisOps            *prometheus.CounterVec
	RedisOpDuration     *prometheus.HistogramVec
	CircuitBreakerState prometheus.Gauge
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results_cache",
			Name:      "hits_total",
			Help:      "Total number of results cache hits, by layer.",
		}, []string{"layer"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results_cache",
			Name:      "misses_total",
			Help:      "Total number of results cache misses, by layer.",
		}, []string{"layer"}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results_cache",
			Name:      "invalidations_total",
			Help:      "Total number of results cache invalidations.",
		}),
		RedisOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Redis commands, by command and status.",
		}, []string{"command", "status"}),
		RedisOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Redis command latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"command"}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_state",
			Help:      "Redis circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations, m.RedisOps, m.RedisOpDuration, m.CircuitBreakerState)
	return m
}
