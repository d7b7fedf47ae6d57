package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics holds metrics for the persistent store.
type StoreMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	TxRollbacks   prometheus.Counter
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Store query latency in seconds, by statement kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Store queries that returned an error, by statement kind.",
		}, []string{"query"}),
		TxRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tx_rollbacks_total",
			Help:      "Transactions rolled back.",
		}),
	}

	reg.MustRegister(m.QueryDuration, m.QueryErrors, m.TxRollbacks)
	return m
}
