package metrics

import "github.com/prometheus/client_golang/prometheus"

// PollMetrics holds metrics for the poll lifecycle engine.
type PollMetrics struct {
	Operations    *prometheus.CounterVec
	VoteOutcomes  *prometheus.CounterVec
	VoteDuration  prometheus.Histogram
	NotifyFailure *prometheus.CounterVec
	OrphansPurged prometheus.Counter
}

func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "operations_total",
			Help:      "Poll lifecycle operations, by operation and result.",
		}, []string{"operation", "result"}),
		VoteOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "votes_total",
			Help:      "Vote attempts that reached a poll, by outcome.",
		}, []string{"outcome"}),
		VoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "vote_duration_seconds",
			Help:      "Duration of the vote transaction in seconds.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		NotifyFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "notify_failures_total",
			Help:      "Change notifications that could not be published, by stage.",
		}, []string{"stage"}),
		OrphansPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "orphan_options_purged_total",
			Help:      "Options removed by the orphan janitor.",
		}),
	}

	reg.MustRegister(m.Operations, m.VoteOutcomes, m.VoteDuration, m.NotifyFailure, m.OrphansPurged)
	return m
}
