package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds metrics for the live broadcast hub.
type HubMetrics struct {
	Subscribers     prometheus.Gauge
	FramesPublished *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	Rejected        prometheus.Counter
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of live result subscribers.",
		}),
		FramesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "frames_published_total",
			Help:      "Frames handed to subscriber channels, by event.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed from the hub, by reason.",
		}, []string{"reason"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscriptions_rejected_total",
			Help:      "Subscribe calls refused because the hub was full or stopped.",
		}),
	}

	reg.MustRegister(m.Subscribers, m.FramesPublished, m.Dropped, m.Rejected)
	return m
}
