// Package metrics defines the Prometheus collectors of the service. Every group is a struct
// registered on an explicit registry so tests can use a fresh one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pollpulse"

// NewRegistry returns a registry preloaded with runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	return reg
}

// Handler exposes g in the Prometheus text format, or OpenMetrics when the scraper asks for it.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Set bundles every metric group used by the server.
type Set struct {
	HTTP  *HTTPMetrics
	Polls *PollMetrics
	Hub   *HubMetrics
	Cache *CacheMetrics
	Store *StoreMetrics
}

func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:  NewHTTPMetrics(reg),
		Polls: NewPollMetrics(reg),
		Hub:   NewHubMetrics(reg),
		Cache: NewCacheMetrics(reg),
		Store: NewStoreMetrics(reg),
	}
}
