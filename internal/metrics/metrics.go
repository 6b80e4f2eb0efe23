// Package metrics exposes Prometheus instrumentation for the locator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
)

// Collector owns the registry and the service metrics.
type Collector struct {
	reg *prometheus.Registry

	Queries         *prometheus.CounterVec // operation label
	RequestDuration *prometheus.HistogramVec
}

// NewCollector builds a registry wired to the given index cache.
func NewCollector(cache *gtfs.IndexCache) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locator_queries_total",
			Help: "Total queries served, by operation.",
		}, []string{"operation"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locator_request_duration_seconds",
			Help:    "HTTP request handling duration.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"operation"}),
	}

	indexBuilds := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "locator_feed_index_builds_total",
		Help: "Total static feed index builds.",
	}, func() float64 { return float64(cache.Stats().Builds) })
	cacheHits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "locator_feed_index_cache_hits_total",
		Help: "Total feed index cache hits.",
	}, func() float64 { return float64(cache.Stats().Hits) })

	reg.MustRegister(c.Queries, c.RequestDuration, indexBuilds, cacheHits)
	return c
}

// Handler serves the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
