// Package metrics exposes crawl counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "influencemap"

// Collector owns a private registry so several runs (or tests) never collide
// on the default one. A nil *Collector is valid and records nothing.
type Collector struct {
	registry      *prometheus.Registry
	linkFetches   prometheus.Counter
	fetchRetries  prometheus.Counter
	edgesEmitted  *prometheus.CounterVec
	pagesResolved prometheus.Counter
}

// NewCollector creates and registers the counters.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linkFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_fetches_total",
			Help:      "Link set fetches attempted, including retries",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Transient fetch failures that were backed off and retried",
		}),
		edgesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_emitted_total",
			Help:      "Edges emitted, by stage",
		}, []string{"stage"}),
		pagesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_resolved_total",
			Help:      "Seed and blacklist titles resolved to pages",
		}),
	}
	c.registry.MustRegister(c.linkFetches, c.fetchRetries, c.edgesEmitted, c.pagesResolved)
	return c
}

func (c *Collector) LinkFetch() {
	if c != nil {
		c.linkFetches.Inc()
	}
}

func (c *Collector) Retry() {
	if c != nil {
		c.fetchRetries.Inc()
	}
}

func (c *Collector) EdgesEmitted(stage string, n int) {
	if c != nil && n > 0 {
		c.edgesEmitted.WithLabelValues(stage).Add(float64(n))
	}
}

func (c *Collector) PageResolved() {
	if c != nil {
		c.pagesResolved.Inc()
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
