package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the application.
//
// All recording methods are safe on a nil *Collector so components can be
// built without metrics in tests.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics, labelled by kind (raw, graph, index)
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	Builds        *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec

	// Snapshot source metrics
	SourceFetches  *prometheus.CounterVec
	SourceDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of snapshot store cache hits",
			},
			[]string{"kind"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of snapshot store cache misses",
			},
			[]string{"kind"},
		),
		Builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of constructions run by the snapshot store",
			},
			[]string{"kind", "status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Snapshot store construction duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		SourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Total number of snapshot fetches",
			},
			[]string{"status"},
		),
		SourceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_fetch_duration_seconds",
				Help:      "Snapshot fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheHits,
		c.CacheMisses,
		c.Builds,
		c.BuildDuration,
		c.SourceFetches,
		c.SourceDuration,
	)
	return c
}

func (c *Collector) CacheHit(kind string) {
	if c == nil {
		return
	}
	c.CacheHits.WithLabelValues(kind).Inc()
}

func (c *Collector) CacheMiss(kind string) {
	if c == nil {
		return
	}
	c.CacheMisses.WithLabelValues(kind).Inc()
}

// RecordBuild records one construction of kind and its outcome.
func (c *Collector) RecordBuild(kind string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.Builds.WithLabelValues(kind, status(err)).Inc()
	c.BuildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordFetch records one snapshot fetch.
func (c *Collector) RecordFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.SourceFetches.WithLabelValues(status(err)).Inc()
	c.SourceDuration.Observe(d.Seconds())
}

// RecordRequest records one HTTP request.
func (c *Collector) RecordRequest(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, statusClass(code)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
