package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	EdgesCreated     prometheus.Counter
	ContextTransfers *prometheus.CounterVec
	Exports          *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector with its own registry, so tests can
// build as many as they like without duplicate registration
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
		EdgesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_created_total",
				Help:      "Total number of edges created",
			},
		),
		ContextTransfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_transfers_total",
				Help:      "Context transfers by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		Exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_exports_total",
				Help:      "Session exports by format and status",
			},
			[]string{"format", "status"},
		),
		ExportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_export_duration_seconds",
				Help:      "Session export duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_cache_hits_total",
				Help:      "Total number of export cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_cache_misses_total",
				Help:      "Total number of export cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.EdgesCreated,
		c.ContextTransfers,
		c.Exports,
		c.ExportDuration,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordEdgeCreated counts a committed edge
func (c *Collector) RecordEdgeCreated() {
	if c == nil {
		return
	}
	c.EdgesCreated.Inc()
}

// RecordTransfer counts one context transfer
func (c *Collector) RecordTransfer(strategy, outcome string) {
	if c == nil {
		return
	}
	c.ContextTransfers.WithLabelValues(strategy, outcome).Inc()
}

// RecordExport counts one export and its latency
func (c *Collector) RecordExport(format, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(format, status).Inc()
	c.ExportDuration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// RecordCache counts an export cache lookup
func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// RecordHTTP counts a served request
func (c *Collector) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
