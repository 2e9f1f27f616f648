// Package metrics holds the Prometheus collectors for the API and the entry
// stores.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "nibble"

// Store operation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics, labelled by backend (guest, sqlite, supabase)
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Business metrics
	EntriesLogged   *prometheus.CounterVec
	Migrations      *prometheus.CounterVec
	MigratedEntries prometheus.Counter
	GuestsCreated   prometheus.Counter
}

// NewCollector creates a collector with its own registry, so tests can build
// as many as they like.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "store_operations_total",
				Help:      "Total number of entry store operations",
			},
			[]string{"backend", "operation", "outcome"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Entry store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		EntriesLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "entries_logged_total",
				Help:      "Feeding entries logged, by session kind",
			},
			[]string{"session"},
		),
		Migrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "migrations_total",
				Help:      "Guest to account migrations, by outcome",
			},
			[]string{"outcome"},
		),
		MigratedEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "migrated_entries_total",
				Help:      "Entries moved from guest slots to accounts",
			},
		),
		GuestsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "guests_created_total",
				Help:      "Guest sessions issued",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.StoreOperations,
		c.StoreDuration,
		c.EntriesLogged,
		c.Migrations,
		c.MigratedEntries,
		c.GuestsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RegisterGauge adds a gauge computed on scrape, e.g. connected SSE clients.
func (c *Collector) RegisterGauge(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: Namespace, Name: name, Help: help},
		fn,
	))
}

// RecordHTTPRequest records a completed HTTP request. route is the matched
// pattern, not the raw path.
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordStoreOperation records one entry store call.
func (c *Collector) RecordStoreOperation(backend, operation, outcome string, elapsed time.Duration) {
	c.StoreOperations.WithLabelValues(backend, operation, outcome).Inc()
	c.StoreDuration.WithLabelValues(backend, operation).Observe(elapsed.Seconds())
}
