// Package metrics holds the Prometheus collectors for the HTTP façade and
// the query pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nlsql"

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryRows     *prometheus.HistogramVec

	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram

	exports *prometheus.CounterVec
}

// New registers the collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "SQL statements executed, by dialect and outcome.",
			},
			[]string{"dialect", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "SQL execution latency by dialect.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"dialect"},
		),
		queryRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_rows",
				Help:      "Rows returned per successful statement.",
				Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"dialect"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sql_generations_total",
				Help:      "Language model SQL generations, by model and outcome.",
			},
			[]string{"model", "outcome"},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sql_generation_duration_seconds",
				Help:      "Language model round-trip latency.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Result exports, by format and outcome.",
			},
			[]string{"format", "outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.queries,
		m.queryDuration,
		m.queryRows,
		m.generations,
		m.generationDuration,
		m.exports,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveQuery(dialect string, rows int, elapsed time.Duration, err error) {
	m.queries.WithLabelValues(dialect, outcome(err)).Inc()
	m.queryDuration.WithLabelValues(dialect).Observe(elapsed.Seconds())
	if err == nil {
		m.queryRows.WithLabelValues(dialect).Observe(float64(rows))
	}
}

func (m *Metrics) ObserveGeneration(model string, elapsed time.Duration, err error) {
	if model == "" {
		model = "unknown"
	}
	m.generations.WithLabelValues(model, outcome(err)).Inc()
	m.generationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveExport(format string, err error) {
	m.exports.WithLabelValues(format, outcome(err)).Inc()
}
