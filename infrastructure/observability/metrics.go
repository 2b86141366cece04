// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing setup.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cms-backend/application/linkgraph"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// Metrics holds all Prometheus metrics for the application. Each instance
// owns its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Bus metrics
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Queries         *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec

	// Store scans
	ScanPages  *prometheus.HistogramVec
	ScanErrors *prometheus.CounterVec

	// Link graph
	GraphBuilds   prometheus.Counter
	GraphDuration prometheus.Histogram
	GraphOrphans  prometheus.Histogram
	GraphFailures prometheus.Counter
}

// NewMetrics creates the metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries answered, by outcome",
		}, []string{"query", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),

		ScanPages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_pages",
			Help:      "Pages read per prefix scan",
			Buckets:   []float64{1, 2, 5, 10, 50, 100, 500, 1000},
		}, []string{"kind"}),
		ScanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Prefix scans that ended in an error",
		}, []string{"kind", "outcome"}),

		GraphBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_graph_builds_total",
			Help:      "Link graphs built",
		}),
		GraphDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_graph_build_duration_seconds",
			Help:      "Link graph build duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		GraphOrphans: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_graph_orphans",
			Help:      "Orphan pages per link graph",
			Buckets:   []float64{0, 1, 5, 10, 50, 100},
		}),
		GraphFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_graph_traversal_failures_total",
			Help:      "Nodes whose blocks could not be traversed",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.Commands, m.CommandDuration,
		m.Queries, m.QueryDuration,
		m.ScanPages, m.ScanErrors,
		m.GraphBuilds, m.GraphDuration, m.GraphOrphans, m.GraphFailures,
	)
	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCommand implements the command bus observer.
func (m *Metrics) ObserveCommand(name string, elapsed time.Duration, err error) {
	m.Commands.WithLabelValues(name, outcome(err)).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveQuery implements the query bus observer.
func (m *Metrics) ObserveQuery(name string, elapsed time.Duration, err error) {
	m.Queries.WithLabelValues(name, outcome(err)).Inc()
	m.QueryDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveScan records a finished collector scan. It matches
// collector.PageObserver.
func (m *Metrics) ObserveScan(prefix string, pages int, err error) {
	kind := string(keyspace.KindOf(prefix))
	if kind == "" {
		kind = "unknown"
	}
	m.ScanPages.WithLabelValues(kind).Observe(float64(pages))
	if err != nil {
		m.ScanErrors.WithLabelValues(kind, outcome(err)).Inc()
	}
}

// ObserveLinkGraph records a finished build. It matches linkgraph.Observer.
func (m *Metrics) ObserveLinkGraph(_ keyspace.Scope, result linkgraph.Result, elapsed time.Duration) {
	m.GraphBuilds.Inc()
	m.GraphDuration.Observe(elapsed.Seconds())
	m.GraphOrphans.Observe(float64(len(result.Orphans)))
	m.GraphFailures.Add(float64(len(result.Failures)))
}

// outcome labels an error by its type without leaking messages into labels.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return string(appErr.Type)
	}
	return "error"
}
