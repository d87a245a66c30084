/*
Package metrics exposes Prometheus collectors for the reconciliation engine
and the HTTP layer.

PURPOSE:
  Metrics implements generic.Observer, so the reconciler and the query
  layer report syncs, degraded aggregations, overrides and resets without
  knowing about Prometheus. The same value provides the HTTP middleware and
  the /metrics handler.

COLLECTORS:
  aneupi_reconciler_syncs_total{kind}
  aneupi_aggregation_failures_total{kind,field}
  aneupi_overrides_total{kind,field}
  aneupi_resets_total{kind}
  aneupi_scheduler_runs_total{kind,result}
  aneupi_http_requests_total{method,route,status}
  aneupi_http_request_duration_seconds{method,route}

REGISTRY:
  Each Metrics owns a private registry so tests can build as many as they
  like without duplicate registration panics.

SEE ALSO:
  - generic/store.go: Observer interface
  - api/server.go: Middleware and /metrics wiring
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aneupi"

// Metrics holds the collectors and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	syncs         *prometheus.CounterVec
	aggFailures   *prometheus.CounterVec
	overrides     *prometheus.CounterVec
	resets        *prometheus.CounterVec
	schedulerRuns *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ generic.Observer = (*Metrics)(nil)

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconciler",
				Name:      "syncs_total",
				Help:      "Monthly records synced from the transactional tables.",
			},
			[]string{"kind"},
		),
		aggFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregation_failures_total",
				Help:      "Field calculations that failed and were substituted with zero.",
			},
			[]string{"kind", "field"},
		),
		overrides: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "overrides_total",
				Help:      "Fields set manually by an administrator.",
			},
			[]string{"kind", "field"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resets_total",
				Help:      "Monthly records reset to calculated values.",
			},
			[]string{"kind"},
		),
		schedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "runs_total",
				Help:      "Scheduled year syncs by outcome.",
			},
			[]string{"kind", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncs,
		m.aggFailures,
		m.overrides,
		m.resets,
		m.schedulerRuns,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// =============================================================================
// ENGINE OBSERVER
// =============================================================================

func (m *Metrics) Synced(kind generic.KindID) {
	m.syncs.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) AggregationFailed(kind generic.KindID, field generic.FieldName) {
	m.aggFailures.WithLabelValues(string(kind), string(field)).Inc()
}

func (m *Metrics) Overridden(kind generic.KindID, field generic.FieldName) {
	m.overrides.WithLabelValues(string(kind), string(field)).Inc()
}

func (m *Metrics) Reset(kind generic.KindID) {
	m.resets.WithLabelValues(string(kind)).Inc()
}

// SchedulerRun records one scheduled sync of a kind.
func (m *Metrics) SchedulerRun(kind generic.KindID, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.schedulerRuns.WithLabelValues(string(kind), result).Inc()
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
