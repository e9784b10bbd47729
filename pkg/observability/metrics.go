package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/schema"
)

// Link results used as the "result" label.
const (
	LinkResultOK       = "ok"
	LinkResultError    = "error"
	LinkResultFatal    = "fatal"
	LinkResultCanceled = "canceled"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registerer prometheus.Registerer

	// Link metrics
	LinkDuration     prometheus.Histogram
	LinksTotal       *prometheus.CounterVec
	DiagnosticsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Snapshot store metrics
	SnapshotOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		registerer: registry,

		LinkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "protolink_link_duration_seconds",
				Help:    "Schema link duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		LinksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protolink_links_total",
				Help: "Total number of schema links by result",
			},
			[]string{"result"},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protolink_diagnostics_total",
				Help: "Total number of link diagnostics by rule",
			},
			[]string{"rule"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protolink_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "protolink_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		SnapshotOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protolink_snapshot_operations_total",
				Help: "Total number of snapshot store operations",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		m.LinkDuration,
		m.LinksTotal,
		m.DiagnosticsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SnapshotOperationsTotal,
	)

	return m
}

// LinkResult classifies the error returned by schema.Link.
func LinkResult(err error) string {
	var fatal *schema.FatalError
	var linkErr *schema.Error
	switch {
	case err == nil:
		return LinkResultOK
	case errors.As(err, &fatal):
		return LinkResultFatal
	case errors.As(err, &linkErr):
		return LinkResultError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return LinkResultCanceled
	default:
		return LinkResultError
	}
}

// ObserveLink records one link attempt and its diagnostics.
func (m *Metrics) ObserveLink(duration time.Duration, err error) {
	m.LinkDuration.Observe(duration.Seconds())
	m.LinksTotal.WithLabelValues(LinkResult(err)).Inc()

	var linkErr *schema.Error
	if errors.As(err, &linkErr) {
		for _, d := range linkErr.Diagnostics() {
			m.DiagnosticsTotal.WithLabelValues(string(d.Rule)).Inc()
		}
	}
}

// ObserveSnapshotOperation records one snapshot store call.
func (m *Metrics) ObserveSnapshotOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
}

// WatchLoader exports the parse cache counters of l.
func (m *Metrics) WatchLoader(l *loader.Loader) error {
	hits := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "protolink_loader_cache_hits_total",
			Help: "Total number of parse cache hits",
		},
		func() float64 { return float64(l.Stats().Hits) },
	)
	misses := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "protolink_loader_cache_misses_total",
			Help: "Total number of parse cache misses",
		},
		func() float64 { return float64(l.Stats().Misses) },
	)
	if err := m.registerer.Register(hits); err != nil {
		return fmt.Errorf("failed to register cache hits: %w", err)
	}
	if err := m.registerer.Register(misses); err != nil {
		m.registerer.Unregister(hits)
		return fmt.Errorf("failed to register cache misses: %w", err)
	}
	return nil
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeName returns the mux route template so paths with variables share a
// label value.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// It must run inside the mux router so the route is known.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeName(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the metrics in g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics in g to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
