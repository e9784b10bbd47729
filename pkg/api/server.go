package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/protolink/pkg/httputil"
	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
	"github.com/platinummonkey/protolink/pkg/storage"
)

const defaultMaxBodyBytes = 8 << 20

// Options configures a Server.
type Options struct {
	// Pipeline links posted sources. Its loader should have no roots.
	Pipeline *pipeline.Pipeline
	// Store holds snapshots. Snapshot routes answer 503 without one.
	Store storage.SnapshotStore
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// Metrics instruments every request when set.
	Metrics *observability.Metrics
	// Health backs /healthz and /readyz. A checker without checks is used
	// when nil.
	Health *observability.HealthChecker
	// LintConfig is the default lint configuration.
	LintConfig *linter.Config

	Logger       logrus.FieldLogger
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router       *mux.Router
	handler      http.Handler
	pipeline     *pipeline.Pipeline
	store        storage.SnapshotStore
	metrics      *observability.Metrics
	health       *observability.HealthChecker
	gatherer     prometheus.Gatherer
	lintConfig   *linter.Config
	log          logrus.FieldLogger
	maxBodyBytes int64
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		pipeline:     opts.Pipeline,
		store:        opts.Store,
		metrics:      opts.Metrics,
		health:       opts.Health,
		gatherer:     opts.Gatherer,
		lintConfig:   opts.LintConfig,
		log:          opts.Logger,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	if s.lintConfig == nil {
		s.lintConfig = linter.DefaultConfig()
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}

	s.setupRoutes()
	s.handler = s.wrap(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Health checks
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Schema routes
	v1.HandleFunc("/link", s.link).Methods(http.MethodPost)
	v1.HandleFunc("/lint", s.lint).Methods(http.MethodPost)
	v1.HandleFunc("/graph", s.graphFromSources).Methods(http.MethodPost)
	v1.HandleFunc("/graph", s.graphFromSnapshot).Methods(http.MethodGet)

	NewCompatibilityHandlers(s).RegisterRoutes(v1)
	NewSnapshotHandlers(s).RegisterRoutes(v1)
}

// Router returns the route table, without the outer middleware.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in request ID, logging, recovery, body
// limit and tracing middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) wrap(h http.Handler) http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.log),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(s.maxBodyBytes),
	)
	return otelhttp.NewHandler(chain(h), "protolink",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz" && r.URL.Path != "/metrics"
		}),
	)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
