// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the logging, metrics, health check and tracing
// setup shared by the protolink CLI and server.
//
// # Structured Logging
//
// Create logger:
//
//	logger, err := observability.NewLogger("debug", observability.FormatJSON, os.Stderr)
//	logger.WithField("root", "proto").Info("Loading schema")
//
// Context-aware logging:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("Cache purged")
//
// # Prometheus Metrics
//
// Register metrics and record a link:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	start := time.Now()
//	_, err := schema.Link(ctx, files)
//	metrics.ObserveLink(time.Since(start), err)
//
// Loader cache counters:
//
//	err := metrics.WatchLoader(l)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("storage", store.Ping, true)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "protolink",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/api: HTTP middleware wiring
package observability
