package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// Link metrics
	linksTotal   metric.Int64Counter
	linkDuration metric.Float64Histogram
	diagnostics  metric.Int64Counter

	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsFrom(otel.GetMeterProvider())
}

// NewOTelMetricsFrom creates the instruments on provider.
func NewOTelMetricsFrom(provider metric.MeterProvider) (*OTelMetrics, error) {
	meter := provider.Meter("github.com/platinummonkey/protolink")

	m := &OTelMetrics{}
	var err error

	m.linksTotal, err = meter.Int64Counter(
		"protolink.links",
		metric.WithDescription("Total number of schema links"),
		metric.WithUnit("{link}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create links counter: %w", err)
	}

	m.linkDuration, err = meter.Float64Histogram(
		"protolink.link.duration",
		metric.WithDescription("Schema link duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create link duration histogram: %w", err)
	}

	m.diagnostics, err = meter.Int64Counter(
		"protolink.diagnostics",
		metric.WithDescription("Total number of link diagnostics"),
		metric.WithUnit("{diagnostic}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics counter: %w", err)
	}

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

// RecordLink records one link attempt.
func (m *OTelMetrics) RecordLink(ctx context.Context, duration time.Duration, diagnostics int, err error) {
	attrs := metric.WithAttributes(attribute.String("result", LinkResult(err)))
	m.linksTotal.Add(ctx, 1, attrs)
	m.linkDuration.Record(ctx, duration.Seconds(), attrs)
	if diagnostics > 0 {
		m.diagnostics.Add(ctx, int64(diagnostics))
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
