package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{}, DiscardLogger())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers, DiscardLogger()))
}

func TestInitOTel_MissingEndpoint(t *testing.T) {
	_, err := InitOTel(context.Background(), OTelConfig{Enabled: true}, DiscardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "otel endpoint is required")
}

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=test")

	res, err := newResource(context.Background(), OTelConfig{ServiceName: "protolink", ServiceVersion: "v1.2.3"})
	if err != nil {
		require.ErrorIs(t, err, resource.ErrPartialResource)
	}
	require.NotNil(t, res)

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "protolink", name.AsString())

	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "v1.2.3", version.AsString())

	env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "test", env.AsString())
}

func TestShutdownOTel(t *testing.T) {
	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  metric.NewMeterProvider(),
	}
	assert.NoError(t, ShutdownOTel(context.Background(), providers, DiscardLogger()))
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestOTelMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewOTelMetricsFrom(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLink(ctx, 5*time.Millisecond, 0, nil)
	m.RecordLink(ctx, 5*time.Millisecond, 3, context.Canceled)
	m.RecordHTTPRequest(ctx, "POST", "/v1/link", 200, time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(2), sumValue(t, rm, "protolink.links"))
	assert.Equal(t, int64(3), sumValue(t, rm, "protolink.diagnostics"))
	assert.Equal(t, int64(1), sumValue(t, rm, "http.server.requests"))
}
