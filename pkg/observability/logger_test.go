package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantLvl logrus.Level
		wantErr string
	}{
		{name: "defaults", wantLvl: logrus.InfoLevel},
		{name: "debug json", level: "debug", format: "json", wantLvl: logrus.DebugLevel},
		{name: "upper case format", level: "warn", format: "TEXT", wantLvl: logrus.WarnLevel},
		{name: "bad level", level: "chatty", wantErr: `invalid log level "chatty"`},
		{name: "bad format", format: "xml", wantErr: `invalid log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format, &bytes.Buffer{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLvl, logger.GetLevel())
		})
	}
}

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", FormatJSON, &buf)
	require.NoError(t, err)

	logger.WithField("file", "a.proto").Info("Loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Loaded", entry["msg"])
	assert.Equal(t, "a.proto", entry["file"])
	assert.Equal(t, "info", entry["level"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", FormatJSON, &buf)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = WithLogger(ctx, logger)
	ctx = WithRequestID(ctx, "req-1")

	FromContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestGetLogger_Default(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), GetLogger(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	logger := DiscardLogger()
	assert.Equal(t, logrus.FieldLogger(logger), WithTraceContext(context.Background(), logger))
}
