package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/schema"
)

func linkErr(t *testing.T) error {
	t.Helper()
	files, err := loader.New(afero.NewMemMapFs(), nil, loader.Config{}).LoadSources(context.Background(), map[string]string{
		"a.proto": "syntax = \"proto3\";\npackage a;\nmessage M {\n  Missing x = 1;\n}\n",
	})
	require.NoError(t, err)
	_, err = schema.Link(context.Background(), files)
	require.Error(t, err)
	return err
}

func TestLinkResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "ok", want: LinkResultOK},
		{name: "fatal", err: &schema.FatalError{Message: "boom"}, want: LinkResultFatal},
		{name: "wrapped fatal", err: fmt.Errorf("link: %w", &schema.FatalError{}), want: LinkResultFatal},
		{name: "canceled", err: context.Canceled, want: LinkResultCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: LinkResultCanceled},
		{name: "other", err: errors.New("io"), want: LinkResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinkResult(tt.err))
		})
	}
}

func TestMetrics_ObserveLink(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveLink(10*time.Millisecond, nil)
	m.ObserveLink(20*time.Millisecond, linkErr(t))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksTotal.WithLabelValues(LinkResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksTotal.WithLabelValues(LinkResultError)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.DiagnosticsTotal.WithLabelValues(string(schema.RuleUnresolved))), 1.0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.LinkDuration))
}

func TestMetrics_ObserveSnapshotOperation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSnapshotOperation("put", nil)
	m.ObserveSnapshotOperation("put", errors.New("exists"))
	m.ObserveSnapshotOperation("get", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOperationsTotal.WithLabelValues("put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOperationsTotal.WithLabelValues("put", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOperationsTotal.WithLabelValues("get", "ok")))
}

func TestMetrics_WatchLoader(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	l := loader.New(afero.NewMemMapFs(), nil, loader.Config{})
	sources := map[string]string{"a.proto": "syntax = \"proto3\";\npackage a;\n"}
	_, err := l.LoadSources(context.Background(), sources)
	require.NoError(t, err)
	_, err = l.LoadSources(context.Background(), sources)
	require.NoError(t, err)

	require.NoError(t, m.WatchLoader(l))

	expected := fmt.Sprintf(`
# HELP protolink_loader_cache_hits_total Total number of parse cache hits
# TYPE protolink_loader_cache_hits_total counter
protolink_loader_cache_hits_total %d
# HELP protolink_loader_cache_misses_total Total number of parse cache misses
# TYPE protolink_loader_cache_misses_total counter
protolink_loader_cache_misses_total %d
`, l.Stats().Hits, l.Stats().Misses)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"protolink_loader_cache_hits_total", "protolink_loader_cache_misses_total"))

	err = m.WatchLoader(l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register cache hits")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/v1/snapshots/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, name := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/snapshots/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/snapshots/{name}", "404")))

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "protolink_http_requests_total")
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveLink(time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "protolink.prom")
	require.NoError(t, WriteTextfile(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `protolink_links_total{result="ok"} 1`)
}
