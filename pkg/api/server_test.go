package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/httputil"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
	"github.com/platinummonkey/protolink/pkg/storage"
)

const userV1 = `syntax = "proto3";
package acme.user;

import "google/protobuf/timestamp.proto";

message User {
  string id = 1;
  string email = 2;
  google.protobuf.Timestamp created_at = 3;
}
`

const userV2 = `syntax = "proto3";
package acme.user;

import "google/protobuf/timestamp.proto";

message User {
  string id = 1;
  google.protobuf.Timestamp created_at = 3;
}
`

const brokenProto = `syntax = "proto3";
package acme.broken;

message Broken {
  Missing field = 1;
}
`

type testServer struct {
	*Server
	store    storage.SnapshotStore
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	l := loader.New(afero.NewMemMapFs(), nil, loader.Config{})
	require.NoError(t, metrics.WatchLoader(l))

	opts := Options{
		Pipeline: pipeline.New(l, pipeline.Options{Metrics: metrics}),
		Gatherer: registry,
		Metrics:  metrics,
		Logger:   observability.DiscardLogger(),
	}
	ts := &testServer{registry: registry}
	if withStore {
		store, err := storage.NewFileSystemStoreFs(afero.NewMemMapFs(), "/snapshots")
		require.NoError(t, err)
		opts.Store = store
		ts.store = store

		health := observability.NewHealthChecker("test")
		health.Register("storage", store.Ping, true)
		opts.Health = health
	}
	ts.Server = NewServer(opts)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func TestServer_HealthEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var status observability.HealthStatus
	decode(t, rec, &status)
	assert.Equal(t, observability.StatusHealthy, status.Dependencies["storage"].Status)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t, false)

	ts.do(t, http.MethodPost, "/v1/link", LinkRequest{Sources: Sources{"acme/user.proto": userV1}})
	ts.do(t, http.MethodPost, "/v1/link", LinkRequest{Sources: Sources{"acme/user.proto": userV1}})

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `protolink_links_total{result="ok"} 2`)
	assert.Contains(t, body, `protolink_http_requests_total{method="POST",route="/v1/link",status="200"} 2`)
	assert.Contains(t, body, "protolink_loader_cache_hits_total")
}

func TestServer_RequestID(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-7", rec.Header().Get(httputil.RequestIDHeader))
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BodyLimit(t *testing.T) {
	l := loader.New(afero.NewMemMapFs(), nil, loader.Config{})
	srv := NewServer(Options{Pipeline: pipeline.New(l, pipeline.Options{}), MaxBodyBytes: 16})

	body, err := json.Marshal(LinkRequest{Sources: Sources{"acme/user.proto": userV1}})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/link", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body exceeds 16 bytes")
}

type failingStore struct {
	storage.SnapshotStore
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestServer_ReadinessFailure(t *testing.T) {
	health := observability.NewHealthChecker("test")
	health.Register("storage", failingStore{}.Ping, true)
	l := loader.New(afero.NewMemMapFs(), nil, loader.Config{})
	srv := NewServer(Options{Pipeline: pipeline.New(l, pipeline.Options{}), Health: health})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
