package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/storage"
)

func (ts *testServer) putSnapshot(t *testing.T, name, version, source string) storage.SnapshotInfo {
	t.Helper()
	rec := ts.do(t, http.MethodPut, "/v1/snapshots/"+name+"/"+version,
		SnapshotRequest{Sources: Sources{"acme/user.proto": source}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info storage.SnapshotInfo
	decode(t, rec, &info)
	return info
}

func TestSnapshots_Lifecycle(t *testing.T) {
	ts := newTestServer(t, true)

	info := ts.putSnapshot(t, "acme", "v1", userV1)
	assert.Equal(t, "acme", info.Name)
	assert.Equal(t, "v1", info.Version)
	assert.Equal(t, 2, info.FileCount)
	assert.NotEmpty(t, info.Digest)

	rec := ts.do(t, http.MethodGet, "/v1/snapshots/acme/v1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got SnapshotResponse
	decode(t, rec, &got)
	assert.Equal(t, info.ID, got.ID)
	assert.Contains(t, string(got.Descriptor), "acme/user.proto")

	rec = ts.do(t, http.MethodGet, "/v1/snapshots?name=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list SnapshotListResponse
	decode(t, rec, &list)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, "v1", list.Snapshots[0].Version)

	rec = ts.do(t, http.MethodDelete, "/v1/snapshots/acme/v1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/snapshots/acme/v1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Empty(t, list.Snapshots)
}

func TestSnapshots_Latest(t *testing.T) {
	ts := newTestServer(t, true)
	ts.putSnapshot(t, "acme", "v1", userV1)

	rec := ts.do(t, http.MethodGet, "/v1/snapshots/acme", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got SnapshotResponse
	decode(t, rec, &got)
	assert.Equal(t, "v1", got.Version)

	rec = ts.do(t, http.MethodGet, "/v1/snapshots/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshots_BinaryFormat(t *testing.T) {
	ts := newTestServer(t, true)
	ts.putSnapshot(t, "acme", "v1", userV1)

	rec := ts.do(t, http.MethodGet, "/v1/snapshots/acme/v1?format=binary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1", rec.Header().Get("X-Snapshot-Version"))

	set, err := descriptor.Unmarshal(rec.Body.Bytes())
	require.NoError(t, err)
	names := make([]string, 0, len(set.GetFile()))
	for _, f := range set.GetFile() {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "acme/user.proto")

	rec = ts.do(t, http.MethodGet, "/v1/snapshots/acme/v1?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshots_Errors(t *testing.T) {
	ts := newTestServer(t, true)
	ts.putSnapshot(t, "acme", "v1", userV1)

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
		code   int
	}{
		{
			name:   "duplicate version",
			method: http.MethodPut,
			target: "/v1/snapshots/acme/v1",
			body:   SnapshotRequest{Sources: Sources{"acme/user.proto": userV1}},
			code:   http.StatusConflict,
		},
		{
			name:   "invalid name",
			method: http.MethodPut,
			target: "/v1/snapshots/-bad/v1",
			body:   SnapshotRequest{Sources: Sources{"acme/user.proto": userV1}},
			code:   http.StatusBadRequest,
		},
		{
			name:   "schema errors",
			method: http.MethodPut,
			target: "/v1/snapshots/acme/v2",
			body:   SnapshotRequest{Sources: Sources{"broken.proto": brokenProto}},
			code:   http.StatusUnprocessableEntity,
		},
		{
			name:   "delete missing",
			method: http.MethodDelete,
			target: "/v1/snapshots/acme/v9",
			code:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestSnapshots_NoStore(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/v1/snapshots", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "snapshot storage is not configured")
}

func TestGraph_FromSnapshot(t *testing.T) {
	ts := newTestServer(t, true)
	ts.putSnapshot(t, "acme", "v1", userV1)

	rec := ts.do(t, http.MethodGet, "/v1/graph?snapshot=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "digraph imports {")
	assert.Contains(t, rec.Body.String(), `"acme/user.proto" -> "google/protobuf/timestamp.proto";`)

	rec = ts.do(t, http.MethodGet, "/v1/graph", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
