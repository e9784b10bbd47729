package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badNames = `syntax = "proto3";
package test.pkg;

message user_profile {
  string UserId = 1;
  string user_name = 2;
}

service user_service {
  rpc get(user_profile) returns (user_profile);
}

enum status {
  Active = 0;
  INACTIVE = 1;
}
`

func TestLink(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/link", LinkRequest{Sources: Sources{"acme/user.proto": userV1}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LinkResponse
	decode(t, rec, &resp)
	files := make(map[string]FileSummary, len(resp.Files))
	for _, f := range resp.Files {
		files[f.Path] = f
	}
	require.Contains(t, files, "acme/user.proto")
	assert.Contains(t, files, "google/protobuf/timestamp.proto")
	assert.Equal(t, "acme.user", files["acme/user.proto"].Package)
	assert.Equal(t, []string{"google/protobuf/timestamp.proto"}, files["acme/user.proto"].Imports)
	assert.Equal(t, 2, resp.Types)
	assert.Empty(t, resp.Descriptor)
}

func TestLink_Descriptor(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/link", LinkRequest{
		Sources:    Sources{"acme/user.proto": userV1},
		Descriptor: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LinkResponse
	decode(t, rec, &resp)
	assert.Contains(t, string(resp.Descriptor), "acme/user.proto")
}

func TestLink_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		code     int
		contains string
	}{
		{
			name:     "diagnostics",
			body:     LinkRequest{Sources: Sources{"broken.proto": brokenProto}},
			code:     http.StatusUnprocessableEntity,
			contains: `"rule":"unresolved"`,
		},
		{
			name:     "syntax error",
			body:     LinkRequest{Sources: Sources{"bad.proto": "message {"}},
			code:     http.StatusBadRequest,
			contains: "Syntax error in bad.proto",
		},
		{
			name:     "no sources",
			body:     LinkRequest{},
			code:     http.StatusBadRequest,
			contains: "no proto sources",
		},
		{
			name:     "unknown field",
			body:     map[string]string{"files": "x"},
			code:     http.StatusBadRequest,
			contains: "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			rec := ts.do(t, http.MethodPost, "/v1/link", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestLint(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/lint", LintRequest{Sources: Sources{"test.proto": badNames}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var full LintResponse
	decode(t, rec, &full)
	require.Len(t, full.Results, 1)
	assert.Equal(t, "test.proto", full.Results[0].FilePath)
	assert.Equal(t, 6, full.Summary.TotalViolations)

	rec = ts.do(t, http.MethodPost, "/v1/lint", LintRequest{
		Sources: Sources{"test.proto": badNames},
		Config:  "lint:\n  use: [minimal]\n",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var minimal LintResponse
	decode(t, rec, &minimal)
	assert.Greater(t, minimal.Summary.TotalViolations, 0)
	assert.Less(t, minimal.Summary.TotalViolations, full.Summary.TotalViolations)
}

func TestLint_BadConfig(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/lint", LintRequest{
		Sources: Sources{"test.proto": badNames},
		Config:  "lint:\n  use: [uber]\n",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown style guide \"uber\"`)
}

func TestGraph_FromSources(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{format: "", contentType: "text/vnd.graphviz; charset=utf-8", contains: `"acme/user.proto" -> "google/protobuf/timestamp.proto";`},
		{format: "mermaid", contentType: "text/plain; charset=utf-8", contains: "graph LR"},
		{format: "cytoscape", contentType: "application/json", contains: "acme/user.proto"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/graph", GraphRequest{
				Sources: Sources{"acme/user.proto": userV1},
				Format:  tt.format,
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	rec := ts.do(t, http.MethodPost, "/v1/graph", GraphRequest{Sources: Sources{"a.proto": userV1}, Format: "svg"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
