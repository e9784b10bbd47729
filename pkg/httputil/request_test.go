package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkBody struct {
	Sources map[string]string `json:"sources"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr string
	}{
		{name: "valid", body: `{"sources": {"a.proto": "syntax = \"proto3\";"}}`},
		{name: "invalid", body: `{invalid}`, wantErr: "invalid JSON"},
		{name: "unknown field", body: `{"files": {}}`, wantErr: `unknown field "files"`},
		{name: "empty", body: ``, wantErr: "request body is empty"},
		{name: "too large", body: `{"sources": {"a.proto": "0123456789"}}`, limit: 8, wantErr: "request body exceeds 8 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/link", bytes.NewBufferString(tt.body))
			if tt.limit > 0 {
				req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, tt.limit)
			}

			var dest linkBody
			err := ParseJSON(req, &dest)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, dest.Sources, "a.proto")
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/link", strings.NewReader(`nope`))
	w := httptest.NewRecorder()

	var dest linkBody
	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid JSON")
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/snapshots/api", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "api"})

	name, err := ParsePathString(req, "name")
	require.NoError(t, err)
	assert.Equal(t, "api", name)

	w := httptest.NewRecorder()
	_, ok := ParsePathStringOrError(w, req, "version")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing path parameter: version")
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/graph?format=dot&limit=5&strict=true&bad=x", nil)

	assert.Equal(t, "dot", ParseQueryString(req, "format", "mermaid"))
	assert.Equal(t, "mermaid", ParseQueryString(req, "missing", "mermaid"))

	limit, err := ParseQueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	limit, err = ParseQueryInt(req, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	_, err = ParseQueryInt(req, "bad", 10)
	assert.EqualError(t, err, "invalid integer for query param bad: x")

	strict, err := ParseQueryBool(req, "strict", false)
	require.NoError(t, err)
	assert.True(t, strict)
	_, err = ParseQueryBool(req, "bad", false)
	assert.EqualError(t, err, "invalid boolean for query param bad: x")
}
