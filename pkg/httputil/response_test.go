package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusAccepted, map[string]int{"files": 2}))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"files": 2}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		code  int
		msg   string
	}{
		{name: "bad request", write: func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, code: http.StatusBadRequest, msg: "bad"},
		{name: "not found", write: func(w http.ResponseWriter) { WriteNotFound(w, "gone") }, code: http.StatusNotFound, msg: "gone"},
		{name: "conflict", write: func(w http.ResponseWriter) { WriteConflict(w, "exists") }, code: http.StatusConflict, msg: "exists"},
		{name: "internal", write: func(w http.ResponseWriter) { WriteInternalError(w, errors.New("boom")) }, code: http.StatusInternalServerError, msg: "boom"},
		{name: "unavailable", write: func(w http.ResponseWriter) { WriteServiceUnavailable(w, "down") }, code: http.StatusServiceUnavailable, msg: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.code, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}

func TestWriteDetailedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDetailedError(w, http.StatusUnprocessableEntity, errors.New("incompatible"), map[string]string{"mode": "BACKWARD"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error": "incompatible", "details": {"mode": "BACKWARD"}}`, w.Body.String())
}

func TestSuccessWriters(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"version": "v1"}))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, []string{}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
