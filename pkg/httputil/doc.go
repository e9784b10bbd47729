// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, summary)
//	httputil.WriteCreated(w, snapshot.SnapshotInfo)
//	httputil.WriteNotFound(w, "snapshot api@v1 not found")
//
// # Request Parsing
//
//	var req LinkRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	name, ok := httputil.ParsePathStringOrError(w, r, "name")
//	format := httputil.ParseQueryString(r, "format", "mermaid")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(8<<20),
//	)(router)
package httputil
