package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/httputil"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/storage"
)

// SnapshotHandlers handles snapshot HTTP requests
type SnapshotHandlers struct {
	server *Server
}

// NewSnapshotHandlers creates a new snapshot handlers instance
func NewSnapshotHandlers(server *Server) *SnapshotHandlers {
	return &SnapshotHandlers{server: server}
}

// RegisterRoutes registers snapshot routes
func (h *SnapshotHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/snapshots", h.list).Methods(http.MethodGet)
	router.HandleFunc("/snapshots/{name}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/snapshots/{name}", h.put).Methods(http.MethodPut)
	router.HandleFunc("/snapshots/{name}/{version}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/snapshots/{name}/{version}", h.put).Methods(http.MethodPut)
	router.HandleFunc("/snapshots/{name}/{version}", h.delete).Methods(http.MethodDelete)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteServiceUnavailable(w, "snapshot storage is not configured")
		return false
	}
	return true
}

func (s *Server) observeSnapshot(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshotOperation(op, err)
	}
}

// writeStoreError maps storage errors to responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, storage.ErrSnapshotExists):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, storage.ErrInvalidName):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Snapshot store failed")
		httputil.WriteInternalError(w, err)
	}
}

// loadSnapshot fetches name@version, or the latest version of name when
// version is empty, writing the error response on failure.
func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request, name, version string) (*storage.Snapshot, bool) {
	var snap *storage.Snapshot
	var err error
	if version == "" {
		snap, err = s.store.Latest(r.Context(), name)
		s.observeSnapshot("latest", err)
	} else {
		snap, err = s.store.Get(r.Context(), name, version)
		s.observeSnapshot("get", err)
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	return snap, true
}

// list handles GET /v1/snapshots?name=
func (h *SnapshotHandlers) list(w http.ResponseWriter, r *http.Request) {
	if !h.server.requireStore(w) {
		return
	}
	infos, err := h.server.store.List(r.Context(), httputil.ParseQueryString(r, "name", ""))
	h.server.observeSnapshot("list", err)
	if err != nil {
		h.server.writeStoreError(w, r, err)
		return
	}
	if infos == nil {
		infos = make([]storage.SnapshotInfo, 0)
	}
	_ = httputil.WriteSuccess(w, SnapshotListResponse{Snapshots: infos})
}

// get handles GET /v1/snapshots/{name}[/{version}]?format=
//
// Without a format the metadata and the protojson descriptors are returned.
// format=binary or format=text returns only the encoded descriptor set.
func (h *SnapshotHandlers) get(w http.ResponseWriter, r *http.Request) {
	if !h.server.requireStore(w) {
		return
	}
	vars := mux.Vars(r)
	snap, ok := h.server.loadSnapshot(w, r, vars["name"], vars["version"])
	if !ok {
		return
	}

	formatName := httputil.ParseQueryString(r, "format", "")
	if formatName == "" {
		data, err := protojson.Marshal(snap.Files)
		if err != nil {
			httputil.WriteInternalError(w, fmt.Errorf("failed to encode descriptors: %w", err))
			return
		}
		_ = httputil.WriteSuccess(w, SnapshotResponse{SnapshotInfo: snap.SnapshotInfo, Descriptor: data})
		return
	}

	format, err := descriptor.ParseFormat(formatName)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	data, err := descriptor.Marshal(snap.Files, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	contentType := "application/x-protobuf"
	switch format {
	case descriptor.FormatJSON:
		contentType = "application/json"
	case descriptor.FormatText:
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Snapshot-Version", snap.Version)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// put handles PUT /v1/snapshots/{name}[/{version}]
func (h *SnapshotHandlers) put(w http.ResponseWriter, r *http.Request) {
	if !h.server.requireStore(w) {
		return
	}
	var req SnapshotRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	linked, err := h.server.pipeline.LinkSources(r.Context(), req.Sources)
	if err != nil {
		h.server.writeLinkError(w, r, err)
		return
	}
	set, err := descriptor.Build(linked)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	vars := mux.Vars(r)
	snap, err := storage.NewSnapshot(vars["name"], vars["version"], set)
	if err != nil {
		h.server.writeStoreError(w, r, err)
		return
	}
	err = h.server.store.Put(r.Context(), snap)
	h.server.observeSnapshot("put", err)
	if err != nil {
		h.server.writeStoreError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(logrus.Fields{
		"snapshot": snap.Name,
		"version":  snap.Version,
		"files":    snap.FileCount,
	}).Info("Snapshot stored")
	_ = httputil.WriteCreated(w, snap.SnapshotInfo)
}

// delete handles DELETE /v1/snapshots/{name}/{version}
func (h *SnapshotHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if !h.server.requireStore(w) {
		return
	}
	vars := mux.Vars(r)
	err := h.server.store.Delete(r.Context(), vars["name"], vars["version"])
	h.server.observeSnapshot("delete", err)
	if err != nil {
		h.server.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
