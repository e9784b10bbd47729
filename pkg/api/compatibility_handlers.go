package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/protolink/pkg/compatibility"
	"github.com/platinummonkey/protolink/pkg/httputil"
)

// CompatibilityHandlers handles compatibility checking HTTP requests
type CompatibilityHandlers struct {
	server *Server
}

// NewCompatibilityHandlers creates a new compatibility handlers instance
func NewCompatibilityHandlers(server *Server) *CompatibilityHandlers {
	return &CompatibilityHandlers{server: server}
}

// RegisterRoutes registers compatibility routes
func (h *CompatibilityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/compatibility", h.checkCompatibility).Methods(http.MethodPost)
}

// checkCompatibility handles POST /v1/compatibility. Incompatible schemas
// are reported with 409 Conflict.
func (h *CompatibilityHandlers) checkCompatibility(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	mode := compatibility.CompatibilityModeBackward
	if req.Mode != "" {
		parsed, err := compatibility.ParseCompatibilityMode(req.Mode)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid compatibility mode")
			return
		}
		mode = parsed
	}

	newSchema, err := h.server.pipeline.LinkSources(r.Context(), req.New)
	if err != nil {
		h.server.writeLinkError(w, r, err)
		return
	}
	newGraph := compatibility.FromSchema(newSchema)

	var history []*compatibility.SchemaGraph
	baseline := "sources"
	if req.Snapshot != "" {
		var ok bool
		history, baseline, ok = h.snapshotHistory(w, r, req, mode)
		if !ok {
			return
		}
	} else {
		oldSchema, err := h.server.pipeline.LinkSources(r.Context(), req.Old)
		if err != nil {
			h.server.writeLinkError(w, r, err)
			return
		}
		history = []*compatibility.SchemaGraph{compatibility.FromSchema(oldSchema)}
	}

	result, err := compatibility.CheckHistory(history, newGraph, mode)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Compatible {
		status = http.StatusConflict
	}
	_ = httputil.WriteJSON(w, status, CompatibilityResponse{CheckResult: result, Baseline: baseline})
}

// snapshotHistory returns the stored baselines for req, oldest first. A
// transitive mode without an explicit version checks every stored version.
func (h *CompatibilityHandlers) snapshotHistory(w http.ResponseWriter, r *http.Request, req CompatibilityRequest, mode compatibility.CompatibilityMode) ([]*compatibility.SchemaGraph, string, bool) {
	s := h.server
	if !s.requireStore(w) {
		return nil, "", false
	}

	if req.Version != "" || !mode.Transitive() {
		snap, ok := s.loadSnapshot(w, r, req.Snapshot, req.Version)
		if !ok {
			return nil, "", false
		}
		return []*compatibility.SchemaGraph{compatibility.FromDescriptorSet(snap.Files)}, baselineName(snap.Name, snap.Version), true
	}

	infos, err := s.store.List(r.Context(), req.Snapshot)
	s.observeSnapshot("list", err)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, "", false
	}
	if len(infos) == 0 {
		httputil.WriteNotFound(w, "no versions of snapshot "+req.Snapshot)
		return nil, "", false
	}

	history := make([]*compatibility.SchemaGraph, 0, len(infos))
	for _, info := range infos {
		snap, ok := s.loadSnapshot(w, r, info.Name, info.Version)
		if !ok {
			return nil, "", false
		}
		history = append(history, compatibility.FromDescriptorSet(snap.Files))
	}
	return history, req.Snapshot + "@*", true
}
