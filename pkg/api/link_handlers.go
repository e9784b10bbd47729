package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
	"github.com/platinummonkey/protolink/pkg/dependencies"
	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/httputil"
	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/linter/rules"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
	"github.com/platinummonkey/protolink/pkg/schema"
)

// writeLinkError maps load and link failures to responses: syntax errors
// and bad input are 400, schema diagnostics 422.
func (s *Server) writeLinkError(w http.ResponseWriter, r *http.Request, err error) {
	var linkErr *schema.Error
	var fatal *schema.FatalError
	var syntaxErr *protobuf.SyntaxError
	switch {
	case errors.As(err, &linkErr):
		_ = httputil.WriteJSON(w, http.StatusUnprocessableEntity, newDiagnosticsResponse(linkErr))
	case errors.As(err, &fatal):
		_ = httputil.WriteJSON(w, http.StatusUnprocessableEntity, DiagnosticsResponse{
			Error:       fatal.Error(),
			Fatal:       true,
			Diagnostics: make([]Diagnostic, 0),
		})
	case errors.As(err, &syntaxErr):
		httputil.WriteBadRequest(w, syntaxErr.Error())
	case errors.Is(err, pipeline.ErrNoSources), errors.Is(err, loader.ErrNotFound):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Link failed")
		httputil.WriteInternalError(w, err)
	}
}

// link handles POST /v1/link
func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	linked, err := s.pipeline.LinkSources(r.Context(), req.Sources)
	if err != nil {
		s.writeLinkError(w, r, err)
		return
	}

	resp := summarize(linked)
	if req.Descriptor {
		set, err := descriptor.Build(linked)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		data, err := protojson.Marshal(set)
		if err != nil {
			httputil.WriteInternalError(w, fmt.Errorf("failed to encode descriptors: %w", err))
			return
		}
		resp.Descriptor = data
	}
	_ = httputil.WriteSuccess(w, resp)
}

// lint handles POST /v1/lint
func (s *Server) lint(w http.ResponseWriter, r *http.Request) {
	var req LintRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	config := s.lintConfig
	if req.Config != "" {
		parsed, err := linter.ParseConfig([]byte(req.Config))
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		config = parsed
	}

	linked, err := s.pipeline.LinkSources(r.Context(), req.Sources)
	if err != nil {
		s.writeLinkError(w, r, err)
		return
	}

	engine := linter.NewLintEngine(config)
	rules.RegisterDefaultRules(engine.Registry())
	results := engine.LintSchema(linked)
	_ = httputil.WriteSuccess(w, LintResponse{
		Results: results,
		Summary: engine.GenerateSummary(results),
	})
}

// graphFromSources handles POST /v1/graph
func (s *Server) graphFromSources(w http.ResponseWriter, r *http.Request) {
	var req GraphRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	format, err := dependencies.ParseFormat(req.Format)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	linked, err := s.pipeline.LinkSources(r.Context(), req.Sources)
	if err != nil {
		s.writeLinkError(w, r, err)
		return
	}
	writeGraph(w, linked.ImportGraph(), format)
}

// graphFromSnapshot handles GET /v1/graph?snapshot=name[&version=v]
func (s *Server) graphFromSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := dependencies.ParseFormat(httputil.ParseQueryString(r, "format", ""))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	name := httputil.ParseQueryString(r, "snapshot", "")
	if name == "" {
		httputil.WriteBadRequest(w, "snapshot query parameter is required")
		return
	}
	if !s.requireStore(w) {
		return
	}

	snap, ok := s.loadSnapshot(w, r, name, httputil.ParseQueryString(r, "version", ""))
	if !ok {
		return
	}
	writeGraph(w, dependencies.FromDescriptorSet(snap.Files), format)
}

func writeGraph(w http.ResponseWriter, g *dependencies.ImportGraph, format dependencies.Format) {
	if format == dependencies.FormatCytoscape {
		_ = httputil.WriteSuccess(w, g.Cytoscape())
		return
	}

	var buf bytes.Buffer
	if err := g.Render(&buf, format); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == dependencies.FormatDOT {
		contentType = "text/vnd.graphviz; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
