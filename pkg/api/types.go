package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/platinummonkey/protolink/pkg/compatibility"
	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/schema"
	"github.com/platinummonkey/protolink/pkg/storage"
)

// Sources maps import paths to proto source text.
type Sources map[string]string

// LinkRequest is the body of POST /v1/link.
type LinkRequest struct {
	Sources Sources `json:"sources"`
	// Descriptor asks for the linked descriptor set in protojson form.
	Descriptor bool `json:"descriptor,omitempty"`
}

// FileSummary describes one linked file
type FileSummary struct {
	Path    string   `json:"path"`
	Package string   `json:"package,omitempty"`
	Syntax  string   `json:"syntax,omitempty"`
	Imports []string `json:"imports,omitempty"`
}

// LinkResponse is returned for a schema that linked cleanly.
type LinkResponse struct {
	Files      []FileSummary   `json:"files"`
	Types      int             `json:"types"`
	Services   int             `json:"services"`
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
}

// DiagnosticEntry is one numbered declaration of a diagnostic.
type DiagnosticEntry struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Diagnostic is the JSON form of schema.Diagnostic.
type Diagnostic struct {
	Rule    string            `json:"rule"`
	Message string            `json:"message"`
	Entries []DiagnosticEntry `json:"entries,omitempty"`
	Context []string          `json:"context,omitempty"`
	Text    string            `json:"text"`
}

// DiagnosticsResponse is returned with 422 when linking fails.
type DiagnosticsResponse struct {
	Error       string       `json:"error"`
	Fatal       bool         `json:"fatal,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func newDiagnosticsResponse(err *schema.Error) DiagnosticsResponse {
	resp := DiagnosticsResponse{Error: "schema has errors", Diagnostics: make([]Diagnostic, 0)}
	for _, d := range err.Diagnostics() {
		out := Diagnostic{Rule: string(d.Rule), Message: d.Message, Text: d.String()}
		for _, e := range d.Entries {
			out.Entries = append(out.Entries, DiagnosticEntry{Name: e.Name, Location: e.Location.String()})
		}
		for _, c := range d.Context {
			out.Context = append(out.Context, c.String())
		}
		resp.Diagnostics = append(resp.Diagnostics, out)
	}
	return resp
}

// LintRequest is the body of POST /v1/lint. Config is an optional
// protolink.lint.yaml document replacing the server's lint configuration.
type LintRequest struct {
	Sources Sources `json:"sources"`
	Config  string  `json:"config,omitempty"`
}

// LintResponse reports lint results per file.
type LintResponse struct {
	Results []linter.LintResult `json:"results"`
	Summary linter.Summary      `json:"summary"`
}

// CompatibilityRequest is the body of POST /v1/compatibility. The baseline
// is either Old sources or a stored Snapshot; Version selects one version of
// the snapshot and defaults to the latest.
type CompatibilityRequest struct {
	Mode     string  `json:"mode,omitempty"`
	Old      Sources `json:"old,omitempty"`
	New      Sources `json:"new"`
	Snapshot string  `json:"snapshot,omitempty"`
	Version  string  `json:"version,omitempty"`
}

func (r CompatibilityRequest) validate() error {
	switch {
	case len(r.New) == 0:
		return errors.New("new sources are required")
	case len(r.Old) == 0 && r.Snapshot == "":
		return errors.New("either old sources or a snapshot baseline is required")
	case len(r.Old) > 0 && r.Snapshot != "":
		return errors.New("old sources and a snapshot baseline are mutually exclusive")
	}
	return nil
}

// CompatibilityResponse is a compatibility.CheckResult with the baseline it
// was checked against.
type CompatibilityResponse struct {
	*compatibility.CheckResult
	Baseline string `json:"baseline"`
}

// SnapshotRequest is the body of PUT /v1/snapshots/{name}[/{version}].
type SnapshotRequest struct {
	Sources Sources `json:"sources"`
}

// SnapshotResponse is a snapshot's metadata, with its descriptors when
// requested.
type SnapshotResponse struct {
	storage.SnapshotInfo
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
}

// SnapshotListResponse lists stored snapshots.
type SnapshotListResponse struct {
	Snapshots []storage.SnapshotInfo `json:"snapshots"`
}

// GraphRequest is the body of POST /v1/graph.
type GraphRequest struct {
	Sources Sources `json:"sources"`
	Format  string  `json:"format,omitempty"`
}

func summarize(s *schema.Schema) LinkResponse {
	resp := LinkResponse{
		Files:    make([]FileSummary, 0),
		Types:    len(s.Types()),
		Services: len(s.Services()),
	}
	for _, f := range s.ProtoFiles() {
		fs := FileSummary{Path: f.Path(), Package: f.PackageName(), Syntax: f.Syntax()}
		for _, imp := range f.Imports() {
			fs.Imports = append(fs.Imports, imp.Path)
		}
		resp.Files = append(resp.Files, fs)
	}
	return resp
}

func baselineName(name, version string) string {
	return strings.Join([]string{name, version}, "@")
}
