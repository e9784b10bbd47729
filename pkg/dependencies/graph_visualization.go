package dependencies

import (
	"fmt"
	"io"
	"strings"
)

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "missing"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"` // "import", "public" or "weak"
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// Format names a textual graph rendering.
type Format string

const (
	FormatDOT       Format = "dot"
	FormatMermaid   Format = "mermaid"
	FormatCytoscape Format = "cytoscape"
)

// ParseFormat parses a format name, defaulting to DOT.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "dot":
		return FormatDOT, nil
	case "mermaid":
		return FormatMermaid, nil
	case "cytoscape", "json":
		return FormatCytoscape, nil
	default:
		return "", fmt.Errorf("unknown graph format %q", s)
	}
}

func edgeType(imp Import) string {
	switch {
	case imp.Public:
		return "public"
	case imp.Weak:
		return "weak"
	default:
		return "import"
	}
}

// Cytoscape converts the graph to Cytoscape.js elements. Imports of files
// outside the graph become "missing" nodes.
func (g *ImportGraph) Cytoscape() CytoscapeGraph {
	cyto := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(g.files)),
		Edges: make([]CytoscapeEdge, 0),
	}

	added := make(map[string]bool)
	addNode := func(path, kind string) {
		if added[path] {
			return
		}
		added[path] = true
		cyto.Nodes = append(cyto.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{ID: path, Name: path, Type: kind},
		})
	}

	for _, file := range g.files {
		addNode(file, "file")
	}
	for _, file := range g.files {
		for _, imp := range g.edges[file] {
			if !g.Has(imp.Path) {
				addNode(imp.Path, "missing")
			}
			cyto.Edges = append(cyto.Edges, CytoscapeEdge{
				Data: CytoscapeEdgeData{
					ID:     file + "->" + imp.Path,
					Source: file,
					Target: imp.Path,
					Type:   edgeType(imp),
				},
			})
		}
	}
	return cyto
}

// WriteDOT renders the graph in Graphviz DOT. Public imports are bold and
// weak imports dashed.
func (g *ImportGraph) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph imports {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")
	for _, file := range g.files {
		fmt.Fprintf(&b, "  %q;\n", file)
	}
	for _, file := range g.files {
		for _, imp := range g.edges[file] {
			switch edgeType(imp) {
			case "public":
				fmt.Fprintf(&b, "  %q -> %q [style=bold];\n", file, imp.Path)
			case "weak":
				fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", file, imp.Path)
			default:
				fmt.Fprintf(&b, "  %q -> %q;\n", file, imp.Path)
			}
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMermaid renders the graph as a Mermaid flowchart.
func (g *ImportGraph) WriteMermaid(w io.Writer) error {
	ids := make(map[string]string)
	id := func(path string) string {
		if v, ok := ids[path]; ok {
			return v
		}
		v := fmt.Sprintf("f%d", len(ids))
		ids[path] = v
		return v
	}

	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, file := range g.files {
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", id(file), file)
	}
	for _, file := range g.files {
		for _, imp := range g.edges[file] {
			if _, ok := ids[imp.Path]; !ok {
				fmt.Fprintf(&b, "  %s[\"%s\"]\n", id(imp.Path), imp.Path)
			}
			arrow := "-->"
			switch edgeType(imp) {
			case "public":
				arrow = "==>"
			case "weak":
				arrow = "-.->"
			}
			fmt.Fprintf(&b, "  %s %s %s\n", id(file), arrow, id(imp.Path))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes the graph in the given textual format.
func (g *ImportGraph) Render(w io.Writer, format Format) error {
	switch format {
	case FormatMermaid:
		return g.WriteMermaid(w)
	case FormatDOT:
		return g.WriteDOT(w)
	default:
		return fmt.Errorf("graph format %q has no text rendering", format)
	}
}
