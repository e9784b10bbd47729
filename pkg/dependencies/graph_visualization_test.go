package dependencies

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *ImportGraph {
	g := NewImportGraph()
	g.AddFile("a.proto", []Import{{Path: "b.proto", Public: true}, {Path: "c.proto", Weak: true}})
	g.AddFile("b.proto", []Import{{Path: "gone.proto"}})
	g.AddFile("c.proto", nil)
	return g
}

func TestCytoscape(t *testing.T) {
	cyto := sampleGraph().Cytoscape()

	require.Len(t, cyto.Nodes, 4)
	assert.Equal(t, "a.proto", cyto.Nodes[0].Data.ID)
	assert.Equal(t, "file", cyto.Nodes[0].Data.Type)
	assert.Equal(t, "gone.proto", cyto.Nodes[3].Data.ID)
	assert.Equal(t, "missing", cyto.Nodes[3].Data.Type)

	require.Len(t, cyto.Edges, 3)
	assert.Equal(t, CytoscapeEdgeData{ID: "a.proto->b.proto", Source: "a.proto", Target: "b.proto", Type: "public"}, cyto.Edges[0].Data)
	assert.Equal(t, "weak", cyto.Edges[1].Data.Type)
	assert.Equal(t, "import", cyto.Edges[2].Data.Type)
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleGraph().Render(&buf, FormatDOT))

	out := buf.String()
	assert.Contains(t, out, "digraph imports {")
	assert.Contains(t, out, `"a.proto" -> "b.proto" [style=bold];`)
	assert.Contains(t, out, `"a.proto" -> "c.proto" [style=dashed];`)
	assert.Contains(t, out, `"b.proto" -> "gone.proto";`)
}

func TestWriteMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleGraph().Render(&buf, FormatMermaid))

	expected := "graph LR\n" +
		"  f0[\"a.proto\"]\n" +
		"  f1[\"b.proto\"]\n" +
		"  f2[\"c.proto\"]\n" +
		"  f0 ==> f1\n" +
		"  f0 -.-> f2\n" +
		"  f3[\"gone.proto\"]\n" +
		"  f1 --> f3\n"
	assert.Equal(t, expected, buf.String())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatDOT},
		{in: "DOT", want: FormatDOT},
		{in: "mermaid", want: FormatMermaid},
		{in: "json", want: FormatCytoscape},
		{in: "svg", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Error(t, sampleGraph().Render(&bytes.Buffer{}, FormatCytoscape))
}
