package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/dependencies"
)

func getGraphCmd(gs *globalState) *cobra.Command {
	var format, output, impact string

	cmd := &cobra.Command{
		Use:   "graph [root...]",
		Short: "Render the import graph",
		Example: `
  # Render with Graphviz.
  protolink graph ./proto | dot -Tsvg > imports.svg

  # Show which files are affected by a change to common.proto.
  protolink graph --impact acme/common.proto`[1:],
		RunE: func(cmd *cobra.Command, args []string) error {
			graphFormat, err := dependencies.ParseFormat(format)
			if err != nil {
				return err
			}
			p, err := gs.newPipeline(args)
			if err != nil {
				return err
			}
			s, err := p.Link(cmd.Context())
			if err != nil {
				return gs.reportLinkError(err)
			}
			g := s.ImportGraph()

			w := gs.stdout
			if output != "" && output != "-" {
				f, err := gs.fs.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if impact != "" {
				if !g.Has(impact) {
					return fmt.Errorf("%s is not part of the schema", impact)
				}
				return writeJSON(w, g.ImpactAnalysis(impact))
			}
			if graphFormat == dependencies.FormatCytoscape {
				return writeJSON(w, g.Cytoscape())
			}
			return g.Render(w, graphFormat)
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "graph format: dot, mermaid, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&impact, "impact", "", "print the files depending on this import path")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
