// Package dependencies provides the import graph of a set of proto files.
//
// # Overview
//
// The graph records which files each file imports and whether each import is
// public or weak. The linker uses it to compute file visibility. The CLI and
// HTTP API use it for cycle detection, impact analysis and rendering.
//
// # Visibility
//
// A file may reference declarations from itself, from each file it imports,
// and from every file reachable from an imported file through public imports.
// Plain imports are not transitive:
//
//	graph := dependencies.FromFiles(files)
//	for _, path := range graph.Visible("a.proto") {
//		fmt.Println(path)
//	}
//
// # Analysis
//
//	cycles := graph.DetectCycles()
//	for _, cycle := range cycles {
//		fmt.Printf("  %s\n", strings.Join(cycle, " -> "))
//	}
//
//	impact := graph.ImpactAnalysis("common/types.proto")
//	fmt.Printf("Files affected: %d\n", impact.TotalImpact)
//
// # Related Packages
//
//   - pkg/schema: Uses Visible to enforce import requirements
//   - pkg/loader: Builds the file set the graph is made from
package dependencies
