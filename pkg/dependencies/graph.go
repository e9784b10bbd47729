package dependencies

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

// ErrCycle is returned by TopologicalSort when imports form a cycle.
var ErrCycle = errors.New("circular import detected")

// Import is a single import edge.
type Import struct {
	Path   string `json:"path"`
	Public bool   `json:"public,omitempty"`
	Weak   bool   `json:"weak,omitempty"`
}

// ImportGraph is the import graph of a set of proto files, keyed by the
// path each file is imported by. It is built before use and is safe for
// concurrent reads once built.
type ImportGraph struct {
	files []string
	edges map[string][]Import
}

// NewImportGraph creates a new, empty import graph
func NewImportGraph() *ImportGraph {
	return &ImportGraph{
		edges: make(map[string][]Import),
	}
}

// FromFiles builds the graph for parsed files, in the order given.
func FromFiles(files []*protobuf.RootNode) *ImportGraph {
	g := NewImportGraph()
	for _, f := range files {
		imports := make([]Import, 0, len(f.Imports))
		for _, imp := range f.Imports {
			imports = append(imports, Import{Path: imp.Path, Public: imp.Public, Weak: imp.Weak})
		}
		g.AddFile(f.Path, imports)
	}
	return g
}

// FromDescriptorSet builds the graph of a stored descriptor set, in file
// order.
func FromDescriptorSet(set *descriptorpb.FileDescriptorSet) *ImportGraph {
	g := NewImportGraph()
	for _, fd := range set.GetFile() {
		public := make(map[int32]bool, len(fd.GetPublicDependency()))
		for _, i := range fd.GetPublicDependency() {
			public[i] = true
		}
		weak := make(map[int32]bool, len(fd.GetWeakDependency()))
		for _, i := range fd.GetWeakDependency() {
			weak[i] = true
		}
		imports := make([]Import, 0, len(fd.GetDependency()))
		for i, dep := range fd.GetDependency() {
			imports = append(imports, Import{Path: dep, Public: public[int32(i)], Weak: weak[int32(i)]})
		}
		g.AddFile(fd.GetName(), imports)
	}
	return g
}

// AddFile adds a file and its imports. Adding a path twice replaces its
// imports but keeps its original position.
func (g *ImportGraph) AddFile(path string, imports []Import) {
	if _, ok := g.edges[path]; !ok {
		g.files = append(g.files, path)
	}
	g.edges[path] = append([]Import(nil), imports...)
}

// Has reports whether path was added to the graph.
func (g *ImportGraph) Has(path string) bool {
	_, ok := g.edges[path]
	return ok
}

// Files returns every file in the order it was added.
func (g *ImportGraph) Files() []string {
	return append([]string(nil), g.files...)
}

// Imports returns the direct imports of path in declaration order.
func (g *ImportGraph) Imports(path string) []Import {
	return g.edges[path]
}

// UnknownImports returns the imports of path that name no file in the graph.
func (g *ImportGraph) UnknownImports(path string) []string {
	var missing []string
	for _, imp := range g.edges[path] {
		if !g.Has(imp.Path) {
			missing = append(missing, imp.Path)
		}
	}
	return missing
}

// Dependents returns the files that import path directly, sorted.
func (g *ImportGraph) Dependents(path string) []string {
	dependents := make([]string, 0)
	for _, file := range g.files {
		for _, imp := range g.edges[file] {
			if imp.Path == path {
				dependents = append(dependents, file)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// TransitiveImports returns every file reachable from path along any import
// edge, in depth-first discovery order. path itself is not included.
func (g *ImportGraph) TransitiveImports(path string) []string {
	visited := map[string]bool{path: true}
	result := make([]string, 0)

	var traverse func(string)
	traverse = func(file string) {
		for _, imp := range g.edges[file] {
			if visited[imp.Path] {
				continue
			}
			visited[imp.Path] = true
			result = append(result, imp.Path)
			traverse(imp.Path)
		}
	}

	traverse(path)
	return result
}

// Visible returns the files whose declarations path may reference: path
// itself, each file it imports, and every file reachable from an imported
// file through public imports only. Plain imports are not followed past the
// first hop.
func (g *ImportGraph) Visible(path string) []string {
	visited := map[string]bool{path: true}
	result := []string{path}

	var followPublic func(string)
	followPublic = func(file string) {
		for _, imp := range g.edges[file] {
			if !imp.Public || visited[imp.Path] {
				continue
			}
			visited[imp.Path] = true
			result = append(result, imp.Path)
			followPublic(imp.Path)
		}
	}

	for _, imp := range g.edges[path] {
		if !visited[imp.Path] {
			visited[imp.Path] = true
			result = append(result, imp.Path)
		}
		followPublic(imp.Path)
	}
	return result
}

// DetectCycles returns every distinct import cycle. Each cycle starts and
// ends with the same file, rotated so that its smallest path comes first.
func (g *ImportGraph) DetectCycles() [][]string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)
	stack := make([]string, 0)
	seen := make(map[string]bool)
	cycles := make([][]string, 0)

	var visit func(string)
	visit = func(file string) {
		state[file] = inProgress
		stack = append(stack, file)

		for _, imp := range g.edges[file] {
			if !g.Has(imp.Path) {
				continue
			}
			switch state[imp.Path] {
			case unvisited:
				visit(imp.Path)
			case inProgress:
				start := indexOf(stack, imp.Path)
				cycle := canonicalCycle(stack[start:])
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[file] = done
	}

	for _, file := range g.files {
		if state[file] == unvisited {
			visit(file)
		}
	}
	return cycles
}

// TopologicalSort orders every file after the files it imports. Ties keep
// insertion order. Imports naming unknown files are ignored.
func (g *ImportGraph) TopologicalSort() ([]string, error) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	result := make([]string, 0, len(g.files))

	var visit func(string) error
	visit = func(file string) error {
		if recStack[file] {
			return fmt.Errorf("%w at %s", ErrCycle, file)
		}
		if visited[file] {
			return nil
		}

		visited[file] = true
		recStack[file] = true

		for _, imp := range g.edges[file] {
			if !g.Has(imp.Path) {
				continue
			}
			if err := visit(imp.Path); err != nil {
				return err
			}
		}

		recStack[file] = false
		result = append(result, file)
		return nil
	}

	for _, file := range g.files {
		if err := visit(file); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ImpactAnalysis returns the files affected by a change to path
func (g *ImportGraph) ImpactAnalysis(path string) *ImpactAnalysis {
	direct := g.Dependents(path)

	visited := map[string]bool{path: true}
	for _, dep := range direct {
		visited[dep] = true
	}
	transitive := make([]string, 0)

	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(file) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			transitive = append(transitive, dep)
			queue = append(queue, dep)
		}
	}

	return &ImpactAnalysis{
		File:                 path,
		DirectDependents:     direct,
		TransitiveDependents: transitive,
		TotalImpact:          len(direct) + len(transitive),
	}
}

// ImpactAnalysis represents the impact of changes
type ImpactAnalysis struct {
	File                 string   `json:"file"`
	DirectDependents     []string `json:"direct_dependents"`
	TransitiveDependents []string `json:"transitive_dependents"`
	TotalImpact          int      `json:"total_impact"`
}

func indexOf(items []string, item string) int {
	for i, v := range items {
		if v == item {
			return i
		}
	}
	return -1
}

// canonicalCycle rotates a cycle so it starts at its smallest member and
// closes it by repeating that member at the end.
func canonicalCycle(members []string) []string {
	minIdx := 0
	for i, m := range members {
		if m < members[minIdx] {
			minIdx = i
		}
	}
	cycle := make([]string, 0, len(members)+1)
	cycle = append(cycle, members[minIdx:]...)
	cycle = append(cycle, members[:minIdx]...)
	return append(cycle, members[minIdx])
}
