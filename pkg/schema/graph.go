package schema

import (
	"sort"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
	"github.com/platinummonkey/protolink/pkg/dependencies"
)

// graph is the declaration index of one link. It is fully built before
// any reference is resolved and only the resolved types of declarations
// change afterwards.
type graph struct {
	files      []*ProtoFile
	byPath     map[string]*ProtoFile
	types      map[string]Type
	services   map[string]*Service
	declaredIn map[string]*ProtoFile
	extends    []*Extend
	imports    *dependencies.ImportGraph
	visible    map[*ProtoFile]map[string]bool

	decls     map[string][]declaration
	declOrder []string
}

type declaration struct {
	file     *ProtoFile
	location Location
}

// findGroup returns a fatal error for the first group field in files.
func findGroup(files []*protobuf.RootNode) *FatalError {
	for _, root := range files {
		var first *protobuf.FieldNode
		consider := func(fields []*protobuf.FieldNode) {
			for _, f := range fields {
				if f.Group && (first == nil || before(f.Pos, first.Pos)) {
					first = f
				}
			}
		}
		var walk func(messages []*protobuf.MessageNode)
		walk = func(messages []*protobuf.MessageNode) {
			for _, m := range messages {
				consider(m.Fields)
				for _, o := range m.OneOfs {
					consider(o.Fields)
				}
				for _, e := range m.Extends {
					consider(e.Fields)
				}
				walk(m.Nested)
			}
		}
		walk(root.Messages)
		for _, e := range root.Extends {
			consider(e.Fields)
		}
		if first != nil {
			return &FatalError{Location: root.Location(first.Pos), Message: "'group' is not supported"}
		}
	}
	return nil
}

func before(a, b protobuf.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func sortByPosition(fields []*Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i].location, fields[j].location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// buildGraph creates the declarations of every file and indexes them.
// Duplicate names and unknown imports are reported to s.
func buildGraph(files []*protobuf.RootNode, s *sink) *graph {
	g := &graph{
		byPath:     make(map[string]*ProtoFile, len(files)),
		types:      make(map[string]Type),
		services:   make(map[string]*Service),
		declaredIn: make(map[string]*ProtoFile),
		decls:      make(map[string][]declaration),
		imports:    dependencies.FromFiles(files),
		visible:    make(map[*ProtoFile]map[string]bool, len(files)),
	}

	for i, root := range files {
		f := g.buildFile(i, root)
		g.files = append(g.files, f)
		if _, ok := g.byPath[f.Path()]; !ok {
			g.byPath[f.Path()] = f
		}
	}

	for _, f := range g.files {
		visible := make(map[string]bool)
		for _, path := range g.imports.Visible(f.Path()) {
			visible[path] = true
		}
		g.visible[f] = visible
	}

	g.reportDuplicates(s)
	g.reportUnknownImports(s)
	return g
}

func (g *graph) isVisible(from, decl *ProtoFile) bool {
	return g.visible[from][decl.Path()]
}

func (g *graph) register(name string, file *ProtoFile, loc Location) bool {
	if _, ok := g.decls[name]; !ok {
		g.declOrder = append(g.declOrder, name)
	}
	g.decls[name] = append(g.decls[name], declaration{file: file, location: loc})
	return len(g.decls[name]) == 1
}

func (g *graph) buildFile(index int, root *protobuf.RootNode) *ProtoFile {
	f := &ProtoFile{
		index:       index,
		location:    root.Location(protobuf.Position{Line: 1, Column: 1}),
		packageName: root.PackageName(),
		optionNodes: root.Options,
	}
	if root.Syntax != nil {
		f.syntax = root.Syntax.Value
		f.edition = root.Syntax.Edition
	}
	for _, imp := range root.Imports {
		f.imports = append(f.imports, Import{
			Path:     imp.Path,
			Public:   imp.Public,
			Weak:     imp.Weak,
			Location: root.Location(imp.Pos),
		})
	}

	f.types = g.buildTypes(f, f.packageName, root.Messages, root.Enums)
	for _, e := range root.Extends {
		f.extends = append(f.extends, g.buildExtend(f, f.packageName, e))
	}
	sort.SliceStable(f.extends, func(i, j int) bool {
		a, b := f.extends[i].location, f.extends[j].location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	g.extends = append(g.extends, f.extends...)

	for _, svc := range root.Services {
		f.services = append(f.services, g.buildService(f, svc))
	}
	return f
}

// buildTypes builds messages and enums declared in scope, interleaved in
// declaration order.
func (g *graph) buildTypes(f *ProtoFile, scope string, messages []*protobuf.MessageNode, enums []*protobuf.EnumNode) []Type {
	type positioned struct {
		pos protobuf.Position
		t   Type
	}
	all := make([]positioned, 0, len(messages)+len(enums))
	for _, m := range messages {
		all = append(all, positioned{pos: m.Pos, t: g.buildMessage(f, scope, m)})
	}
	for _, e := range enums {
		all = append(all, positioned{pos: e.Pos, t: g.buildEnum(f, scope, e)})
	}
	sort.SliceStable(all, func(i, j int) bool { return before(all[i].pos, all[j].pos) })

	types := make([]Type, 0, len(all))
	for _, p := range all {
		types = append(types, p.t)
	}
	return types
}

func (g *graph) buildMessage(f *ProtoFile, scope string, node *protobuf.MessageNode) *MessageType {
	name := qualify(scope, node.Name)
	m := &MessageType{
		protoType:     ProtoTypeOf(name),
		location:      f.location.At(node.Pos),
		documentation: documentation(node.Comments),
		optionNodes:   node.Options,
		file:          f,
	}
	if g.register(name, f, m.location) {
		g.types[name] = m
		g.declaredIn[name] = f
	}

	for _, fn := range node.Fields {
		m.fields = append(m.fields, newField(f, name, fn, false))
	}
	for _, on := range node.OneOfs {
		o := &OneOf{
			name:          on.Name,
			location:      f.location.At(on.Pos),
			documentation: documentation(on.Comments),
			optionNodes:   on.Options,
		}
		for _, fn := range on.Fields {
			o.fields = append(o.fields, newField(f, name, fn, false))
		}
		m.oneOfs = append(m.oneOfs, o)
	}
	for _, r := range node.Reserved {
		m.reserved = append(m.reserved, &Reserved{
			Location: f.location.At(r.Pos),
			Ranges:   r.Ranges,
			Names:    r.Names,
		})
	}
	for _, e := range node.Extensions {
		m.extensionRanges = append(m.extensionRanges, &ExtensionRange{
			Location: f.location.At(e.Pos),
			Ranges:   e.Ranges,
		})
	}

	m.nestedTypes = g.buildTypes(f, name, node.Nested, node.Enums)
	for _, e := range node.Extends {
		f.extends = append(f.extends, g.buildExtend(f, name, e))
	}
	return m
}

func (g *graph) buildEnum(f *ProtoFile, scope string, node *protobuf.EnumNode) *EnumType {
	name := qualify(scope, node.Name)
	e := &EnumType{
		protoType:     ProtoTypeOf(name),
		location:      f.location.At(node.Pos),
		documentation: documentation(node.Comments),
		optionNodes:   node.Options,
		file:          f,
	}
	if g.register(name, f, e.location) {
		g.types[name] = e
		g.declaredIn[name] = f
	}

	for _, v := range node.Values {
		e.constants = append(e.constants, &EnumConstant{
			Name:          v.Name,
			Tag:           v.Number,
			Location:      f.location.At(v.Pos),
			Documentation: documentation(v.Comments),
			optionNodes:   v.Options,
		})
	}
	for _, r := range node.Reserved {
		e.reserved = append(e.reserved, &Reserved{
			Location: f.location.At(r.Pos),
			Ranges:   r.Ranges,
			Names:    r.Names,
		})
	}
	return e
}

func (g *graph) buildExtend(f *ProtoFile, scope string, node *protobuf.ExtendNode) *Extend {
	e := &Extend{
		rawType:       node.Type,
		location:      f.location.At(node.Pos),
		documentation: documentation(node.Comments),
		packageName:   f.packageName,
		file:          f,
		scope:         scope,
	}
	for _, fn := range node.Fields {
		e.fields = append(e.fields, newField(f, scope, fn, true))
	}
	return e
}

func (g *graph) buildService(f *ProtoFile, node *protobuf.ServiceNode) *Service {
	name := qualify(f.packageName, node.Name)
	s := &Service{
		protoType:     ProtoTypeOf(name),
		location:      f.location.At(node.Pos),
		documentation: documentation(node.Comments),
		optionNodes:   node.Options,
		file:          f,
	}
	if g.register(name, f, s.location) {
		g.services[name] = s
	}
	for _, rn := range node.RPCs {
		s.rpcs = append(s.rpcs, &Rpc{
			name:              rn.Name,
			location:          f.location.At(rn.Pos),
			documentation:     documentation(rn.Comments),
			rawRequestType:    rn.InputType,
			rawResponseType:   rn.OutputType,
			requestStreaming:  rn.ClientStreaming,
			responseStreaming: rn.ServerStreaming,
			optionNodes:       rn.Options,
		})
	}
	return s
}

func newField(f *ProtoFile, scope string, node *protobuf.FieldNode, extension bool) *Field {
	fld := &Field{
		name:          node.Name,
		tag:           node.Number,
		rawType:       node.Type,
		mapKey:        node.MapKeyType,
		mapValue:      node.MapValueType,
		location:      f.location.At(node.Pos),
		documentation: documentation(node.Comments),
		packageName:   f.packageName,
		extension:     extension,
		file:          f,
		scope:         scope,
	}
	switch {
	case node.Repeated:
		fld.label = LabelRepeated
	case node.Required:
		fld.label = LabelRequired
	case node.Optional:
		fld.label = LabelOptional
	}
	for _, opt := range node.Options {
		if isDefaultOption(opt) {
			fld.defaultValue = opt.Value.String()
			fld.hasDefault = true
			continue
		}
		fld.optionNodes = append(fld.optionNodes, opt)
	}
	return fld
}

func isDefaultOption(opt *protobuf.OptionNode) bool {
	return len(opt.Parts) == 1 && !opt.Parts[0].Extension && opt.Parts[0].Name == "default"
}

// reportDuplicates reports every qualified name declared more than once.
// The diagnostic is filed under the file of the second declaration.
func (g *graph) reportDuplicates(s *sink) {
	for _, name := range g.declOrder {
		decls := g.decls[name]
		if len(decls) < 2 {
			continue
		}
		entries := make([]Entry, 0, len(decls))
		for _, d := range decls {
			entries = append(entries, Entry{Name: name, Location: d.location})
		}
		r := reporter{sink: s, file: decls[1].file.index, pass: passBuild}
		r.entries(RuleDuplicateType, entries, "multiple types share name %s:", name)
	}
}

// reportUnknownImports reports imports that name no linked file.
func (g *graph) reportUnknownImports(s *sink) {
	for _, f := range g.files {
		r := reporter{sink: s, file: f.index, pass: passBuild}
		for _, imp := range f.imports {
			if _, ok := g.byPath[imp.Path]; ok {
				continue
			}
			r.with("import", imp.Path, locPtr(imp.Location)).errorf(RuleUnknownImport, "unable to find %s", imp.Path)
		}
	}
}
