package schema

import "github.com/platinummonkey/protolink/pkg/dependencies"

// Schema is a set of linked files. It is immutable and safe for concurrent
// use.
type Schema struct {
	files    []*ProtoFile
	byPath   map[string]*ProtoFile
	types    map[string]Type
	services map[string]*Service
	imports  *dependencies.ImportGraph
}

func newSchema(g *graph) *Schema {
	return &Schema{
		files:    g.files,
		byPath:   g.byPath,
		types:    g.types,
		services: g.services,
		imports:  g.imports,
	}
}

// ProtoFiles returns the files in the order they were linked.
func (s *Schema) ProtoFiles() []*ProtoFile {
	return append([]*ProtoFile(nil), s.files...)
}

// ProtoFile returns the file with the given import path, or nil.
func (s *Schema) ProtoFile(path string) *ProtoFile {
	return s.byPath[path]
}

// GetType returns the message or enum with the given qualified name, or
// nil.
func (s *Schema) GetType(name string) Type {
	t, ok := s.types[name]
	if !ok {
		return nil
	}
	return t
}

// GetMessage returns the message with the given qualified name, or nil.
func (s *Schema) GetMessage(name string) *MessageType {
	m, _ := s.types[name].(*MessageType)
	return m
}

// GetEnum returns the enum with the given qualified name, or nil.
func (s *Schema) GetEnum(name string) *EnumType {
	e, _ := s.types[name].(*EnumType)
	return e
}

// GetService returns the service with the given qualified name, or nil.
func (s *Schema) GetService(name string) *Service {
	return s.services[name]
}

// Types returns every message and enum, nested types included, in file
// order and then declaration order.
func (s *Schema) Types() []Type {
	var out []Type
	var walk func(types []Type)
	walk = func(types []Type) {
		for _, t := range types {
			out = append(out, t)
			walk(t.NestedTypes())
		}
	}
	for _, f := range s.files {
		walk(f.types)
	}
	return out
}

// Services returns every service in file order.
func (s *Schema) Services() []*Service {
	var out []*Service
	for _, f := range s.files {
		out = append(out, f.services...)
	}
	return out
}

// Package returns the files declaring package name, in link order. The
// empty name selects files without a package statement.
func (s *Schema) Package(name string) []*ProtoFile {
	var out []*ProtoFile
	for _, f := range s.files {
		if f.packageName == name {
			out = append(out, f)
		}
	}
	return out
}

// VisibleFiles returns the paths whose declarations the file at path may
// reference: itself, its direct imports and everything reachable from
// those through public imports.
func (s *Schema) VisibleFiles(path string) []string {
	return s.imports.Visible(path)
}

// ImportGraph returns the import graph of the linked files.
func (s *Schema) ImportGraph() *dependencies.ImportGraph {
	return s.imports
}
