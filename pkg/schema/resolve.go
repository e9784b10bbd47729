package schema

import (
	"strings"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

// linkState is shared by every pass of one link. The graph is read-only
// once extension fields are attached, so files can be linked concurrently;
// each declaration is written only by the goroutine linking its file.
type linkState struct {
	g    *graph
	sink *sink
}

func (st *linkState) reporter(f *ProtoFile, pass int) reporter {
	return reporter{sink: st.sink, file: f.index, pass: pass}
}

// lookup finds the declared type a reference names from scope. A leading
// dot makes the reference fully qualified. Otherwise the reference is
// tried against scope and each enclosing scope up to the root; the
// innermost match wins.
func (st *linkState) lookup(raw, scope string) (string, bool) {
	if strings.HasPrefix(raw, ".") {
		name := raw[1:]
		_, ok := st.g.types[name]
		return name, ok
	}
	for s := scope; ; s = parentScope(s) {
		candidate := qualify(s, raw)
		if _, ok := st.g.types[candidate]; ok {
			return candidate, true
		}
		if s == "" {
			return "", false
		}
	}
}

// checkVisible reports name when the file declaring it is not imported by
// from, directly or through public imports.
func (st *linkState) checkVisible(from *ProtoFile, name string, r reporter) {
	decl := st.g.declaredIn[name]
	if decl == nil || st.g.isVisible(from, decl) {
		return
	}
	r.errorf(RuleImport, "%s needs to import %s", from.Path(), decl.Path())
}

// resolveType resolves a scalar or declared type reference. It returns the
// zero type when nothing matched. Types that resolve but are not visible
// are reported and still returned.
func (st *linkState) resolveType(raw string, from *ProtoFile, scope string, r reporter) ProtoType {
	if t, ok := scalarTypes[raw]; ok {
		return t
	}
	name, ok := st.lookup(raw, scope)
	if !ok {
		r.errorf(RuleUnresolved, "unable to resolve %s", raw)
		return ProtoType{}
	}
	st.checkVisible(from, name, r)
	return ProtoTypeOf(name)
}

// resolveMessageType resolves a reference that must name a message.
func (st *linkState) resolveMessageType(raw string, from *ProtoFile, scope string, r reporter) ProtoType {
	t := st.resolveType(raw, from, scope, r)
	if t.IsZero() {
		return t
	}
	if _, ok := st.g.types[t.String()].(*MessageType); !ok {
		r.errorf(RuleTargetKind, "expected a message but was %s", t)
		return ProtoType{}
	}
	return t
}

func (st *linkState) resolveFieldType(f *Field, r reporter) {
	if f.mapKey == "" {
		f.protoType = st.resolveType(f.rawType, f.file, f.scope, r)
		return
	}

	key, ok := scalarTypes[f.mapKey]
	if !ok || !mapKeyTypes[key] {
		r.errorf(RuleMapKey, "invalid map key type: %s", f.mapKey)
		ok = false
	}
	value := st.resolveType(f.mapValue, f.file, f.scope, r)
	if ok && !value.IsZero() {
		f.protoType = MapType(key, value)
	}
}

// linkExtendTarget resolves the message an extend block extends. Blocks
// whose target does not resolve keep the zero type and their fields are
// linked without a message.
func (st *linkState) linkExtendTarget(e *Extend) {
	r := st.reporter(e.file, passLink).with("extend", "", locPtr(e.location))
	if t, ok := scalarTypes[e.rawType]; ok {
		r.errorf(RuleTargetKind, "expected a message but was %s", t)
		return
	}
	name, ok := st.lookup(e.rawType, e.scope)
	if !ok {
		r.errorf(RuleUnresolved, "unable to resolve %s", e.rawType)
		return
	}
	if _, ok := st.g.types[name].(*MessageType); !ok {
		r.errorf(RuleTargetKind, "expected a message but was %s", name)
		return
	}
	e.protoType = ProtoTypeOf(name)
	st.checkVisible(e.file, name, st.reporter(e.file, passLink).with("extend", name, locPtr(e.location)))
}

// attachExtensions adds the fields of every resolved extend block to its
// target message, in file order.
func (st *linkState) attachExtensions() {
	for _, e := range st.g.extends {
		if e.protoType.IsZero() {
			continue
		}
		m := st.g.types[e.protoType.String()].(*MessageType)
		m.extensionFields = append(m.extensionFields, e.fields...)
	}
}

func (st *linkState) linkFile(f *ProtoFile) {
	r := st.reporter(f, passLink)
	for _, t := range f.types {
		st.linkType(t, r)
	}
	for _, e := range f.extends {
		if !e.protoType.IsZero() {
			continue
		}
		er := r.with("extend", "", locPtr(e.location))
		for _, fld := range e.fields {
			st.linkField(fld, er)
		}
	}
	for _, s := range f.services {
		st.linkService(s, r)
	}
	f.options = st.buildOptions(FileOptions, f.optionNodes, r.with("file", f.location.File(), nil))
}

func (st *linkState) linkType(t Type, r reporter) {
	switch t := t.(type) {
	case *MessageType:
		mr := r.with("message", t.protoType.String(), locPtr(t.location))
		for _, fld := range t.FieldsAndOneOfFields() {
			st.linkField(fld, mr)
		}
		for _, o := range t.oneOfs {
			o.options = st.buildOptions(OneofOptions, o.optionNodes, mr.with("oneof", o.name, locPtr(o.location)))
		}
		t.options = st.buildOptions(MessageOptions, t.optionNodes, mr)
		// Extension fields are declared elsewhere but are checked as
		// members of this message.
		for _, fld := range t.extensionFields {
			st.linkField(fld, mr)
		}
		for _, nested := range t.nestedTypes {
			st.linkType(nested, mr)
		}

	case *EnumType:
		er := r.with("enum", t.protoType.String(), locPtr(t.location))
		t.options = st.buildOptions(EnumOptions, t.optionNodes, er)
		for _, c := range t.constants {
			c.Options = st.buildOptions(EnumValueOptions, c.optionNodes, er.with("constant", c.Name, locPtr(c.Location)))
		}
	}
}

func (st *linkState) linkField(f *Field, r reporter) {
	fr := r.with("field", f.name, locPtr(f.location))
	st.resolveFieldType(f, fr)
	f.options = st.buildOptions(FieldOptions, f.optionNodes, fr)
}

func (st *linkState) linkService(s *Service, r reporter) {
	sr := r.with("service", s.protoType.String(), locPtr(s.location))
	scope := s.file.packageName
	for _, rpc := range s.rpcs {
		rr := sr.with("rpc", rpc.name, locPtr(rpc.location))
		rpc.requestType = st.resolveMessageType(rpc.rawRequestType, s.file, scope, rr)
		rpc.responseType = st.resolveMessageType(rpc.rawResponseType, s.file, scope, rr)
		rpc.options = st.buildOptions(MethodOptions, rpc.optionNodes, rr)
	}
	s.options = st.buildOptions(ServiceOptions, s.optionNodes, sr)
}

// buildOptions merges option statements into the values of optionsType.
// Setting a member twice to different values is reported unless the member
// is repeated.
func (st *linkState) buildOptions(optionsType ProtoType, nodes []*protobuf.OptionNode, r reporter) *Options {
	if len(nodes) == 0 {
		return nil
	}
	b := optionsBuilder{
		options:  newOptions(optionsType),
		repeated: st.repeatedMember(optionsType),
		conflict: func(existing, value any) {
			r.errorf(RuleOptions, "conflicting options: %s, %s", formatValue(existing), formatValue(value))
		},
	}
	for _, n := range nodes {
		b.add(n)
	}
	return b.options
}

// repeatedMember returns a predicate reporting whether a member of
// optionsType is a repeated field. It is nil when optionsType is not
// declared in the linked files.
func (st *linkState) repeatedMember(optionsType ProtoType) func(string) bool {
	m, ok := st.g.types[optionsType.String()].(*MessageType)
	if !ok {
		return nil
	}
	return func(name string) bool {
		if f := m.Field(name); f != nil {
			return f.IsRepeated()
		}
		for _, f := range m.extensionFields {
			if f.QualifiedName() == name || f.name == name {
				return f.IsRepeated()
			}
		}
		return false
	}
}
