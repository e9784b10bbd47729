package schema

import (
	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

const (
	reservedTagStart = 19000
	reservedTagEnd   = 19999
)

// IsValidTag reports whether tag may be used as a field number: it is in
// [1, MaxFieldNumber] and outside the range reserved for the protobuf
// implementation.
func IsValidTag(tag int) bool {
	if tag < 1 || tag > protobuf.MaxFieldNumber {
		return false
	}
	return tag < reservedTagStart || tag > reservedTagEnd
}

func (st *linkState) validateFile(f *ProtoFile) {
	r := st.reporter(f, passValidate)
	st.validateEnumConstantNames(f.types, r.with("file", f.location.File(), nil))
	for _, t := range f.types {
		st.validateType(t, r)
	}
	for _, e := range f.extends {
		if !e.protoType.IsZero() {
			continue
		}
		er := r.with("extend", "", locPtr(e.location))
		for _, fld := range e.fields {
			st.validateField(fld, er)
		}
	}
}

func (st *linkState) validateType(t Type, r reporter) {
	switch t := t.(type) {
	case *MessageType:
		st.validateMessage(t, r)
	case *EnumType:
		st.validateEnum(t, r)
	}
}

func (st *linkState) validateMessage(m *MessageType, r reporter) {
	mr := r.with("message", m.protoType.String(), locPtr(m.location))

	fields := m.FieldsAndOneOfFields()
	st.validateFields(fields, m.reserved, mr)
	st.validateEnumConstantNames(m.nestedTypes, mr)
	for _, fld := range fields {
		st.validateField(fld, mr)
	}

	// Extension fields only collide with extensions of the same package.
	var packages []string
	byPackage := make(map[string][]*Field)
	for _, fld := range m.extensionFields {
		if _, ok := byPackage[fld.packageName]; !ok {
			packages = append(packages, fld.packageName)
		}
		byPackage[fld.packageName] = append(byPackage[fld.packageName], fld)
	}
	for _, pkg := range packages {
		group := byPackage[pkg]
		st.validateFields(group, m.reserved, mr)
		for _, fld := range group {
			st.validateField(fld, mr)
		}
	}

	for _, nested := range m.nestedTypes {
		st.validateType(nested, mr)
	}

	for _, ext := range m.extensionRanges {
		xr := mr.with("extensions", "", locPtr(ext.Location))
		for _, rng := range ext.Ranges {
			if !IsValidTag(rng.Start) || !IsValidTag(rng.End) {
				xr.errorf(RuleTagRange, "tags are out of range: %d to %d", rng.Start, rng.End)
			}
		}
	}
	for _, res := range m.reserved {
		rr := mr.with("reserved", "", locPtr(res.Location))
		for _, rng := range res.Ranges {
			if !IsValidTag(rng.Start) || !IsValidTag(rng.End) {
				rr.errorf(RuleTagRange, "reserved tags are out of range: %d to %d", rng.Start, rng.End)
			}
		}
	}
}

// validateFields checks the tags and names of fields that share a
// namespace.
func (st *linkState) validateFields(fields []*Field, reserved []*Reserved, r reporter) {
	var tags []int
	byTag := make(map[int][]*Field)
	var names []string
	byName := make(map[string][]*Field)

	for _, fld := range fields {
		fr := r.with("field", fld.name, locPtr(fld.location))
		if !IsValidTag(fld.tag) {
			fr.errorf(RuleTagRange, "tag is out of range: %d", fld.tag)
		}
		for _, res := range reserved {
			if res.MatchesTag(fld.tag) {
				fr.errorf(RuleReserved, "tag %d is reserved (%s)", fld.tag, res.Location)
			}
			// Reserved names only cover the message's own fields.
			if !fld.extension && res.MatchesName(fld.name) {
				fr.errorf(RuleReserved, "name '%s' is reserved (%s)", fld.name, res.Location)
			}
		}

		if _, ok := byTag[fld.tag]; !ok {
			tags = append(tags, fld.tag)
		}
		byTag[fld.tag] = append(byTag[fld.tag], fld)

		name := fld.QualifiedName()
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], fld)
	}

	for _, tag := range tags {
		if dups := byTag[tag]; len(dups) > 1 {
			r.entries(RuleUniqueTag, fieldEntries(dups), "multiple fields share tag %d:", tag)
		}
	}
	for _, name := range names {
		if dups := byName[name]; len(dups) > 1 {
			r.entries(RuleUniqueName, fieldEntries(dups), "multiple fields share name %s:", dups[0].name)
		}
	}
}

func fieldEntries(fields []*Field) []Entry {
	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, Entry{Name: f.name, Location: f.location})
	}
	return entries
}

func (st *linkState) validateField(f *Field, r reporter) {
	fr := r.with("field", f.name, locPtr(f.location))
	if f.IsPacked() && !f.protoType.IsZero() && !st.isPackable(f.protoType) {
		fr.errorf(RulePacked, "packed=true not permitted on %s", f.protoType)
	}
	if f.extension && f.IsRequired() {
		fr.errorf(RuleLabel, "extension fields cannot be required")
	}
}

// isPackable reports whether repeated values of t can use the packed
// encoding: numeric scalars, bools and enums.
func (st *linkState) isPackable(t ProtoType) bool {
	if t == TypeString || t == TypeBytes || t.IsMap() {
		return false
	}
	if t.IsScalar() {
		return true
	}
	_, ok := st.g.types[t.String()].(*EnumType)
	return ok
}

// validateEnumConstantNames reports constant names shared by enums declared
// in the same scope. Enum constants are siblings of their enum, so two
// enums in one scope cannot both declare the same name.
func (st *linkState) validateEnumConstantNames(types []Type, r reporter) {
	var names []string
	byName := make(map[string][]Entry)
	for _, t := range types {
		e, ok := t.(*EnumType)
		if !ok {
			continue
		}
		for _, c := range e.constants {
			if _, ok := byName[c.Name]; !ok {
				names = append(names, c.Name)
			}
			byName[c.Name] = append(byName[c.Name], Entry{
				Name:     qualify(e.protoType.String(), c.Name),
				Location: c.Location,
			})
		}
	}
	for _, name := range names {
		if entries := byName[name]; len(entries) > 1 {
			r.entries(RuleEnumConstant, entries, "multiple enums share constant %s:", name)
		}
	}
}

func (st *linkState) validateEnum(e *EnumType, r reporter) {
	er := r.with("enum", e.protoType.String(), locPtr(e.location))

	if !e.AllowAlias() {
		var tags []int
		byTag := make(map[int][]Entry)
		for _, c := range e.constants {
			if _, ok := byTag[c.Tag]; !ok {
				tags = append(tags, c.Tag)
			}
			byTag[c.Tag] = append(byTag[c.Tag], Entry{Name: c.Name, Location: c.Location})
		}
		for _, tag := range tags {
			if entries := byTag[tag]; len(entries) > 1 {
				er.entries(RuleEnumAlias, entries, "multiple enum constants share tag %d:", tag)
			}
		}
	}

	for _, c := range e.constants {
		cr := er.with("constant", c.Name, locPtr(c.Location))
		for _, res := range e.reserved {
			if res.MatchesTag(c.Tag) {
				cr.errorf(RuleReserved, "tag %d is reserved (%s)", c.Tag, res.Location)
			}
			if res.MatchesName(c.Name) {
				cr.errorf(RuleReserved, "name '%s' is reserved (%s)", c.Name, res.Location)
			}
		}
	}
}
