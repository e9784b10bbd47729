package descriptor

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protolink/pkg/schema"
)

var scalarTypes = map[schema.ProtoType]descriptorpb.FieldDescriptorProto_Type{
	schema.TypeBool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	schema.TypeBytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	schema.TypeDouble:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	schema.TypeFloat:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	schema.TypeFixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	schema.TypeFixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	schema.TypeInt32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	schema.TypeInt64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	schema.TypeSFixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	schema.TypeSFixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	schema.TypeSInt32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	schema.TypeSInt64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	schema.TypeString:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	schema.TypeUInt32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	schema.TypeUInt64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
}

var editions = map[string]descriptorpb.Edition{
	"2023": descriptorpb.Edition_EDITION_2023,
	"2024": descriptorpb.Edition_EDITION_2024,
}

// Build converts s and validates the result.
func Build(s *schema.Schema) (*descriptorpb.FileDescriptorSet, error) {
	set := FromSchema(s)
	if err := Validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that set describes a consistent set of files.
func Validate(set *descriptorpb.FileDescriptorSet) error {
	if _, err := protodesc.NewFiles(set); err != nil {
		return fmt.Errorf("invalid descriptor set: %w", err)
	}
	return nil
}

// FromSchema converts every file of s to a FileDescriptorProto, in link
// order.
func FromSchema(s *schema.Schema) *descriptorpb.FileDescriptorSet {
	c := &converter{schema: s}
	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range s.ProtoFiles() {
		set.File = append(set.File, c.file(f))
	}
	return set
}

type converter struct {
	schema *schema.Schema
}

func (c *converter) file(f *schema.ProtoFile) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name: proto.String(f.Path()),
	}
	if f.PackageName() != "" {
		fd.Package = proto.String(f.PackageName())
	}
	switch {
	case f.IsEdition():
		fd.Syntax = proto.String("editions")
		if e, ok := editions[f.Syntax()]; ok {
			fd.Edition = e.Enum()
		}
	case f.Syntax() == "proto3":
		fd.Syntax = proto.String("proto3")
	}

	for i, imp := range f.Imports() {
		fd.Dependency = append(fd.Dependency, imp.Path)
		if imp.Public {
			fd.PublicDependency = append(fd.PublicDependency, int32(i))
		}
		if imp.Weak {
			fd.WeakDependency = append(fd.WeakDependency, int32(i))
		}
	}

	proto3 := f.Syntax() == "proto3" && !f.IsEdition()
	for _, t := range f.Types() {
		switch t := t.(type) {
		case *schema.MessageType:
			fd.MessageType = append(fd.MessageType, c.message(t, proto3))
		case *schema.EnumType:
			fd.EnumType = append(fd.EnumType, c.enum(t))
		}
	}

	for _, e := range f.Extends() {
		if e.Scope() != f.PackageName() {
			continue
		}
		fd.Extension = append(fd.Extension, c.extensions(e, proto3)...)
	}
	for _, s := range f.Services() {
		fd.Service = append(fd.Service, c.service(s))
	}
	fd.Options = fileOptions(f.Options())
	return fd
}

func (c *converter) message(m *schema.MessageType, proto3 bool) *descriptorpb.DescriptorProto {
	md := &descriptorpb.DescriptorProto{
		Name: proto.String(m.Name()),
	}

	oneofIndex := make(map[*schema.Field]int32)
	for i, o := range m.OneOfs() {
		md.OneofDecl = append(md.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o.Name())})
		for _, f := range o.Fields() {
			oneofIndex[f] = int32(i)
		}
	}

	var synthetic []*descriptorpb.OneofDescriptorProto
	for _, f := range m.FieldsAndOneOfFields() {
		fd := c.field(f, proto3)
		if idx, ok := oneofIndex[f]; ok {
			fd.OneofIndex = proto.Int32(idx)
		} else if proto3 && f.IsOptional() {
			fd.Proto3Optional = proto.Bool(true)
			fd.OneofIndex = proto.Int32(int32(len(m.OneOfs()) + len(synthetic)))
			synthetic = append(synthetic, &descriptorpb.OneofDescriptorProto{Name: proto.String("_" + f.Name())})
		}
		if f.Type().IsMap() {
			entry := c.mapEntry(f)
			md.NestedType = append(md.NestedType, entry)
			fd.TypeName = proto.String("." + m.Type().String() + "." + entry.GetName())
		}
		md.Field = append(md.Field, fd)
	}
	md.OneofDecl = append(md.OneofDecl, synthetic...)

	for _, t := range m.NestedTypes() {
		switch t := t.(type) {
		case *schema.MessageType:
			md.NestedType = append(md.NestedType, c.message(t, proto3))
		case *schema.EnumType:
			md.EnumType = append(md.EnumType, c.enum(t))
		}
	}

	for _, e := range c.nestedExtends(m) {
		md.Extension = append(md.Extension, c.extensions(e, proto3)...)
	}

	for _, r := range m.ExtensionRanges() {
		for _, rng := range r.Ranges {
			md.ExtensionRange = append(md.ExtensionRange, &descriptorpb.DescriptorProto_ExtensionRange{
				Start: proto.Int32(int32(rng.Start)),
				End:   proto.Int32(int32(rng.End) + 1),
			})
		}
	}
	for _, r := range m.Reserved() {
		for _, rng := range r.Ranges {
			md.ReservedRange = append(md.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
				Start: proto.Int32(int32(rng.Start)),
				End:   proto.Int32(int32(rng.End) + 1),
			})
		}
		md.ReservedName = append(md.ReservedName, r.Names...)
	}

	if opts := m.Options(); opts.Len() > 0 {
		mo := &descriptorpb.MessageOptions{}
		if v, ok := boolOption(opts, schema.MessageOptions, "deprecated"); ok {
			mo.Deprecated = proto.Bool(v)
		}
		md.Options = mo
	}
	return md
}

// nestedExtends returns the extend blocks declared directly in m.
func (c *converter) nestedExtends(m *schema.MessageType) []*schema.Extend {
	var out []*schema.Extend
	for _, f := range c.schema.ProtoFiles() {
		for _, e := range f.Extends() {
			if e.Scope() == m.Type().String() {
				out = append(out, e)
			}
		}
	}
	return out
}

func (c *converter) field(f *schema.Field, proto3 bool) *descriptorpb.FieldDescriptorProto {
	fd := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(f.Name()),
		Number:   proto.Int32(int32(f.Tag())),
		JsonName: proto.String(jsonName(f.Name())),
	}

	switch {
	case f.IsRepeated() || f.Type().IsMap():
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	case f.IsRequired():
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	default:
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	}

	if f.Type().IsMap() {
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	} else {
		c.setType(fd, f.Type())
	}

	if def, ok := f.Default(); ok && !proto3 {
		fd.DefaultValue = proto.String(def)
	}

	if opts := f.Options(); opts.Len() > 0 {
		fo := &descriptorpb.FieldOptions{}
		set := false
		if v, ok := boolOption(opts, schema.FieldOptions, "packed"); ok {
			fo.Packed = proto.Bool(v)
			set = true
		}
		if v, ok := boolOption(opts, schema.FieldOptions, "deprecated"); ok {
			fo.Deprecated = proto.Bool(v)
			set = true
		}
		if set {
			fd.Options = fo
		}
	}
	return fd
}

func (c *converter) setType(fd *descriptorpb.FieldDescriptorProto, t schema.ProtoType) {
	if st, ok := scalarTypes[t]; ok {
		fd.Type = st.Enum()
		return
	}
	fd.TypeName = proto.String("." + t.String())
	switch c.schema.GetType(t.String()).(type) {
	case *schema.EnumType:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
	default:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	}
}

// mapEntry synthesizes the nested entry message of a map field.
func (c *converter) mapEntry(f *schema.Field) *descriptorpb.DescriptorProto {
	key := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String("key"),
		Number:   proto.Int32(1),
		JsonName: proto.String("key"),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	c.setType(key, f.Type().KeyType())
	value := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String("value"),
		Number:   proto.Int32(2),
		JsonName: proto.String("value"),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	c.setType(value, f.Type().ValueType())

	return &descriptorpb.DescriptorProto{
		Name:    proto.String(mapEntryName(f.Name())),
		Field:   []*descriptorpb.FieldDescriptorProto{key, value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

func (c *converter) extensions(e *schema.Extend, proto3 bool) []*descriptorpb.FieldDescriptorProto {
	out := make([]*descriptorpb.FieldDescriptorProto, 0, len(e.Fields()))
	for _, f := range e.Fields() {
		fd := c.field(f, proto3)
		fd.JsonName = nil
		fd.Extendee = proto.String("." + e.Type().String())
		out = append(out, fd)
	}
	return out
}

func (c *converter) enum(e *schema.EnumType) *descriptorpb.EnumDescriptorProto {
	ed := &descriptorpb.EnumDescriptorProto{
		Name: proto.String(e.Name()),
	}
	for _, v := range e.Constants() {
		vd := &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(int32(v.Tag)),
		}
		if d, ok := boolOption(v.Options, schema.EnumValueOptions, "deprecated"); ok {
			vd.Options = &descriptorpb.EnumValueOptions{Deprecated: proto.Bool(d)}
		}
		ed.Value = append(ed.Value, vd)
	}
	for _, r := range e.Reserved() {
		for _, rng := range r.Ranges {
			ed.ReservedRange = append(ed.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
				Start: proto.Int32(int32(rng.Start)),
				End:   proto.Int32(int32(rng.End)),
			})
		}
		ed.ReservedName = append(ed.ReservedName, r.Names...)
	}

	if opts := e.Options(); opts.Len() > 0 {
		eo := &descriptorpb.EnumOptions{}
		if v, ok := boolOption(opts, schema.EnumOptions, "allow_alias"); ok {
			eo.AllowAlias = proto.Bool(v)
		}
		if v, ok := boolOption(opts, schema.EnumOptions, "deprecated"); ok {
			eo.Deprecated = proto.Bool(v)
		}
		ed.Options = eo
	}
	return ed
}

func (c *converter) service(s *schema.Service) *descriptorpb.ServiceDescriptorProto {
	sd := &descriptorpb.ServiceDescriptorProto{
		Name: proto.String(s.Name()),
	}
	for _, r := range s.Rpcs() {
		md := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(r.Name()),
			InputType:  proto.String("." + r.RequestType().String()),
			OutputType: proto.String("." + r.ResponseType().String()),
		}
		if r.RequestStreaming() {
			md.ClientStreaming = proto.Bool(true)
		}
		if r.ResponseStreaming() {
			md.ServerStreaming = proto.Bool(true)
		}
		if v, ok := boolOption(r.Options(), schema.MethodOptions, "deprecated"); ok {
			md.Options = &descriptorpb.MethodOptions{Deprecated: proto.Bool(v)}
		}
		sd.Method = append(sd.Method, md)
	}
	if v, ok := boolOption(s.Options(), schema.ServiceOptions, "deprecated"); ok {
		sd.Options = &descriptorpb.ServiceOptions{Deprecated: proto.Bool(v)}
	}
	return sd
}

func fileOptions(opts *schema.Options) *descriptorpb.FileOptions {
	if opts.Len() == 0 {
		return nil
	}
	fo := &descriptorpb.FileOptions{}
	set := false
	if v, ok := stringOption(opts, "go_package"); ok {
		fo.GoPackage = proto.String(v)
		set = true
	}
	if v, ok := stringOption(opts, "java_package"); ok {
		fo.JavaPackage = proto.String(v)
		set = true
	}
	if v, ok := stringOption(opts, "java_outer_classname"); ok {
		fo.JavaOuterClassname = proto.String(v)
		set = true
	}
	if v, ok := boolOption(opts, schema.FileOptions, "java_multiple_files"); ok {
		fo.JavaMultipleFiles = proto.Bool(v)
		set = true
	}
	if v, ok := boolOption(opts, schema.FileOptions, "deprecated"); ok {
		fo.Deprecated = proto.Bool(v)
		set = true
	}
	if !set {
		return nil
	}
	return fo
}

func boolOption(opts *schema.Options, optionsType schema.ProtoType, name string) (bool, bool) {
	v, ok := opts.Get(schema.ProtoMemberOf(optionsType, name)).(bool)
	return v, ok
}

func stringOption(opts *schema.Options, name string) (string, bool) {
	v, ok := opts.Get(schema.ProtoMemberOf(schema.FileOptions, name)).(string)
	return v, ok
}

// jsonName converts a field name to lowerCamelCase the way protoc does.
func jsonName(name string) string {
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

// mapEntryName returns the entry message name of a map field, "FooBarEntry"
// for foo_bar.
func mapEntryName(field string) string {
	var b strings.Builder
	upper := true
	for _, r := range field {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	b.WriteString("Entry")
	return b.String()
}
