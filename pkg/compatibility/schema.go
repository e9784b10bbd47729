package compatibility

import (
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/schema"
)

// SchemaGraph is a flattened view of one schema version, keyed by fully
// qualified name so two versions can be compared declaration by declaration.
type SchemaGraph struct {
	Files    map[string]*File    // Import path -> File
	Messages map[string]*Message // Fully qualified name -> Message
	Enums    map[string]*Enum    // Fully qualified name -> Enum
	Services map[string]*Service // Fully qualified name -> Service
}

// File is one source file of a schema version.
type File struct {
	Path    string
	Package string
	Syntax  string // "proto2", "proto3" or "editions"
	Imports []Import
}

// Import represents an import statement
type Import struct {
	Path   string
	Public bool
	Weak   bool
}

// Message represents a protobuf message with all fields
type Message struct {
	Name         string
	FullName     string         // package.Message or package.Outer.Inner
	File         string         // Declaring file path
	Fields       map[int]*Field // Field number -> Field (for fast lookup)
	FieldsByName map[string]*Field
	Reserved     *Reserved
	OneOfs       map[string]*OneOf
}

// Field represents a message field with complete metadata
type Field struct {
	Name         string
	Number       int
	Type         FieldType
	Label        FieldLabel // optional, required, repeated
	TypeName     string     // For message/enum types, without the leading dot
	IsMap        bool
	MapKeyType   string
	MapValueType string
	InOneOf      string // OneOf name if part of oneof
	Deprecated   bool
	Packed       *bool
	DefaultValue string
}

// TypeString renders the declared type the way it appears in source.
func (f *Field) TypeString() string {
	switch {
	case f.IsMap:
		return "map<" + f.MapKeyType + ", " + f.MapValueType + ">"
	case f.TypeName != "":
		return f.TypeName
	}
	return f.Type.String()
}

// FieldType represents the protobuf field type
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeDouble
	FieldTypeFloat
	FieldTypeInt32
	FieldTypeInt64
	FieldTypeUint32
	FieldTypeUint64
	FieldTypeSint32
	FieldTypeSint64
	FieldTypeFixed32
	FieldTypeFixed64
	FieldTypeSfixed32
	FieldTypeSfixed64
	FieldTypeBool
	FieldTypeString
	FieldTypeBytes
	FieldTypeMessage
	FieldTypeEnum
)

func (ft FieldType) String() string {
	return []string{
		"unknown", "double", "float", "int32", "int64", "uint32", "uint64",
		"sint32", "sint64", "fixed32", "fixed64", "sfixed32", "sfixed64",
		"bool", "string", "bytes", "message", "enum",
	}[ft]
}

var fieldTypes = map[descriptorpb.FieldDescriptorProto_Type]FieldType{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   FieldTypeDouble,
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    FieldTypeFloat,
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    FieldTypeInt32,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    FieldTypeInt64,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   FieldTypeUint32,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   FieldTypeUint64,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   FieldTypeSint32,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   FieldTypeSint64,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  FieldTypeFixed32,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  FieldTypeFixed64,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: FieldTypeSfixed32,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: FieldTypeSfixed64,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     FieldTypeBool,
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   FieldTypeString,
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    FieldTypeBytes,
	descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:  FieldTypeMessage,
	descriptorpb.FieldDescriptorProto_TYPE_GROUP:    FieldTypeMessage,
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     FieldTypeEnum,
}

// wireClasses groups scalar types that share an encoding. Changing a field
// between types of one class keeps old bytes readable.
var wireClasses = map[FieldType]string{
	FieldTypeInt32:    "varint",
	FieldTypeInt64:    "varint",
	FieldTypeUint32:   "varint",
	FieldTypeUint64:   "varint",
	FieldTypeBool:     "varint",
	FieldTypeEnum:     "varint",
	FieldTypeSint32:   "zigzag",
	FieldTypeSint64:   "zigzag",
	FieldTypeFixed32:  "fixed32",
	FieldTypeSfixed32: "fixed32",
	FieldTypeFixed64:  "fixed64",
	FieldTypeSfixed64: "fixed64",
	FieldTypeString:   "bytes",
	FieldTypeBytes:    "bytes",
}

// FieldLabel represents field cardinality
type FieldLabel int

const (
	FieldLabelOptional FieldLabel = iota
	FieldLabelRequired
	FieldLabelRepeated
)

func (fl FieldLabel) String() string {
	return []string{"optional", "required", "repeated"}[fl]
}

// Enum represents an enum with values
type Enum struct {
	Name         string
	FullName     string
	File         string
	Values       map[int]*EnumValue // Number -> first value with that number
	ValuesByName map[string]*EnumValue
	Reserved     *Reserved
}

// EnumValue represents an enum value
type EnumValue struct {
	Name       string
	Number     int
	Deprecated bool
}

// Service represents a gRPC service
type Service struct {
	Name     string
	FullName string
	File     string
	Methods  map[string]*Method
}

// Method represents an RPC method
type Method struct {
	Name            string
	InputType       string
	OutputType      string
	ClientStreaming bool
	ServerStreaming bool
	Deprecated      bool
}

// Reserved tracks reserved fields. Ranges are inclusive.
type Reserved struct {
	Ranges [][2]int
	Names  []string
}

// HasNumber reports whether n is reserved.
func (r *Reserved) HasNumber(n int) bool {
	if r == nil {
		return false
	}
	for _, rng := range r.Ranges {
		if n >= rng[0] && n <= rng[1] {
			return true
		}
	}
	return false
}

// HasName reports whether name is reserved.
func (r *Reserved) HasName(name string) bool {
	if r == nil {
		return false
	}
	for _, n := range r.Names {
		if n == name {
			return true
		}
	}
	return false
}

// OneOf represents a oneof group
type OneOf struct {
	Name   string
	Fields []int // Field numbers in this oneof
}

// FromSchema builds the graph of a linked schema.
func FromSchema(s *schema.Schema) *SchemaGraph {
	return FromDescriptorSet(descriptor.FromSchema(s))
}

// FromDescriptorSet builds the graph of a descriptor set, such as a stored
// snapshot.
func FromDescriptorSet(set *descriptorpb.FileDescriptorSet) *SchemaGraph {
	b := &graphBuilder{graph: &SchemaGraph{
		Files:    make(map[string]*File),
		Messages: make(map[string]*Message),
		Enums:    make(map[string]*Enum),
		Services: make(map[string]*Service),
	}}
	for _, fd := range set.GetFile() {
		b.file(fd)
	}
	return b.graph
}

type graphBuilder struct {
	graph *SchemaGraph
}

func (b *graphBuilder) file(fd *descriptorpb.FileDescriptorProto) {
	f := &File{
		Path:    fd.GetName(),
		Package: fd.GetPackage(),
		Syntax:  fd.GetSyntax(),
	}
	if f.Syntax == "" {
		f.Syntax = "proto2"
	}
	public := make(map[int32]bool)
	for _, i := range fd.GetPublicDependency() {
		public[i] = true
	}
	weak := make(map[int32]bool)
	for _, i := range fd.GetWeakDependency() {
		weak[i] = true
	}
	for i, dep := range fd.GetDependency() {
		f.Imports = append(f.Imports, Import{Path: dep, Public: public[int32(i)], Weak: weak[int32(i)]})
	}
	b.graph.Files[f.Path] = f

	for _, md := range fd.GetMessageType() {
		b.message(f, fd.GetPackage(), md)
	}
	for _, ed := range fd.GetEnumType() {
		b.enum(f, fd.GetPackage(), ed)
	}
	for _, sd := range fd.GetService() {
		b.service(f, fd.GetPackage(), sd)
	}
}

func qualified(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (b *graphBuilder) message(f *File, scope string, md *descriptorpb.DescriptorProto) {
	fullName := qualified(scope, md.GetName())
	msg := &Message{
		Name:         md.GetName(),
		FullName:     fullName,
		File:         f.Path,
		Fields:       make(map[int]*Field),
		FieldsByName: make(map[string]*Field),
		Reserved:     &Reserved{Names: md.GetReservedName()},
		OneOfs:       make(map[string]*OneOf),
	}
	for _, r := range md.GetReservedRange() {
		msg.Reserved.Ranges = append(msg.Reserved.Ranges, [2]int{int(r.GetStart()), int(r.GetEnd()) - 1})
	}

	entries := make(map[string]*descriptorpb.DescriptorProto)
	for _, nested := range md.GetNestedType() {
		if nested.GetOptions().GetMapEntry() {
			entries[qualified(fullName, nested.GetName())] = nested
		}
	}

	for _, fd := range md.GetField() {
		field := newField(fd)
		if entry, ok := entries[field.TypeName]; ok {
			field.IsMap = true
			for _, ef := range entry.GetField() {
				switch ef.GetNumber() {
				case 1:
					field.MapKeyType = newField(ef).TypeString()
				case 2:
					field.MapValueType = newField(ef).TypeString()
				}
			}
		}
		if fd.OneofIndex != nil && !fd.GetProto3Optional() {
			name := md.GetOneofDecl()[fd.GetOneofIndex()].GetName()
			field.InOneOf = name
			oneof := msg.OneOfs[name]
			if oneof == nil {
				oneof = &OneOf{Name: name}
				msg.OneOfs[name] = oneof
			}
			oneof.Fields = append(oneof.Fields, field.Number)
		}
		msg.Fields[field.Number] = field
		msg.FieldsByName[field.Name] = field
	}
	b.graph.Messages[fullName] = msg

	for _, nested := range md.GetNestedType() {
		if nested.GetOptions().GetMapEntry() {
			continue
		}
		b.message(f, fullName, nested)
	}
	for _, ed := range md.GetEnumType() {
		b.enum(f, fullName, ed)
	}
}

func newField(fd *descriptorpb.FieldDescriptorProto) *Field {
	field := &Field{
		Name:         fd.GetName(),
		Number:       int(fd.GetNumber()),
		Type:         fieldTypes[fd.GetType()],
		TypeName:     strings.TrimPrefix(fd.GetTypeName(), "."),
		Deprecated:   fd.GetOptions().GetDeprecated(),
		DefaultValue: fd.GetDefaultValue(),
	}
	switch fd.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		field.Label = FieldLabelRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		field.Label = FieldLabelRepeated
	default:
		field.Label = FieldLabelOptional
	}
	if fd.GetOptions() != nil && fd.GetOptions().Packed != nil {
		packed := fd.GetOptions().GetPacked()
		field.Packed = &packed
	}
	return field
}

func (b *graphBuilder) enum(f *File, scope string, ed *descriptorpb.EnumDescriptorProto) {
	e := &Enum{
		Name:         ed.GetName(),
		FullName:     qualified(scope, ed.GetName()),
		File:         f.Path,
		Values:       make(map[int]*EnumValue),
		ValuesByName: make(map[string]*EnumValue),
		Reserved:     &Reserved{Names: ed.GetReservedName()},
	}
	for _, r := range ed.GetReservedRange() {
		e.Reserved.Ranges = append(e.Reserved.Ranges, [2]int{int(r.GetStart()), int(r.GetEnd())})
	}
	for _, vd := range ed.GetValue() {
		v := &EnumValue{
			Name:       vd.GetName(),
			Number:     int(vd.GetNumber()),
			Deprecated: vd.GetOptions().GetDeprecated(),
		}
		if _, ok := e.Values[v.Number]; !ok {
			e.Values[v.Number] = v
		}
		e.ValuesByName[v.Name] = v
	}
	b.graph.Enums[e.FullName] = e
}

func (b *graphBuilder) service(f *File, scope string, sd *descriptorpb.ServiceDescriptorProto) {
	svc := &Service{
		Name:     sd.GetName(),
		FullName: qualified(scope, sd.GetName()),
		File:     f.Path,
		Methods:  make(map[string]*Method),
	}
	for _, md := range sd.GetMethod() {
		svc.Methods[md.GetName()] = &Method{
			Name:            md.GetName(),
			InputType:       strings.TrimPrefix(md.GetInputType(), "."),
			OutputType:      strings.TrimPrefix(md.GetOutputType(), "."),
			ClientStreaming: md.GetClientStreaming(),
			ServerStreaming: md.GetServerStreaming(),
			Deprecated:      md.GetOptions().GetDeprecated(),
		}
	}
	b.graph.Services[svc.FullName] = svc
}
