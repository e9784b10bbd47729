package schema

import (
	"strings"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

// Location is a position in a source file.
type Location = protobuf.Location

// Type is a declared message or enum. The set of implementations is closed:
// *MessageType and *EnumType.
type Type interface {
	Type() ProtoType
	Location() Location
	NestedTypes() []Type
	Options() *Options
	Documentation() string
	isType()
}

// Label is a field cardinality.
type Label int

const (
	LabelNone Label = iota
	LabelOptional
	LabelRequired
	LabelRepeated
)

func (l Label) String() string {
	switch l {
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	default:
		return ""
	}
}

// Import is an import statement of a file.
type Import struct {
	Path     string
	Public   bool
	Weak     bool
	Location Location
}

// ProtoFile is a linked source file.
type ProtoFile struct {
	index       int
	location    Location
	syntax      string
	edition     bool
	packageName string
	imports     []Import
	types       []Type
	extends     []*Extend
	services    []*Service
	options     *Options
	optionNodes []*protobuf.OptionNode
}

// Location returns the location of the file itself.
func (f *ProtoFile) Location() Location { return f.location }

// Path returns the path the file is imported by.
func (f *ProtoFile) Path() string { return f.location.Path }

// Syntax returns the declared syntax or edition, or "" when absent.
func (f *ProtoFile) Syntax() string { return f.syntax }

// IsEdition reports whether Syntax names an edition rather than a syntax.
func (f *ProtoFile) IsEdition() bool { return f.edition }

// PackageName returns the declared package, or "" for the root package.
func (f *ProtoFile) PackageName() string { return f.packageName }

// Imports returns the import statements in declaration order.
func (f *ProtoFile) Imports() []Import { return f.imports }

// Types returns the top-level messages and enums in declaration order.
func (f *ProtoFile) Types() []Type { return f.types }

// Extends returns every extend block of the file, including blocks nested
// in messages, in declaration order.
func (f *ProtoFile) Extends() []*Extend { return f.extends }

// Services returns the services in declaration order.
func (f *ProtoFile) Services() []*Service { return f.services }

// Options returns the file options.
func (f *ProtoFile) Options() *Options { return f.options }

// MessageType is a declared message.
type MessageType struct {
	protoType       ProtoType
	location        Location
	documentation   string
	fields          []*Field
	oneOfs          []*OneOf
	nestedTypes     []Type
	reserved        []*Reserved
	extensionRanges []*ExtensionRange
	options         *Options
	optionNodes     []*protobuf.OptionNode
	extensionFields []*Field
	file            *ProtoFile
}

func (*MessageType) isType() {}

// Type returns the fully qualified type of the message.
func (m *MessageType) Type() ProtoType { return m.protoType }

// Name returns the simple name of the message.
func (m *MessageType) Name() string { return m.protoType.SimpleName() }

// Location returns where the message is declared.
func (m *MessageType) Location() Location { return m.location }

// Documentation returns the leading comments of the message.
func (m *MessageType) Documentation() string { return m.documentation }

// Fields returns the fields declared directly in the message, excluding
// oneof members.
func (m *MessageType) Fields() []*Field { return m.fields }

// OneOfs returns the oneofs in declaration order.
func (m *MessageType) OneOfs() []*OneOf { return m.oneOfs }

// NestedTypes returns the nested messages and enums in declaration order.
func (m *MessageType) NestedTypes() []Type { return m.nestedTypes }

// Reserved returns the reserved statements in declaration order.
func (m *MessageType) Reserved() []*Reserved { return m.reserved }

// ExtensionRanges returns the extensions statements in declaration order.
func (m *MessageType) ExtensionRanges() []*ExtensionRange { return m.extensionRanges }

// Options returns the message options.
func (m *MessageType) Options() *Options { return m.options }

// ExtensionFields returns the fields other files add to this message, in
// the order their extend blocks were linked.
func (m *MessageType) ExtensionFields() []*Field { return m.extensionFields }

// FieldsAndOneOfFields returns the direct fields and oneof members in
// declaration order.
func (m *MessageType) FieldsAndOneOfFields() []*Field {
	out := make([]*Field, 0, len(m.fields))
	out = append(out, m.fields...)
	for _, o := range m.oneOfs {
		out = append(out, o.fields...)
	}
	sortByPosition(out)
	return out
}

// Field returns the field or oneof member named name, or nil.
func (m *MessageType) Field(name string) *Field {
	for _, f := range m.fields {
		if f.name == name {
			return f
		}
	}
	for _, o := range m.oneOfs {
		for _, f := range o.fields {
			if f.name == name {
				return f
			}
		}
	}
	return nil
}

// FieldByTag returns the field or oneof member with the given tag, or nil.
func (m *MessageType) FieldByTag(tag int) *Field {
	for _, f := range m.FieldsAndOneOfFields() {
		if f.tag == tag {
			return f
		}
	}
	return nil
}

// ExtensionField returns the extension field with the given qualified
// name, such as "p.a", or nil.
func (m *MessageType) ExtensionField(qualifiedName string) *Field {
	for _, f := range m.extensionFields {
		if f.QualifiedName() == qualifiedName {
			return f
		}
	}
	return nil
}

// OneOf is a named group of fields at most one of which is set.
type OneOf struct {
	name          string
	location      Location
	documentation string
	fields        []*Field
	options       *Options
	optionNodes   []*protobuf.OptionNode
}

// Name returns the oneof name.
func (o *OneOf) Name() string { return o.name }

// Location returns where the oneof is declared.
func (o *OneOf) Location() Location { return o.location }

// Documentation returns the leading comments of the oneof.
func (o *OneOf) Documentation() string { return o.documentation }

// Fields returns the oneof members in declaration order.
func (o *OneOf) Fields() []*Field { return o.fields }

// Options returns the oneof options.
func (o *OneOf) Options() *Options { return o.options }

// Field is a message field, oneof member or extension field.
type Field struct {
	name          string
	tag           int
	label         Label
	rawType       string
	mapKey        string
	mapValue      string
	protoType     ProtoType
	location      Location
	documentation string
	packageName   string
	extension     bool
	defaultValue  string
	hasDefault    bool
	options       *Options
	optionNodes   []*protobuf.OptionNode

	// file and scope are where the type reference is resolved from.
	file  *ProtoFile
	scope string
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// QualifiedName returns the name prefixed with the package of the declaring
// file for extension fields, and the plain name otherwise.
func (f *Field) QualifiedName() string {
	if f.extension {
		return qualify(f.packageName, f.name)
	}
	return f.name
}

// Tag returns the field number.
func (f *Field) Tag() int { return f.tag }

// Label returns the field label.
func (f *Field) Label() Label { return f.label }

// IsRepeated reports whether the field is repeated.
func (f *Field) IsRepeated() bool { return f.label == LabelRepeated }

// IsRequired reports whether the field is required.
func (f *Field) IsRequired() bool { return f.label == LabelRequired }

// IsOptional reports whether the field is explicitly optional.
func (f *Field) IsOptional() bool { return f.label == LabelOptional }

// RawType returns the type as written in source.
func (f *Field) RawType() string { return f.rawType }

// Type returns the resolved type, or the zero type if it never resolved.
func (f *Field) Type() ProtoType { return f.protoType }

// Location returns where the field is declared.
func (f *Field) Location() Location { return f.location }

// Documentation returns the leading comments of the field.
func (f *Field) Documentation() string { return f.documentation }

// PackageName returns the package of the file declaring the field.
func (f *Field) PackageName() string { return f.packageName }

// IsExtension reports whether the field was declared in an extend block.
func (f *Field) IsExtension() bool { return f.extension }

// Default returns the raw default value and whether one was declared.
func (f *Field) Default() (string, bool) { return f.defaultValue, f.hasDefault }

// Options returns the field options, excluding the default value.
func (f *Field) Options() *Options { return f.options }

// IsPacked reports whether the field sets packed=true.
func (f *Field) IsPacked() bool {
	return f.options.Bool(ProtoMemberOf(FieldOptions, "packed"))
}

// IsDeprecated reports whether the field sets deprecated=true.
func (f *Field) IsDeprecated() bool {
	return f.options.Bool(ProtoMemberOf(FieldOptions, "deprecated"))
}

// EnumType is a declared enum.
type EnumType struct {
	protoType     ProtoType
	location      Location
	documentation string
	constants     []*EnumConstant
	reserved      []*Reserved
	options       *Options
	optionNodes   []*protobuf.OptionNode
	file          *ProtoFile
}

func (*EnumType) isType() {}

// Type returns the fully qualified type of the enum.
func (e *EnumType) Type() ProtoType { return e.protoType }

// Name returns the simple name of the enum.
func (e *EnumType) Name() string { return e.protoType.SimpleName() }

// Location returns where the enum is declared.
func (e *EnumType) Location() Location { return e.location }

// Documentation returns the leading comments of the enum.
func (e *EnumType) Documentation() string { return e.documentation }

// NestedTypes returns nil; enums declare no types.
func (e *EnumType) NestedTypes() []Type { return nil }

// Constants returns the constants in declaration order.
func (e *EnumType) Constants() []*EnumConstant { return e.constants }

// Reserved returns the reserved statements in declaration order.
func (e *EnumType) Reserved() []*Reserved { return e.reserved }

// Options returns the enum options.
func (e *EnumType) Options() *Options { return e.options }

// AllowAlias reports whether the enum sets allow_alias=true.
func (e *EnumType) AllowAlias() bool {
	return e.options.Bool(ProtoMemberOf(EnumOptions, "allow_alias"))
}

// Constant returns the constant named name, or nil.
func (e *EnumType) Constant(name string) *EnumConstant {
	for _, c := range e.constants {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ConstantByTag returns the first constant with the given tag, or nil.
func (e *EnumType) ConstantByTag(tag int) *EnumConstant {
	for _, c := range e.constants {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// EnumConstant is a value of an enum.
type EnumConstant struct {
	Name          string
	Tag           int
	Location      Location
	Documentation string
	Options       *Options
	optionNodes   []*protobuf.OptionNode
}

// Reserved is a reserved statement of a message or enum.
type Reserved struct {
	Location Location
	Ranges   []protobuf.RangeNode
	Names    []string
}

// MatchesTag reports whether tag falls in a reserved range.
func (r *Reserved) MatchesTag(tag int) bool {
	for _, rng := range r.Ranges {
		if rng.Contains(tag) {
			return true
		}
	}
	return false
}

// MatchesName reports whether name is reserved.
func (r *Reserved) MatchesName(name string) bool {
	for _, n := range r.Names {
		if n == name {
			return true
		}
	}
	return false
}

// ExtensionRange is an extensions statement of a message.
type ExtensionRange struct {
	Location Location
	Ranges   []protobuf.RangeNode
}

// Extend is an extend block.
type Extend struct {
	rawType       string
	protoType     ProtoType
	location      Location
	documentation string
	packageName   string
	fields        []*Field
	file          *ProtoFile
	scope         string
}

// RawType returns the extended type as written in source.
func (e *Extend) RawType() string { return e.rawType }

// Type returns the resolved extended type, or the zero type.
func (e *Extend) Type() ProtoType { return e.protoType }

// Location returns where the block is declared.
func (e *Extend) Location() Location { return e.location }

// Documentation returns the leading comments of the block.
func (e *Extend) Documentation() string { return e.documentation }

// PackageName returns the package of the declaring file.
func (e *Extend) PackageName() string { return e.packageName }

// Fields returns the extension fields in declaration order.
func (e *Extend) Fields() []*Field { return e.fields }

// Scope returns the qualified name of the message the block is nested in,
// or the package for top-level blocks.
func (e *Extend) Scope() string { return e.scope }

// File returns the declaring file.
func (e *Extend) File() *ProtoFile { return e.file }

// Service is a declared service.
type Service struct {
	protoType     ProtoType
	location      Location
	documentation string
	rpcs          []*Rpc
	options       *Options
	optionNodes   []*protobuf.OptionNode
	file          *ProtoFile
}

// Type returns the fully qualified name of the service as a type.
func (s *Service) Type() ProtoType { return s.protoType }

// Name returns the simple name of the service.
func (s *Service) Name() string { return s.protoType.SimpleName() }

// Location returns where the service is declared.
func (s *Service) Location() Location { return s.location }

// Documentation returns the leading comments of the service.
func (s *Service) Documentation() string { return s.documentation }

// Rpcs returns the rpcs in declaration order.
func (s *Service) Rpcs() []*Rpc { return s.rpcs }

// Options returns the service options.
func (s *Service) Options() *Options { return s.options }

// Rpc returns the rpc named name, or nil.
func (s *Service) Rpc(name string) *Rpc {
	for _, r := range s.rpcs {
		if r.name == name {
			return r
		}
	}
	return nil
}

// Rpc is a method of a service.
type Rpc struct {
	name              string
	location          Location
	documentation     string
	rawRequestType    string
	rawResponseType   string
	requestType       ProtoType
	responseType      ProtoType
	requestStreaming  bool
	responseStreaming bool
	options           *Options
	optionNodes       []*protobuf.OptionNode
}

// Name returns the rpc name.
func (r *Rpc) Name() string { return r.name }

// Location returns where the rpc is declared.
func (r *Rpc) Location() Location { return r.location }

// Documentation returns the leading comments of the rpc.
func (r *Rpc) Documentation() string { return r.documentation }

// RawRequestType returns the request type as written in source.
func (r *Rpc) RawRequestType() string { return r.rawRequestType }

// RawResponseType returns the response type as written in source.
func (r *Rpc) RawResponseType() string { return r.rawResponseType }

// RequestType returns the resolved request type, or the zero type.
func (r *Rpc) RequestType() ProtoType { return r.requestType }

// ResponseType returns the resolved response type, or the zero type.
func (r *Rpc) ResponseType() ProtoType { return r.responseType }

// RequestStreaming reports whether the client streams requests.
func (r *Rpc) RequestStreaming() bool { return r.requestStreaming }

// ResponseStreaming reports whether the server streams responses.
func (r *Rpc) ResponseStreaming() bool { return r.responseStreaming }

// Options returns the rpc options.
func (r *Rpc) Options() *Options { return r.options }

func documentation(comments []*protobuf.CommentNode) string {
	if len(comments) == 0 {
		return ""
	}
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		text := strings.TrimSpace(c.Text)
		switch {
		case strings.HasPrefix(text, "//"):
			text = strings.TrimSpace(strings.TrimPrefix(text, "//"))
		case strings.HasPrefix(text, "/*"):
			text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/"))
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}
