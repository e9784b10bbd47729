package schema

import "strings"

// ProtoType identifies a type: a scalar keyword, a fully qualified declared
// name, or a map of two other types. The zero value is an unresolved type.
type ProtoType struct {
	name string
}

var (
	TypeBool     = ProtoType{name: "bool"}
	TypeBytes    = ProtoType{name: "bytes"}
	TypeDouble   = ProtoType{name: "double"}
	TypeFloat    = ProtoType{name: "float"}
	TypeFixed32  = ProtoType{name: "fixed32"}
	TypeFixed64  = ProtoType{name: "fixed64"}
	TypeInt32    = ProtoType{name: "int32"}
	TypeInt64    = ProtoType{name: "int64"}
	TypeSFixed32 = ProtoType{name: "sfixed32"}
	TypeSFixed64 = ProtoType{name: "sfixed64"}
	TypeSInt32   = ProtoType{name: "sint32"}
	TypeSInt64   = ProtoType{name: "sint64"}
	TypeString   = ProtoType{name: "string"}
	TypeUInt32   = ProtoType{name: "uint32"}
	TypeUInt64   = ProtoType{name: "uint64"}
)

var scalarTypes = map[string]ProtoType{
	TypeBool.name:     TypeBool,
	TypeBytes.name:    TypeBytes,
	TypeDouble.name:   TypeDouble,
	TypeFloat.name:    TypeFloat,
	TypeFixed32.name:  TypeFixed32,
	TypeFixed64.name:  TypeFixed64,
	TypeInt32.name:    TypeInt32,
	TypeInt64.name:    TypeInt64,
	TypeSFixed32.name: TypeSFixed32,
	TypeSFixed64.name: TypeSFixed64,
	TypeSInt32.name:   TypeSInt32,
	TypeSInt64.name:   TypeSInt64,
	TypeString.name:   TypeString,
	TypeUInt32.name:   TypeUInt32,
	TypeUInt64.name:   TypeUInt64,
}

// The options messages of descriptor.proto. Options declared on each kind of
// declaration are keyed by members of these types.
var (
	FileOptions      = ProtoType{name: "google.protobuf.FileOptions"}
	MessageOptions   = ProtoType{name: "google.protobuf.MessageOptions"}
	FieldOptions     = ProtoType{name: "google.protobuf.FieldOptions"}
	OneofOptions     = ProtoType{name: "google.protobuf.OneofOptions"}
	EnumOptions      = ProtoType{name: "google.protobuf.EnumOptions"}
	EnumValueOptions = ProtoType{name: "google.protobuf.EnumValueOptions"}
	ServiceOptions   = ProtoType{name: "google.protobuf.ServiceOptions"}
	MethodOptions    = ProtoType{name: "google.protobuf.MethodOptions"}
)

const mapPrefix = "map<"

// ProtoTypeOf returns the type with the given name. Scalar keywords return
// the scalar type; anything else is taken as a fully qualified name or a
// map type string.
func ProtoTypeOf(name string) ProtoType {
	if t, ok := scalarTypes[name]; ok {
		return t
	}
	return ProtoType{name: name}
}

// MapType returns the type map<key, value>.
func MapType(key, value ProtoType) ProtoType {
	return ProtoType{name: mapPrefix + key.name + ", " + value.name + ">"}
}

// IsScalar reports whether the type is a scalar keyword.
func (t ProtoType) IsScalar() bool {
	_, ok := scalarTypes[t.name]
	return ok
}

// IsMap reports whether the type is a map type.
func (t ProtoType) IsMap() bool {
	return strings.HasPrefix(t.name, mapPrefix)
}

// IsZero reports whether the type never resolved.
func (t ProtoType) IsZero() bool {
	return t.name == ""
}

// KeyType returns the key type of a map type and the zero type otherwise.
func (t ProtoType) KeyType() ProtoType {
	key, _, ok := t.mapParts()
	if !ok {
		return ProtoType{}
	}
	return ProtoTypeOf(key)
}

// ValueType returns the value type of a map type and the zero type otherwise.
func (t ProtoType) ValueType() ProtoType {
	_, value, ok := t.mapParts()
	if !ok {
		return ProtoType{}
	}
	return ProtoTypeOf(value)
}

func (t ProtoType) mapParts() (string, string, bool) {
	if !t.IsMap() || !strings.HasSuffix(t.name, ">") {
		return "", "", false
	}
	inner := t.name[len(mapPrefix) : len(t.name)-1]
	key, value, ok := strings.Cut(inner, ",")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

// SimpleName returns the last dotted component of a declared type name.
func (t ProtoType) SimpleName() string {
	if t.IsScalar() || t.IsMap() {
		return t.name
	}
	return t.name[strings.LastIndexByte(t.name, '.')+1:]
}

// EnclosingTypeOrPackage returns the qualified name without its last
// component, or "" for a type in the root package.
func (t ProtoType) EnclosingTypeOrPackage() string {
	if t.IsScalar() || t.IsMap() {
		return ""
	}
	if i := strings.LastIndexByte(t.name, '.'); i >= 0 {
		return t.name[:i]
	}
	return ""
}

// NestedType returns the type named name declared inside t.
func (t ProtoType) NestedType(name string) ProtoType {
	return ProtoType{name: qualify(t.name, name)}
}

func (t ProtoType) String() string {
	return t.name
}

// qualify joins a scope and a name with a dot, skipping an empty scope.
func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// parentScope drops the last dotted component of scope.
func parentScope(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		return scope[:i]
	}
	return ""
}

var mapKeyTypes = map[ProtoType]bool{
	TypeBool: true, TypeString: true,
	TypeInt32: true, TypeInt64: true, TypeUInt32: true, TypeUInt64: true,
	TypeSInt32: true, TypeSInt64: true, TypeFixed32: true, TypeFixed64: true,
	TypeSFixed32: true, TypeSFixed64: true,
}
