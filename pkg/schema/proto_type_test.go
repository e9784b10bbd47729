package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtoType(t *testing.T) {
	tests := []struct {
		name      string
		typ       ProtoType
		scalar    bool
		isMap     bool
		simple    string
		enclosing string
	}{
		{name: "scalar", typ: ProtoTypeOf("int32"), scalar: true, simple: "int32"},
		{name: "root message", typ: ProtoTypeOf("Message"), simple: "Message"},
		{name: "packaged message", typ: ProtoTypeOf("a.b.Message"), simple: "Message", enclosing: "a.b"},
		{name: "nested message", typ: ProtoTypeOf("a.Outer.Inner"), simple: "Inner", enclosing: "a.Outer"},
		{name: "map", typ: MapType(TypeString, ProtoTypeOf("a.B")), isMap: true, simple: "map<string, a.B>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.scalar, tt.typ.IsScalar())
			assert.Equal(t, tt.isMap, tt.typ.IsMap())
			assert.Equal(t, tt.simple, tt.typ.SimpleName())
			assert.Equal(t, tt.enclosing, tt.typ.EnclosingTypeOrPackage())
			assert.False(t, tt.typ.IsZero())
		})
	}
}

func TestProtoType_Map(t *testing.T) {
	m := MapType(TypeInt64, ProtoTypeOf("pkg.Value"))
	assert.Equal(t, "map<int64, pkg.Value>", m.String())
	assert.Equal(t, TypeInt64, m.KeyType())
	assert.Equal(t, ProtoTypeOf("pkg.Value"), m.ValueType())

	assert.True(t, ProtoTypeOf("map<string, int32>").IsMap())
	assert.Equal(t, TypeInt32, ProtoTypeOf("map<string, int32>").ValueType())

	assert.True(t, TypeString.KeyType().IsZero())
	assert.True(t, ProtoType{}.IsZero())
}

func TestProtoType_Equality(t *testing.T) {
	assert.Equal(t, TypeString, ProtoTypeOf("string"))
	assert.Equal(t, ProtoTypeOf("a.B"), ProtoTypeOf("a").NestedType("B"))
	assert.NotEqual(t, ProtoTypeOf("a.B"), ProtoTypeOf("B"))
}

func TestProtoMember(t *testing.T) {
	m := ProtoMemberOf(FieldOptions, "packed")
	assert.Equal(t, "google.protobuf.FieldOptions#packed", m.String())
	assert.Equal(t, m, ProtoMemberOf(ProtoTypeOf("google.protobuf.FieldOptions"), "packed"))
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "B", qualify("", "B"))
	assert.Equal(t, "a.B", qualify("a", "B"))
	assert.Equal(t, "a", parentScope("a.b"))
	assert.Equal(t, "", parentScope("a"))
}
