package compatibility

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/schema"
)

func linkSources(t *testing.T, sources map[string]string) *schema.Schema {
	t.Helper()
	files, err := loader.New(afero.NewMemMapFs(), nil, loader.Config{}).LoadSources(context.Background(), sources)
	require.NoError(t, err)
	s, err := schema.Link(context.Background(), files)
	require.NoError(t, err)
	return s
}

func graphOf(t *testing.T, sources map[string]string) *SchemaGraph {
	t.Helper()
	return FromSchema(linkSources(t, sources))
}

func TestFromSchema(t *testing.T) {
	g := graphOf(t, map[string]string{
		"user.proto": `syntax = "proto3";
package test;

import public "common.proto";

message User {
  string id = 1;
  map<string, int32> scores = 2;
  oneof contact {
    string email = 3;
    string phone = 4;
  }
  optional string nickname = 5;
  Address address = 6;
  reserved 10 to 12;
  reserved "legacy";

  message Address {
    string street = 1;
  }

  enum Role {
    ROLE_UNKNOWN = 0;
    ROLE_ADMIN = 1;
    reserved 5;
  }
}

service UserService {
  rpc Get(User) returns (stream User);
}
`,
		"common.proto": "package common;\nmessage Empty {}\n",
	})

	file := g.Files["user.proto"]
	require.NotNil(t, file)
	assert.Equal(t, "test", file.Package)
	assert.Equal(t, "proto3", file.Syntax)
	assert.Equal(t, []Import{{Path: "common.proto", Public: true}}, file.Imports)
	assert.Equal(t, "proto2", g.Files["common.proto"].Syntax)

	user := g.Messages["test.User"]
	require.NotNil(t, user)
	assert.Equal(t, "user.proto", user.File)
	assert.Len(t, user.Fields, 6)
	assert.NotContains(t, g.Messages, "test.User.ScoresEntry")
	assert.Contains(t, g.Messages, "test.User.Address")
	assert.Contains(t, g.Messages, "common.Empty")

	scores := user.FieldsByName["scores"]
	assert.True(t, scores.IsMap)
	assert.Equal(t, "map<string, int32>", scores.TypeString())

	assert.Equal(t, "contact", user.Fields[3].InOneOf)
	assert.Equal(t, []int{3, 4}, user.OneOfs["contact"].Fields)
	assert.Empty(t, user.Fields[5].InOneOf)
	assert.NotContains(t, user.OneOfs, "_nickname")

	assert.Equal(t, FieldTypeMessage, user.Fields[6].Type)
	assert.Equal(t, "test.User.Address", user.Fields[6].TypeString())

	assert.True(t, user.Reserved.HasNumber(11))
	assert.False(t, user.Reserved.HasNumber(13))
	assert.True(t, user.Reserved.HasName("legacy"))

	role := g.Enums["test.User.Role"]
	require.NotNil(t, role)
	assert.Equal(t, "ROLE_ADMIN", role.Values[1].Name)
	assert.True(t, role.Reserved.HasNumber(5))

	get := g.Services["test.UserService"].Methods["Get"]
	assert.Equal(t, "test.User", get.InputType)
	assert.True(t, get.ServerStreaming)
	assert.False(t, get.ClientStreaming)
}

func TestFromDescriptorSet_RoundTrip(t *testing.T) {
	s := linkSources(t, map[string]string{
		"a.proto": "package a;\nmessage A {\n  required int64 id = 1 [default = 7];\n  repeated int32 xs = 2 [packed = true];\n}\n",
	})
	set, err := descriptor.Build(s)
	require.NoError(t, err)
	data, err := descriptor.Marshal(set, descriptor.FormatBinary)
	require.NoError(t, err)
	decoded, err := descriptor.Unmarshal(data)
	require.NoError(t, err)

	g := FromDescriptorSet(decoded)
	a := g.Messages["a.A"]
	require.NotNil(t, a)
	assert.Equal(t, FieldLabelRequired, a.Fields[1].Label)
	assert.Equal(t, "7", a.Fields[1].DefaultValue)
	require.NotNil(t, a.Fields[2].Packed)
	assert.True(t, *a.Fields[2].Packed)
	assert.Equal(t, FieldLabelRepeated, a.Fields[2].Label)

	result, err := CheckCompatibility(FromSchema(s), g, CompatibilityModeFullTransitive)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}
