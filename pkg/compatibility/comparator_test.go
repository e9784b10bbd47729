package compatibility

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(result *CheckResult) map[string]Violation {
	out := make(map[string]Violation, len(result.Violations))
	for _, v := range result.Violations {
		out[v.Rule] = v
	}
	return out
}

func TestComparator_Messages(t *testing.T) {
	tests := []struct {
		name       string
		mode       CompatibilityMode
		oldSource  string
		newSource  string
		rule       string
		level      ViolationLevel
		wire       bool
		compatible bool
	}{
		{
			name:      "field removed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  string name = 2;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n}\n",
			rule:      "FIELD_REMOVED",
			level:     ViolationLevelError,
		},
		{
			name:       "field removed and reserved",
			mode:       CompatibilityModeBackward,
			oldSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  string name = 2;\n}\n",
			newSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  reserved 2;\n}\n",
			rule:       "FIELD_REMOVED_RESERVED",
			level:      ViolationLevelInfo,
			compatible: true,
		},
		{
			name:       "field added",
			mode:       CompatibilityModeBackward,
			oldSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n}\n",
			newSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  string email = 2;\n}\n",
			rule:       "FIELD_ADDED",
			level:      ViolationLevelInfo,
			compatible: true,
		},
		{
			name:      "required field added",
			mode:      CompatibilityModeBackward,
			oldSource: "package test;\nmessage User {\n  optional string id = 1;\n}\n",
			newSource: "package test;\nmessage User {\n  optional string id = 1;\n  required string email = 2;\n}\n",
			rule:      "REQUIRED_FIELD_ADDED",
			level:     ViolationLevelError,
			wire:      true,
		},
		{
			name:       "required field added forward only",
			mode:       CompatibilityModeForward,
			oldSource:  "package test;\nmessage User {\n  optional string id = 1;\n}\n",
			newSource:  "package test;\nmessage User {\n  optional string id = 1;\n  required string email = 2;\n}\n",
			rule:       "REQUIRED_FIELD_ADDED",
			level:      ViolationLevelWarning,
			wire:       true,
			compatible: true,
		},
		{
			name:      "field type changed incompatibly",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  int64 id = 1;\n}\n",
			rule:      "FIELD_TYPE_CHANGED",
			level:     ViolationLevelError,
			wire:      true,
		},
		{
			name:       "field type changed within wire class",
			mode:       CompatibilityModeBackward,
			oldSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  int32 age = 1;\n}\n",
			newSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  int64 age = 1;\n}\n",
			rule:       "FIELD_TYPE_CHANGED",
			level:      ViolationLevelWarning,
			compatible: true,
		},
		{
			name:      "field number changed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 2;\n}\n",
			rule:      "FIELD_NUMBER_CHANGED",
			level:     ViolationLevelError,
			wire:      true,
		},
		{
			name:       "field renamed",
			mode:       CompatibilityModeBackward,
			oldSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n}\n",
			newSource:  "syntax = \"proto3\";\npackage test;\nmessage User {\n  string user_id = 1;\n}\n",
			rule:       "FIELD_RENAMED",
			level:      ViolationLevelWarning,
			compatible: true,
		},
		{
			name:      "repeated label changed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string tag = 1;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  repeated string tag = 1;\n}\n",
			rule:      "FIELD_LABEL_CHANGED",
			level:     ViolationLevelError,
			wire:      true,
		},
		{
			name:      "reserved tag reused",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  reserved 2;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {\n  string id = 1;\n  string email = 2;\n}\n",
			rule:      "RESERVED_FIELD_REUSED",
			level:     ViolationLevelError,
			wire:      true,
		},
		{
			name:      "message removed",
			mode:      CompatibilityModeFull,
			oldSource: "syntax = \"proto3\";\npackage test;\nmessage User {}\nmessage Group {}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nmessage User {}\n",
			rule:      "MESSAGE_REMOVED",
			level:     ViolationLevelError,
		},
		{
			name:      "package changed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test.v1;\nmessage User {}\n",
			newSource: "syntax = \"proto3\";\npackage test.v2;\nmessage User {}\n",
			rule:      "PACKAGE_CHANGED",
			level:     ViolationLevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldGraph := graphOf(t, map[string]string{"user.proto": tt.oldSource})
			newGraph := graphOf(t, map[string]string{"user.proto": tt.newSource})

			result, err := CheckCompatibility(oldGraph, newGraph, tt.mode)
			require.NoError(t, err)

			v, ok := rules(result)[tt.rule]
			require.True(t, ok, "missing %s in %v", tt.rule, result.Violations)
			assert.Equal(t, tt.level, v.Level)
			assert.Equal(t, tt.wire, v.WireBreaking)
			assert.Equal(t, tt.compatible, result.Compatible)
			assert.Equal(t, tt.mode.String(), result.Mode)
		})
	}
}

func TestComparator_Enums(t *testing.T) {
	tests := []struct {
		name      string
		mode      CompatibilityMode
		oldSource string
		newSource string
		rule      string
		level     ViolationLevel
	}{
		{
			name:      "value removed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n  INACTIVE = 2;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n}\n",
			rule:      "ENUM_VALUE_REMOVED",
			level:     ViolationLevelError,
		},
		{
			name:      "value removed and reserved",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n  INACTIVE = 2;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n  reserved 2;\n}\n",
			rule:      "ENUM_VALUE_REMOVED_RESERVED",
			level:     ViolationLevelInfo,
		},
		{
			name:      "value number changed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 2;\n}\n",
			rule:      "ENUM_VALUE_NUMBER_CHANGED",
			level:     ViolationLevelError,
		},
		{
			name:      "value renamed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ENABLED = 1;\n}\n",
			rule:      "ENUM_VALUE_RENAMED",
			level:     ViolationLevelWarning,
		},
		{
			name:      "value added backward",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n}\n",
			rule:      "ENUM_VALUE_ADDED",
			level:     ViolationLevelInfo,
		},
		{
			name:      "value added forward",
			mode:      CompatibilityModeForward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n  ACTIVE = 1;\n}\n",
			rule:      "ENUM_VALUE_ADDED",
			level:     ViolationLevelWarning,
		},
		{
			name:      "enum removed",
			mode:      CompatibilityModeBackward,
			oldSource: "syntax = \"proto3\";\npackage test;\nenum Status {\n  UNKNOWN = 0;\n}\n",
			newSource: "syntax = \"proto3\";\npackage test;\n",
			rule:      "ENUM_REMOVED",
			level:     ViolationLevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldGraph := graphOf(t, map[string]string{"status.proto": tt.oldSource})
			newGraph := graphOf(t, map[string]string{"status.proto": tt.newSource})

			result, err := CheckCompatibility(oldGraph, newGraph, tt.mode)
			require.NoError(t, err)

			v, ok := rules(result)[tt.rule]
			require.True(t, ok, "missing %s in %v", tt.rule, result.Violations)
			assert.Equal(t, tt.level, v.Level)
		})
	}
}

const serviceV1 = `syntax = "proto3";
package test;
message GetUserRequest {}
message LookupRequest {}
message User {}
service UserService {
  rpc GetUser(GetUserRequest) returns (User);
  rpc DeleteUser(GetUserRequest) returns (User);
  rpc Watch(GetUserRequest) returns (stream User);
}
`

func TestComparator_Services(t *testing.T) {
	newSource := `syntax = "proto3";
package test;
message GetUserRequest {}
message LookupRequest {}
message User {}
service UserService {
  rpc GetUser(LookupRequest) returns (User);
  rpc Watch(GetUserRequest) returns (User);
  rpc ListUsers(GetUserRequest) returns (stream User);
}
`
	result, err := CheckCompatibility(
		graphOf(t, map[string]string{"svc.proto": serviceV1}),
		graphOf(t, map[string]string{"svc.proto": newSource}),
		CompatibilityModeBackward,
	)
	require.NoError(t, err)
	assert.False(t, result.Compatible)

	got := rules(result)
	assert.Equal(t, "test.UserService.DeleteUser", got["RPC_REMOVED"].Location)
	assert.True(t, got["RPC_INPUT_TYPE_CHANGED"].WireBreaking)
	assert.Equal(t, "test.GetUserRequest", got["RPC_INPUT_TYPE_CHANGED"].OldValue)
	assert.Equal(t, "test.LookupRequest", got["RPC_INPUT_TYPE_CHANGED"].NewValue)
	assert.Equal(t, "server", got["RPC_STREAMING_CHANGED"].OldValue)
	assert.Equal(t, "unary", got["RPC_STREAMING_CHANGED"].NewValue)
	assert.Equal(t, ViolationLevelInfo, got["RPC_ADDED"].Level)

	_, err = CheckCompatibility(graphOf(t, map[string]string{"svc.proto": serviceV1}), graphOf(t, map[string]string{"empty.proto": "syntax = \"proto3\";\n"}), CompatibilityModeBackward)
	require.NoError(t, err)
}

func TestComparator_ModeNone(t *testing.T) {
	oldGraph := graphOf(t, map[string]string{"a.proto": "syntax = \"proto3\";\nmessage A {\n  string id = 1;\n}\n"})
	newGraph := graphOf(t, map[string]string{"a.proto": "syntax = \"proto3\";\n"})

	result, err := CheckCompatibility(oldGraph, newGraph, CompatibilityModeNone)
	require.NoError(t, err)
	assert.True(t, result.Compatible)
	assert.Empty(t, result.Violations)
}

func TestComparator_NilSchema(t *testing.T) {
	_, err := NewComparator(CompatibilityModeBackward, nil, &SchemaGraph{}).Compare()
	assert.Error(t, err)
}

func TestComparator_Summary(t *testing.T) {
	oldSchema := &SchemaGraph{
		Messages: map[string]*Message{
			"test.User": {
				Name:     "User",
				FullName: "test.User",
				Fields: map[int]*Field{
					1: {Name: "id", Number: 1, Type: FieldTypeString},
					2: {Name: "name", Number: 2, Type: FieldTypeString},
				},
				FieldsByName: map[string]*Field{
					"id":   {Name: "id", Number: 1, Type: FieldTypeString},
					"name": {Name: "name", Number: 2, Type: FieldTypeString},
				},
			},
		},
	}

	newSchema := &SchemaGraph{
		Messages: map[string]*Message{
			"test.User": {
				Name:     "User",
				FullName: "test.User",
				Fields: map[int]*Field{
					1: {Name: "id", Number: 1, Type: FieldTypeString},
					3: {Name: "email", Number: 3, Type: FieldTypeString, Label: FieldLabelOptional},
				},
				FieldsByName: map[string]*Field{
					"id":    {Name: "id", Number: 1, Type: FieldTypeString},
					"email": {Name: "email", Number: 3, Type: FieldTypeString, Label: FieldLabelOptional},
				},
			},
		},
	}

	result, err := NewComparator(CompatibilityModeBackward, oldSchema, newSchema).Compare()
	require.NoError(t, err)

	assert.Equal(t, Summary{
		TotalViolations: 2,
		Errors:          1,
		Infos:           1,
		SourceBreaking:  1,
	}, result.Summary)
}

func TestCheckResult_JSON(t *testing.T) {
	oldSchema := &SchemaGraph{
		Messages: map[string]*Message{
			"test.User": {
				Name:     "User",
				FullName: "test.User",
				Fields: map[int]*Field{
					1: {Name: "id", Number: 1, Type: FieldTypeString},
					2: {Name: "name", Number: 2, Type: FieldTypeString},
				},
				FieldsByName: map[string]*Field{
					"id":   {Name: "id", Number: 1, Type: FieldTypeString},
					"name": {Name: "name", Number: 2, Type: FieldTypeString},
				},
			},
		},
	}
	newSchema := &SchemaGraph{
		Messages: map[string]*Message{
			"test.User": {
				Name:         "User",
				FullName:     "test.User",
				Fields:       map[int]*Field{1: {Name: "id", Number: 1, Type: FieldTypeString}},
				FieldsByName: map[string]*Field{"id": {Name: "id", Number: 1, Type: FieldTypeString}},
			},
		},
	}

	result, err := NewComparator(CompatibilityModeBackward, oldSchema, newSchema).Compare()
	require.NoError(t, err)
	require.NotEmpty(t, result.Violations)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"ERROR"`)
	assert.Contains(t, string(data), `"category":"field_change"`)

	var decoded CheckResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *result, decoded)
}

func TestViolationLevel_UnmarshalText(t *testing.T) {
	tests := []struct {
		text    string
		want    ViolationLevel
		wantErr bool
	}{
		{text: "INFO", want: ViolationLevelInfo},
		{text: "WARNING", want: ViolationLevelWarning},
		{text: "ERROR", want: ViolationLevelError},
		{text: "error", wantErr: true},
		{text: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var level ViolationLevel
			err := level.UnmarshalText([]byte(tt.text))
			if tt.wantErr {
				assert.ErrorContains(t, err, "unknown violation level")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestViolationCategory_UnmarshalText(t *testing.T) {
	for c := CategoryFieldChange; c <= CategoryImportChange; c++ {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var decoded ViolationCategory
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, c, decoded)
	}

	var decoded ViolationCategory
	assert.ErrorContains(t, decoded.UnmarshalText([]byte("rename")), "unknown violation category")
}

func TestCheckHistory(t *testing.T) {
	v1 := graphOf(t, map[string]string{"a.proto": "syntax = \"proto3\";\nmessage A {\n  string id = 1;\n  string legacy = 2;\n}\n"})
	v2 := graphOf(t, map[string]string{"a.proto": "syntax = \"proto3\";\nmessage A {\n  string id = 1;\n  reserved 2;\n}\n"})
	v3 := graphOf(t, map[string]string{"a.proto": "syntax = \"proto3\";\nmessage A {\n  string id = 1;\n}\n"})

	t.Run("latest only", func(t *testing.T) {
		result, err := CheckHistory([]*SchemaGraph{v1, v2}, v3, CompatibilityModeBackward)
		require.NoError(t, err)
		assert.True(t, result.Compatible)
		assert.Contains(t, rules(result), "RESERVED_RANGE_REMOVED")
	})

	t.Run("transitive", func(t *testing.T) {
		result, err := CheckHistory([]*SchemaGraph{v1, v2}, v3, CompatibilityModeBackwardTransitive)
		require.NoError(t, err)
		assert.False(t, result.Compatible)
		assert.Contains(t, rules(result), "FIELD_REMOVED")
	})

	t.Run("no history", func(t *testing.T) {
		result, err := CheckHistory(nil, v3, CompatibilityModeFullTransitive)
		require.NoError(t, err)
		assert.True(t, result.Compatible)
	})
}

func TestCompatibilityMode(t *testing.T) {
	tests := []struct {
		mode       CompatibilityMode
		want       string
		backward   bool
		forward    bool
		transitive bool
	}{
		{CompatibilityModeNone, "NONE", false, false, false},
		{CompatibilityModeBackward, "BACKWARD", true, false, false},
		{CompatibilityModeForward, "FORWARD", false, true, false},
		{CompatibilityModeFull, "FULL", true, true, false},
		{CompatibilityModeBackwardTransitive, "BACKWARD_TRANSITIVE", true, false, true},
		{CompatibilityModeForwardTransitive, "FORWARD_TRANSITIVE", false, true, true},
		{CompatibilityModeFullTransitive, "FULL_TRANSITIVE", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.String())
			assert.Equal(t, tt.backward, tt.mode.Backward())
			assert.Equal(t, tt.forward, tt.mode.Forward())
			assert.Equal(t, tt.transitive, tt.mode.Transitive())
		})
	}
}

func TestParseCompatibilityMode(t *testing.T) {
	tests := []struct {
		input   string
		want    CompatibilityMode
		wantErr bool
	}{
		{"BACKWARD", CompatibilityModeBackward, false},
		{"forward", CompatibilityModeForward, false},
		{"Full", CompatibilityModeFull, false},
		{"NONE", CompatibilityModeNone, false},
		{"full-transitive", CompatibilityModeFullTransitive, false},
		{"INVALID", CompatibilityModeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompatibilityMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
