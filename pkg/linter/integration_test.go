package linter_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/linter/rules"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/schema"
)

func link(t *testing.T, sources map[string]string) *schema.Schema {
	t.Helper()
	files, err := loader.New(afero.NewMemMapFs(), nil, loader.Config{}).LoadSources(context.Background(), sources)
	require.NoError(t, err)
	s, err := schema.Link(context.Background(), files)
	require.NoError(t, err)
	return s
}

func newEngine(config *linter.Config) *linter.LintEngine {
	engine := linter.NewLintEngine(config)
	rules.RegisterDefaultRules(engine.Registry())
	return engine
}

const badProto = `syntax = "proto3";
package test.pkg;

message user_profile {
  string UserId = 1;
  string user_name = 2;
}

service user_service {
  rpc get(user_profile) returns (user_profile);
}

enum status {
  Active = 0;
  INACTIVE = 1;
}
`

func TestLintEngine_NamingRules(t *testing.T) {
	s := link(t, map[string]string{"test.proto": badProto})
	engine := newEngine(nil)

	results := engine.LintSchema(s)
	require.Len(t, results, 1)

	got := make([]string, 0)
	for _, v := range results[0].Violations {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{
		"test.proto at 4:1: error: Message name 'user_profile' should be PascalCase (message-naming)",
		"test.proto at 5:3: error: Field name 'UserId' should be snake_case (field-naming)",
		"test.proto at 9:1: error: Service name 'user_service' should be PascalCase (service-naming)",
		"test.proto at 10:3: error: RPC name 'get' should be PascalCase (rpc-naming)",
		"test.proto at 13:1: error: Enum name 'status' should be PascalCase (enum-naming)",
		"test.proto at 14:3: error: Enum value 'Active' should be UPPER_SNAKE_CASE (enum-value-naming)",
	}, got)

	summary := engine.GenerateSummary(results)
	assert.Equal(t, linter.Summary{TotalFiles: 1, TotalViolations: 6, Errors: 6}, summary)
}

func TestLintEngine_NoViolations(t *testing.T) {
	s := link(t, map[string]string{"good.proto": `syntax = "proto3";
package good;
import "google/protobuf/timestamp.proto";

// A user.
message UserProfile {
  // The id.
  string user_id = 1;
  google.protobuf.Timestamp created_at = 2;
}

enum Status {
  STATUS_UNSPECIFIED = 0;
}

service UserService {
  rpc GetUser(UserProfile) returns (UserProfile);
}
`})
	results := newEngine(nil).LintSchema(s)
	require.Len(t, results, 1, "well-known imports are not linted")
	assert.Empty(t, results[0].Violations)
	assert.Equal(t, 1, results[0].Metrics.MessageCount)
	assert.Equal(t, 2, results[0].Metrics.FieldCount)
	assert.Equal(t, 1, results[0].Metrics.CommentedMessages)
	assert.Equal(t, 1, results[0].Metrics.CommentedFields)
	assert.InDelta(t, 66.66, results[0].Metrics.DocumentationCoverage, 0.1)
}

func TestLintEngine_SeverityOverrides(t *testing.T) {
	s := link(t, map[string]string{"test.proto": badProto})

	config := linter.DefaultConfig()
	config.Lint.Categories["naming"] = "warning"
	config.Lint.Rules["field-naming"] = "info"
	config.Lint.Rules["rpc-naming"] = false

	results := newEngine(config).LintSchema(s)
	require.Len(t, results, 1)

	severities := make(map[string]linter.Severity)
	for _, v := range results[0].Violations {
		severities[v.Rule] = v.Severity
	}
	assert.Equal(t, linter.SeverityWarning, severities["message-naming"])
	assert.Equal(t, linter.SeverityInfo, severities["field-naming"])
	assert.NotContains(t, severities, "rpc-naming")
}

func TestLintEngine_IgnoreAndFileRules(t *testing.T) {
	s := link(t, map[string]string{
		"vendor/ext.proto":  "message bad_vendor {}\n",
		"legacy/old.proto":  "message Old {\n  optional string BadField = 1;\n}\n",
		"current/new.proto": "message New {\n  optional string BadField = 1;\n}\n",
	})

	config := linter.DefaultConfig()
	config.Lint.Files["legacy/*"] = linter.FileRules{Rules: map[string]bool{"field-naming": false}}

	results := newEngine(config).LintSchema(s)
	require.Len(t, results, 2)
	assert.Equal(t, "current/new.proto", results[0].FilePath)
	assert.Len(t, results[0].Violations, 1)
	assert.Equal(t, "legacy/old.proto", results[1].FilePath)
	assert.Empty(t, results[1].Violations)
}

func TestLintEngine_QualityDisabled(t *testing.T) {
	s := link(t, map[string]string{"a.proto": "message A {\n  message B {}\n}\n"})
	config := linter.DefaultConfig()

	results := newEngine(config).LintSchema(s)
	assert.Equal(t, 2, results[0].Metrics.MaxMessageDepth)

	config.Quality.Enabled = false
	results = newEngine(config).LintSchema(s)
	assert.Zero(t, results[0].Metrics.MessageCount)
}
