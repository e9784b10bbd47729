package linter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NotNil(t, config)
	assert.Equal(t, "v1", config.Version)
	assert.Equal(t, []string{"google"}, config.Lint.Use)
	assert.Len(t, config.Lint.Ignore, 2)
	assert.True(t, config.Quality.Enabled)
	assert.Equal(t, 80.0, config.Quality.DocumentationCoverage.MinCoverage)
	assert.Equal(t, 5, config.Quality.Complexity.MaxMessageDepth)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "protolink.lint.yaml")
	configContent := `version: v1
lint:
  use:
    - google
  rules:
    enum-zero-value: error
    rpc-naming: false
  ignore:
    - vendor/**
  categories:
    naming: warning
  files:
    "legacy/*.proto":
      rules:
        field-naming: false
quality:
  enabled: true
  documentation_coverage:
    min_coverage: 90.0
  complexity:
    max_message_depth: 10
    max_field_count: 100
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "error", config.Lint.Rules["enum-zero-value"])
	assert.Equal(t, false, config.Lint.Rules["rpc-naming"])
	assert.Equal(t, 90.0, config.Quality.DocumentationCoverage.MinCoverage)
	assert.Equal(t, 100, config.Quality.Complexity.MaxFieldCount)
	assert.False(t, config.ruleEnabledForFile("field-naming", "legacy/old.proto"))
	assert.True(t, config.ruleEnabledForFile("field-naming", "current/new.proto"))
	assert.True(t, config.ignored("vendor/x/y.proto"))
	assert.False(t, config.ignored("vendored.proto"))
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		assert.Error(t, err)
	})

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"invalid yaml", "lint:\n  use: [invalid yaml content\n", "invalid lint config"},
		{"unknown guide", "lint:\n  use: [uber]\n", `unknown style guide "uber"`},
		{"bad severity", "lint:\n  rules:\n    field-naming: loud\n", `rule field-naming: invalid severity "loud"`},
		{"bad rule value", "lint:\n  rules:\n    field-naming: 3\n", "rule field-naming: expected a bool or severity"},
		{"bad category", "lint:\n  categories:\n    naming: fatal\n", `category naming: invalid severity "fatal"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	for _, name := range ConfigFileNames {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("version: v2\nquality:\n  enabled: false\n"), 0644))

			config, err := LoadConfigFromDir(dir)
			require.NoError(t, err)
			assert.Equal(t, "v2", config.Version)
			assert.False(t, config.Quality.Enabled)
			assert.Equal(t, []string{"google"}, config.Lint.Use)
		})
	}

	t.Run("default when missing", func(t *testing.T) {
		config, err := LoadConfigFromDir(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	config := DefaultConfig()
	config.Lint.Rules["field-naming"] = "warning"
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warning", loaded.Lint.Rules["field-naming"])
	assert.Equal(t, config.Lint.Use, loaded.Lint.Use)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		file    string
		want    bool
	}{
		{"vendor/**", "vendor/a.proto", true},
		{"vendor/**", "vendor/x/a.proto", true},
		{"vendor/**", "vendored/a.proto", false},
		{"*.proto", "a.proto", true},
		{"*.proto", "x/a.proto", false},
		{"x/*_test.proto", "x/a_test.proto", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.file))
		})
	}
}
