package linter

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the linting configuration
type Config struct {
	Version string        `yaml:"version"`
	Lint    LintRules     `yaml:"lint"`
	Quality QualityConfig `yaml:"quality"`
}

// LintRules contains rule configuration
type LintRules struct {
	Use []string `yaml:"use"` // Style guides: "google", "minimal"
	// Rules maps a rule name to true or false, or to a severity ("error",
	// "warning", "info") or "off".
	Rules      map[string]interface{} `yaml:"rules"`
	Ignore     []string               `yaml:"ignore"`
	Files      map[string]FileRules   `yaml:"files"`
	Categories map[string]string      `yaml:"categories"` // category -> severity or "off"
}

// FileRules contains per-file rule overrides
type FileRules struct {
	Rules map[string]bool `yaml:"rules"`
}

// QualityConfig configures quality metrics
type QualityConfig struct {
	Enabled               bool                        `yaml:"enabled"`
	DocumentationCoverage DocumentationCoverageConfig `yaml:"documentation_coverage"`
	Complexity            ComplexityConfig            `yaml:"complexity"`
}

// DocumentationCoverageConfig for documentation metrics
type DocumentationCoverageConfig struct {
	MinCoverage float64 `yaml:"min_coverage"`
}

// ComplexityConfig for complexity metrics
type ComplexityConfig struct {
	MaxMessageDepth int `yaml:"max_message_depth"`
	MaxFieldCount   int `yaml:"max_field_count"`
}

// styleGuides lists the rules each style guide turns on.
var styleGuides = map[string][]string{
	"google": {
		"message-naming", "field-naming", "enum-naming", "enum-value-naming",
		"enum-zero-value", "service-naming", "rpc-naming",
	},
	"minimal": {
		"message-naming", "enum-naming", "service-naming",
	},
}

const severityOff = "off"

// ConfigFileNames are the names LoadConfigFromDir looks for, in order.
var ConfigFileNames = []string{"protolink.lint.yaml", "protolink.lint.yml", ".protolink.lint.yaml", ".protolink.lint.yml"}

// DefaultConfig returns default linting configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "v1",
		Lint: LintRules{
			Use:        []string{"google"},
			Rules:      make(map[string]interface{}),
			Ignore:     []string{"vendor/**", "third_party/**"},
			Files:      make(map[string]FileRules),
			Categories: make(map[string]string),
		},
		Quality: QualityConfig{
			Enabled: true,
			DocumentationCoverage: DocumentationCoverageConfig{
				MinCoverage: 80.0,
			},
			Complexity: ComplexityConfig{
				MaxMessageDepth: 5,
				MaxFieldCount:   50,
			},
		},
	}
}

// LoadConfig loads configuration from a file. Unset sections keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("invalid lint config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromDir searches for config file in directory
func LoadConfigFromDir(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}

	return DefaultConfig(), nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, guide := range c.Lint.Use {
		if _, ok := styleGuides[guide]; !ok {
			return fmt.Errorf("unknown style guide %q", guide)
		}
	}
	names := make([]string, 0, len(c.Lint.Rules))
	for name := range c.Lint.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := c.Lint.Rules[name].(type) {
		case bool:
		case string:
			if !validSeverity(v) {
				return fmt.Errorf("rule %s: invalid severity %q", name, v)
			}
		default:
			return fmt.Errorf("rule %s: expected a bool or severity, got %v", name, v)
		}
	}
	for category, severity := range c.Lint.Categories {
		if !validSeverity(severity) {
			return fmt.Errorf("category %s: invalid severity %q", category, severity)
		}
	}
	for _, pattern := range c.Lint.Ignore {
		if _, err := path.Match(strings.TrimSuffix(pattern, "/**"), ""); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validSeverity(s string) bool {
	switch Severity(strings.ToLower(s)) {
	case SeverityError, SeverityWarning, SeverityInfo, severityOff:
		return true
	}
	return false
}

// ruleSelected reports whether name runs at all under this config.
func (c *Config) ruleSelected(name string, category Category) bool {
	if v, ok := c.Lint.Rules[name]; ok {
		switch v := v.(type) {
		case bool:
			return v
		case string:
			return !strings.EqualFold(v, severityOff)
		}
	}
	if strings.EqualFold(c.Lint.Categories[string(category)], severityOff) {
		return false
	}
	if len(c.Lint.Use) == 0 {
		return true
	}
	for _, guide := range c.Lint.Use {
		for _, rule := range styleGuides[guide] {
			if rule == name {
				return true
			}
		}
	}
	return false
}

func (c *Config) severityFor(rule Rule) Severity {
	if v, ok := c.Lint.Rules[rule.Name()].(string); ok && !strings.EqualFold(v, severityOff) {
		return Severity(strings.ToLower(v))
	}
	if v, ok := c.Lint.Categories[string(rule.Category())]; ok && !strings.EqualFold(v, severityOff) {
		return Severity(strings.ToLower(v))
	}
	return rule.Severity()
}

func (c *Config) ruleEnabledForFile(name, file string) bool {
	patterns := make([]string, 0, len(c.Lint.Files))
	for pattern := range c.Lint.Files {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		if !matchPattern(pattern, file) {
			continue
		}
		if enabled, ok := c.Lint.Files[pattern].Rules[name]; ok {
			return enabled
		}
	}
	return true
}

func (c *Config) ignored(file string) bool {
	for _, pattern := range c.Lint.Ignore {
		if matchPattern(pattern, file) {
			return true
		}
	}
	return false
}

// matchPattern matches slash-separated paths. A trailing "/**" matches
// everything below a directory.
func matchPattern(pattern, file string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		return file == dir || strings.HasPrefix(file, dir+"/")
	}
	ok, err := path.Match(pattern, file)
	return err == nil && ok
}
