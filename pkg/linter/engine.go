package linter

import (
	"sort"
	"strings"

	"github.com/platinummonkey/protolink/pkg/schema"
)

// LintEngine orchestrates the linting process
type LintEngine struct {
	config   *Config
	registry *RuleRegistry
}

// NewLintEngine creates a new lint engine with an empty registry.
func NewLintEngine(config *Config) *LintEngine {
	if config == nil {
		config = DefaultConfig()
	}

	return &LintEngine{
		config:   config,
		registry: NewRuleRegistry(),
	}
}

// Registry returns the rules the engine can run.
func (e *LintEngine) Registry() *RuleRegistry {
	return e.registry
}

// Lint runs all enabled rules against one linked file.
func (e *LintEngine) Lint(s *schema.Schema, file *schema.ProtoFile) LintResult {
	result := LintResult{
		FilePath:   file.Path(),
		Violations: make([]Violation, 0),
	}

	ctx := &LintContext{
		FilePath: file.Path(),
		File:     file,
		Schema:   s,
		Config:   e.config,
	}

	for _, rule := range e.registry.GetEnabledRules(e.config) {
		if !e.config.ruleEnabledForFile(rule.Name(), file.Path()) {
			continue
		}
		severity := e.config.severityFor(rule)
		for _, v := range rule.Check(file, ctx) {
			v.Severity = severity
			result.Violations = append(result.Violations, v)
		}
	}

	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i].Location, result.Violations[j].Location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return result.Violations[i].Rule < result.Violations[j].Rule
	})

	if e.config.Quality.Enabled {
		result.Metrics = e.calculateMetrics(file)
	}

	return result
}

// LintSchema lints every file of s that is not ignored, in link order.
// Well-known google/protobuf files are always skipped.
func (e *LintEngine) LintSchema(s *schema.Schema) []LintResult {
	results := make([]LintResult, 0)
	for _, file := range s.ProtoFiles() {
		if strings.HasPrefix(file.Path(), "google/protobuf/") || e.config.ignored(file.Path()) {
			continue
		}
		results = append(results, e.Lint(s, file))
	}
	return results
}

// GenerateSummary creates a summary of lint results
func (e *LintEngine) GenerateSummary(results []LintResult) Summary {
	summary := Summary{
		TotalFiles: len(results),
	}

	for _, result := range results {
		summary.TotalViolations += len(result.Violations)
		for _, v := range result.Violations {
			switch v.Severity {
			case SeverityError:
				summary.Errors++
			case SeverityWarning:
				summary.Warnings++
			case SeverityInfo:
				summary.Infos++
			}
		}
	}

	return summary
}

func (e *LintEngine) calculateMetrics(file *schema.ProtoFile) FileMetrics {
	m := FileMetrics{FilePath: file.Path()}
	var walk func(types []schema.Type, depth int)
	walk = func(types []schema.Type, depth int) {
		for _, t := range types {
			msg, ok := t.(*schema.MessageType)
			if !ok {
				continue
			}
			m.MessageCount++
			if depth > m.MaxMessageDepth {
				m.MaxMessageDepth = depth
			}
			if msg.Documentation() != "" {
				m.CommentedMessages++
			}
			for _, f := range msg.FieldsAndOneOfFields() {
				m.FieldCount++
				if f.Documentation() != "" {
					m.CommentedFields++
				}
			}
			walk(msg.NestedTypes(), depth+1)
		}
	}
	walk(file.Types(), 1)

	if total := m.MessageCount + m.FieldCount; total > 0 {
		m.DocumentationCoverage = float64(m.CommentedMessages+m.CommentedFields) / float64(total) * 100
	}
	c := e.config.Quality.Complexity
	if c.MaxMessageDepth > 0 && c.MaxFieldCount > 0 {
		m.ComplexityScore = float64(m.MaxMessageDepth)/float64(c.MaxMessageDepth)*50 +
			float64(m.FieldCount)/float64(c.MaxFieldCount)*50
	}
	return m
}

// LintResult contains the result of linting a single file
type LintResult struct {
	FilePath   string      `json:"file_path"`
	Violations []Violation `json:"violations"`
	Metrics    FileMetrics `json:"metrics"`
}

// Violation represents a linting violation
type Violation struct {
	Rule         string          `json:"rule"`
	Severity     Severity        `json:"severity"`
	Category     Category        `json:"category"`
	Message      string          `json:"message"`
	Location     schema.Location `json:"location"`
	SuggestedFix *Fix            `json:"suggested_fix,omitempty"`
}

func (v Violation) String() string {
	return v.Location.String() + ": " + string(v.Severity) + ": " + v.Message + " (" + v.Rule + ")"
}

// Severity indicates how serious a violation is
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category groups related rules
type Category string

const (
	CategoryNaming        Category = "naming"
	CategoryStyle         Category = "style"
	CategoryDocumentation Category = "documentation"
	CategoryStructure     Category = "structure"
)

// Fix represents a suggested rename
type Fix struct {
	Description string `json:"description"`
	OldText     string `json:"old_text"`
	NewText     string `json:"new_text"`
}

// FileMetrics contains quality metrics for a file
type FileMetrics struct {
	FilePath              string  `json:"file_path,omitempty"`
	MessageCount          int     `json:"message_count"`
	FieldCount            int     `json:"field_count"`
	MaxMessageDepth       int     `json:"max_message_depth"`
	CommentedMessages     int     `json:"commented_messages"`
	CommentedFields       int     `json:"commented_fields"`
	DocumentationCoverage float64 `json:"documentation_coverage"`
	ComplexityScore       float64 `json:"complexity_score"`
}

// Summary provides an overview of all lint results
type Summary struct {
	TotalFiles      int `json:"total_files"`
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Infos           int `json:"infos"`
}

// LintContext provides context during rule checking
type LintContext struct {
	FilePath string
	File     *schema.ProtoFile
	Schema   *schema.Schema
	Config   *Config
}
