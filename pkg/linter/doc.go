// Package linter applies style rules to linked protobuf schemas.
//
// # Overview
//
// Rules run over the files of a [schema.Schema], so every violation carries
// the resolved location of the element it names. The engine holds a
// [RuleRegistry]; the default naming and structure rules live in the
// rules subpackage.
//
// # Style Guides
//
// google: all naming rules plus enum-zero-value
// minimal: message, enum and service naming only
//
// # Rule Categories
//
// Naming: message, field, enum, enum value, service and RPC names
// Structure: enum zero values
//
// # Usage Example
//
//	config, err := linter.LoadConfigFromDir(".")
//	if err != nil {
//		return err
//	}
//	engine := linter.NewLintEngine(config)
//	rules.RegisterDefaultRules(engine.Registry())
//
//	results := engine.LintSchema(s)
//	summary := engine.GenerateSummary(results)
//	fmt.Printf("Violations: %d errors, %d warnings\n",
//		summary.Errors, summary.Warnings)
//
// # Configuration
//
// protolink.lint.yaml:
//
//	version: v1
//	lint:
//	  use:
//	    - google
//	  rules:
//	    enum-zero-value: error
//	    rpc-naming: false
//	  categories:
//	    naming: warning
//	  ignore:
//	    - vendor/**
//	  files:
//	    "legacy/*.proto":
//	      rules:
//	        field-naming: false
//	quality:
//	  enabled: true
//	  documentation_coverage:
//	    min_coverage: 80.0
//	  complexity:
//	    max_message_depth: 5
//	    max_field_count: 50
//
// # Quality Metrics
//
// When quality is enabled each result carries message and field counts,
// nesting depth, documentation coverage and a complexity score relative to
// the configured limits.
package linter
