package linter

import (
	"sort"

	"github.com/platinummonkey/protolink/pkg/schema"
)

// Rule interface that all lint rules must implement
type Rule interface {
	Name() string
	Category() Category
	Severity() Severity
	Description() string
	Check(file *schema.ProtoFile, ctx *LintContext) []Violation
}

// RuleRegistry manages available lint rules
type RuleRegistry struct {
	rules map[string]Rule
}

// NewRuleRegistry creates an empty rule registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]Rule),
	}
}

// Register adds a rule to the registry, replacing a rule of the same name.
func (r *RuleRegistry) Register(rule Rule) {
	r.rules[rule.Name()] = rule
}

// GetRule retrieves a rule by name
func (r *RuleRegistry) GetRule(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// GetAllRules returns all registered rules sorted by name.
func (r *RuleRegistry) GetAllRules() []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name() < rules[j].Name() })
	return rules
}

// GetEnabledRules returns the rules config selects through its style
// guides, rule toggles and category switches.
func (r *RuleRegistry) GetEnabledRules(config *Config) []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.GetAllRules() {
		if config.ruleSelected(rule.Name(), rule.Category()) {
			rules = append(rules, rule)
		}
	}
	return rules
}

// GetRulesByCategory returns rules in a specific category
func (r *RuleRegistry) GetRulesByCategory(category Category) []Rule {
	rules := make([]Rule, 0)
	for _, rule := range r.GetAllRules() {
		if rule.Category() == category {
			rules = append(rules, rule)
		}
	}
	return rules
}
