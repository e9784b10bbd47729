package rules

import (
	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/schema"
)

// BaseRule provides common functionality for rules
type BaseRule struct {
	RuleName        string
	RuleCategory    linter.Category
	RuleSeverity    linter.Severity
	RuleDescription string
}

func (r *BaseRule) Name() string              { return r.RuleName }
func (r *BaseRule) Category() linter.Category { return r.RuleCategory }
func (r *BaseRule) Severity() linter.Severity { return r.RuleSeverity }
func (r *BaseRule) Description() string       { return r.RuleDescription }

func (r *BaseRule) violation(loc schema.Location, message string, fix *linter.Fix) linter.Violation {
	return linter.Violation{
		Rule:         r.RuleName,
		Severity:     r.RuleSeverity,
		Category:     r.RuleCategory,
		Message:      message,
		Location:     loc,
		SuggestedFix: fix,
	}
}

// rename suggests replacing oldName with newName, or nothing when the
// conversion cannot produce a different name.
func rename(description, oldName, newName string) *linter.Fix {
	if newName == "" || newName == oldName {
		return nil
	}
	return &linter.Fix{Description: description, OldText: oldName, NewText: newName}
}

// messages calls fn for every message declared in types, depth first.
func messages(types []schema.Type, fn func(*schema.MessageType)) {
	for _, t := range types {
		if msg, ok := t.(*schema.MessageType); ok {
			fn(msg)
			messages(msg.NestedTypes(), fn)
		}
	}
}

// enums calls fn for every enum declared in types, at any depth.
func enums(types []schema.Type, fn func(*schema.EnumType)) {
	for _, t := range types {
		switch t := t.(type) {
		case *schema.EnumType:
			fn(t)
		case *schema.MessageType:
			enums(t.NestedTypes(), fn)
		}
	}
}

// DefaultRules returns every built-in rule.
func DefaultRules() []linter.Rule {
	return []linter.Rule{
		NewMessageNamingRule(),
		NewFieldNamingRule(),
		NewEnumNamingRule(),
		NewEnumValueNamingRule(),
		NewEnumZeroValueRule(),
		NewServiceNamingRule(),
		NewRPCNamingRule(),
	}
}

// RegisterDefaultRules registers all built-in lint rules
func RegisterDefaultRules(registry *linter.RuleRegistry) {
	for _, rule := range DefaultRules() {
		registry.Register(rule)
	}
}
