package rules

import (
	"fmt"

	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/schema"
)

// MessageNamingRule checks that message names follow PascalCase
type MessageNamingRule struct {
	BaseRule
}

// NewMessageNamingRule creates a new message naming rule
func NewMessageNamingRule() *MessageNamingRule {
	return &MessageNamingRule{
		BaseRule: BaseRule{
			RuleName:        "message-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "Message names must use PascalCase",
		},
	}
}

// Check validates message names, nested ones included.
func (r *MessageNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	messages(file.Types(), func(msg *schema.MessageType) {
		if isPascalCase(msg.Name()) {
			return
		}
		violations = append(violations, r.violation(msg.Location(),
			fmt.Sprintf("Message name '%s' should be PascalCase", msg.Name()),
			rename("Convert to PascalCase", msg.Name(), toPascalCase(msg.Name()))))
	})
	return violations
}

// FieldNamingRule checks that field names follow snake_case
type FieldNamingRule struct {
	BaseRule
}

// NewFieldNamingRule creates a new field naming rule
func NewFieldNamingRule() *FieldNamingRule {
	return &FieldNamingRule{
		BaseRule: BaseRule{
			RuleName:        "field-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "Field names must use lower_snake_case",
		},
	}
}

// Check validates the names of message fields, oneof fields and the
// extension fields the file declares.
func (r *FieldNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	check := func(f *schema.Field) {
		if isSnakeCase(f.Name()) {
			return
		}
		violations = append(violations, r.violation(f.Location(),
			fmt.Sprintf("Field name '%s' should be snake_case", f.Name()),
			rename("Convert to snake_case", f.Name(), toSnakeCase(f.Name()))))
	}
	messages(file.Types(), func(msg *schema.MessageType) {
		for _, f := range msg.FieldsAndOneOfFields() {
			check(f)
		}
	})
	for _, extend := range file.Extends() {
		for _, f := range extend.Fields() {
			check(f)
		}
	}
	return violations
}

// EnumNamingRule checks that enum names follow PascalCase
type EnumNamingRule struct {
	BaseRule
}

// NewEnumNamingRule creates a new enum naming rule
func NewEnumNamingRule() *EnumNamingRule {
	return &EnumNamingRule{
		BaseRule: BaseRule{
			RuleName:        "enum-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "Enum names must use PascalCase",
		},
	}
}

// Check validates enum names
func (r *EnumNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	enums(file.Types(), func(e *schema.EnumType) {
		if isPascalCase(e.Name()) {
			return
		}
		violations = append(violations, r.violation(e.Location(),
			fmt.Sprintf("Enum name '%s' should be PascalCase", e.Name()),
			rename("Convert to PascalCase", e.Name(), toPascalCase(e.Name()))))
	})
	return violations
}

// EnumValueNamingRule checks that enum values follow UPPER_SNAKE_CASE
type EnumValueNamingRule struct {
	BaseRule
}

// NewEnumValueNamingRule creates a new enum value naming rule
func NewEnumValueNamingRule() *EnumValueNamingRule {
	return &EnumValueNamingRule{
		BaseRule: BaseRule{
			RuleName:        "enum-value-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "Enum values must use UPPER_SNAKE_CASE",
		},
	}
}

// Check validates enum value names
func (r *EnumValueNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	enums(file.Types(), func(e *schema.EnumType) {
		for _, c := range e.Constants() {
			if isUpperSnakeCase(c.Name) {
				continue
			}
			violations = append(violations, r.violation(c.Location,
				fmt.Sprintf("Enum value '%s' should be UPPER_SNAKE_CASE", c.Name),
				rename("Convert to UPPER_SNAKE_CASE", c.Name, toUpperSnakeCase(c.Name))))
		}
	})
	return violations
}

// EnumZeroValueRule checks that every enum starts with a zero value.
type EnumZeroValueRule struct {
	BaseRule
}

// NewEnumZeroValueRule creates a new enum zero value rule
func NewEnumZeroValueRule() *EnumZeroValueRule {
	return &EnumZeroValueRule{
		BaseRule: BaseRule{
			RuleName:        "enum-zero-value",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "The first enum value must be zero",
		},
	}
}

// Check validates that the first constant of each enum is zero.
func (r *EnumZeroValueRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	enums(file.Types(), func(e *schema.EnumType) {
		constants := e.Constants()
		if len(constants) == 0 {
			violations = append(violations, r.violation(e.Location(),
				fmt.Sprintf("Enum '%s' has no values", e.Name()), nil))
			return
		}
		if constants[0].Tag == 0 {
			return
		}
		violations = append(violations, r.violation(constants[0].Location,
			fmt.Sprintf("Enum '%s' should start with a zero value such as %s_UNSPECIFIED = 0", e.Name(), toUpperSnakeCase(e.Name())), nil))
	})
	return violations
}

// ServiceNamingRule checks that service names follow PascalCase
type ServiceNamingRule struct {
	BaseRule
}

// NewServiceNamingRule creates a new service naming rule
func NewServiceNamingRule() *ServiceNamingRule {
	return &ServiceNamingRule{
		BaseRule: BaseRule{
			RuleName:        "service-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "Service names must use PascalCase",
		},
	}
}

// Check validates service names
func (r *ServiceNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, svc := range file.Services() {
		if isPascalCase(svc.Name()) {
			continue
		}
		violations = append(violations, r.violation(svc.Location(),
			fmt.Sprintf("Service name '%s' should be PascalCase", svc.Name()),
			rename("Convert to PascalCase", svc.Name(), toPascalCase(svc.Name()))))
	}
	return violations
}

// RPCNamingRule checks that rpc names follow PascalCase
type RPCNamingRule struct {
	BaseRule
}

// NewRPCNamingRule creates a new rpc naming rule
func NewRPCNamingRule() *RPCNamingRule {
	return &RPCNamingRule{
		BaseRule: BaseRule{
			RuleName:        "rpc-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityError,
			RuleDescription: "RPC names must use PascalCase",
		},
	}
}

// Check validates rpc names
func (r *RPCNamingRule) Check(file *schema.ProtoFile, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, svc := range file.Services() {
		for _, rpc := range svc.Rpcs() {
			if isPascalCase(rpc.Name()) {
				continue
			}
			violations = append(violations, r.violation(rpc.Location(),
				fmt.Sprintf("RPC name '%s' should be PascalCase", rpc.Name()),
				rename("Convert to PascalCase", rpc.Name(), toPascalCase(rpc.Name()))))
		}
	}
	return violations
}
