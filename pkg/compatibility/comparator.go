package compatibility

import (
	"fmt"
	"sort"
	"strings"
)

// CompatibilityMode defines the type of compatibility checking
type CompatibilityMode int

const (
	CompatibilityModeNone CompatibilityMode = iota
	CompatibilityModeBackward
	CompatibilityModeForward
	CompatibilityModeFull
	CompatibilityModeBackwardTransitive
	CompatibilityModeForwardTransitive
	CompatibilityModeFullTransitive
)

func (m CompatibilityMode) String() string {
	return []string{
		"NONE", "BACKWARD", "FORWARD", "FULL",
		"BACKWARD_TRANSITIVE", "FORWARD_TRANSITIVE", "FULL_TRANSITIVE",
	}[m]
}

// Backward reports whether new readers must accept data written with the
// old schema.
func (m CompatibilityMode) Backward() bool {
	switch m {
	case CompatibilityModeBackward, CompatibilityModeFull,
		CompatibilityModeBackwardTransitive, CompatibilityModeFullTransitive:
		return true
	}
	return false
}

// Forward reports whether old readers must accept data written with the
// new schema.
func (m CompatibilityMode) Forward() bool {
	switch m {
	case CompatibilityModeForward, CompatibilityModeFull,
		CompatibilityModeForwardTransitive, CompatibilityModeFullTransitive:
		return true
	}
	return false
}

// Transitive reports whether the new schema is checked against every
// earlier version instead of only the latest.
func (m CompatibilityMode) Transitive() bool {
	return m >= CompatibilityModeBackwardTransitive
}

// Comparator compares two schema versions for compatibility
type Comparator struct {
	mode       CompatibilityMode
	oldSchema  *SchemaGraph
	newSchema  *SchemaGraph
	violations []Violation
}

// NewComparator creates a new comparator
func NewComparator(mode CompatibilityMode, oldSchema, newSchema *SchemaGraph) *Comparator {
	return &Comparator{
		mode:       mode,
		oldSchema:  oldSchema,
		newSchema:  newSchema,
		violations: make([]Violation, 0),
	}
}

// Violation represents a compatibility violation
type Violation struct {
	Rule           string            `json:"rule"`
	Level          ViolationLevel    `json:"level"`
	Category       ViolationCategory `json:"category"`
	Message        string            `json:"message"`
	Location       string            `json:"location"`
	OldValue       string            `json:"old_value,omitempty"`
	NewValue       string            `json:"new_value,omitempty"`
	WireBreaking   bool              `json:"wire_breaking"`
	SourceBreaking bool              `json:"source_breaking"`
	Suggestion     string            `json:"suggestion,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", v.Level, v.Rule, v.Location, v.Message)
}

// ViolationLevel indicates the severity
type ViolationLevel int

const (
	ViolationLevelInfo ViolationLevel = iota
	ViolationLevelWarning
	ViolationLevelError
)

var violationLevelNames = []string{"INFO", "WARNING", "ERROR"}

func (vl ViolationLevel) String() string {
	return violationLevelNames[vl]
}

// MarshalText encodes the level by name.
func (vl ViolationLevel) MarshalText() ([]byte, error) {
	return []byte(vl.String()), nil
}

// UnmarshalText decodes a level name written by MarshalText.
func (vl *ViolationLevel) UnmarshalText(text []byte) error {
	for i, name := range violationLevelNames {
		if name == string(text) {
			*vl = ViolationLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown violation level %q", text)
}

// ViolationCategory groups related violations
type ViolationCategory int

const (
	CategoryFieldChange ViolationCategory = iota
	CategoryTypeChange
	CategoryEnumChange
	CategoryServiceChange
	CategoryReservedChange
	CategoryPackageChange
	CategoryImportChange
)

var violationCategoryNames = []string{
	"field_change", "type_change", "enum_change", "service_change",
	"reserved_change", "package_change", "import_change",
}

func (vc ViolationCategory) String() string {
	return violationCategoryNames[vc]
}

// MarshalText encodes the category by name.
func (vc ViolationCategory) MarshalText() ([]byte, error) {
	return []byte(vc.String()), nil
}

// UnmarshalText decodes a category name written by MarshalText.
func (vc *ViolationCategory) UnmarshalText(text []byte) error {
	for i, name := range violationCategoryNames {
		if name == string(text) {
			*vc = ViolationCategory(i)
			return nil
		}
	}
	return fmt.Errorf("unknown violation category %q", text)
}

// CheckResult contains the results of a compatibility check
type CheckResult struct {
	Compatible bool        `json:"compatible"`
	Mode       string      `json:"mode"`
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides an overview of violations
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Infos           int `json:"infos"`
	WireBreaking    int `json:"wire_breaking"`
	SourceBreaking  int `json:"source_breaking"`
}

// Compare runs the compatibility check
func (c *Comparator) Compare() (*CheckResult, error) {
	if c.oldSchema == nil || c.newSchema == nil {
		return nil, fmt.Errorf("compare requires both schema versions")
	}
	c.violations = make([]Violation, 0)

	if c.mode == CompatibilityModeNone {
		return &CheckResult{
			Compatible: true,
			Mode:       c.mode.String(),
			Violations: c.violations,
		}, nil
	}

	c.comparePackages()
	c.compareImports()
	c.compareMessages()
	c.compareEnums()
	c.compareServices()

	return newResult(c.mode, c.violations), nil
}

func newResult(mode CompatibilityMode, violations []Violation) *CheckResult {
	compatible := true
	for _, v := range violations {
		if v.Level == ViolationLevelError {
			compatible = false
			break
		}
	}
	return &CheckResult{
		Compatible: compatible,
		Mode:       mode.String(),
		Violations: violations,
		Summary:    summarize(violations),
	}
}

func (c *Comparator) comparePackages() {
	for _, path := range sortedKeys(c.oldSchema.Files) {
		oldFile := c.oldSchema.Files[path]
		newFile, ok := c.newSchema.Files[path]
		if !ok || oldFile.Package == newFile.Package {
			continue
		}
		c.addViolation(Violation{
			Rule:           "PACKAGE_CHANGED",
			Level:          ViolationLevelError,
			Category:       CategoryPackageChange,
			Location:       path,
			OldValue:       oldFile.Package,
			NewValue:       newFile.Package,
			Message:        "Package name changed - breaks all imports",
			WireBreaking:   false,
			SourceBreaking: true,
			Suggestion:     "Create a new package instead of renaming. Consider backward compatibility aliases.",
		})
	}
}

func (c *Comparator) compareImports() {
	for _, path := range sortedKeys(c.oldSchema.Files) {
		newFile, ok := c.newSchema.Files[path]
		if !ok {
			continue
		}
		kept := make(map[string]Import, len(newFile.Imports))
		for _, imp := range newFile.Imports {
			kept[imp.Path] = imp
		}
		for _, imp := range c.oldSchema.Files[path].Imports {
			if !imp.Public {
				continue
			}
			if now, ok := kept[imp.Path]; ok && now.Public {
				continue
			}
			c.addViolation(NewViolationBuilder("PUBLIC_IMPORT_REMOVED").
				WithLevel(ViolationLevelWarning).
				WithCategory(CategoryImportChange).
				WithLocation(path).
				WithMessage(fmt.Sprintf("Public import %s removed - files importing %s lose its types", imp.Path, path)).
				WithChange(imp.Path, "").
				WithSourceBreaking(true).
				WithSuggestion("Keep the public import until dependents import the file directly.").
				Build())
		}
	}
}

func (c *Comparator) compareMessages() {
	for _, name := range sortedKeys(c.oldSchema.Messages) {
		oldMsg := c.oldSchema.Messages[name]
		newMsg, ok := c.newSchema.Messages[name]
		if !ok {
			c.addViolation(NewViolationBuilder("MESSAGE_REMOVED").
				WithLevel(ViolationLevelError).
				WithCategory(CategoryTypeChange).
				WithLocation(name).
				WithMessage(fmt.Sprintf("Message %s removed", name)).
				WithChange(name, "").
				WithSourceBreaking(true).
				WithSuggestion("Deprecate the message instead of removing it.").
				Build())
			continue
		}
		c.compareFields(oldMsg, newMsg)
		c.compareReserved(name, oldMsg.Reserved, newMsg.Reserved)
	}

	for _, name := range sortedKeys(c.newSchema.Messages) {
		if _, ok := c.oldSchema.Messages[name]; ok {
			continue
		}
		c.addViolation(NewViolationBuilder("MESSAGE_ADDED").
			WithLevel(ViolationLevelInfo).
			WithCategory(CategoryTypeChange).
			WithLocation(name).
			WithMessage(fmt.Sprintf("Message %s added", name)).
			WithChange("", name).
			Build())
	}
}

func (c *Comparator) compareFields(oldMsg, newMsg *Message) {
	for _, number := range sortedKeys(oldMsg.Fields) {
		oldField := oldMsg.Fields[number]
		location := oldMsg.FullName + "." + oldField.Name
		newField, ok := newMsg.Fields[number]
		if ok {
			c.compareField(location, oldField, newField)
			continue
		}

		if moved, ok := newMsg.FieldsByName[oldField.Name]; ok {
			c.addViolation(NewViolationBuilder("FIELD_NUMBER_CHANGED").
				WithLevel(ViolationLevelError).
				WithCategory(CategoryFieldChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Field number changed from %d to %d", oldField.Number, moved.Number)).
				WithChange(fmt.Sprint(oldField.Number), fmt.Sprint(moved.Number)).
				WithWireBreaking(true).
				WithSuggestion(fmt.Sprintf("Field numbers must remain stable. Reserve %d and add a new field.", oldField.Number)).
				Build())
			continue
		}

		if newMsg.Reserved.HasNumber(number) {
			c.addViolation(NewViolationBuilder("FIELD_REMOVED_RESERVED").
				WithLevel(ViolationLevelInfo).
				WithCategory(CategoryFieldChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Field %s removed and tag %d reserved", oldField.Name, number)).
				WithChange(oldField.Name, "").
				WithSourceBreaking(true).
				Build())
			continue
		}

		c.addViolation(NewViolationBuilder("FIELD_REMOVED").
			WithLevel(ViolationLevelError).
			WithCategory(CategoryFieldChange).
			WithLocation(location).
			WithMessage(fmt.Sprintf("Field %s (%d) removed without reserving its tag", oldField.Name, number)).
			WithChange(oldField.Name, "").
			WithSourceBreaking(true).
			WithSuggestion(fmt.Sprintf("Add 'reserved %d;' and 'reserved \"%s\";' so the tag is never reused.", number, oldField.Name)).
			Build())
	}

	for _, number := range sortedKeys(newMsg.Fields) {
		if _, ok := oldMsg.Fields[number]; ok {
			continue
		}
		newField := newMsg.Fields[number]
		if _, moved := oldMsg.FieldsByName[newField.Name]; moved {
			continue
		}
		location := newMsg.FullName + "." + newField.Name

		switch {
		case oldMsg.Reserved.HasNumber(number) || oldMsg.Reserved.HasName(newField.Name):
			c.addViolation(NewViolationBuilder("RESERVED_FIELD_REUSED").
				WithLevel(ViolationLevelError).
				WithCategory(CategoryReservedChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Field %s (%d) reuses a reserved tag or name", newField.Name, number)).
				WithChange("", newField.Name).
				WithWireBreaking(true).
				WithSuggestion("Pick a tag and name that were never used.").
				Build())
		case newField.Label == FieldLabelRequired:
			level := ViolationLevelWarning
			if c.mode.Backward() {
				level = ViolationLevelError
			}
			c.addViolation(NewViolationBuilder("REQUIRED_FIELD_ADDED").
				WithLevel(level).
				WithCategory(CategoryFieldChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Required field %s added - old messages do not carry it", newField.Name)).
				WithChange("", newField.Name).
				WithWireBreaking(true).
				WithSuggestion("Add the field as optional.").
				Build())
		default:
			c.addViolation(NewViolationBuilder("FIELD_ADDED").
				WithLevel(ViolationLevelInfo).
				WithCategory(CategoryFieldChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Field %s (%d) added", newField.Name, number)).
				WithChange("", newField.Name).
				Build())
		}
	}
}

func (c *Comparator) compareField(location string, oldField, newField *Field) {
	if oldField.Name != newField.Name {
		c.addViolation(NewViolationBuilder("FIELD_RENAMED").
			WithLevel(ViolationLevelWarning).
			WithCategory(CategoryFieldChange).
			WithLocation(location).
			WithMessage(fmt.Sprintf("Field %d renamed from %s to %s - breaks JSON and generated code", oldField.Number, oldField.Name, newField.Name)).
			WithChange(oldField.Name, newField.Name).
			WithSourceBreaking(true).
			Build())
	}

	if oldType, newType := oldField.TypeString(), newField.TypeString(); oldType != newType {
		v := NewViolationBuilder("FIELD_TYPE_CHANGED").
			WithCategory(CategoryTypeChange).
			WithLocation(location).
			WithChange(oldType, newType).
			WithSourceBreaking(true)
		if wireCompatible(oldField, newField) {
			v.WithLevel(ViolationLevelWarning).
				WithMessage(fmt.Sprintf("Field type changed from %s to %s - same wire encoding, values may be truncated", oldType, newType))
		} else {
			v.WithLevel(ViolationLevelError).
				WithMessage(fmt.Sprintf("Field type changed from %s to %s", oldType, newType)).
				WithWireBreaking(true).
				WithSuggestion("Add a new field with the new type and deprecate the old one.")
		}
		c.addViolation(v.Build())
	}

	c.compareLabels(location, oldField, newField)

	if oldField.InOneOf != newField.InOneOf {
		c.addViolation(NewViolationBuilder("FIELD_ONEOF_CHANGED").
			WithLevel(ViolationLevelWarning).
			WithCategory(CategoryFieldChange).
			WithLocation(location).
			WithMessage("Field moved into or out of a oneof").
			WithChange(oldField.InOneOf, newField.InOneOf).
			WithSourceBreaking(true).
			Build())
	}
}

func (c *Comparator) compareLabels(location string, oldField, newField *Field) {
	if oldField.Label == newField.Label || oldField.IsMap || newField.IsMap {
		return
	}
	v := NewViolationBuilder("FIELD_LABEL_CHANGED").
		WithCategory(CategoryFieldChange).
		WithLocation(location).
		WithChange(oldField.Label.String(), newField.Label.String()).
		WithMessage(fmt.Sprintf("Field label changed from %s to %s", oldField.Label, newField.Label))

	switch {
	case oldField.Label == FieldLabelRepeated || newField.Label == FieldLabelRepeated:
		v.WithLevel(ViolationLevelError).WithWireBreaking(true).WithSourceBreaking(true)
	case newField.Label == FieldLabelRequired:
		v.WithLevel(levelFor(c.mode.Backward())).WithWireBreaking(true)
	default:
		v.WithLevel(levelFor(c.mode.Forward())).WithWireBreaking(true)
	}
	c.addViolation(v.Build())
}

func levelFor(breaking bool) ViolationLevel {
	if breaking {
		return ViolationLevelError
	}
	return ViolationLevelInfo
}

func wireCompatible(oldField, newField *Field) bool {
	if oldField.IsMap || newField.IsMap || oldField.Type == FieldTypeMessage || newField.Type == FieldTypeMessage {
		return false
	}
	oldClass, ok := wireClasses[oldField.Type]
	if !ok {
		return false
	}
	return oldClass == wireClasses[newField.Type]
}

// compareReserved reports reservations the new version dropped.
func (c *Comparator) compareReserved(location string, oldReserved, newReserved *Reserved) {
	if oldReserved == nil {
		return
	}
	for _, rng := range oldReserved.Ranges {
		if newReserved.HasNumber(rng[0]) && newReserved.HasNumber(rng[1]) {
			continue
		}
		c.addViolation(NewViolationBuilder("RESERVED_RANGE_REMOVED").
			WithLevel(ViolationLevelWarning).
			WithCategory(CategoryReservedChange).
			WithLocation(location).
			WithMessage(fmt.Sprintf("Reserved range %s no longer reserved", formatRange(rng))).
			WithChange(formatRange(rng), "").
			Build())
	}
	for _, name := range oldReserved.Names {
		if newReserved.HasName(name) {
			continue
		}
		c.addViolation(NewViolationBuilder("RESERVED_NAME_REMOVED").
			WithLevel(ViolationLevelWarning).
			WithCategory(CategoryReservedChange).
			WithLocation(location).
			WithMessage(fmt.Sprintf("Reserved name %q no longer reserved", name)).
			WithChange(name, "").
			Build())
	}
}

func formatRange(rng [2]int) string {
	if rng[0] == rng[1] {
		return fmt.Sprint(rng[0])
	}
	return fmt.Sprintf("%d to %d", rng[0], rng[1])
}

func (c *Comparator) compareEnums() {
	for _, name := range sortedKeys(c.oldSchema.Enums) {
		oldEnum := c.oldSchema.Enums[name]
		newEnum, ok := c.newSchema.Enums[name]
		if !ok {
			c.addViolation(NewViolationBuilder("ENUM_REMOVED").
				WithLevel(ViolationLevelError).
				WithCategory(CategoryEnumChange).
				WithLocation(name).
				WithMessage(fmt.Sprintf("Enum %s removed", name)).
				WithChange(name, "").
				WithSourceBreaking(true).
				Build())
			continue
		}

		for _, valueName := range sortedKeys(oldEnum.ValuesByName) {
			oldValue := oldEnum.ValuesByName[valueName]
			location := name + "." + valueName
			if newValue, ok := newEnum.ValuesByName[valueName]; ok {
				if newValue.Number != oldValue.Number {
					c.addViolation(NewViolationBuilder("ENUM_VALUE_NUMBER_CHANGED").
						WithLevel(ViolationLevelError).
						WithCategory(CategoryEnumChange).
						WithLocation(location).
						WithMessage(fmt.Sprintf("Enum value number changed from %d to %d", oldValue.Number, newValue.Number)).
						WithChange(fmt.Sprint(oldValue.Number), fmt.Sprint(newValue.Number)).
						WithWireBreaking(true).
						Build())
				}
				continue
			}

			switch renamed, ok := newEnum.Values[oldValue.Number]; {
			case ok:
				c.addViolation(NewViolationBuilder("ENUM_VALUE_RENAMED").
					WithLevel(ViolationLevelWarning).
					WithCategory(CategoryEnumChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("Enum value %d renamed from %s to %s", oldValue.Number, valueName, renamed.Name)).
					WithChange(valueName, renamed.Name).
					WithSourceBreaking(true).
					Build())
			case newEnum.Reserved.HasNumber(oldValue.Number):
				c.addViolation(NewViolationBuilder("ENUM_VALUE_REMOVED_RESERVED").
					WithLevel(ViolationLevelInfo).
					WithCategory(CategoryEnumChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("Enum value %s removed and number %d reserved", valueName, oldValue.Number)).
					WithChange(valueName, "").
					WithSourceBreaking(true).
					Build())
			default:
				c.addViolation(NewViolationBuilder("ENUM_VALUE_REMOVED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryEnumChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("Enum value %s (%d) removed without reserving its number", valueName, oldValue.Number)).
					WithChange(valueName, "").
					WithSourceBreaking(true).
					WithSuggestion(fmt.Sprintf("Add 'reserved %d;' to the enum.", oldValue.Number)).
					Build())
			}
		}

		for _, valueName := range sortedKeys(newEnum.ValuesByName) {
			if _, ok := oldEnum.ValuesByName[valueName]; ok {
				continue
			}
			newValue := newEnum.ValuesByName[valueName]
			if _, renamed := oldEnum.Values[newValue.Number]; renamed {
				continue
			}
			location := name + "." + valueName
			if oldEnum.Reserved.HasNumber(newValue.Number) || oldEnum.Reserved.HasName(valueName) {
				c.addViolation(NewViolationBuilder("RESERVED_ENUM_VALUE_REUSED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryReservedChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("Enum value %s (%d) reuses a reserved number or name", valueName, newValue.Number)).
					WithChange("", valueName).
					WithWireBreaking(true).
					Build())
				continue
			}
			level := ViolationLevelInfo
			if c.mode.Forward() {
				level = ViolationLevelWarning
			}
			c.addViolation(NewViolationBuilder("ENUM_VALUE_ADDED").
				WithLevel(level).
				WithCategory(CategoryEnumChange).
				WithLocation(location).
				WithMessage(fmt.Sprintf("Enum value %s (%d) added - old readers see an unknown value", valueName, newValue.Number)).
				WithChange("", valueName).
				Build())
		}

		c.compareReserved(name, oldEnum.Reserved, newEnum.Reserved)
	}
}

func (c *Comparator) compareServices() {
	for _, name := range sortedKeys(c.oldSchema.Services) {
		oldSvc := c.oldSchema.Services[name]
		newSvc, ok := c.newSchema.Services[name]
		if !ok {
			c.addViolation(NewViolationBuilder("SERVICE_REMOVED").
				WithLevel(ViolationLevelError).
				WithCategory(CategoryServiceChange).
				WithLocation(name).
				WithMessage(fmt.Sprintf("Service %s removed", name)).
				WithChange(name, "").
				WithSourceBreaking(true).
				Build())
			continue
		}

		for _, methodName := range sortedKeys(oldSvc.Methods) {
			oldMethod := oldSvc.Methods[methodName]
			location := name + "." + methodName
			newMethod, ok := newSvc.Methods[methodName]
			if !ok {
				c.addViolation(NewViolationBuilder("RPC_REMOVED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryServiceChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("RPC %s removed", methodName)).
					WithChange(methodName, "").
					WithSourceBreaking(true).
					WithSuggestion("Deprecate the RPC and keep serving it.").
					Build())
				continue
			}
			if oldMethod.InputType != newMethod.InputType {
				c.addViolation(NewViolationBuilder("RPC_INPUT_TYPE_CHANGED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryServiceChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("RPC request type changed from %s to %s", oldMethod.InputType, newMethod.InputType)).
					WithChange(oldMethod.InputType, newMethod.InputType).
					WithWireBreaking(true).
					WithSourceBreaking(true).
					Build())
			}
			if oldMethod.OutputType != newMethod.OutputType {
				c.addViolation(NewViolationBuilder("RPC_OUTPUT_TYPE_CHANGED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryServiceChange).
					WithLocation(location).
					WithMessage(fmt.Sprintf("RPC response type changed from %s to %s", oldMethod.OutputType, newMethod.OutputType)).
					WithChange(oldMethod.OutputType, newMethod.OutputType).
					WithWireBreaking(true).
					WithSourceBreaking(true).
					Build())
			}
			if oldMethod.ClientStreaming != newMethod.ClientStreaming || oldMethod.ServerStreaming != newMethod.ServerStreaming {
				c.addViolation(NewViolationBuilder("RPC_STREAMING_CHANGED").
					WithLevel(ViolationLevelError).
					WithCategory(CategoryServiceChange).
					WithLocation(location).
					WithMessage("RPC streaming mode changed").
					WithChange(streamingString(oldMethod), streamingString(newMethod)).
					WithWireBreaking(true).
					WithSourceBreaking(true).
					Build())
			}
		}

		for _, methodName := range sortedKeys(newSvc.Methods) {
			if _, ok := oldSvc.Methods[methodName]; ok {
				continue
			}
			c.addViolation(NewViolationBuilder("RPC_ADDED").
				WithLevel(ViolationLevelInfo).
				WithCategory(CategoryServiceChange).
				WithLocation(name + "." + methodName).
				WithMessage(fmt.Sprintf("RPC %s added", methodName)).
				WithChange("", methodName).
				Build())
		}
	}
}

func streamingString(m *Method) string {
	switch {
	case m.ClientStreaming && m.ServerStreaming:
		return "bidi"
	case m.ClientStreaming:
		return "client"
	case m.ServerStreaming:
		return "server"
	}
	return "unary"
}

func (c *Comparator) addViolation(v Violation) {
	c.violations = append(c.violations, v)
}

func summarize(violations []Violation) Summary {
	summary := Summary{
		TotalViolations: len(violations),
	}

	for _, v := range violations {
		switch v.Level {
		case ViolationLevelError:
			summary.Errors++
		case ViolationLevelWarning:
			summary.Warnings++
		case ViolationLevelInfo:
			summary.Infos++
		}

		if v.WireBreaking {
			summary.WireBreaking++
		}
		if v.SourceBreaking {
			summary.SourceBreaking++
		}
	}

	return summary
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ViolationBuilder helps construct violations fluently
type ViolationBuilder struct {
	violation Violation
}

// NewViolationBuilder creates a new violation builder
func NewViolationBuilder(rule string) *ViolationBuilder {
	return &ViolationBuilder{
		violation: Violation{
			Rule: rule,
		},
	}
}

func (b *ViolationBuilder) WithLevel(level ViolationLevel) *ViolationBuilder {
	b.violation.Level = level
	return b
}

func (b *ViolationBuilder) WithCategory(category ViolationCategory) *ViolationBuilder {
	b.violation.Category = category
	return b
}

func (b *ViolationBuilder) WithLocation(location string) *ViolationBuilder {
	b.violation.Location = location
	return b
}

func (b *ViolationBuilder) WithMessage(message string) *ViolationBuilder {
	b.violation.Message = message
	return b
}

func (b *ViolationBuilder) WithChange(oldValue, newValue string) *ViolationBuilder {
	b.violation.OldValue = oldValue
	b.violation.NewValue = newValue
	return b
}

func (b *ViolationBuilder) WithWireBreaking(breaking bool) *ViolationBuilder {
	b.violation.WireBreaking = breaking
	return b
}

func (b *ViolationBuilder) WithSourceBreaking(breaking bool) *ViolationBuilder {
	b.violation.SourceBreaking = breaking
	return b
}

func (b *ViolationBuilder) WithSuggestion(suggestion string) *ViolationBuilder {
	b.violation.Suggestion = suggestion
	return b
}

func (b *ViolationBuilder) Build() Violation {
	return b.violation
}

// CheckCompatibility compares two versions under mode.
func CheckCompatibility(oldSchema, newSchema *SchemaGraph, mode CompatibilityMode) (*CheckResult, error) {
	comparator := NewComparator(mode, oldSchema, newSchema)
	return comparator.Compare()
}

// CheckHistory compares newSchema with the versions in history, oldest
// first. Transitive modes check every version; the others only the latest.
// Identical violations found against several versions are reported once.
func CheckHistory(history []*SchemaGraph, newSchema *SchemaGraph, mode CompatibilityMode) (*CheckResult, error) {
	if len(history) == 0 {
		return newResult(mode, []Violation{}), nil
	}
	baselines := history[len(history)-1:]
	if mode.Transitive() {
		baselines = history
	}

	seen := make(map[Violation]bool)
	violations := make([]Violation, 0)
	for _, old := range baselines {
		result, err := CheckCompatibility(old, newSchema, mode)
		if err != nil {
			return nil, err
		}
		for _, v := range result.Violations {
			if seen[v] {
				continue
			}
			seen[v] = true
			violations = append(violations, v)
		}
	}
	return newResult(mode, violations), nil
}

// ParseCompatibilityMode converts a string to CompatibilityMode. Names are
// matched case-insensitively and dashes may stand for underscores.
func ParseCompatibilityMode(s string) (CompatibilityMode, error) {
	modes := map[string]CompatibilityMode{
		"NONE":                CompatibilityModeNone,
		"BACKWARD":            CompatibilityModeBackward,
		"FORWARD":             CompatibilityModeForward,
		"FULL":                CompatibilityModeFull,
		"BACKWARD_TRANSITIVE": CompatibilityModeBackwardTransitive,
		"FORWARD_TRANSITIVE":  CompatibilityModeForwardTransitive,
		"FULL_TRANSITIVE":     CompatibilityModeFullTransitive,
	}

	if mode, ok := modes[strings.ReplaceAll(strings.ToUpper(s), "-", "_")]; ok {
		return mode, nil
	}
	return CompatibilityModeNone, fmt.Errorf("unknown compatibility mode: %s", s)
}
