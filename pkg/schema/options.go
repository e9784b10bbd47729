package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

// Options holds the option values of one declaration, keyed by member of
// the declaration's options type. Values are bool for true and false
// literals, string for other scalars, []any for repeated members and
// map[string]any for message literals and option sub-paths.
//
// A nil *Options is empty.
type Options struct {
	optionsType ProtoType
	entries     map[ProtoMember]any
	order       []ProtoMember
}

func newOptions(optionsType ProtoType) *Options {
	return &Options{
		optionsType: optionsType,
		entries:     make(map[ProtoMember]any),
	}
}

// OptionsType returns the options message these values are members of.
func (o *Options) OptionsType() ProtoType {
	if o == nil {
		return ProtoType{}
	}
	return o.optionsType
}

// Get returns the value of member, or nil when it is not set.
func (o *Options) Get(member ProtoMember) any {
	if o == nil {
		return nil
	}
	return o.entries[member]
}

// Bool reports whether member is set to true.
func (o *Options) Bool(member ProtoMember) bool {
	v, ok := o.Get(member).(bool)
	return ok && v
}

// Members returns the set members in the order they were first declared.
func (o *Options) Members() []ProtoMember {
	if o == nil {
		return nil
	}
	return append([]ProtoMember(nil), o.order...)
}

// Len returns the number of set members.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return len(o.order)
}

// optionsBuilder merges option statements into Options.
type optionsBuilder struct {
	options *Options
	// repeated reports whether a member of the options type is a repeated
	// field. It may be nil.
	repeated func(member string) bool
	// conflict is called for each statement that sets a non-repeated
	// member already set to a different value.
	conflict func(existing, value any)
}

// memberName returns the member an option statement targets and the
// sub-path below it.
func memberName(node *protobuf.OptionNode) (string, []string) {
	if len(node.Parts) == 0 {
		return strings.Trim(node.Name, "()"), nil
	}
	rest := make([]string, 0, len(node.Parts)-1)
	for _, p := range node.Parts[1:] {
		rest = append(rest, p.Name)
	}
	return node.Parts[0].Name, rest
}

func (b *optionsBuilder) add(node *protobuf.OptionNode) {
	name, path := memberName(node)
	value := optionValue(node.Value)
	for i := len(path) - 1; i >= 0; i-- {
		value = map[string]any{path[i]: value}
	}

	member := ProtoMemberOf(b.options.optionsType, name)
	existing, ok := b.options.entries[member]
	if !ok {
		b.options.order = append(b.options.order, member)
		if b.isRepeated(name) {
			b.options.entries[member] = appendValue(nil, value)
		} else {
			b.options.entries[member] = value
		}
		return
	}

	if b.isRepeated(name) {
		list, _ := existing.([]any)
		b.options.entries[member] = appendValue(list, value)
		return
	}

	merged, ok := mergeValues(existing, value)
	if !ok {
		if b.conflict != nil {
			b.conflict(existing, value)
		}
		return
	}
	b.options.entries[member] = merged
}

func (b *optionsBuilder) isRepeated(name string) bool {
	return b.repeated != nil && b.repeated(name)
}

func appendValue(list []any, value any) []any {
	if values, ok := value.([]any); ok {
		return append(list, values...)
	}
	return append(list, value)
}

// mergeValues combines two values set for the same member. Maps from
// distinct sub-paths merge; equal values are accepted; anything else
// conflicts.
func mergeValues(existing, value any) (any, bool) {
	em, eok := existing.(map[string]any)
	vm, vok := value.(map[string]any)
	if eok && vok {
		out := make(map[string]any, len(em)+len(vm))
		for k, v := range em {
			out[k] = v
		}
		for k, v := range vm {
			prev, ok := out[k]
			if !ok {
				out[k] = v
				continue
			}
			merged, ok := mergeValues(prev, v)
			if !ok {
				return nil, false
			}
			out[k] = merged
		}
		return out, true
	}
	if reflect.DeepEqual(existing, value) {
		return existing, true
	}
	return nil, false
}

// optionValue converts a source literal to its options value.
func optionValue(v protobuf.OptionValue) any {
	switch v.Kind {
	case protobuf.ValueBool:
		return v.Text == "true"
	case protobuf.ValueList:
		out := make([]any, 0, len(v.Elements))
		for _, e := range v.Elements {
			out = append(out, optionValue(e))
		}
		return out
	case protobuf.ValueMessage:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			name := strings.Trim(f.Name, "()")
			value := optionValue(f.Value)
			prev, ok := out[name]
			if !ok {
				out[name] = value
				continue
			}
			if list, ok := prev.([]any); ok {
				out[name] = append(list, value)
			} else {
				out[name] = []any{prev, value}
			}
		}
		return out
	default:
		return v.Text
	}
}

// formatValue renders an option value for diagnostics.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+formatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			parts = append(parts, formatValue(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(val)
	}
}
