package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Rule names the check that produced a diagnostic.
type Rule string

const (
	RuleUnresolved    Rule = "unresolved"
	RuleImport        Rule = "import"
	RuleUnknownImport Rule = "unknown_import"
	RuleDuplicateType Rule = "duplicate_type"
	RuleTargetKind    Rule = "target_kind"
	RuleMapKey        Rule = "map_key"
	RuleOptions       Rule = "options"
	RuleTagRange      Rule = "tag_range"
	RuleUniqueTag     Rule = "unique_tag"
	RuleUniqueName    Rule = "unique_name"
	RuleEnumConstant  Rule = "enum_constant"
	RuleEnumAlias     Rule = "enum_alias"
	RuleReserved      Rule = "reserved"
	RulePacked        Rule = "packed"
	RuleLabel         Rule = "label"
)

// Context is one declaration enclosing a diagnostic, such as
// "message Message (a.proto at 1:1)". Name and Location may be empty.
type Context struct {
	Kind     string
	Name     string
	Location *Location
}

func (c Context) String() string {
	var b strings.Builder
	b.WriteString(c.Kind)
	if c.Name != "" {
		b.WriteString(" ")
		b.WriteString(c.Name)
	}
	if c.Location != nil {
		b.WriteString(" (")
		b.WriteString(c.Location.String())
		b.WriteString(")")
	}
	return b.String()
}

// Entry is one numbered declaration in a duplicate diagnostic.
type Entry struct {
	Name     string
	Location Location
}

// Diagnostic is a single violation found while linking.
type Diagnostic struct {
	Rule    Rule
	Message string
	Entries []Entry
	// Context lists the enclosing declarations, innermost first.
	Context []Context

	file int
	pass int
	seq  int64
}

// String formats the diagnostic as its primary message, the numbered
// entries and one line per context. There is no trailing newline.
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Message)
	for i, e := range d.Entries {
		b.WriteString("\n  ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(e.Name)
		b.WriteString(" (")
		b.WriteString(e.Location.String())
		b.WriteString(")")
	}
	for i, c := range d.Context {
		if i == 0 {
			b.WriteString("\n  for ")
		} else {
			b.WriteString("\n  in ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// Error is returned by Link when any diagnostic was reported.
type Error struct {
	diagnostics []Diagnostic
}

// Diagnostics returns every diagnostic in report order.
func (e *Error) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), e.diagnostics...)
}

func (e *Error) Error() string {
	blocks := make([]string, 0, len(e.diagnostics))
	for _, d := range e.diagnostics {
		blocks = append(blocks, d.String())
	}
	return strings.Join(blocks, "\n")
}

// FatalError is returned for input the linker cannot process at all. No
// other diagnostics are reported alongside it.
type FatalError struct {
	Location Location
	Message  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

const (
	passBuild = iota
	passLink
	passValidate
)

// sink collects diagnostics from concurrent passes. Each file is handled by
// one goroutine per pass, so the sequence number orders diagnostics within
// a (file, pass) pair.
type sink struct {
	mu          sync.Mutex
	seq         int64
	diagnostics []Diagnostic
}

func (s *sink) add(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	d.seq = s.seq
	s.diagnostics = append(s.diagnostics, d)
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.diagnostics)
}

// sorted returns the diagnostics ordered by file, then pass, then the order
// they were reported in.
func (s *sink) sorted() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Diagnostic(nil), s.diagnostics...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		if out[i].pass != out[j].pass {
			return out[i].pass < out[j].pass
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// reporter adds diagnostics under a fixed file, pass and context stack.
type reporter struct {
	sink    *sink
	file    int
	pass    int
	context []Context
}

// with returns a reporter whose innermost context is the given declaration.
func (r reporter) with(kind, name string, loc *Location) reporter {
	ctx := make([]Context, 0, len(r.context)+1)
	ctx = append(ctx, Context{Kind: kind, Name: name, Location: loc})
	ctx = append(ctx, r.context...)
	r.context = ctx
	return r
}

// inFile returns a reporter that files diagnostics under another file
// index, keeping the context.
func (r reporter) inFile(file int) reporter {
	r.file = file
	return r
}

func (r reporter) errorf(rule Rule, format string, args ...any) {
	r.entries(rule, nil, format, args...)
}

func (r reporter) entries(rule Rule, entries []Entry, format string, args ...any) {
	r.sink.add(Diagnostic{
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
		Entries: entries,
		Context: r.context,
		file:    r.file,
		pass:    r.pass,
	})
}

func locPtr(l Location) *Location {
	return &l
}
