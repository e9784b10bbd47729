package protobuf

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bufbuild/protocompile/ast"
	"github.com/bufbuild/protocompile/parser"
	"github.com/bufbuild/protocompile/reporter"
)

// SyntaxError is returned when source text cannot be parsed.
type SyntaxError struct {
	Location Location
	Message  string
	err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Syntax error in %s: %s", e.Location, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return e.err
}

// Parse parses the proto source read from r. The path is recorded on the
// returned node and on every location derived from it; base is the directory
// the path is relative to and may be empty.
func Parse(base, path string, r io.Reader) (*RootNode, error) {
	handler := reporter.NewHandler(nil)
	fileNode, err := parser.Parse(path, r, handler)
	if err != nil {
		return nil, newSyntaxError(base, path, err)
	}

	c := &converter{file: fileNode}
	return c.convertFile(base, path), nil
}

func newSyntaxError(base, path string, err error) error {
	var posErr reporter.ErrorWithPos
	if !errors.As(err, &posErr) {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	pos := posErr.GetPosition()
	msg := err.Error()
	if inner := posErr.Unwrap(); inner != nil {
		msg = inner.Error()
	}
	return &SyntaxError{
		Location: Location{Base: base, Path: path, Line: pos.Line, Column: pos.Col},
		Message:  msg,
		err:      err,
	}
}

// converter turns a protocompile AST into RootNode declarations.
type converter struct {
	file *ast.FileNode
}

func (c *converter) span(n ast.Node) Span {
	info := c.file.NodeInfo(n)
	start, end := info.Start(), info.End()
	return Span{
		Pos:    Position{Line: start.Line, Column: start.Col, Offset: start.Offset},
		EndPos: Position{Line: end.Line, Column: end.Col, Offset: end.Offset},
	}
}

func (c *converter) comments(n ast.Node) []*CommentNode {
	leading := c.file.NodeInfo(n).LeadingComments()
	if leading.Len() == 0 {
		return nil
	}
	out := make([]*CommentNode, 0, leading.Len())
	for i := 0; i < leading.Len(); i++ {
		cm := leading.Index(i)
		start, end := cm.Start(), cm.End()
		out = append(out, &CommentNode{
			Text: cm.RawText(),
			Span: Span{
				Pos:    Position{Line: start.Line, Column: start.Col, Offset: start.Offset},
				EndPos: Position{Line: end.Line, Column: end.Col, Offset: end.Offset},
			},
		})
	}
	return out
}

func (c *converter) convertFile(base, path string) *RootNode {
	root := &RootNode{
		Base: base,
		Path: path,
		Span: c.span(c.file),
	}

	switch {
	case c.file.Syntax != nil:
		root.Syntax = &SyntaxNode{Value: c.file.Syntax.Syntax.AsString(), Span: c.span(c.file.Syntax)}
	case c.file.Edition != nil:
		root.Syntax = &SyntaxNode{Value: c.file.Edition.Edition.AsString(), Edition: true, Span: c.span(c.file.Edition)}
	}

	for _, decl := range c.file.Decls {
		switch d := decl.(type) {
		case *ast.PackageNode:
			root.Package = &PackageNode{Name: string(d.Name.AsIdentifier()), Span: c.span(d)}
		case *ast.ImportNode:
			root.Imports = append(root.Imports, &ImportNode{
				Path:   d.Name.AsString(),
				Public: d.Public != nil,
				Weak:   d.Weak != nil,
				Span:   c.span(d),
			})
		case *ast.OptionNode:
			root.Options = append(root.Options, c.option(d))
		case *ast.MessageNode:
			root.Messages = append(root.Messages, c.message(d))
		case *ast.EnumNode:
			root.Enums = append(root.Enums, c.enum(d))
		case *ast.ExtendNode:
			root.Extends = append(root.Extends, c.extend(d))
		case *ast.ServiceNode:
			root.Services = append(root.Services, c.service(d))
		}
	}
	return root
}

func (c *converter) message(n *ast.MessageNode) *MessageNode {
	msg := &MessageNode{
		Name:     n.Name.Val,
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	for _, decl := range n.Decls {
		switch d := decl.(type) {
		case *ast.OptionNode:
			msg.Options = append(msg.Options, c.option(d))
		case *ast.FieldNode:
			msg.Fields = append(msg.Fields, c.field(d))
		case *ast.MapFieldNode:
			msg.Fields = append(msg.Fields, c.mapField(d))
		case *ast.GroupNode:
			msg.Fields = append(msg.Fields, c.group(d))
		case *ast.OneofNode:
			msg.OneOfs = append(msg.OneOfs, c.oneof(d))
		case *ast.MessageNode:
			msg.Nested = append(msg.Nested, c.message(d))
		case *ast.EnumNode:
			msg.Enums = append(msg.Enums, c.enum(d))
		case *ast.ExtendNode:
			msg.Extends = append(msg.Extends, c.extend(d))
		case *ast.ExtensionRangeNode:
			ext := &ExtensionsNode{
				Ranges: c.ranges(d.Ranges, MaxFieldNumber),
				Span:   c.span(d),
			}
			ext.Options = c.compactOptions(d.Options)
			msg.Extensions = append(msg.Extensions, ext)
		case *ast.ReservedNode:
			msg.Reserved = append(msg.Reserved, c.reserved(d, MaxFieldNumber))
		}
	}
	return msg
}

func (c *converter) field(n *ast.FieldNode) *FieldNode {
	f := &FieldNode{
		Name:     n.Name.Val,
		Type:     string(n.FldType.AsIdentifier()),
		Number:   c.tag(n.Tag),
		Options:  c.compactOptions(n.Options),
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	if n.Label.IsPresent() {
		switch n.Label.Val {
		case "repeated":
			f.Repeated = true
		case "required":
			f.Required = true
		case "optional":
			f.Optional = true
		}
	}
	return f
}

func (c *converter) mapField(n *ast.MapFieldNode) *FieldNode {
	key := n.MapType.KeyType.Val
	value := string(n.MapType.ValueType.AsIdentifier())
	return &FieldNode{
		Name:         n.Name.Val,
		Type:         fmt.Sprintf("map<%s, %s>", key, value),
		Number:       c.tag(n.Tag),
		MapKeyType:   key,
		MapValueType: value,
		Options:      c.compactOptions(n.Options),
		Comments:     c.comments(n),
		Span:         c.span(n),
	}
}

// group keeps only what is needed to report the construct; its body is
// never linked.
func (c *converter) group(n *ast.GroupNode) *FieldNode {
	return &FieldNode{
		Name:     n.Name.Val,
		Type:     n.Name.Val,
		Number:   c.tag(n.Tag),
		Group:    true,
		Repeated: n.Label.IsPresent() && n.Label.Repeated,
		Required: n.Label.IsPresent() && n.Label.Required,
		Span:     c.span(n),
	}
}

func (c *converter) tag(n *ast.UintLiteralNode) int {
	if n == nil {
		return 0
	}
	return int(n.Val)
}

func (c *converter) oneof(n *ast.OneofNode) *OneOfNode {
	oneof := &OneOfNode{
		Name:     n.Name.Val,
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	for _, decl := range n.Decls {
		switch d := decl.(type) {
		case *ast.OptionNode:
			oneof.Options = append(oneof.Options, c.option(d))
		case *ast.FieldNode:
			oneof.Fields = append(oneof.Fields, c.field(d))
		case *ast.GroupNode:
			oneof.Fields = append(oneof.Fields, c.group(d))
		}
	}
	return oneof
}

func (c *converter) enum(n *ast.EnumNode) *EnumNode {
	enum := &EnumNode{
		Name:     n.Name.Val,
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	for _, decl := range n.Decls {
		switch d := decl.(type) {
		case *ast.OptionNode:
			enum.Options = append(enum.Options, c.option(d))
		case *ast.EnumValueNode:
			number, _ := d.Number.AsInt64()
			enum.Values = append(enum.Values, &EnumValueNode{
				Name:     d.Name.Val,
				Number:   int(number),
				Options:  c.compactOptions(d.Options),
				Comments: c.comments(d),
				Span:     c.span(d),
			})
		case *ast.ReservedNode:
			enum.Reserved = append(enum.Reserved, c.reserved(d, MaxEnumNumber))
		}
	}
	return enum
}

func (c *converter) extend(n *ast.ExtendNode) *ExtendNode {
	ext := &ExtendNode{
		Type:     string(n.Extendee.AsIdentifier()),
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	for _, decl := range n.Decls {
		switch d := decl.(type) {
		case *ast.FieldNode:
			ext.Fields = append(ext.Fields, c.field(d))
		case *ast.GroupNode:
			ext.Fields = append(ext.Fields, c.group(d))
		}
	}
	return ext
}

func (c *converter) service(n *ast.ServiceNode) *ServiceNode {
	svc := &ServiceNode{
		Name:     n.Name.Val,
		Comments: c.comments(n),
		Span:     c.span(n),
	}
	for _, decl := range n.Decls {
		switch d := decl.(type) {
		case *ast.OptionNode:
			svc.Options = append(svc.Options, c.option(d))
		case *ast.RPCNode:
			rpc := &RPCNode{
				Name:            d.Name.Val,
				InputType:       string(d.Input.MessageType.AsIdentifier()),
				OutputType:      string(d.Output.MessageType.AsIdentifier()),
				ClientStreaming: d.Input.Stream != nil,
				ServerStreaming: d.Output.Stream != nil,
				Comments:        c.comments(d),
				Span:            c.span(d),
			}
			for _, rd := range d.Decls {
				if opt, ok := rd.(*ast.OptionNode); ok {
					rpc.Options = append(rpc.Options, c.option(opt))
				}
			}
			svc.RPCs = append(svc.RPCs, rpc)
		}
	}
	return svc
}

func (c *converter) reserved(n *ast.ReservedNode, maxValue int) *ReservedNode {
	res := &ReservedNode{
		Ranges: c.ranges(n.Ranges, maxValue),
		Span:   c.span(n),
	}
	for _, name := range n.Names {
		res.Names = append(res.Names, name.AsString())
	}
	for _, ident := range n.Identifiers {
		res.Names = append(res.Names, ident.Val)
	}
	return res
}

func (c *converter) ranges(nodes []*ast.RangeNode, maxValue int) []RangeNode {
	out := make([]RangeNode, 0, len(nodes))
	for _, r := range nodes {
		start, _ := r.StartVal.AsInt64()
		end := start
		switch {
		case r.EndVal != nil:
			end, _ = r.EndVal.AsInt64()
		case r.Max != nil:
			end = int64(maxValue)
		}
		out = append(out, RangeNode{Start: int(start), End: int(end)})
	}
	return out
}

func (c *converter) compactOptions(n *ast.CompactOptionsNode) []*OptionNode {
	if n == nil {
		return nil
	}
	out := make([]*OptionNode, 0, len(n.Options))
	for _, opt := range n.Options {
		out = append(out, c.option(opt))
	}
	return out
}

func (c *converter) option(n *ast.OptionNode) *OptionNode {
	opt := &OptionNode{Span: c.span(n)}
	if n.Name != nil {
		names := make([]string, 0, len(n.Name.Parts))
		for _, part := range n.Name.Parts {
			name := string(part.Name.AsIdentifier())
			opt.Parts = append(opt.Parts, OptionNamePart{Name: name, Extension: part.IsExtension()})
			if part.IsExtension() {
				name = "(" + name + ")"
			}
			names = append(names, name)
		}
		opt.Name = strings.Join(names, ".")
	}
	if n.Val != nil {
		opt.Value = c.value(n.Val)
	}
	return opt
}

func (c *converter) value(n ast.ValueNode) OptionValue {
	switch v := n.(type) {
	case ast.StringValueNode:
		return OptionValue{Kind: ValueString, Text: v.AsString()}
	case *ast.MessageLiteralNode:
		out := OptionValue{Kind: ValueMessage}
		for _, field := range v.Elements {
			name := string(field.Name.Name.AsIdentifier())
			if field.Name.IsExtension() {
				name = "(" + name + ")"
			}
			out.Fields = append(out.Fields, OptionField{Name: name, Value: c.value(field.Val)})
		}
		return out
	case *ast.ArrayLiteralNode:
		out := OptionValue{Kind: ValueList}
		for _, elem := range v.Elements {
			out.Elements = append(out.Elements, c.value(elem))
		}
		return out
	case ast.IdentValueNode:
		ident := string(v.AsIdentifier())
		if ident == "true" || ident == "false" {
			return OptionValue{Kind: ValueBool, Text: ident}
		}
		return OptionValue{Kind: ValueIdentifier, Text: ident}
	case ast.IntValueNode:
		return OptionValue{Kind: ValueInt, Text: c.file.NodeInfo(v).RawText()}
	case ast.FloatValueNode:
		return OptionValue{Kind: ValueFloat, Text: strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)}
	default:
		return OptionValue{Kind: ValueIdentifier, Text: c.file.NodeInfo(n).RawText()}
	}
}
