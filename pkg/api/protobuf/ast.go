package protobuf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NodeType represents the type of AST node
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeSyntax
	NodeTypePackage
	NodeTypeImport
	NodeTypeOption
	NodeTypeMessage
	NodeTypeEnum
	NodeTypeService
	NodeTypeField
	NodeTypeEnumValue
	NodeTypeRPC
	NodeTypeComment
	NodeTypeOneOf
	NodeTypeExtend
	NodeTypeReserved
	NodeTypeExtensions
)

// MaxFieldNumber is the largest tag a field may use.
const MaxFieldNumber = 536870911

// MaxEnumNumber is the value of "max" in enum reserved ranges.
const MaxEnumNumber = 2147483647

// Position represents the position in the source code
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Location is a position qualified by the file it occurs in. Base is the
// directory the source path was loaded relative to and may be empty.
type Location struct {
	Base   string
	Path   string
	Line   int
	Column int
}

// At returns the location of pos within the same file.
func (l Location) At(pos Position) Location {
	return Location{Base: l.Base, Path: l.Path, Line: pos.Line, Column: pos.Column}
}

// File returns the file portion of the location.
func (l Location) File() string {
	if l.Base == "" {
		return l.Path
	}
	return filepath.Join(l.Base, l.Path)
}

func (l Location) String() string {
	return fmt.Sprintf("%s at %d:%d", l.File(), l.Line, l.Column)
}

// Node represents a node in the protobuf AST
type Node interface {
	NodeType() NodeType
	Position() Position
	End() Position
}

// Span holds the start and end positions of a node.
type Span struct {
	Pos    Position
	EndPos Position
}

// Position returns the start position
func (s Span) Position() Position {
	return s.Pos
}

// End returns the end position
func (s Span) End() Position {
	return s.EndPos
}

// RootNode represents a parsed .proto file.
type RootNode struct {
	Base     string
	Path     string
	Syntax   *SyntaxNode
	Package  *PackageNode
	Imports  []*ImportNode
	Options  []*OptionNode
	Messages []*MessageNode
	Enums    []*EnumNode
	Services []*ServiceNode
	Extends  []*ExtendNode
	Span
}

// NodeType returns the node type
func (n *RootNode) NodeType() NodeType {
	return NodeTypeUnknown
}

// PackageName returns the declared package or "" for the root package.
func (n *RootNode) PackageName() string {
	if n.Package == nil {
		return ""
	}
	return n.Package.Name
}

// Location returns the file location of pos.
func (n *RootNode) Location(pos Position) Location {
	return Location{Base: n.Base, Path: n.Path, Line: pos.Line, Column: pos.Column}
}

// SyntaxNode represents a syntax or edition statement
type SyntaxNode struct {
	Value   string
	Edition bool
	Span
}

// NodeType returns the node type
func (n *SyntaxNode) NodeType() NodeType {
	return NodeTypeSyntax
}

// PackageNode represents a package statement in protobuf
type PackageNode struct {
	Name string
	Span
}

// NodeType returns the node type
func (n *PackageNode) NodeType() NodeType {
	return NodeTypePackage
}

// ImportNode represents an import statement in protobuf
type ImportNode struct {
	Path   string
	Public bool
	Weak   bool
	Span
}

// NodeType returns the node type
func (n *ImportNode) NodeType() NodeType {
	return NodeTypeImport
}

// ValueKind identifies the literal form of an option value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
	ValueIdentifier
	ValueMessage
	ValueList
)

// OptionValue is an option value as written in source. Text holds the
// literal for scalar kinds with string quotes removed.
type OptionValue struct {
	Kind     ValueKind
	Text     string
	Fields   []OptionField
	Elements []OptionValue
}

func (v OptionValue) String() string {
	switch v.Kind {
	case ValueMessage:
		parts := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			parts = append(parts, f.Name+": "+f.Value.String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ValueList:
		parts := make([]string, 0, len(v.Elements))
		for _, e := range v.Elements {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.Text
	}
}

// OptionField is a single entry of a message literal option value.
type OptionField struct {
	Name  string
	Value OptionValue
}

// OptionNamePart is one dotted component of an option name. Extension parts
// were written in parentheses.
type OptionNamePart struct {
	Name      string
	Extension bool
}

// OptionNode represents an option statement or a compact option.
type OptionNode struct {
	Name  string
	Parts []OptionNamePart
	Value OptionValue
	Span
}

// NodeType returns the node type
func (n *OptionNode) NodeType() NodeType {
	return NodeTypeOption
}

// FieldNode represents a field in a message, oneof or extend block. Map
// fields carry MapKeyType and MapValueType; Type is then "map<K, V>".
type FieldNode struct {
	Name         string
	Type         string
	Number       int
	Repeated     bool
	Optional     bool
	Required     bool
	Group        bool
	MapKeyType   string
	MapValueType string
	Options      []*OptionNode
	Comments     []*CommentNode
	Span
}

// NodeType returns the node type
func (n *FieldNode) NodeType() NodeType {
	return NodeTypeField
}

// IsMap reports whether the field was declared with map syntax.
func (n *FieldNode) IsMap() bool {
	return n.MapKeyType != ""
}

// MessageNode represents a message definition in protobuf
type MessageNode struct {
	Name       string
	Fields     []*FieldNode
	Nested     []*MessageNode
	Enums      []*EnumNode
	OneOfs     []*OneOfNode
	Extends    []*ExtendNode
	Reserved   []*ReservedNode
	Extensions []*ExtensionsNode
	Options    []*OptionNode
	Comments   []*CommentNode
	Span
}

// NodeType returns the node type
func (n *MessageNode) NodeType() NodeType {
	return NodeTypeMessage
}

// OneOfNode represents a oneof field in a message
type OneOfNode struct {
	Name     string
	Fields   []*FieldNode
	Options  []*OptionNode
	Comments []*CommentNode
	Span
}

// NodeType returns the node type
func (n *OneOfNode) NodeType() NodeType {
	return NodeTypeOneOf
}

// EnumNode represents an enum definition in protobuf
type EnumNode struct {
	Name     string
	Values   []*EnumValueNode
	Options  []*OptionNode
	Reserved []*ReservedNode
	Comments []*CommentNode
	Span
}

// NodeType returns the node type
func (n *EnumNode) NodeType() NodeType {
	return NodeTypeEnum
}

// EnumValueNode represents an enum value in protobuf
type EnumValueNode struct {
	Name     string
	Number   int
	Options  []*OptionNode
	Comments []*CommentNode
	Span
}

// NodeType returns the node type
func (n *EnumValueNode) NodeType() NodeType {
	return NodeTypeEnumValue
}

// ExtendNode represents an extend block.
type ExtendNode struct {
	Type     string
	Fields   []*FieldNode
	Comments []*CommentNode
	Span
}

// NodeType returns the node type
func (n *ExtendNode) NodeType() NodeType {
	return NodeTypeExtend
}

// ServiceNode represents a service definition in protobuf
type ServiceNode struct {
	Name     string
	RPCs     []*RPCNode
	Options  []*OptionNode
	Comments []*CommentNode
	Span
}

// NodeType returns the node type
func (n *ServiceNode) NodeType() NodeType {
	return NodeTypeService
}

// RPCNode represents an RPC method in a service
type RPCNode struct {
	Name            string
	InputType       string
	OutputType      string
	ClientStreaming bool
	ServerStreaming bool
	Options         []*OptionNode
	Comments        []*CommentNode
	Span
}

// NodeType returns the node type
func (n *RPCNode) NodeType() NodeType {
	return NodeTypeRPC
}

// RangeNode is an inclusive tag range. Single values have Start == End.
type RangeNode struct {
	Start int
	End   int
}

func (r RangeNode) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d to %d", r.Start, r.End)
}

// Contains reports whether tag falls inside the range.
func (r RangeNode) Contains(tag int) bool {
	return tag >= r.Start && tag <= r.End
}

// ReservedNode is a reserved statement. A statement holds either ranges or
// names, never both.
type ReservedNode struct {
	Ranges []RangeNode
	Names  []string
	Span
}

// NodeType returns the node type
func (n *ReservedNode) NodeType() NodeType {
	return NodeTypeReserved
}

// ExtensionsNode is an extensions statement.
type ExtensionsNode struct {
	Ranges  []RangeNode
	Options []*OptionNode
	Span
}

// NodeType returns the node type
func (n *ExtensionsNode) NodeType() NodeType {
	return NodeTypeExtensions
}

// CommentNode represents a comment attached ahead of a declaration.
type CommentNode struct {
	Text string
	Span
}

// NodeType returns the node type
func (n *CommentNode) NodeType() NodeType {
	return NodeTypeComment
}
