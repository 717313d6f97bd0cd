// Package ast defines the syntax tree consumed by the stagecraft compiler.
//
// Trees arrive already parsed, as JSON documents produced by the external
// parser (see Decode). Every node carries an integer id, assigned by Stamp
// during elaboration, and an optional source location.
package ast

// ---------------------------------------------------------------------------
// Locations
// ---------------------------------------------------------------------------

// Position is a character position in a source file.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`   // 1-based
	Column int `json:"column"` // 1-based
}

// Location is the source range of a node.
type Location struct {
	Filename string   `json:"filename"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// Contains reports whether the 1-based line/column falls inside the range.
func (l *Location) Contains(line, col int) bool {
	if l == nil {
		return false
	}
	if line < l.Start.Line || line > l.End.Line {
		return false
	}
	if line == l.Start.Line && col < l.Start.Column {
		return false
	}
	if line == l.End.Line && col > l.End.Column {
		return false
	}
	return true
}

// Size orders locations by extent; smaller ranges are more specific.
func (l *Location) Size() int {
	if l == nil {
		return int(^uint(0) >> 1)
	}
	if l.End.Offset > l.Start.Offset {
		return l.End.Offset - l.Start.Offset
	}
	return (l.End.Line-l.Start.Line)*1000 + (l.End.Column - l.Start.Column)
}

// ---------------------------------------------------------------------------
// Node interfaces
// ---------------------------------------------------------------------------

// Node is implemented by every syntax node: expressions, parameters, type
// syntax and the multi-file root.
type Node interface {
	NodeID() int
	Location() *Location
	base() *Base
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// TypeNode is a node of type syntax (parameter and extern annotations).
type TypeNode interface {
	Node
	typeNode()
}

// Base holds the fields shared by all nodes.
type Base struct {
	ID  int
	Loc *Location
}

// NodeID returns the node's id, or 0 if the tree has not been stamped.
func (b *Base) NodeID() int { return b.ID }

// Location returns the node's source range, which may be nil.
func (b *Base) Location() *Location { return b.Loc }

func (b *Base) base() *Base { return b }

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// LiteralKind names the type of a literal value.
type LiteralKind string

const (
	IntLiteral    LiteralKind = "int"
	FloatLiteral  LiteralKind = "float"
	StringLiteral LiteralKind = "string"
	BoolLiteral   LiteralKind = "boolean"
)

// EscapeKind distinguishes the three escape forms.
type EscapeKind string

const (
	Splice  EscapeKind = "splice"
	Persist EscapeKind = "persist"
	Snippet EscapeKind = "snippet"
)

// Root joins the trees of several source files into one program.
type Root struct {
	Base
	Children []Expr
}

// Literal is a constant. Value holds an int64, float64, string or bool
// according to Kind.
type Literal struct {
	Base
	Kind  LiteralKind
	Value any
}

// Seq evaluates LHS then RHS.
type Seq struct {
	Base
	LHS Expr
	RHS Expr
}

// Let introduces a variable in the current scope.
type Let struct {
	Base
	Ident string
	Expr  Expr
}

// Assign mutates an existing variable.
type Assign struct {
	Base
	Ident string
	Expr  Expr
}

// Lookup reads a variable.
type Lookup struct {
	Base
	Ident string
}

// Unary applies a prefix operator (+, -, ~).
type Unary struct {
	Base
	Op   string
	Expr Expr
}

// Binary applies an infix operator.
type Binary struct {
	Base
	Op  string
	LHS Expr
	RHS Expr
}

// Quote defers Expr to a later stage. Snippet quotes resume the stage
// captured by a pending snippet escape instead of opening a new one.
type Quote struct {
	Base
	Expr       Expr
	Annotation string
	Snippet    bool
}

// Escape reaches Count quote levels outward.
type Escape struct {
	Base
	Expr  Expr
	Kind  EscapeKind
	Count int
}

// Run executes a code value.
type Run struct {
	Base
	Expr Expr
}

// Fun is a function literal.
type Fun struct {
	Base
	Params []*Param
	Body   Expr
}

// Param is a typed function parameter.
type Param struct {
	Base
	Name string
	Type TypeNode
}

// Call applies a function to arguments.
type Call struct {
	Base
	Fun  Expr
	Args []Expr
}

// Extern declares a stage-independent external value. Expansion, if set,
// is the name backends substitute for it.
type Extern struct {
	Base
	Name      string
	Type      TypeNode
	Expansion string
}

// If is a conditional expression.
type If struct {
	Base
	Cond  Expr
	True  Expr
	False Expr
}

// While loops while Cond holds.
type While struct {
	Base
	Cond Expr
	Body Expr
}

// MacroCall invokes a code-producing function defined at an earlier stage.
type MacroCall struct {
	Base
	Macro string
	Args  []Expr
}

// TypeAlias names a type.
type TypeAlias struct {
	Base
	Ident string
	Type  TypeNode
}

// Tuple constructs a product value.
type Tuple struct {
	Base
	Exprs []Expr
}

// TupleIndex projects a tuple component.
type TupleIndex struct {
	Base
	Tuple Expr
	Index int
}

// Alloc introduces a variable backed by storage the backend allocates.
type Alloc struct {
	Base
	Ident string
	Expr  Expr
}

// PersistRef stands for a value captured across a stage boundary. It only
// appears in code produced by evaluation, never in source.
type PersistRef struct {
	Base
	Index int
}

func (*Root) expr()       {}
func (*Literal) expr()    {}
func (*Seq) expr()        {}
func (*Let) expr()        {}
func (*Assign) expr()     {}
func (*Lookup) expr()     {}
func (*Unary) expr()      {}
func (*Binary) expr()     {}
func (*Quote) expr()      {}
func (*Escape) expr()     {}
func (*Run) expr()        {}
func (*Fun) expr()        {}
func (*Call) expr()       {}
func (*Extern) expr()     {}
func (*If) expr()         {}
func (*While) expr()      {}
func (*MacroCall) expr()  {}
func (*TypeAlias) expr()  {}
func (*Tuple) expr()      {}
func (*TupleIndex) expr() {}
func (*Alloc) expr()      {}
func (*PersistRef) expr() {}
