package compiler

import (
	"sort"

	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Compiler IR
// ---------------------------------------------------------------------------

const (
	// MainID is the scope id of the top-level program, which has no
	// defining node.
	MainID = 0
	// NoScope marks a missing parent or quote parent.
	NoScope = -1
)

// Escape is an escape expression as seen by code generation.
type Escape struct {
	ID    int
	Body  ast.Expr
	Count int
	Kind  ast.EscapeKind
	// Owner is the quote the escape leaves: the outermost ordinary quote
	// among the Count levels it crosses.
	Owner int
	// Container is the scope the escape expression appears in.
	Container int
}

// Scope is the part shared by functions and quotes. Ids are the ids of the
// defining fun or quote node.
type Scope struct {
	ID       int
	Body     ast.Expr
	Bound    []int // definitions introduced in this scope
	Free     []int // definitions from enclosing scopes used inside
	Children []int // scopes whose code is created by this one
	Parent   int
}

// Proc is a lifted function.
type Proc struct {
	Scope
	Params []int
	// Persist lists persist escapes inside this function whose values it
	// must carry for the quotes it builds.
	Persist []*Escape
}

// Prog is a lifted quote.
type Prog struct {
	Scope
	Annotation string
	// Persist lists persist escapes visible to this quote: owned by it or
	// threaded through it from an enclosing quote.
	Persist       []*Escape
	OwnedSplice   []*Escape
	OwnedPersist  []*Escape
	OwnedSnippet  []*Escape
	QuoteParent   int
	QuoteChildren []int
	// SnippetEscape is the escape a snippet quote belongs to, or 0.
	SnippetEscape int
}

// Variant is one presplice specialization of a quote.
type Variant struct {
	ProgID int
	// Config holds the chosen value of each owned snippet escape, in the
	// order of the quote's OwnedSnippet list.
	Config []int
	Progs  map[int]*Prog
	Procs  map[int]*Proc
	// Outer is the variant of the enclosing quote this one was built on,
	// or nil. Lookups fall through to it before the IR.
	Outer *Variant
	// Nested holds the variants of inner quotes built on this one, by
	// quote id.
	Nested map[int][]*Variant
}

// IR is the flattened program handed to backends.
type IR struct {
	Main   *Proc
	Procs  map[int]*Proc
	Progs  map[int]*Prog
	DefUse DefUse
	Types  *TypeTable
	// Externs names every extern definition, by id.
	Externs map[int]string
	// Variants holds presplice specializations by quote id. Quotes without
	// snippet escapes have none, and quotes nested in a quote with variants
	// keep theirs in the outer variants' Nested tables.
	Variants map[int][]*Variant
	// Containers maps each expression id to the scope it executes in.
	Containers map[int]int
	// Escapes indexes every escape by id.
	Escapes map[int]*Escape
}

// Scope returns the scope with the given id, trying functions before
// quotes. Ids are unique across both tables; anything else is an internal
// error.
func (ir *IR) Scope(id int) (*Scope, error) {
	if id == MainID {
		return &ir.Main.Scope, nil
	}
	if p, ok := ir.Procs[id]; ok {
		return &p.Scope, nil
	}
	if p, ok := ir.Progs[id]; ok {
		return &p.Scope, nil
	}
	return nil, internalf("unknown scope id %d", id)
}

// NearestQuote returns the innermost quote enclosing the expression with
// the given id, or NoScope.
func (ir *IR) NearestQuote(id int) int {
	scope, ok := ir.Containers[id]
	if !ok {
		return NoScope
	}
	for scope != MainID && scope != NoScope {
		if _, ok := ir.Progs[scope]; ok {
			return scope
		}
		s, err := ir.Scope(scope)
		if err != nil {
			return NoScope
		}
		scope = s.Parent
	}
	return NoScope
}

// ProcIDs lists function ids in ascending order.
func (ir *IR) ProcIDs() []int {
	ids := make([]int, 0, len(ir.Procs))
	for id := range ir.Procs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ProgIDs lists quote ids in ascending order.
func (ir *IR) ProgIDs() []int {
	ids := make([]int, 0, len(ir.Progs))
	for id := range ir.Progs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SnippetProgs lists the snippet quotes that belong to an escape.
func (ir *IR) SnippetProgs(escape int) []int {
	var out []int
	for _, id := range ir.ProgIDs() {
		if ir.Progs[id].SnippetEscape == escape {
			out = append(out, id)
		}
	}
	return out
}
