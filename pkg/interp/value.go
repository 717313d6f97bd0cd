package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is int64, float64, string, bool, Tuple, *Closure, *Code,
// *Intrinsic, or nil for void.
type Value any

// Tuple is a product value.
type Tuple []Value

// Closure is a function value with the scope it was created in.
type Closure struct {
	Fun   *ast.Fun
	scope scope
}

// Code is a quoted program. Persists holds the values captured across the
// stage boundary; PersistRef nodes in Expr index into it.
type Code struct {
	Expr       ast.Expr
	Persists   []Value
	Annotation string
	// Source is the id of the quote that built the code.
	Source  int
	Snippet bool
}

// Intrinsic is a Go implementation of an extern.
type Intrinsic struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

// Format renders a value for display.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return "void"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case Tuple:
		parts := make([]string, len(v))
		for i, c := range v {
			parts[i] = Format(c)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Closure:
		return fmt.Sprintf("<fun #%d>", v.Fun.ID)
	case *Code:
		return fmt.Sprintf("<code #%d, %d persists>", v.Source, len(v.Persists))
	case *Intrinsic:
		return fmt.Sprintf("<extern %s>", v.Name)
	}
	return fmt.Sprintf("<%T>", v)
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

type cell struct {
	value Value
}

type binding struct {
	name   string
	cell   *cell
	parent *binding
}

// scope is immutable apart from the cells it points to; binding a name
// returns a new scope.
type scope struct {
	vars     *binding
	persists []Value
}

func (s scope) bind(name string, v Value) scope {
	s.vars = &binding{name: name, cell: &cell{value: v}, parent: s.vars}
	return s
}

func (s scope) lookup(name string) (*cell, bool) {
	for b := s.vars; b != nil; b = b.parent {
		if b.name == name {
			return b.cell, true
		}
	}
	return nil, false
}
