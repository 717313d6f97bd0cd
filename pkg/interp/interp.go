// Package interp is a reference evaluator for elaborated programs. It
// executes quotes, escapes and run directly on the tree, so the staged
// semantics can be checked without a backend.
package interp

import (
	"fmt"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
)

// Error is a failure during evaluation.
type Error struct {
	Location ast.Location
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: runtime error: %s", compiler.LocString(e.Location), e.Message)
}

func errorf(n ast.Node, format string, args ...any) error {
	var loc ast.Location
	if n != nil && n.Location() != nil {
		loc = *n.Location()
	}
	return &Error{Location: loc, Message: fmt.Sprintf(format, args...)}
}

// Interpreter evaluates programs.
type Interpreter struct {
	// Externs supplies the value of each extern by name. Functions are
	// *Intrinsic values.
	Externs map[string]Value
	// IR, when set, makes quotes with presplice variants build their code
	// from the variant selected by their snippet escapes.
	IR *compiler.IR
}

// New returns an interpreter without externs.
func New() *Interpreter {
	return &Interpreter{Externs: make(map[string]Value)}
}

// Eval evaluates a whole program.
func (in *Interpreter) Eval(tree ast.Node) (Value, error) {
	v, _, err := in.eval(tree, scope{})
	return v, err
}

// RunCode evaluates a code value the way run does.
func (in *Interpreter) RunCode(c *Code) (Value, error) {
	if c.Snippet {
		return nil, errorf(c.Expr, "cannot run a snippet")
	}
	v, _, err := in.eval(c.Expr, scope{persists: c.Persists})
	return v, err
}

func (in *Interpreter) eval(n ast.Node, s scope) (Value, scope, error) {
	switch n := n.(type) {
	case *ast.Root:
		var v Value
		for _, c := range n.Children {
			var err error
			if v, s, err = in.eval(c, s); err != nil {
				return nil, s, err
			}
		}
		return v, s, nil

	case *ast.Literal:
		return n.Value, s, nil

	case *ast.Seq:
		_, s1, err := in.eval(n.LHS, s)
		if err != nil {
			return nil, s, err
		}
		return in.eval(n.RHS, s1)

	case *ast.Let:
		v, s1, err := in.eval(n.Expr, s)
		if err != nil {
			return nil, s, err
		}
		return v, s1.bind(n.Ident, v), nil

	case *ast.Alloc:
		v, s1, err := in.eval(n.Expr, s)
		if err != nil {
			return nil, s, err
		}
		return v, s1.bind(n.Ident, v), nil

	case *ast.Assign:
		v, s1, err := in.eval(n.Expr, s)
		if err != nil {
			return nil, s, err
		}
		c, ok := s1.lookup(n.Ident)
		if !ok {
			return nil, s, errorf(n, "assignment to unbound variable %s", n.Ident)
		}
		c.value = v
		return v, s1, nil

	case *ast.Lookup:
		if c, ok := s.lookup(n.Ident); ok {
			return c.value, s, nil
		}
		if v, ok := in.Externs[n.Ident]; ok {
			return v, s, nil
		}
		return nil, s, errorf(n, "unbound variable %s", n.Ident)

	case *ast.Unary:
		v, s1, err := in.eval(n.Expr, s)
		if err != nil {
			return nil, s, err
		}
		out, err := unary(n, v)
		return out, s1, err

	case *ast.Binary:
		l, s1, err := in.eval(n.LHS, s)
		if err != nil {
			return nil, s, err
		}
		r, s2, err := in.eval(n.RHS, s1)
		if err != nil {
			return nil, s, err
		}
		out, err := binary(n, l, r)
		return out, s2, err

	case *ast.Quote:
		c, err := in.quote(n, s)
		return c, s, err

	case *ast.Escape:
		return nil, s, errorf(n, "%s escape outside of a quote", n.Kind)

	case *ast.PersistRef:
		if n.Index < 0 || n.Index >= len(s.persists) {
			return nil, s, errorf(n, "persist %d out of range", n.Index)
		}
		return s.persists[n.Index], s, nil

	case *ast.Run:
		v, s1, err := in.eval(n.Expr, s)
		if err != nil {
			return nil, s, err
		}
		c, ok := v.(*Code)
		if !ok {
			return nil, s, errorf(n, "running a non-code value %s", Format(v))
		}
		out, err := in.RunCode(c)
		return out, s1, err

	case *ast.Fun:
		return &Closure{Fun: n, scope: s}, s, nil

	case *ast.Call:
		return in.call(n, s)

	case *ast.Extern:
		v, ok := in.Externs[n.Name]
		if !ok {
			return nil, s, errorf(n, "no implementation for extern %s", n.Name)
		}
		return v, s.bind(n.Name, v), nil

	case *ast.If:
		cond, s1, err := in.eval(n.Cond, s)
		if err != nil {
			return nil, s, err
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, s, errorf(n.Cond, "condition is %s, not a boolean", Format(cond))
		}
		branch := n.False
		if b {
			branch = n.True
		}
		v, _, err := in.eval(branch, s1)
		return v, s1, err

	case *ast.While:
		for {
			cond, _, err := in.eval(n.Cond, s)
			if err != nil {
				return nil, s, err
			}
			b, ok := cond.(bool)
			if !ok {
				return nil, s, errorf(n.Cond, "condition is %s, not a boolean", Format(cond))
			}
			if !b {
				return nil, s, nil
			}
			if _, _, err := in.eval(n.Body, s); err != nil {
				return nil, s, err
			}
		}

	case *ast.TypeAlias:
		return nil, s, nil

	case *ast.Tuple:
		out := make(Tuple, 0, len(n.Exprs))
		for _, x := range n.Exprs {
			v, s1, err := in.eval(x, s)
			if err != nil {
				return nil, s, err
			}
			s = s1
			out = append(out, v)
		}
		return out, s, nil

	case *ast.TupleIndex:
		v, s1, err := in.eval(n.Tuple, s)
		if err != nil {
			return nil, s, err
		}
		t, ok := v.(Tuple)
		if !ok || n.Index < 0 || n.Index >= len(t) {
			return nil, s, errorf(n, "cannot index %s with %d", Format(v), n.Index)
		}
		return t[n.Index], s1, nil

	case *ast.MacroCall:
		return nil, s, errorf(n, "macro call %s was not expanded", n.Macro)
	}
	return nil, s, errorf(n, "cannot evaluate %T", n)
}

func (in *Interpreter) call(n *ast.Call, s scope) (Value, scope, error) {
	fn, s, err := in.eval(n.Fun, s)
	if err != nil {
		return nil, s, err
	}
	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		var v Value
		if v, s, err = in.eval(a, s); err != nil {
			return nil, s, err
		}
		args = append(args, v)
	}

	switch fn := fn.(type) {
	case *Closure:
		if len(args) != len(fn.Fun.Params) {
			return nil, s, errorf(n, "expected %d arguments, got %d", len(fn.Fun.Params), len(args))
		}
		body := fn.scope
		for i, p := range fn.Fun.Params {
			body = body.bind(p.Name, args[i])
		}
		v, _, err := in.eval(fn.Fun.Body, body)
		return v, s, err
	case *Intrinsic:
		v, err := fn.Fn(args)
		if err != nil {
			return nil, s, errorf(n, "%s: %v", fn.Name, err)
		}
		return v, s, nil
	}
	return nil, s, errorf(n, "calling a non-function %s", Format(fn))
}
