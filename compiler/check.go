package compiler

import (
	"fmt"

	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

// ---------------------------------------------------------------------------
// Staged type checker
// ---------------------------------------------------------------------------

// CheckFunc checks one node in an environment and returns its type and
// the environment for whatever follows it.
type CheckFunc func(n ast.Node, env *Env) (types.Type, *Env, error)

// Extension wraps the checker with extra rules. next is the rest of the
// checker; recursive checks of subterms always go through the complete,
// extended checker.
type Extension func(next CheckFunc) CheckFunc

// Options configures checking and the passes that follow it.
type Options struct {
	// ImplicitPersist lets a variable from an enclosing stage be used
	// without an escape. Such uses are rewritten to persist escapes before
	// IR extraction.
	ImplicitPersist bool

	// Extensions run in front of the base rules, outermost first.
	Extensions []Extension

	// PairedAnnotations names quote annotations whose programs may contain
	// at most one nested quote.
	PairedAnnotations []string

	// Presplice enables the presplicing specializer.
	Presplice bool

	// MaxVariants bounds the number of variants presplicing may produce for
	// one quote. Zero means DefaultMaxVariants.
	MaxVariants int

	// Domain enumerates the static choices of a snippet escape. Nil means
	// SnippetDomain.
	Domain DomainFunc
}

// Checker is the staged type checker.
type Checker struct {
	opts  Options
	check CheckFunc
}

// NewChecker builds a checker from the base rules and the configured
// extensions.
func NewChecker(opts Options) *Checker {
	return newChecker(opts, nil)
}

func newChecker(opts Options, outer Extension) *Checker {
	c := &Checker{opts: opts}
	fn := CheckFunc(c.rules)
	for i := len(opts.Extensions) - 1; i >= 0; i-- {
		fn = opts.Extensions[i](fn)
	}
	if outer != nil {
		fn = outer(fn)
	}
	c.check = fn
	return c
}

// Check type-checks n in env.
func (c *Checker) Check(n ast.Node, env *Env) (types.Type, *Env, error) {
	return c.check(n, env)
}

func (c *Checker) rules(n ast.Node, env *Env) (types.Type, *Env, error) {
	switch n := n.(type) {
	case *ast.Root:
		return c.checkRoot(n, env)
	case *ast.Literal:
		return c.checkLiteral(n, env)
	case *ast.Seq:
		_, e, err := c.check(n.LHS, env)
		if err != nil {
			return nil, nil, err
		}
		return c.check(n.RHS, e)
	case *ast.Let:
		t, e, err := c.check(n.Expr, env)
		if err != nil {
			return nil, nil, err
		}
		return t, e.Bind(n.Ident, t), nil
	case *ast.Alloc:
		t, e, err := c.check(n.Expr, env)
		if err != nil {
			return nil, nil, err
		}
		return t, e.Bind(n.Ident, t), nil
	case *ast.Assign:
		return c.checkAssign(n, env)
	case *ast.Lookup:
		return c.checkLookup(n, env)
	case *ast.Unary:
		return c.checkUnary(n, env)
	case *ast.Binary:
		return c.checkBinary(n, env)
	case *ast.TypeAlias:
		return c.checkTypeAlias(n, env)
	case *ast.Quote:
		return c.checkQuote(n, env)
	case *ast.Escape:
		return c.checkEscape(n, env)
	case *ast.Run:
		return c.checkRun(n, env)
	case *ast.Fun:
		return c.checkFun(n, env)
	case *ast.Param:
		t, err := resolveType(n.Type, env)
		if err != nil {
			return nil, nil, err
		}
		return t, env, nil
	case *ast.Call:
		return c.checkCall(n, env)
	case *ast.Extern:
		t, err := resolveType(n.Type, env)
		if err != nil {
			return nil, nil, err
		}
		return t, env.WithExtern(n.Name, t), nil
	case *ast.PersistRef:
		return nil, nil, internalf("persist reference %d cannot be type-checked in source", n.Index)
	case *ast.If:
		return c.checkIf(n, env)
	case *ast.While:
		return c.checkWhile(n, env)
	case *ast.MacroCall:
		return c.checkMacroCall(n, env)
	case *ast.Tuple:
		return c.checkTuple(n, env)
	case *ast.TupleIndex:
		return c.checkTupleIndex(n, env)
	case ast.TypeNode:
		t, err := resolveType(n, env)
		if err != nil {
			return nil, nil, err
		}
		return t, env, nil
	}
	return nil, nil, internalf("no type rule for %T", n)
}

func (c *Checker) checkRoot(n *ast.Root, env *Env) (types.Type, *Env, error) {
	if len(n.Children) == 0 {
		return nil, nil, typeErrorf(n, "empty program")
	}
	var t types.Type
	e := env
	for _, child := range n.Children {
		var err error
		if t, e, err = c.check(child, e); err != nil {
			return nil, nil, err
		}
	}
	return t, e, nil
}

func (c *Checker) checkLiteral(n *ast.Literal, env *Env) (types.Type, *Env, error) {
	switch n.Kind {
	case ast.IntLiteral:
		return types.Int, env, nil
	case ast.FloatLiteral:
		return types.Float, env, nil
	case ast.StringLiteral:
		return types.String, env, nil
	case ast.BoolLiteral:
		return types.Bool, env, nil
	}
	return nil, nil, internalf("unknown literal kind %q", n.Kind)
}

// variable resolves a name used at the current stage. Variables of
// enclosing stages need an escape unless implicit persists are enabled.
func (c *Checker) variable(n ast.Node, name string, env *Env) (types.Type, bool, error) {
	t, depth, ok := env.Lookup(name)
	if ok {
		if depth > 0 && !c.opts.ImplicitPersist {
			return nil, false, typeErrorf(n, "%s is defined %d stage(s) out; use a persist escape", name, depth)
		}
		return t, true, nil
	}
	if t, ok := env.Extern(name); ok {
		return t, true, nil
	}
	return nil, false, nil
}

func (c *Checker) checkAssign(n *ast.Assign, env *Env) (types.Type, *Env, error) {
	exprT, e, err := c.check(n.Expr, env)
	if err != nil {
		return nil, nil, err
	}
	varT, ok, err := c.variable(n, n.Ident, env)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, typeErrorf(n, "assignment to undeclared variable %s", n.Ident)
	}
	if !types.Compatible(varT, exprT) {
		return nil, nil, typeErrorf(n, "expected %s, got %s", varT, exprT)
	}
	return varT, e, nil
}

func (c *Checker) checkLookup(n *ast.Lookup, env *Env) (types.Type, *Env, error) {
	t, ok, err := c.variable(n, n.Ident, env)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, typeErrorf(n, "undefined variable %s", n.Ident)
	}
	return t, env, nil
}

// Operators are externs named after the operator.
func (c *Checker) operator(n ast.Node, op string, env *Env) (types.Type, error) {
	t, ok := env.Extern(op)
	if !ok {
		return nil, typeErrorf(n, "unknown operator %s", op)
	}
	return t, nil
}

func (c *Checker) checkUnary(n *ast.Unary, env *Env) (types.Type, *Env, error) {
	t, e, err := c.check(n.Expr, env)
	if err != nil {
		return nil, nil, err
	}
	fn, err := c.operator(n, n.Op, env)
	if err != nil {
		return nil, nil, err
	}
	ret, err := CheckCall(fn, []types.Type{t})
	if err != nil {
		return nil, nil, typeErrorf(n, "invalid unary operation %s %s", n.Op, t)
	}
	return ret, e, nil
}

func (c *Checker) checkBinary(n *ast.Binary, env *Env) (types.Type, *Env, error) {
	t1, e1, err := c.check(n.LHS, env)
	if err != nil {
		return nil, nil, err
	}
	t2, e2, err := c.check(n.RHS, e1)
	if err != nil {
		return nil, nil, err
	}
	fn, err := c.operator(n, n.Op, env)
	if err != nil {
		return nil, nil, err
	}
	ret, err := CheckCall(fn, []types.Type{t1, t2})
	if err != nil {
		return nil, nil, typeErrorf(n, "invalid binary operation %s %s %s", t1, n.Op, t2)
	}
	return ret, e2, nil
}

func (c *Checker) checkTypeAlias(n *ast.TypeAlias, env *Env) (types.Type, *Env, error) {
	if _, ok := env.NamedType(n.Ident); ok {
		return nil, nil, typeErrorf(n, "type alias %s redefined", n.Ident)
	}
	t, err := resolveType(n.Type, env)
	if err != nil {
		return nil, nil, err
	}
	return types.Void, env.WithNamedType(n.Ident, t), nil
}

func (c *Checker) checkQuote(n *ast.Quote, env *Env) (types.Type, *Env, error) {
	var inner *Env
	snippet := 0
	if n.Snippet {
		s := env.Snippet()
		if s == nil {
			return nil, nil, typeErrorf(n, "snippet quote without matching snippet escape")
		}
		snippet, inner = s.EscapeID, s.Env
	} else {
		inner = env.Push(n.Annotation)
	}

	t, e, err := c.check(n.Expr, inner)
	if err != nil {
		return nil, nil, err
	}
	code := &types.Code{Inner: t, Annotation: n.Annotation, Snippet: snippet}

	// Bindings made inside the quote stay there; a snippet quote hands its
	// final environment to later snippets of the same escape.
	out := env
	if n.Snippet {
		out = env.WithSnippet(&SnippetState{EscapeID: snippet, Env: e})
	}
	return code, out, nil
}

func (c *Checker) checkEscape(n *ast.Escape, env *Env) (types.Type, *Env, error) {
	level := env.Depth()
	if n.Count < 1 {
		return nil, nil, typeErrorf(n, "escape count must be positive, got %d", n.Count)
	}
	if n.Count > level {
		return nil, nil, typeErrorf(n, "can't escape %dx at level %d", n.Count, level)
	}

	var snip *SnippetState
	if n.Kind == ast.Snippet {
		snip = &SnippetState{EscapeID: n.ID, Env: env}
	}
	t, _, err := c.check(n.Expr, env.Pop(n.Count, snip))
	if err != nil {
		return nil, nil, err
	}

	switch n.Kind {
	case ast.Splice:
		code, ok := t.(*types.Code)
		if !ok {
			return nil, nil, typeErrorf(n, "splice escape produced non-code value %s", t)
		}
		if code.Snippet != 0 {
			return nil, nil, typeErrorf(n, "snippet quote in non-snippet splice")
		}
		if code.Annotation != env.Annotation() {
			return nil, nil, typeErrorf(n, "mismatched annotations in splice: %q inside %q", code.Annotation, env.Annotation())
		}
		return code.Inner, env, nil

	case ast.Persist:
		return t, env, nil

	case ast.Snippet:
		code, ok := t.(*types.Code)
		if !ok {
			return nil, nil, typeErrorf(n, "snippet escape produced non-code value %s", t)
		}
		if code.Snippet == 0 {
			return nil, nil, typeErrorf(n, "non-snippet code in snippet splice")
		}
		if code.Snippet != n.ID {
			return nil, nil, typeErrorf(n, "mismatched snippet splice")
		}
		return code.Inner, env, nil
	}
	return nil, nil, internalf("unknown escape kind %q", n.Kind)
}

func (c *Checker) checkRun(n *ast.Run, env *Env) (types.Type, *Env, error) {
	t, e, err := c.check(n.Expr, env)
	if err != nil {
		return nil, nil, err
	}
	code, ok := t.(*types.Code)
	if !ok {
		return nil, nil, typeErrorf(n, "running a non-code type %s", t)
	}
	if code.Snippet != 0 {
		return nil, nil, typeErrorf(n, "cannot run splice quotes individually")
	}
	return code.Inner, e, nil
}

func (c *Checker) checkFun(n *ast.Fun, env *Env) (types.Type, *Env, error) {
	params := make([]types.Type, 0, len(n.Params))
	for _, p := range n.Params {
		t, _, err := c.check(p, env)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, t)
	}
	params, tv := types.RectifyParams(params)

	body := env
	for i, p := range n.Params {
		body = body.Bind(p.Name, params[i])
	}
	ret, _, err := c.check(n.Body, body)
	if err != nil {
		return nil, nil, err
	}

	var fn types.Type = &types.Fun{Params: params, Ret: ret}
	if tv != nil {
		fn = &types.Quantified{Var: tv, Inner: fn}
	}
	return fn, env, nil
}

func (c *Checker) checkCall(n *ast.Call, env *Env) (types.Type, *Env, error) {
	target, e, err := c.check(n.Fun, env)
	if err != nil {
		return nil, nil, err
	}
	args := make([]types.Type, 0, len(n.Args))
	for _, a := range n.Args {
		var t types.Type
		if t, e, err = c.check(a, e); err != nil {
			return nil, nil, err
		}
		args = append(args, t)
	}
	ret, err := CheckCall(target, args)
	if err != nil {
		return nil, nil, typeErrorf(n, "%v", err)
	}
	return ret, e, nil
}

func (c *Checker) checkIf(n *ast.If, env *Env) (types.Type, *Env, error) {
	cond, e, err := c.check(n.Cond, env)
	if err != nil {
		return nil, nil, err
	}
	if !types.Same(cond, types.Bool) {
		return nil, nil, typeErrorf(n.Cond, "`if` condition must be a Bool")
	}
	tt, _, err := c.check(n.True, e)
	if err != nil {
		return nil, nil, err
	}
	ft, _, err := c.check(n.False, e)
	if err != nil {
		return nil, nil, err
	}
	if !types.Compatible(tt, ft) || !types.Compatible(ft, tt) {
		return nil, nil, typeErrorf(n, "condition branches must have same type")
	}
	return tt, e, nil
}

func (c *Checker) checkWhile(n *ast.While, env *Env) (types.Type, *Env, error) {
	cond, e, err := c.check(n.Cond, env)
	if err != nil {
		return nil, nil, err
	}
	if !types.Same(cond, types.Bool) {
		return nil, nil, typeErrorf(n.Cond, "`while` condition must be a Bool")
	}
	if _, _, err := c.check(n.Body, e); err != nil {
		return nil, nil, err
	}
	return types.Void, e, nil
}

func (c *Checker) checkMacroCall(n *ast.MacroCall, env *Env) (types.Type, *Env, error) {
	macroT, depth, ok := env.Lookup(n.Macro)
	if !ok {
		return nil, nil, typeErrorf(n, "macro %s not defined", n.Macro)
	}
	var params []types.Type
	switch fn := types.Unquantified(macroT).(type) {
	case *types.Fun:
		params = fn.Params
	case *types.VariadicFun:
		params = fn.Params
	default:
		return nil, nil, typeErrorf(n, "macro must be a function")
	}

	// Code arguments are checked in a fresh quote based at the stage that
	// defined the macro.
	argEnv := env.Pop(depth, nil).Push("")
	args := make([]types.Type, 0, len(n.Args))
	for i, arg := range n.Args {
		if i >= len(params) {
			break
		}
		code, isCode := params[i].(*types.Code)
		if !isCode {
			t, _, err := c.check(arg, env)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, t)
			continue
		}
		asSnippet := code.SnippetVar != nil
		checkEnv, snippet := argEnv, 0
		if asSnippet {
			checkEnv, snippet = env, n.ID
		}
		t, _, err := c.check(arg, checkEnv)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, &types.Code{Inner: t, Snippet: snippet})
	}

	ret, err := CheckCall(macroT, args)
	if err != nil {
		return nil, nil, typeErrorf(n, "%v", err)
	}
	code, ok := ret.(*types.Code)
	if !ok {
		return nil, nil, typeErrorf(n, "macro must return code")
	}
	return code.Inner, env, nil
}

func (c *Checker) checkTuple(n *ast.Tuple, env *Env) (types.Type, *Env, error) {
	e := env
	comps := make([]types.Type, 0, len(n.Exprs))
	for _, x := range n.Exprs {
		t, next, err := c.check(x, e)
		if err != nil {
			return nil, nil, err
		}
		e = next
		comps = append(comps, t)
	}
	return &types.Tuple{Components: comps}, e, nil
}

func (c *Checker) checkTupleIndex(n *ast.TupleIndex, env *Env) (types.Type, *Env, error) {
	t, e, err := c.check(n.Tuple, env)
	if err != nil {
		return nil, nil, err
	}
	tuple, ok := t.(*types.Tuple)
	if !ok {
		return nil, nil, typeErrorf(n.Tuple, "indexing non-tuple")
	}
	if n.Index < 0 || n.Index >= len(tuple.Components) {
		return nil, nil, typeErrorf(n, "index %d out of range for %d-ary tuple", n.Index, len(tuple.Components))
	}
	return tuple.Components[n.Index], e, nil
}

// ---------------------------------------------------------------------------
// Type syntax
// ---------------------------------------------------------------------------

// resolveType turns type syntax into a type using the named types of env.
func resolveType(n ast.TypeNode, env *Env) (types.Type, error) {
	switch n := n.(type) {
	case *ast.PrimitiveType:
		t, ok := env.NamedType(n.Name)
		if !ok {
			return nil, typeErrorf(n, "unknown primitive type %s", n.Name)
		}
		if _, ok := t.(*types.Constructor); ok {
			return nil, typeErrorf(n, "%s needs a parameter", n.Name)
		}
		return t, nil

	case *ast.FunType:
		params := make([]types.Type, 0, len(n.Params))
		for _, p := range n.Params {
			t, err := resolveType(p, env)
			if err != nil {
				return nil, err
			}
			params = append(params, t)
		}
		ret, err := resolveType(n.Ret, env)
		if err != nil {
			return nil, err
		}
		return types.RectifyFun(&types.Fun{Params: params, Ret: ret}), nil

	case *ast.CodeType:
		inner, err := resolveType(n.Inner, env)
		if err != nil {
			return nil, err
		}
		if n.Snippet {
			return &types.Code{Inner: inner, Annotation: n.Annotation, SnippetVar: &types.TypeVar{Name: "id"}}, nil
		}
		return &types.Code{Inner: inner, Annotation: n.Annotation}, nil

	case *ast.InstanceType:
		t, ok := env.NamedType(n.Name)
		if !ok {
			return nil, typeErrorf(n, "unknown type constructor %s", n.Name)
		}
		cons, ok := t.(*types.Constructor)
		if !ok {
			return nil, typeErrorf(n, "%s is not parameterized", n.Name)
		}
		arg, err := resolveType(n.Arg, env)
		if err != nil {
			return nil, err
		}
		return cons.Instance(arg), nil

	case *ast.OverloadedType:
		alts := make([]types.Type, 0, len(n.Types))
		for _, a := range n.Types {
			t, err := resolveType(a, env)
			if err != nil {
				return nil, err
			}
			alts = append(alts, t)
		}
		return &types.Overloaded{Types: alts}, nil

	case *ast.TupleType:
		comps := make([]types.Type, 0, len(n.Components))
		for _, ct := range n.Components {
			t, err := resolveType(ct, env)
			if err != nil {
				return nil, err
			}
			comps = append(comps, t)
		}
		return &types.Tuple{Components: comps}, nil
	}
	return nil, internalf("no type rule for %s", fmt.Sprintf("%T", n))
}
