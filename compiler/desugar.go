package compiler

import (
	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

// ---------------------------------------------------------------------------
// Desugaring
// ---------------------------------------------------------------------------

// Desugarer rewrites an elaborated tree before IR extraction. New nodes
// must be elaborated into table so later passes can see their types.
type Desugarer interface {
	Desugar(tree ast.Node, table *TypeTable) (ast.Node, error)
}

// Desugar runs each desugarer in order.
func Desugar(tree ast.Node, table *TypeTable, ds ...Desugarer) (ast.Node, error) {
	for _, d := range ds {
		var err error
		if tree, err = d.Desugar(tree, table); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// rewriteAll repeatedly replaces the first node accepted by match until no
// node matches.
func rewriteAll(tree ast.Node, match func(ast.Node) bool, rewrite func(ast.Node) (ast.Node, error)) (ast.Node, error) {
	for {
		var target ast.Node
		ast.Walk(tree, func(n ast.Node) bool {
			if target != nil {
				return false
			}
			if match(n) {
				target = n
				return false
			}
			return true
		})
		if target == nil {
			return tree, nil
		}
		repl, err := rewrite(target)
		if err != nil {
			return nil, err
		}
		tree = ast.Replace(tree, target.NodeID(), repl)
	}
}

// MacroExpander turns a macro invocation into a splice of a call to the
// macro, made at the stage that defined it, with code arguments quoted.
type MacroExpander struct {
	Options Options
}

// Desugar expands every macro call in tree.
func (m MacroExpander) Desugar(tree ast.Node, table *TypeTable) (ast.Node, error) {
	isMacro := func(n ast.Node) bool {
		_, ok := n.(*ast.MacroCall)
		return ok
	}
	return rewriteAll(tree, isMacro, func(n ast.Node) (ast.Node, error) {
		return m.expand(n.(*ast.MacroCall), table)
	})
}

func (m MacroExpander) expand(mc *ast.MacroCall, table *TypeTable) (ast.Node, error) {
	entry, ok := table.Lookup(mc.ID)
	if !ok {
		return nil, internalf("macro call %d was not elaborated", mc.ID)
	}
	env := entry.Env
	macroT, depth, ok := env.Lookup(mc.Macro)
	if !ok {
		return nil, internalf("macro %s vanished after checking", mc.Macro)
	}
	if depth == 0 {
		return nil, unsupportedf(mc, "macro %s is invoked at the stage that defines it", mc.Macro)
	}

	var params []types.Type
	switch fn := types.Unquantified(macroT).(type) {
	case *types.Fun:
		params = fn.Params
	case *types.VariadicFun:
		params = fn.Params
	}

	loc := ast.Base{Loc: mc.Loc}
	args := make([]ast.Expr, len(mc.Args))
	for i, arg := range mc.Args {
		args[i] = arg
		if i >= len(params) {
			continue
		}
		code, ok := params[i].(*types.Code)
		if !ok {
			continue
		}
		if code.SnippetVar != nil {
			return nil, unsupportedf(arg, "snippet arguments to macro %s", mc.Macro)
		}
		args[i] = &ast.Quote{Base: ast.Base{Loc: arg.Location()}, Expr: arg}
	}

	esc := &ast.Escape{
		Base:  loc,
		Kind:  ast.Splice,
		Count: depth,
		Expr: &ast.Call{
			Base: loc,
			Fun:  &ast.Lookup{Base: loc, Ident: mc.Macro},
			Args: args,
		},
	}
	return ElaborateSubtree(esc, env, table, m.Options)
}

// CrossStagePersister rewrites uses of variables from enclosing stages
// into explicit persist escapes. It is needed when the checker ran with
// ImplicitPersist.
type CrossStagePersister struct {
	Options Options
}

// Desugar rewrites every implicit cross-stage lookup in tree.
func (p CrossStagePersister) Desugar(tree ast.Node, table *TypeTable) (ast.Node, error) {
	var failure error
	crosses := func(n ast.Node) bool {
		if failure != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.Lookup:
			_, depth := p.binding(n.ID, n.Ident, table)
			return depth > 0
		case *ast.Assign:
			if _, depth := p.binding(n.ID, n.Ident, table); depth > 0 {
				failure = unsupportedf(n, "assignment to %s across a stage boundary", n.Ident)
			}
		}
		return false
	}
	out, err := rewriteAll(tree, crosses, func(n ast.Node) (ast.Node, error) {
		l := n.(*ast.Lookup)
		env, depth := p.binding(l.ID, l.Ident, table)
		esc := &ast.Escape{
			Base:  ast.Base{Loc: l.Loc},
			Kind:  ast.Persist,
			Count: depth,
			Expr:  &ast.Lookup{Base: ast.Base{Loc: l.Loc}, Ident: l.Ident},
		}
		return ElaborateSubtree(esc, env, table, p.Options)
	})
	if failure != nil {
		return nil, failure
	}
	return out, err
}

// binding finds the stage distance of a use, from the environment the
// checker recorded for it.
func (p CrossStagePersister) binding(id int, name string, table *TypeTable) (*Env, int) {
	entry, ok := table.Lookup(id)
	if !ok || entry.Env == nil {
		return nil, 0
	}
	_, depth, ok := entry.Env.Lookup(name)
	if !ok {
		return entry.Env, 0
	}
	return entry.Env, depth
}
