package compiler

import (
	"testing"

	"github.com/chazu/stagecraft/pkg/ast"
)

// Tree builders. Ids are left at zero; elaboration stamps them.

func intLit(v int64) *ast.Literal {
	return &ast.Literal{Kind: ast.IntLiteral, Value: v}
}

func floatLit(v float64) *ast.Literal {
	return &ast.Literal{Kind: ast.FloatLiteral, Value: v}
}

func boolLit(v bool) *ast.Literal {
	return &ast.Literal{Kind: ast.BoolLiteral, Value: v}
}

func lookup(name string) *ast.Lookup { return &ast.Lookup{Ident: name} }

func let(name string, e ast.Expr) *ast.Let { return &ast.Let{Ident: name, Expr: e} }

func assign(name string, e ast.Expr) *ast.Assign { return &ast.Assign{Ident: name, Expr: e} }

func seq(exprs ...ast.Expr) ast.Expr {
	out := exprs[len(exprs)-1]
	for i := len(exprs) - 2; i >= 0; i-- {
		out = &ast.Seq{LHS: exprs[i], RHS: out}
	}
	return out
}

func bin(op string, l, r ast.Expr) *ast.Binary { return &ast.Binary{Op: op, LHS: l, RHS: r} }

func quote(ann string, e ast.Expr) *ast.Quote { return &ast.Quote{Annotation: ann, Expr: e} }

func snippetQuote(e ast.Expr) *ast.Quote { return &ast.Quote{Snippet: true, Expr: e} }

func escape(kind ast.EscapeKind, count int, e ast.Expr) *ast.Escape {
	return &ast.Escape{Kind: kind, Count: count, Expr: e}
}

func splice(count int, e ast.Expr) *ast.Escape  { return escape(ast.Splice, count, e) }
func persist(count int, e ast.Expr) *ast.Escape { return escape(ast.Persist, count, e) }
func snippet(count int, e ast.Expr) *ast.Escape { return escape(ast.Snippet, count, e) }

func run(e ast.Expr) *ast.Run { return &ast.Run{Expr: e} }

func prim(name string) *ast.PrimitiveType { return &ast.PrimitiveType{Name: name} }

func codeOf(inner ast.TypeNode) *ast.CodeType { return &ast.CodeType{Inner: inner} }

func param(name string, t ast.TypeNode) *ast.Param { return &ast.Param{Name: name, Type: t} }

func fun(body ast.Expr, params ...*ast.Param) *ast.Fun { return &ast.Fun{Params: params, Body: body} }

func call(f ast.Expr, args ...ast.Expr) *ast.Call { return &ast.Call{Fun: f, Args: args} }

func ifThen(c, t, f ast.Expr) *ast.If { return &ast.If{Cond: c, True: t, False: f} }

func root(children ...ast.Expr) *ast.Root { return &ast.Root{Children: children} }

// nodesOf collects the nodes of type T in pre-order.
func nodesOf[T ast.Node](tree ast.Node) []T {
	var out []T
	ast.Walk(tree, func(n ast.Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

func mustCompile(t *testing.T, opts Options, tree ast.Node) *Result {
	t.Helper()
	res, err := NewPipeline(opts).Compile(tree)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

func mustElaborate(t *testing.T, opts Options, tree ast.Node) (ast.Node, *TypeTable) {
	t.Helper()
	out, table, err := Elaborate(tree, nil, nil, opts)
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	return out, table
}

// programType elaborates tree and returns the printed type of its root.
func programType(t *testing.T, opts Options, tree ast.Node) string {
	t.Helper()
	out, table := mustElaborate(t, opts, tree)
	return table.Type(out.NodeID()).String()
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

// snippetProgram is a host quote whose snippet escape picks one of two
// snippet quotes from a stage-0 flag.
func snippetProgram() ast.Node {
	return seq(
		let("s", boolLit(true)),
		quote("host", bin("+",
			snippet(1, ifThen(lookup("s"),
				snippetQuote(intLit(1)),
				snippetQuote(intLit(2)))),
			intLit(10))),
	)
}
