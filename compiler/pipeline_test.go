package compiler

import (
	"errors"
	"sort"
	"testing"

	"github.com/chazu/stagecraft/pkg/ast"
)

func TestPipeline_Compile(t *testing.T) {
	res := mustCompile(t, Options{}, seq(let("x", intLit(20)), bin("+", lookup("x"), intLit(22))))

	if got := res.Type().String(); got != "Int" {
		t.Errorf("type = %s, want Int", got)
	}
	if res.IR == nil || res.IR.Main == nil {
		t.Fatal("no IR")
	}
	if res.IR.Main.Body != res.Tree {
		t.Error("main body is not the compiled tree")
	}
	if len(res.DefUse) != 1 {
		t.Errorf("def/use = %v, want one use", res.DefUse)
	}
}

func TestPipeline_Check(t *testing.T) {
	tree := seq(
		let("m", fun(quote("", splice(1, lookup("c"))), param("c", codeOf(prim("Int"))))),
		quote("", &ast.MacroCall{Macro: "m", Args: []ast.Expr{intLit(5)}}),
	)
	checked, table, err := NewPipeline(Options{}).Check(tree)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := table.Type(checked.NodeID()).String(); got != "<Int>" {
		t.Errorf("type = %s, want <Int>", got)
	}
	// Check does not desugar.
	if len(nodesOf[*ast.MacroCall](checked)) != 1 {
		t.Error("macro call was expanded by Check")
	}
}

func TestPipeline_Intrinsics(t *testing.T) {
	ids := NewPipeline(Options{}).Intrinsics()

	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) != len(BuiltinOperators()) {
		t.Fatalf("got %d intrinsics, want %d", len(names), len(BuiltinOperators()))
	}
	for i, name := range names {
		if ids[name] != -(i + 1) {
			t.Errorf("%s = %d, want %d", name, ids[name], -(i + 1))
		}
	}
}

// ----- desugaring -----

func TestPipeline_ImplicitPersist(t *testing.T) {
	tree := seq(let("x", intLit(1)), quote("", bin("+", lookup("x"), intLit(1))))

	_, err := NewPipeline(Options{}).Compile(tree)
	assertKind(t, err, TypeError)

	res := mustCompile(t, Options{ImplicitPersist: true}, tree)
	e := escapeOf(res.Tree, ast.Persist)
	if e == nil {
		t.Fatal("cross-stage lookup was not rewritten to a persist")
	}
	if e.Count != 1 {
		t.Errorf("persist count = %d, want 1", e.Count)
	}
	l, ok := e.Expr.(*ast.Lookup)
	if !ok || l.Ident != "x" {
		t.Fatalf("persist body = %#v", e.Expr)
	}
	if res.DefUse[l.ID] != nodesOf[*ast.Let](res.Tree)[0].ID {
		t.Error("rewritten lookup does not resolve to the outer let")
	}
	if res.Table.Type(e.ID) == nil {
		t.Error("rewritten escape was not elaborated")
	}
	q := plainQuotes(res.Tree)[0]
	if len(res.IR.Progs[q.ID].OwnedPersist) != 1 {
		t.Errorf("owned persists = %v", res.IR.Progs[q.ID].OwnedPersist)
	}
}

func TestPipeline_ImplicitPersistRejectsAssignment(t *testing.T) {
	tree := seq(let("x", intLit(1)), quote("", assign("x", intLit(2))))
	_, err := NewPipeline(Options{ImplicitPersist: true}).Compile(tree)
	assertKind(t, err, UnsupportedError)
}

func macroProgram(useStage ast.Expr) ast.Node {
	return seq(
		let("m", fun(quote("", bin("+", splice(1, lookup("c")), intLit(1))), param("c", codeOf(prim("Int"))))),
		useStage,
	)
}

func TestPipeline_MacroExpansion(t *testing.T) {
	mc := &ast.MacroCall{Macro: "m", Args: []ast.Expr{intLit(5)}}
	res := mustCompile(t, Options{}, macroProgram(quote("", mc)))

	if len(nodesOf[*ast.MacroCall](res.Tree)) != 0 {
		t.Fatal("macro call survived desugaring")
	}
	if got := res.Type().String(); got != "<Int>" {
		t.Errorf("type = %s, want <Int>", got)
	}

	// The call became splice(call(m, quote(5))) inside the user's quote.
	user := plainQuotes(res.Tree)[1]
	esc, ok := user.Expr.(*ast.Escape)
	if !ok || esc.Kind != ast.Splice || esc.Count != 1 {
		t.Fatalf("quote body = %#v", user.Expr)
	}
	c, ok := esc.Expr.(*ast.Call)
	if !ok {
		t.Fatalf("escape body = %T", esc.Expr)
	}
	if q, ok := c.Args[0].(*ast.Quote); !ok || literalValue(t, q.Expr) != 5 {
		t.Errorf("macro argument = %#v", c.Args[0])
	}
	if res.DefUse[c.Fun.NodeID()] != nodesOf[*ast.Let](res.Tree)[0].ID {
		t.Error("expanded call does not resolve to the macro")
	}
	if len(res.IR.Progs[user.ID].OwnedSplice) != 1 {
		t.Errorf("user quote owned splices = %v", res.IR.Progs[user.ID].OwnedSplice)
	}
}

func TestPipeline_MacroAtDefiningStage(t *testing.T) {
	mc := &ast.MacroCall{Macro: "m", Args: []ast.Expr{intLit(5)}}
	_, err := NewPipeline(Options{}).Compile(macroProgram(mc))
	assertKind(t, err, UnsupportedError)
}

type recordingDesugarer struct {
	calls *int
	err   error
}

func (d recordingDesugarer) Desugar(tree ast.Node, table *TypeTable) (ast.Node, error) {
	*d.calls++
	if table.Type(tree.NodeID()) == nil {
		return nil, errors.New("tree was not elaborated")
	}
	return tree, d.err
}

func TestPipeline_Desugarers(t *testing.T) {
	calls := 0
	p := NewPipeline(Options{})
	p.Desugarers = []Desugarer{recordingDesugarer{calls: &calls}}
	if _, err := p.Compile(intLit(1)); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if calls != 1 {
		t.Errorf("desugarer ran %d times, want 1", calls)
	}

	boom := errors.New("boom")
	p.Desugarers = []Desugarer{recordingDesugarer{calls: &calls, err: boom}}
	if _, err := p.Compile(intLit(1)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
