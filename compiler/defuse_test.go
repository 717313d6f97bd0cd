package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

func defUse(t *testing.T, tree ast.Node) (ast.Node, DefUse) {
	t.Helper()
	out, _ := mustElaborate(t, Options{}, tree)
	du, err := FindDefUse(out, NewPipeline(Options{}).Intrinsics())
	if err != nil {
		t.Fatalf("FindDefUse: %v", err)
	}
	return out, du
}

func TestFindDefUse_Resolution(t *testing.T) {
	tests := []struct {
		name string
		tree ast.Node
		// def picks the expected defining node of the first lookup or
		// assignment.
		def func(out ast.Node) int
	}{
		{"let", seq(let("x", intLit(20)), bin("+", lookup("x"), intLit(22))),
			func(out ast.Node) int { return nodesOf[*ast.Let](out)[0].ID }},
		{"shadowing", seq(let("x", intLit(1)), let("x", intLit(2)), lookup("x")),
			func(out ast.Node) int { return nodesOf[*ast.Let](out)[1].ID }},
		{"parameter", fun(lookup("x"), param("x", prim("Int"))),
			func(out ast.Node) int { return nodesOf[*ast.Param](out)[0].ID }},
		{"parameter shadows let", seq(let("x", boolLit(true)), fun(lookup("x"), param("x", prim("Int")))),
			func(out ast.Node) int { return nodesOf[*ast.Param](out)[0].ID }},
		{"persist reaches the outer stage", seq(let("y", intLit(1)), quote("", persist(1, lookup("y")))),
			func(out ast.Node) int { return nodesOf[*ast.Let](out)[0].ID }},
		{"binding inside a quote", seq(let("z", boolLit(true)), quote("", seq(let("z", intLit(1)), lookup("z")))),
			func(out ast.Node) int { return nodesOf[*ast.Let](out)[1].ID }},
		{"extern", seq(
			&ast.Extern{Name: "sqrt", Type: &ast.FunType{Params: []ast.TypeNode{prim("Float")}, Ret: prim("Float")}},
			call(lookup("sqrt"), floatLit(2))),
			func(out ast.Node) int { return nodesOf[*ast.Extern](out)[0].ID }},
		{"snippet escape body", snippetProgram(),
			func(out ast.Node) int { return nodesOf[*ast.Let](out)[0].ID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, du := defUse(t, tt.tree)
			lookups := nodesOf[*ast.Lookup](out)
			if len(lookups) == 0 {
				t.Fatal("no lookups in tree")
			}
			if got, want := du[lookups[0].ID], tt.def(out); got != want {
				t.Errorf("def of %s = %d, want %d", lookups[0].Ident, got, want)
			}
		})
	}
}

func TestFindDefUse_OnlyUses(t *testing.T) {
	out, du := defUse(t, seq(let("x", intLit(1)), assign("x", intLit(2)), lookup("x")))
	if len(du) != 2 {
		t.Fatalf("len(du) = %d, want 2: %v", len(du), du)
	}
	def := nodesOf[*ast.Let](out)[0].ID
	a := nodesOf[*ast.Assign](out)[0]
	if du[a.ID] != def {
		t.Errorf("assign resolves to %d, want %d", du[a.ID], def)
	}
	if _, ok := du[def]; ok {
		t.Error("binder recorded as a use")
	}
}

func TestFindDefUse_Intrinsic(t *testing.T) {
	p := NewPipeline(Options{})
	p.Externs = BuiltinOperators().With("print", &types.Fun{Params: []types.Type{types.Int}, Ret: types.Void})

	res, err := p.Compile(call(lookup("print"), intLit(1)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	l := nodesOf[*ast.Lookup](res.Tree)[0]
	want := res.Intrinsics["print"]
	if want >= 0 {
		t.Fatalf("intrinsic id %d is not negative", want)
	}
	if res.DefUse[l.ID] != want {
		t.Errorf("print resolves to %d, want %d", res.DefUse[l.ID], want)
	}
}

func TestFindDefUse_InternalErrors(t *testing.T) {
	tests := []struct {
		name string
		tree ast.Node
	}{
		{"unknown variable", lookup("ghost")},
		{"escape outside quote", persist(1, intLit(1))},
		{"stray snippet quote", snippetQuote(intLit(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FindDefUse(tt.tree, nil); !errors.Is(err, ErrInternal) {
				t.Errorf("err = %v, want %v", err, ErrInternal)
			}
		})
	}
}
