package emit

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
)

// recorder is a backend that logs the order scopes are emitted in.
type recorder struct {
	events []string
}

func (r *recorder) EmitExpr(ctx Context, n ast.Expr) (string, error) {
	return fmt.Sprintf("%T", n), nil
}

func (r *recorder) EmitProc(ctx Context, p *compiler.Proc) (string, error) {
	if p.ID == compiler.MainID {
		r.events = append(r.events, "main")
	} else {
		r.events = append(r.events, "proc")
	}
	return "p", nil
}

func (r *recorder) EmitProg(ctx Context, p *compiler.Prog) (string, error) {
	r.events = append(r.events, "prog")
	return "q", nil
}

func (r *recorder) EmitProgVariant(ctx Context, v *compiler.Variant, p *compiler.Prog) (string, error) {
	if ctx.Variant != v {
		return "", errors.New("variant context not set")
	}
	r.events = append(r.events, fmt.Sprintf("variant %d", len(v.Config)))
	return "v", nil
}

func compile(t *testing.T, tree ast.Node) *compiler.IR {
	t.Helper()
	res, err := compiler.NewPipeline(compiler.Options{Presplice: true}).Compile(tree)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res.IR
}

func intLit(v int64) *ast.Literal { return &ast.Literal{Kind: ast.IntLiteral, Value: v} }

func snippetProgram() ast.Node {
	pick := &ast.Escape{Kind: ast.Snippet, Count: 1, Expr: &ast.If{
		Cond:  &ast.Lookup{Ident: "s"},
		True:  &ast.Quote{Snippet: true, Expr: intLit(1)},
		False: &ast.Quote{Snippet: true, Expr: intLit(2)},
	}}
	return &ast.Seq{
		LHS: &ast.Let{Ident: "s", Expr: &ast.Literal{Kind: ast.BoolLiteral, Value: true}},
		RHS: &ast.Quote{Annotation: "host", Expr: &ast.Binary{Op: "+", LHS: pick, RHS: intLit(10)}},
	}
}

func TestEmit_ChildrenBeforeParents(t *testing.T) {
	// let f = fun() -> <1>; f()
	tree := &ast.Seq{
		LHS: &ast.Let{Ident: "f", Expr: &ast.Fun{Body: &ast.Quote{Expr: intLit(1)}}},
		RHS: &ast.Call{Fun: &ast.Lookup{Ident: "f"}},
	}
	ir := compile(t, tree)

	r := &recorder{}
	out, err := Emit(NewContext(ir, r))
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if want := []string{"prog", "proc", "main"}; !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v, want %v", r.events, want)
	}
	if out != "q\np\np" {
		t.Errorf("output = %q", out)
	}
}

func TestEmit_VariantsThenDispatcher(t *testing.T) {
	ir := compile(t, snippetProgram())

	r := &recorder{}
	if _, err := Emit(NewContext(ir, r)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// Snippet quotes are only reachable through their variants.
	want := []string{"variant 1", "variant 1", "prog", "main"}
	if !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v, want %v", r.events, want)
	}
}

func TestEmit_WithoutVariants(t *testing.T) {
	res, err := compiler.NewPipeline(compiler.Options{}).Compile(snippetProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	r := &recorder{}
	if _, err := Emit(NewContext(res.IR, r)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if want := []string{"prog", "main"}; !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v, want %v", r.events, want)
	}
}

// nestedSnippetProgram is a quote inside a quote. The first snippet escape
// leaves both quotes; the second belongs to the inner one.
func nestedSnippetProgram() ast.Node {
	pick := func(count int, cond ast.Expr, a, b int64) ast.Expr {
		return &ast.Escape{Kind: ast.Snippet, Count: count, Expr: &ast.If{
			Cond:  cond,
			True:  &ast.Quote{Snippet: true, Expr: intLit(a)},
			False: &ast.Quote{Snippet: true, Expr: intLit(b)},
		}}
	}
	inner := &ast.Binary{
		Op:  "+",
		LHS: pick(2, &ast.Lookup{Ident: "s"}, 1, 2),
		RHS: pick(1, &ast.Literal{Kind: ast.BoolLiteral, Value: false}, 3, 4),
	}
	return &ast.Seq{
		LHS: &ast.Let{Ident: "s", Expr: &ast.Literal{Kind: ast.BoolLiteral, Value: true}},
		RHS: &ast.Quote{Expr: &ast.Quote{Expr: inner}},
	}
}

// nested records the variant each inner quote variant is emitted under.
type nested struct {
	recorder
	outers []*compiler.Variant
}

func (n *nested) EmitProgVariant(ctx Context, v *compiler.Variant, p *compiler.Prog) (string, error) {
	if v.Outer != nil {
		n.outers = append(n.outers, v.Outer)
		if ctx.SpecializedProg(p.ID) != v.Progs[p.ID] {
			return "", errors.New("inner variant does not see its own quote")
		}
		if len(p.OwnedSnippet) != 0 {
			return "", fmt.Errorf("snippet escape %d left open", p.OwnedSnippet[0].ID)
		}
	}
	return n.recorder.EmitProgVariant(ctx, v, p)
}

func TestEmit_NestedVariants(t *testing.T) {
	ir := compile(t, nestedSnippetProgram())

	r := &nested{}
	if _, err := Emit(NewContext(ir, r)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// Per outer variant: both inner variants, the inner dispatcher, then
	// the outer variant itself.
	perOuter := []string{"variant 1", "variant 1", "prog", "variant 1"}
	want := append(append(append([]string(nil), perOuter...), perOuter...), "prog", "main")
	if !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v, want %v", r.events, want)
	}

	var outerID int
	for id := range ir.Variants {
		outerID = id
	}
	outers := ir.Variants[outerID]
	if len(outers) != 2 || len(r.outers) != 4 {
		t.Fatalf("%d outer variants, %d inner emissions", len(outers), len(r.outers))
	}
	for i, o := range r.outers {
		if o != outers[i/2] {
			t.Errorf("inner emission %d built on the wrong outer variant", i)
		}
	}
}

func TestContext_WithVariant(t *testing.T) {
	ir := compile(t, snippetProgram())
	var progID int
	for id, vs := range ir.Variants {
		progID = id
		ctx := NewContext(ir, &recorder{})
		vctx := ctx.WithVariant(vs[0])

		if ctx.Variant != nil {
			t.Error("WithVariant modified the original context")
		}
		if vctx.SpecializedProg(id) != vs[0].Progs[id] {
			t.Error("variant context does not see the specialized quote")
		}
		if ctx.SpecializedProg(id) != ir.Progs[id] {
			t.Error("plain context does not see the IR quote")
		}
	}
	if progID == 0 {
		t.Fatal("no variants")
	}
	if NewContext(ir, nil).SpecializedProc(compiler.MainID) != ir.Main {
		t.Error("SpecializedProc(main) is not main")
	}
}

func TestEmitScope_UnknownID(t *testing.T) {
	ir := compile(t, intLit(1))
	_, err := EmitScope(NewContext(ir, &recorder{}), 999)
	if !errors.Is(err, compiler.ErrInternal) {
		t.Errorf("err = %v, want %v", err, compiler.ErrInternal)
	}
}

type failing struct{ recorder }

func (f *failing) EmitProg(ctx Context, p *compiler.Prog) (string, error) {
	return "", compiler.Unsupportedf(p.Body, "no quotes here")
}

func TestEmit_PropagatesBackendErrors(t *testing.T) {
	ir := compile(t, &ast.Quote{Expr: intLit(1)})
	_, err := Emit(NewContext(ir, &failing{}))
	if !compiler.IsKind(err, compiler.UnsupportedError) {
		t.Errorf("err = %v, want unsupported", err)
	}
}
