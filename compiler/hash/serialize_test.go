package hash

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chazu/stagecraft/pkg/ast"
)

func intLit(id int, v int64) *ast.Literal {
	return &ast.Literal{Base: ast.Base{ID: id}, Kind: ast.IntLiteral, Value: v}
}

func lookup(id int, name string) *ast.Lookup {
	return &ast.Lookup{Base: ast.Base{ID: id}, Ident: name}
}

func let(id int, name string, e ast.Expr) *ast.Let {
	return &ast.Let{Base: ast.Base{ID: id}, Ident: name, Expr: e}
}

func seq(id int, lhs, rhs ast.Expr) *ast.Seq {
	return &ast.Seq{Base: ast.Base{ID: id}, LHS: lhs, RHS: rhs}
}

func intType() ast.TypeNode { return &ast.PrimitiveType{Name: "Int"} }

// fun builds "fun(x: Int) -> body".
func fun(id int, param string, body ast.Expr) *ast.Fun {
	return &ast.Fun{
		Base:   ast.Base{ID: id},
		Params: []*ast.Param{{Base: ast.Base{ID: id + 1}, Name: param, Type: intType()}},
		Body:   body,
	}
}

// ----- encoding -----

func TestSerialize_Deterministic(t *testing.T) {
	tree := seq(1, let(2, "x", intLit(3, 42)), lookup(4, "x"))

	data1 := Serialize(tree)
	data2 := Serialize(tree)

	if string(data1) != string(data2) {
		t.Error("serialization is not deterministic")
	}
}

func TestSerialize_VersionPrefix(t *testing.T) {
	data := Serialize(intLit(1, 0))

	if len(data) < 1 {
		t.Fatal("empty serialization")
	}
	if data[0] != HashVersion {
		t.Errorf("version prefix: got 0x%02X, want 0x%02X", data[0], HashVersion)
	}
}

func TestSerialize_IntLiteral(t *testing.T) {
	data := Serialize(intLit(1, 12345))

	// version(1) + tag(1) + int64(8) = 10
	if len(data) != 10 {
		t.Fatalf("length: got %d, want 10", len(data))
	}
	if data[1] != TagIntLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagIntLiteral)
	}
	v := int64(binary.BigEndian.Uint64(data[2:10]))
	if v != 12345 {
		t.Errorf("value: got %d, want 12345", v)
	}
}

func TestSerialize_FloatLiteral(t *testing.T) {
	data := Serialize(&ast.Literal{Kind: ast.FloatLiteral, Value: 2.5})

	if len(data) != 10 {
		t.Fatalf("length: got %d, want 10", len(data))
	}
	if data[1] != TagFloatLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagFloatLiteral)
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(data[2:10]))
	if v != 2.5 {
		t.Errorf("value: got %v, want 2.5", v)
	}
}

func TestSerialize_StringLiteral(t *testing.T) {
	data := Serialize(&ast.Literal{Kind: ast.StringLiteral, Value: "hi"})

	// version(1) + tag(1) + len(4) + "hi"(2) = 8
	if len(data) != 8 {
		t.Fatalf("length: got %d, want 8", len(data))
	}
	if data[1] != TagStringLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagStringLiteral)
	}
	if n := binary.BigEndian.Uint32(data[2:6]); n != 2 {
		t.Errorf("string length: got %d, want 2", n)
	}
	if string(data[6:]) != "hi" {
		t.Errorf("string bytes: got %q", data[6:])
	}
}

func TestSerialize_FreeRef(t *testing.T) {
	data := Serialize(lookup(1, "print"))

	if data[1] != TagFreeRef {
		t.Fatalf("tag: got 0x%02X, want 0x%02X", data[1], TagFreeRef)
	}
	if string(data[6:]) != "print" {
		t.Errorf("name: got %q, want %q", data[6:], "print")
	}
}

func TestSerialize_LocalRefDistance(t *testing.T) {
	// let x = 1; let y = 2; x
	tree := seq(1, let(2, "x", intLit(3, 1)), seq(4, let(5, "y", intLit(6, 2)), lookup(7, "x")))
	data := Serialize(tree)

	// The lookup is the last five bytes: tag + uint32 distance.
	ref := data[len(data)-5:]
	if ref[0] != TagLocalRef {
		t.Fatalf("tag: got 0x%02X, want 0x%02X", ref[0], TagLocalRef)
	}
	if d := binary.BigEndian.Uint32(ref[1:]); d != 1 {
		t.Errorf("distance: got %d, want 1", d)
	}
}

// ----- content hashes -----

func TestHashTree_IgnoresIDsAndLocations(t *testing.T) {
	a := seq(1, let(2, "x", intLit(3, 1)), lookup(4, "x"))
	b := seq(10, let(20, "x", intLit(30, 1)), lookup(40, "x"))
	b.Loc = &ast.Location{Filename: "other.json", Start: ast.Position{Line: 3, Column: 1}}

	if HashTree(a) != HashTree(b) {
		t.Error("ids and locations should not affect the hash")
	}
}

func TestHashTree_AlphaEquivalence(t *testing.T) {
	a := seq(1, let(2, "x", intLit(3, 1)), lookup(4, "x"))
	b := seq(1, let(2, "y", intLit(3, 1)), lookup(4, "y"))

	if HashTree(a) != HashTree(b) {
		t.Error("renaming a local should not change the hash")
	}

	fa := fun(1, "a", lookup(3, "a"))
	fb := fun(1, "b", lookup(3, "b"))
	if HashTree(fa) != HashTree(fb) {
		t.Error("renaming a parameter should not change the hash")
	}
}

func TestHashTree_Shadowing(t *testing.T) {
	// let x = 1; let x = 2; x   refers to the inner x.
	inner := seq(1, let(2, "x", intLit(3, 1)), seq(4, let(5, "x", intLit(6, 2)), lookup(7, "x")))
	// let x = 1; let y = 2; x   refers to the outer binder.
	outer := seq(1, let(2, "x", intLit(3, 1)), seq(4, let(5, "y", intLit(6, 2)), lookup(7, "x")))

	if HashTree(inner) == HashTree(outer) {
		t.Error("references to different binders should hash differently")
	}
}

func TestHashTree_FreeNamesMatter(t *testing.T) {
	if HashTree(lookup(1, "print")) == HashTree(lookup(1, "println")) {
		t.Error("free names should be part of the hash")
	}
}

func TestHashTree_DifferentNodesDiffer(t *testing.T) {
	body := intLit(2, 1)
	cases := []struct {
		name string
		tree ast.Node
	}{
		{"quote", &ast.Quote{Base: ast.Base{ID: 1}, Expr: body}},
		{"annotated quote", &ast.Quote{Base: ast.Base{ID: 1}, Expr: body, Annotation: "Array"}},
		{"snippet quote", &ast.Quote{Base: ast.Base{ID: 1}, Expr: body, Snippet: true}},
		{"splice", &ast.Escape{Base: ast.Base{ID: 1}, Expr: body, Kind: ast.Splice, Count: 1}},
		{"persist", &ast.Escape{Base: ast.Base{ID: 1}, Expr: body, Kind: ast.Persist, Count: 1}},
		{"splice 2", &ast.Escape{Base: ast.Base{ID: 1}, Expr: body, Kind: ast.Splice, Count: 2}},
		{"run", &ast.Run{Base: ast.Base{ID: 1}, Expr: body}},
		{"unary", &ast.Unary{Base: ast.Base{ID: 1}, Op: "-", Expr: body}},
	}

	seen := make(map[[32]byte]string)
	for _, tc := range cases {
		h := HashTree(tc.tree)
		if prev, ok := seen[h]; ok {
			t.Errorf("%s and %s hash the same", tc.name, prev)
		}
		seen[h] = tc.name
	}
}

func TestHex(t *testing.T) {
	got := Hex(intLit(1, 7))
	if len(got) != 64 {
		t.Errorf("hex length: got %d, want 64", len(got))
	}
}
