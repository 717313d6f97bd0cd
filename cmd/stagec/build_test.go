package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/manifest"
	"github.com/chazu/stagecraft/pkg/wire"
)

// let x = 20; x + 22
const sumTree = `{"tag":"root","id":1,"children":[
  {"tag":"seq","id":2,
   "lhs":{"tag":"let","id":3,"ident":"x","expr":{"tag":"literal","id":4,"type":"int","value":20}},
   "rhs":{"tag":"binary","id":5,"op":"+",
          "lhs":{"tag":"lookup","id":6,"ident":"x"},
          "rhs":{"tag":"literal","id":7,"type":"int","value":22}}}]}`

// let y = 20; y + 22, the same program with another name.
const renamedTree = `{"tag":"root","id":1,"children":[
  {"tag":"seq","id":2,
   "lhs":{"tag":"let","id":3,"ident":"y","expr":{"tag":"literal","id":4,"type":"int","value":20}},
   "rhs":{"tag":"binary","id":5,"op":"+",
          "lhs":{"tag":"lookup","id":6,"ident":"y"},
          "rhs":{"tag":"literal","id":7,"type":"int","value":22}}}]}`

const boolTree = `{"tag":"root","id":1,"children":[{"tag":"literal","id":2,"type":"boolean","value":true}]}`

func writeTree(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func newTestBuilder(format string) (*builder, *bytes.Buffer) {
	var out bytes.Buffer
	b := &builder{
		pipeline: manifest.Default().Pipeline(),
		format:   format,
		stdout:   &out,
	}
	return b, &out
}

// ----- single unit -----

func TestBuild_Listing(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "sum.json", sumTree)

	b, out := newTestBuilder(manifest.FormatListing)
	if err := b.build(context.Background(), []string{path}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "main ") {
		t.Errorf("listing should start with main, got:\n%s", got)
	}
	if !strings.Contains(got, "(let x#3 20)") {
		t.Errorf("listing missing let, got:\n%s", got)
	}
	if !strings.Contains(got, "(+ x#3 22)") {
		t.Errorf("listing missing resolved lookup, got:\n%s", got)
	}
}

func TestBuild_Type(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "sum.json", sumTree)

	b, out := newTestBuilder(manifest.FormatType)
	if err := b.build(context.Background(), []string{path}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := out.String(); got != "Int\n" {
		t.Errorf("type output: got %q, want %q", got, "Int\n")
	}
}

func TestBuild_Run(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "sum.json", sumTree)

	b, out := newTestBuilder(manifest.FormatType)
	b.run = true
	if err := b.build(context.Background(), []string{path}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !strings.Contains(out.String(), "sum => 42\n") {
		t.Errorf("run output missing result, got:\n%s", out.String())
	}
}

func TestBuild_IRJSONArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "sum.json", sumTree)

	b, out := newTestBuilder(manifest.FormatIRJSON)
	if err := b.build(context.Background(), []string{path}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	a, err := wire.UnmarshalJSON(out.Bytes())
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if a.Name != "sum" {
		t.Errorf("artifact name: got %q, want %q", a.Name, "sum")
	}
	if a.Type != "Int" {
		t.Errorf("artifact type: got %q, want %q", a.Type, "Int")
	}
	if a.Hash == "" {
		t.Error("artifact should carry a content hash")
	}
}

func TestBuild_TypeErrorFails(t *testing.T) {
	dir := t.TempDir()
	// true + 1
	path := writeTree(t, dir, "bad.json", `{"tag":"root","id":1,"children":[
	  {"tag":"binary","id":2,"op":"+",
	   "lhs":{"tag":"literal","id":3,"type":"boolean","value":true},
	   "rhs":{"tag":"literal","id":4,"type":"int","value":1}}]}`)

	b, _ := newTestBuilder(manifest.FormatListing)
	err := b.build(context.Background(), []string{path})
	var ferr *compiler.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected a compiler error, got: %v", err)
	}
	if ferr.Kind != compiler.TypeError {
		t.Errorf("error kind: got %q, want %q", ferr.Kind, compiler.TypeError)
	}
}

func TestBuild_DecodeErrorFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "broken.json", `{"tag":"nonsense","id":1}`)

	b, _ := newTestBuilder(manifest.FormatListing)
	err := b.build(context.Background(), []string{path})
	if !compiler.IsKind(err, compiler.ParseError) {
		t.Fatalf("expected a parse error, got: %v", err)
	}
	if want := path + ":1.1: parse error: "; !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error: got %q, want prefix %q", err.Error(), want)
	}
}

// ----- several units -----

func TestBuild_SeveralUnitsToStdout(t *testing.T) {
	dir := t.TempDir()
	a := writeTree(t, dir, "a.json", sumTree)
	c := writeTree(t, dir, "c.json", boolTree)

	b, out := newTestBuilder(manifest.FormatType)
	if err := b.build(context.Background(), []string{a, c}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := "a: Int\nc: Bool\n"
	if got := out.String(); got != want {
		t.Errorf("output: got %q, want %q", got, want)
	}
}

func TestBuild_SeveralUnitsToDirectory(t *testing.T) {
	dir := t.TempDir()
	a := writeTree(t, dir, "a.json", sumTree)
	c := writeTree(t, dir, "c.json", boolTree)
	outDir := filepath.Join(dir, "out")

	b, _ := newTestBuilder(manifest.FormatIRCBOR)
	b.out = outDir
	if err := b.build(context.Background(), []string{a, c}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	for _, name := range []string{"a", "c"} {
		data, err := os.ReadFile(filepath.Join(outDir, name+".ir.cbor"))
		if err != nil {
			t.Fatalf("missing output for %s: %v", name, err)
		}
		art, err := wire.UnmarshalCBOR(data)
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if art.Name != name {
			t.Errorf("artifact name: got %q, want %q", art.Name, name)
		}
	}
}

// ----- watch -----

func TestWatcher_RebuildSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "sum.json", sumTree)

	b, out := newTestBuilder(manifest.FormatType)
	w := newWatcher(b, []string{path})
	ctx := context.Background()

	changed, err := w.rebuild(ctx, path)
	if err != nil || !changed {
		t.Fatalf("first rebuild: changed=%v err=%v", changed, err)
	}

	// Renaming the local keeps the content hash.
	writeTree(t, dir, "sum.json", renamedTree)
	changed, err = w.rebuild(ctx, path)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if changed {
		t.Error("renaming a local should not trigger a rebuild")
	}

	writeTree(t, dir, "sum.json", boolTree)
	changed, err = w.rebuild(ctx, path)
	if err != nil || !changed {
		t.Fatalf("third rebuild: changed=%v err=%v", changed, err)
	}

	if got := out.String(); got != "Int\nBool\n" {
		t.Errorf("output: got %q, want %q", got, "Int\nBool\n")
	}
}

func TestLoad_NamesUnitsAfterFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, "prog.json", boolTree)

	units, err := load([]string{path})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(units) != 1 || units[0].Name != "prog" {
		t.Fatalf("units: got %+v", units)
	}
	if !strings.HasPrefix(units[0].ID, "unit_") {
		t.Errorf("unit id: got %q", units[0].ID)
	}
}
