package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/types"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[source]
dirs = ["trees", "more"]

[compiler]
presplice = false
max-variants = 8
implicit-persist = true
paired-annotations = ["render"]
demote-arrays = "shader"

[types]
primitives = ["Vec3"]
constructors = ["Array"]

[output]
format = "ir-json"
path = "out/demo.json"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Compiler.Presplice == nil || *m.Compiler.Presplice {
		t.Error("compiler presplice = true, want false")
	}
	if m.Compiler.MaxVariants != 8 {
		t.Errorf("max-variants = %d, want 8", m.Compiler.MaxVariants)
	}
	if m.Output.Format != FormatIRJSON {
		t.Errorf("output format = %q, want %q", m.Output.Format, FormatIRJSON)
	}
	if got, want := m.OutputPath(), filepath.Join(m.Dir, "out/demo.json"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	if m.Compiler.Presplice == nil || !*m.Compiler.Presplice {
		t.Error("default presplice should be on")
	}
	if m.Compiler.MaxVariants != compiler.DefaultMaxVariants {
		t.Errorf("default max-variants = %d, want %d", m.Compiler.MaxVariants, compiler.DefaultMaxVariants)
	}
	if m.Output.Format != FormatListing {
		t.Errorf("default format = %q, want listing", m.Output.Format)
	}
	if m.OutputPath() != "" {
		t.Errorf("default output path = %q, want stdout", m.OutputPath())
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[project\nname = 1"},
		{"unknown format", "[output]\nformat = \"wasm\""},
		{"negative variants", "[compiler]\nmax-variants = -1"},
		{"duplicate type", "[types]\nprimitives = [\"Vec3\"]\nconstructors = [\"Vec3\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "parent"
`)
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "parent" {
		t.Errorf("project name = %q, want parent", m.Project.Name)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil manifest, got %+v", m)
	}
}

func TestCompilerOptions(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[compiler]
implicit-persist = true
paired-annotations = ["render"]
demote-arrays = "shader"
max-variants = 4
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	opts := m.CompilerOptions()
	if !opts.ImplicitPersist {
		t.Error("ImplicitPersist = false, want true")
	}
	if !opts.Presplice {
		t.Error("Presplice = false, want true")
	}
	if opts.MaxVariants != 4 {
		t.Errorf("MaxVariants = %d, want 4", opts.MaxVariants)
	}
	if len(opts.PairedAnnotations) != 1 || opts.PairedAnnotations[0] != "render" {
		t.Errorf("PairedAnnotations = %v, want [render]", opts.PairedAnnotations)
	}
	if len(opts.Extensions) != 1 {
		t.Errorf("Extensions count = %d, want 1", len(opts.Extensions))
	}
}

func TestNamedTypes(t *testing.T) {
	m := Default()
	m.Types.Primitives = []string{"Vec3"}
	m.Types.Constructors = []string{"Array"}

	named := m.NamedTypes()
	if _, ok := named["Int"]; !ok {
		t.Error("builtin Int missing")
	}
	if p, ok := named["Vec3"].(*types.Primitive); !ok || p.Name != "Vec3" {
		t.Errorf("Vec3 = %v, want primitive", named["Vec3"])
	}
	if _, ok := named["Array"].(*types.Constructor); !ok {
		t.Errorf("Array = %v, want constructor", named["Array"])
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[source]\ndirs = [\"trees\"]\n")
	trees := filepath.Join(dir, "trees")
	if err := os.MkdirAll(trees, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(trees, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.json" || filepath.Base(files[1]) != "b.json" {
		t.Errorf("files = %v, want a.json then b.json", files)
	}
}
