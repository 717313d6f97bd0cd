// Package manifest handles stagecraft.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/types"
)

// FileName is the manifest file looked up in project directories.
const FileName = "stagecraft.toml"

// Manifest represents a stagecraft.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Source   Source   `toml:"source"`
	Compiler Compiler `toml:"compiler"`
	Types    Types    `toml:"types"`
	Output   Output   `toml:"output"`

	// Dir is the directory containing the stagecraft.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where JSON syntax trees are read from.
type Source struct {
	Dirs []string `toml:"dirs"`
}

// Compiler configures the front-end passes.
type Compiler struct {
	Presplice         *bool    `toml:"presplice"`
	MaxVariants       int      `toml:"max-variants"`
	ImplicitPersist   bool     `toml:"implicit-persist"`
	PairedAnnotations []string `toml:"paired-annotations"`
	// DemoteArrays names the annotation inside which Array instances are
	// demoted to their element type.
	DemoteArrays string `toml:"demote-arrays"`
}

// Types declares nominal types beyond the builtins.
type Types struct {
	Primitives   []string `toml:"primitives"`
	Constructors []string `toml:"constructors"`
}

// Output configures what stagec writes.
type Output struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

// Output formats.
const (
	FormatListing = "listing"
	FormatIRJSON  = "ir-json"
	FormatIRCBOR  = "ir-cbor"
	FormatType    = "type"
)

// Default returns the manifest used when no stagecraft.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Compiler.Presplice == nil {
		on := true
		m.Compiler.Presplice = &on
	}
	if m.Compiler.MaxVariants == 0 {
		m.Compiler.MaxVariants = compiler.DefaultMaxVariants
	}
	if m.Output.Format == "" {
		m.Output.Format = FormatListing
	}
}

// Load parses a stagecraft.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a stagecraft.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects settings the compiler cannot honor.
func (m *Manifest) Validate() error {
	switch m.Output.Format {
	case FormatListing, FormatIRJSON, FormatIRCBOR, FormatType:
	default:
		return fmt.Errorf("unknown output format %q", m.Output.Format)
	}
	if m.Compiler.MaxVariants < 0 {
		return fmt.Errorf("max-variants must not be negative, got %d", m.Compiler.MaxVariants)
	}
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, m.Types.Primitives...), m.Types.Constructors...) {
		if seen[name] {
			return fmt.Errorf("type %s declared twice", name)
		}
		seen[name] = true
	}
	return nil
}

// CompilerOptions converts the [compiler] table into pipeline options.
func (m *Manifest) CompilerOptions() compiler.Options {
	opts := compiler.Options{
		ImplicitPersist:   m.Compiler.ImplicitPersist,
		PairedAnnotations: m.Compiler.PairedAnnotations,
		Presplice:         m.Compiler.Presplice == nil || *m.Compiler.Presplice,
		MaxVariants:       m.Compiler.MaxVariants,
	}
	if m.Compiler.DemoteArrays != "" {
		opts.Extensions = append(opts.Extensions, compiler.DemoteInstances(m.Compiler.DemoteArrays, "Array"))
	}
	return opts
}

// NamedTypes returns the builtin types extended with the [types] table.
func (m *Manifest) NamedTypes() types.Map {
	named := types.Builtins()
	for _, name := range m.Types.Primitives {
		named[name] = &types.Primitive{Name: name}
	}
	for _, name := range m.Types.Constructors {
		named[name] = &types.Constructor{Name: name}
	}
	return named
}

// Pipeline returns a compiler pipeline configured by the manifest.
func (m *Manifest) Pipeline() *compiler.Pipeline {
	p := compiler.NewPipeline(m.CompilerOptions())
	p.Named = m.NamedTypes()
	return p
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// SourceFiles lists the JSON syntax trees in the source directories, in
// lexical order.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath resolves the configured output path, or "" for stdout.
func (m *Manifest) OutputPath() string {
	if m.Output.Path == "" || filepath.IsAbs(m.Output.Path) {
		return m.Output.Path
	}
	return filepath.Join(m.Dir, m.Output.Path)
}
