package compiler

import (
	"fmt"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

var log = commonlog.GetLogger("stagecraft.compiler")

// Pipeline runs the front end: elaboration, desugaring, def/use
// resolution, IR extraction and presplicing.
type Pipeline struct {
	Options Options
	// Externs are the intrinsic signatures, operators included. Nil means
	// BuiltinOperators.
	Externs types.Map
	// Named are the nominal types. Nil means types.Builtins.
	Named types.Map
	// Desugarers run after the macro expander.
	Desugarers []Desugarer
}

// NewPipeline returns a pipeline with the builtin operators and types.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{Options: opts}
}

// Result is everything the front end produced for one program.
type Result struct {
	Tree       ast.Node
	Table      *TypeTable
	DefUse     DefUse
	IR         *IR
	Intrinsics map[string]int
}

// Type is the type of the whole program.
func (r *Result) Type() types.Type {
	return r.Table.Type(r.Tree.NodeID())
}

func (p *Pipeline) externs() types.Map {
	if p.Externs == nil {
		return BuiltinOperators()
	}
	return p.Externs
}

func (p *Pipeline) named() types.Map {
	if p.Named == nil {
		return types.Builtins()
	}
	return p.Named
}

// Intrinsics assigns each intrinsic a negative id, in name order, so they
// never collide with node ids.
func (p *Pipeline) Intrinsics() map[string]int {
	ext := p.externs()
	names := make([]string, 0, len(ext))
	for name := range ext {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = -(i + 1)
	}
	return ids
}

// Check elaborates tree without lowering it.
func (p *Pipeline) Check(tree ast.Node) (ast.Node, *TypeTable, error) {
	return Elaborate(tree, p.externs(), p.named(), p.Options)
}

// Compile runs every pass over tree. The first error stops the pipeline.
func (p *Pipeline) Compile(tree ast.Node) (*Result, error) {
	elaborated, table, err := p.Check(tree)
	if err != nil {
		return nil, err
	}
	log.Debugf("elaborated %d nodes", table.Len())

	ds := []Desugarer{MacroExpander{Options: p.Options}}
	if p.Options.ImplicitPersist {
		ds = append(ds, CrossStagePersister{Options: p.Options})
	}
	ds = append(ds, p.Desugarers...)
	desugared, err := Desugar(elaborated, table, ds...)
	if err != nil {
		return nil, err
	}

	intrinsics := p.Intrinsics()
	du, err := FindDefUse(desugared, intrinsics)
	if err != nil {
		return nil, fmt.Errorf("def/use: %w", err)
	}
	log.Debugf("def/use: %d uses", len(du))

	ir, err := ExtractIR(desugared, table, du, intrinsics, p.Options)
	if err != nil {
		return nil, err
	}
	log.Debugf("ir: %d procs, %d progs", len(ir.Procs), len(ir.Progs))

	if p.Options.Presplice {
		if err := Specialize(ir, p.Options); err != nil {
			return nil, err
		}
		log.Debugf("presplice: %d variants", countVariants(ir.Variants))
	}

	return &Result{
		Tree:       desugared,
		Table:      table,
		DefUse:     du,
		IR:         ir,
		Intrinsics: intrinsics,
	}, nil
}

func countVariants(table map[int][]*Variant) int {
	n := 0
	for _, vs := range table {
		n += len(vs)
		for _, v := range vs {
			n += countVariants(v.Nested)
		}
	}
	return n
}
