package interp

import (
	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Code construction
// ---------------------------------------------------------------------------

// builder resolves the escapes of one quote as it is built. Escapes whose
// count reaches the quote run now, in the scope the quote is evaluated in.
type builder struct {
	in       *Interpreter
	scope    scope
	persists []Value
	err      error
}

func (in *Interpreter) quote(n *ast.Quote, s scope) (*Code, error) {
	body := n.Expr
	if !n.Snippet {
		var err error
		if body, err = in.variantBody(n, s); err != nil {
			return nil, err
		}
	}
	b := &builder{in: in, scope: s}
	expr := b.build(body, 1)
	if b.err != nil {
		return nil, b.err
	}
	return &Code{
		Expr:       expr.(ast.Expr),
		Persists:   b.persists,
		Annotation: n.Annotation,
		Source:     n.ID,
		Snippet:    n.Snippet,
	}, nil
}

// variantBody returns the specialized body of a quote whose snippet
// choices select a presplice variant. Quotes that were rewritten by an
// enclosing quote no longer match their IR body and stay generic, as do
// quotes whose variants are nested under an outer quote's variants.
func (in *Interpreter) variantBody(n *ast.Quote, s scope) (ast.Expr, error) {
	if in.IR == nil {
		return n.Expr, nil
	}
	variants := in.IR.Variants[n.ID]
	prog := in.IR.Progs[n.ID]
	if len(variants) == 0 || prog == nil || prog.Body != n.Expr {
		return n.Expr, nil
	}
	live := make([]int, len(prog.OwnedSnippet))
	for i, esc := range prog.OwnedSnippet {
		v, _, err := in.eval(esc.Body, s)
		if err != nil {
			return nil, err
		}
		c, ok := v.(*Code)
		if !ok || !c.Snippet {
			return nil, errorf(n, "snippet escape %d produced %s", esc.ID, Format(v))
		}
		live[i] = c.Source
	}
	variant, err := compiler.SelectVariant(variants, live)
	if err != nil {
		return nil, errorf(n, "%v", err)
	}
	return variant.Progs[n.ID].Body, nil
}

func (b *builder) build(n ast.Node, level int) ast.Node {
	if b.err != nil {
		return n
	}
	switch n := n.(type) {
	case *ast.Escape:
		switch {
		case n.Count == level:
			return b.resolve(n)
		case n.Count > level:
			b.err = compiler.Internalf("escape %d leaves %d quotes from level %d", n.ID, n.Count, level)
			return n
		}
		return ast.MapChildren(n, func(c ast.Node) ast.Node { return b.build(c, level-n.Count) })

	case *ast.Quote:
		if !n.Snippet {
			return ast.MapChildren(n, func(c ast.Node) ast.Node { return b.build(c, level+1) })
		}

	case *ast.PersistRef:
		// A value persisted into the code being run; the new code carries
		// its own copy.
		if n.Index < 0 || n.Index >= len(b.scope.persists) {
			b.err = errorf(n, "persist %d out of range", n.Index)
			return n
		}
		return b.persist(n, b.scope.persists[n.Index])
	}
	return ast.MapChildren(n, func(c ast.Node) ast.Node { return b.build(c, level) })
}

func (b *builder) resolve(n *ast.Escape) ast.Node {
	v, _, err := b.in.eval(n.Expr, b.scope)
	if err != nil {
		b.err = err
		return n
	}
	if n.Kind == ast.Persist {
		return b.persist(n, v)
	}
	c, ok := v.(*Code)
	if !ok {
		b.err = errorf(n, "%s escape produced %s", n.Kind, Format(v))
		return n
	}
	if c.Snippet != (n.Kind == ast.Snippet) {
		b.err = errorf(n, "%s escape produced the wrong kind of code", n.Kind)
		return n
	}
	out := shift(c.Expr, len(b.persists))
	b.persists = append(b.persists, c.Persists...)
	return out
}

func (b *builder) persist(at ast.Node, v Value) ast.Node {
	idx := len(b.persists)
	b.persists = append(b.persists, v)
	return &ast.PersistRef{Base: ast.Base{Loc: at.Location()}, Index: idx}
}

// shift renumbers the persist references of spliced code.
func shift(n ast.Node, offset int) ast.Node {
	if offset == 0 {
		return n
	}
	if p, ok := n.(*ast.PersistRef); ok {
		c := *p
		c.Index += offset
		return &c
	}
	return ast.MapChildren(n, func(c ast.Node) ast.Node { return shift(c, offset) })
}
