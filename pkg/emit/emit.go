// Package emit is the contract between the compiler IR and code-generating
// backends, plus the driver that walks the IR in dependency order.
package emit

import (
	"strings"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
)

// Backend turns IR pieces into target text. Every method receives the
// context it is emitting under; inside a variant the context carries it.
type Backend interface {
	EmitExpr(ctx Context, n ast.Expr) (string, error)
	// EmitProc is also used for the main program, whose id is
	// compiler.MainID.
	EmitProc(ctx Context, p *compiler.Proc) (string, error)
	// EmitProg emits a generic quote. For a quote with variants it emits
	// the dispatcher that selects among them at run time.
	EmitProg(ctx Context, p *compiler.Prog) (string, error)
	EmitProgVariant(ctx Context, v *compiler.Variant, p *compiler.Prog) (string, error)
}

// Context is passed by value. Backends derive new contexts instead of
// mutating shared state.
type Context struct {
	IR      *compiler.IR
	Variant *compiler.Variant
	Backend Backend
}

// NewContext starts emission of ir with b.
func NewContext(ir *compiler.IR, b Backend) Context {
	return Context{IR: ir, Backend: b}
}

// WithVariant returns a copy of ctx emitting under v.
func (ctx Context) WithVariant(v *compiler.Variant) Context {
	ctx.Variant = v
	return ctx
}

// SpecializedProg returns the quote as seen under the current variant.
func (ctx Context) SpecializedProg(id int) *compiler.Prog {
	return ctx.Variant.SpecializedProg(ctx.IR, id)
}

// SpecializedProc returns the function as seen under the current variant.
func (ctx Context) SpecializedProc(id int) *compiler.Proc {
	if id == compiler.MainID {
		return ctx.IR.Main
	}
	return ctx.Variant.SpecializedProc(ctx.IR, id)
}

// Variants returns the variants of quote id under the current variant.
// Inner quotes of a variant have variants built on it.
func (ctx Context) Variants(id int) []*compiler.Variant {
	return ctx.Variant.VariantsOf(ctx.IR, id)
}

// Expr emits one expression with the context's backend.
func (ctx Context) Expr(n ast.Expr) (string, error) {
	return ctx.Backend.EmitExpr(ctx, n)
}

// Emit emits the whole program: every scope below main, children first,
// and main last.
func Emit(ctx Context) (string, error) {
	var parts []string
	children, err := EmitChildren(ctx, compiler.MainID)
	if err != nil {
		return "", err
	}
	parts = append(parts, children...)
	main, err := EmitMain(ctx)
	if err != nil {
		return "", err
	}
	parts = append(parts, main)
	return join(parts), nil
}

// EmitMain emits the top-level program.
func EmitMain(ctx Context) (string, error) {
	return ctx.Backend.EmitProc(ctx, ctx.IR.Main)
}

// EmitScope emits a function or quote together with everything below it.
func EmitScope(ctx Context, id int) (string, error) {
	if _, ok := ctx.IR.Procs[id]; ok {
		proc := ctx.SpecializedProc(id)
		children, err := EmitChildren(ctx, id)
		if err != nil {
			return "", err
		}
		out, err := ctx.Backend.EmitProc(ctx, proc)
		if err != nil {
			return "", err
		}
		return join(append(children, out)), nil
	}
	if _, ok := ctx.IR.Progs[id]; ok {
		return EmitProgAll(ctx, ctx.SpecializedProg(id))
	}
	return "", compiler.Internalf("emit: unknown scope id %d", id)
}

// EmitChildren emits the child scopes of id in order. Each child's own
// children come before it.
func EmitChildren(ctx Context, id int) ([]string, error) {
	var scope *compiler.Scope
	switch {
	case id == compiler.MainID:
		scope = &ctx.IR.Main.Scope
	case ctx.IR.Procs[id] != nil:
		scope = &ctx.SpecializedProc(id).Scope
	case ctx.IR.Progs[id] != nil:
		scope = &ctx.SpecializedProg(id).Scope
	default:
		return nil, compiler.Internalf("emit: unknown scope id %d", id)
	}
	var out []string
	for _, child := range scope.Children {
		s, err := EmitScope(ctx, child)
		if err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// EmitProgAll emits a quote. Snippet quotes emit nothing; they only exist
// inlined into variants. A quote with variants emits each variant under
// its own context, then the dispatcher. Inside an outer variant the
// quote's variants are the ones built on that variant, so the outer
// choices stay resolved.
func EmitProgAll(ctx Context, p *compiler.Prog) (string, error) {
	if p.SnippetEscape != 0 {
		return "", nil
	}
	variants := ctx.Variants(p.ID)
	if len(variants) == 0 || (ctx.Variant != nil && ctx.Variant.ProgID == p.ID) {
		children, err := EmitChildren(ctx, p.ID)
		if err != nil {
			return "", err
		}
		out, err := ctx.Backend.EmitProg(ctx, p)
		if err != nil {
			return "", err
		}
		return join(append(children, out)), nil
	}

	var parts []string
	for _, v := range variants {
		vctx := ctx.WithVariant(v)
		children, err := EmitChildren(vctx, p.ID)
		if err != nil {
			return "", err
		}
		parts = append(parts, children...)
		out, err := ctx.Backend.EmitProgVariant(vctx, v, vctx.SpecializedProg(p.ID))
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}
	out, err := ctx.Backend.EmitProg(ctx, p)
	if err != nil {
		return "", err
	}
	return join(append(parts, out)), nil
}

func join(parts []string) string {
	return strings.Join(parts, "\n")
}
