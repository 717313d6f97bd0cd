// Package listing is a backend that renders the IR as a readable listing.
// It is used by stagec -emit listing and by tests of the emitter driver.
package listing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/emit"
)

// Backend renders s-expressions.
type Backend struct{}

// New returns a listing backend.
func New() *Backend { return &Backend{} }

// Emit renders the whole program.
func Emit(ir *compiler.IR) (string, error) {
	return emit.Emit(emit.NewContext(ir, New()))
}

// EmitExpr renders one expression.
func (b *Backend) EmitExpr(ctx emit.Context, n ast.Expr) (string, error) {
	switch n := n.(type) {
	case *ast.Root:
		return b.list(ctx, "root", n.Children...)
	case *ast.Literal:
		return literal(n), nil
	case *ast.Seq:
		return b.list(ctx, "seq", n.LHS, n.RHS)
	case *ast.Let:
		return b.list(ctx, fmt.Sprintf("let %s#%d", n.Ident, n.ID), n.Expr)
	case *ast.Alloc:
		return b.list(ctx, fmt.Sprintf("alloc %s#%d", n.Ident, n.ID), n.Expr)
	case *ast.Assign:
		return b.list(ctx, "set "+variable(ctx, n.ID, n.Ident), n.Expr)
	case *ast.Lookup:
		return variable(ctx, n.ID, n.Ident), nil
	case *ast.Unary:
		return b.list(ctx, n.Op, n.Expr)
	case *ast.Binary:
		return b.list(ctx, n.Op, n.LHS, n.RHS)
	case *ast.Quote:
		if n.Snippet {
			return fmt.Sprintf("(snippet #%d)", n.ID), nil
		}
		return fmt.Sprintf("(prog #%d)", n.ID), nil
	case *ast.Escape:
		return fmt.Sprintf("(%s #%d)", n.Kind, n.ID), nil
	case *ast.Run:
		return b.list(ctx, "run", n.Expr)
	case *ast.Fun:
		return fmt.Sprintf("(proc #%d)", n.ID), nil
	case *ast.Call:
		return b.list(ctx, "call", append([]ast.Expr{n.Fun}, n.Args...)...)
	case *ast.Extern:
		return fmt.Sprintf("(extern %s)", n.Name), nil
	case *ast.If:
		return b.list(ctx, "if", n.Cond, n.True, n.False)
	case *ast.While:
		return b.list(ctx, "while", n.Cond, n.Body)
	case *ast.TypeAlias:
		return fmt.Sprintf("(type %s)", n.Ident), nil
	case *ast.Tuple:
		return b.list(ctx, "tuple", n.Exprs...)
	case *ast.TupleIndex:
		return b.list(ctx, "index "+strconv.Itoa(n.Index), n.Tuple)
	case *ast.MacroCall:
		return "", compiler.Unsupportedf(n, "macro call %s reached the backend", n.Macro)
	case *ast.PersistRef:
		return "", compiler.Unsupportedf(n, "persist reference %d reached the backend", n.Index)
	}
	return "", compiler.Internalf("listing: no rule for %T", n)
}

func (b *Backend) list(ctx emit.Context, head string, args ...ast.Expr) (string, error) {
	parts := []string{head}
	for _, a := range args {
		s, err := ctx.Expr(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " ") + ")", nil
}

func literal(n *ast.Literal) string {
	switch v := n.Value.(type) {
	case string:
		return strconv.Quote(v)
	case nil:
		return "nil"
	default:
		return fmt.Sprint(v)
	}
}

func variable(ctx emit.Context, id int, name string) string {
	def, ok := ctx.IR.DefUse[id]
	if !ok {
		return name
	}
	if _, ok := ctx.IR.Externs[def]; ok && def < 0 {
		return name
	}
	return fmt.Sprintf("%s#%d", name, def)
}

// EmitProc renders a function, or main.
func (b *Backend) EmitProc(ctx emit.Context, p *compiler.Proc) (string, error) {
	var sb strings.Builder
	if p.ID == compiler.MainID {
		sb.WriteString("main")
	} else {
		fmt.Fprintf(&sb, "proc #%d params=%s", p.ID, ids(p.Params))
	}
	fmt.Fprintf(&sb, " free=%s bound=%s", ids(p.Free), ids(p.Bound))
	if len(p.Persist) > 0 {
		fmt.Fprintf(&sb, " persist=%s", escapeIDs(p.Persist))
	}
	body, err := ctx.Expr(p.Body)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "\n  %s", body)
	return sb.String(), nil
}

// EmitProg renders a quote, or the dispatcher of a quote with variants.
func (b *Backend) EmitProg(ctx emit.Context, p *compiler.Prog) (string, error) {
	if variants := ctx.Variants(p.ID); len(variants) > 0 && (ctx.Variant == nil || ctx.Variant.ProgID != p.ID) {
		return b.dispatcher(ctx, p, variants)
	}
	return b.prog(ctx, fmt.Sprintf("prog #%d", p.ID), p)
}

// EmitProgVariant renders one specialization of a quote.
func (b *Backend) EmitProgVariant(ctx emit.Context, v *compiler.Variant, p *compiler.Prog) (string, error) {
	return b.prog(ctx, fmt.Sprintf("prog #%d variant %s", p.ID, variantName(v)), p)
}

// variantName spells the configurations from the outermost variant down,
// so inner quotes specialized under different outer choices stay apart.
func variantName(v *compiler.Variant) string {
	path := v.Path()
	parts := make([]string, len(path))
	for i, c := range path {
		parts[i] = ints(c)
	}
	return strings.Join(parts, "/")
}

func (b *Backend) prog(ctx emit.Context, head string, p *compiler.Prog) (string, error) {
	var sb strings.Builder
	sb.WriteString(head)
	if p.Annotation != "" {
		fmt.Fprintf(&sb, " @%s", p.Annotation)
	}
	fmt.Fprintf(&sb, " free=%s bound=%s", ids(p.Free), ids(p.Bound))
	if len(p.Persist) > 0 {
		fmt.Fprintf(&sb, " persist=%s", escapeIDs(p.Persist))
	}
	if len(p.QuoteChildren) > 0 {
		fmt.Fprintf(&sb, " quotes=%s", ids(p.QuoteChildren))
	}

	// Escape bodies run in the scope enclosing the quote, when the quote
	// is built.
	for _, group := range [][]*compiler.Escape{p.OwnedSplice, p.OwnedPersist} {
		for _, esc := range group {
			body, err := ctx.Expr(esc.Body)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "\n  %s #%d = %s", esc.Kind, esc.ID, body)
		}
	}
	body, err := ctx.Expr(p.Body)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "\n  %s", body)
	return sb.String(), nil
}

func (b *Backend) dispatcher(ctx emit.Context, p *compiler.Prog, variants []*compiler.Variant) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "prog #%d select %s", p.ID, escapeIDs(p.OwnedSnippet))
	if ctx.Variant != nil {
		fmt.Fprintf(&sb, " in variant %s", variantName(ctx.Variant))
	}
	for _, esc := range p.OwnedSnippet {
		body, err := ctx.Expr(esc.Body)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "\n  snippet #%d = %s", esc.ID, body)
	}
	for _, v := range variants {
		fmt.Fprintf(&sb, "\n  case %s -> variant %s", ints(v.Config), variantName(v))
	}
	sb.WriteString("\n  default -> " + compiler.ErrUnknownConfiguration.Error())
	return sb.String(), nil
}

func ints(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func ids(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = "#" + strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func escapeIDs(es []*compiler.Escape) string {
	xs := make([]int, len(es))
	for i, e := range es {
		xs[i] = e.ID
	}
	return ids(xs)
}
