package compiler

import (
	"fmt"

	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Presplicing
// ---------------------------------------------------------------------------

// DefaultMaxVariants bounds the variants of one quote when
// Options.MaxVariants is zero.
const DefaultMaxVariants = 64

// DomainFunc lists the static choices of a snippet escape: the ids of the
// snippet quotes it may splice. It returns false when the choices are not
// known statically.
type DomainFunc func(ir *IR, esc *Escape) ([]int, bool)

// SnippetDomain is the default domain: every snippet quote that belongs to
// the escape.
func SnippetDomain(ir *IR, esc *Escape) ([]int, bool) {
	ids := ir.SnippetProgs(esc.ID)
	return ids, len(ids) > 0
}

// Specialize builds the variants of every quote with snippet escapes. A
// quote whose escapes are not all static keeps no variants. A quote nested
// inside another quote with variants is specialized once per outer
// variant, starting from that variant's copy of it.
func Specialize(ir *IR, opts Options) error {
	sp := &specializer{
		ir:      ir,
		domains: make(map[int][][]int),
		nested:  make(map[int][]int),
	}
	domain := opts.Domain
	if domain == nil {
		domain = SnippetDomain
	}
	max := opts.MaxVariants
	if max <= 0 {
		max = DefaultMaxVariants
	}

	for _, id := range ir.ProgIDs() {
		prog := ir.Progs[id]
		if len(prog.OwnedSnippet) == 0 {
			continue
		}
		domains := make([][]int, 0, len(prog.OwnedSnippet))
		static := true
		total := 1
		for _, esc := range prog.OwnedSnippet {
			d, ok := domain(ir, esc)
			if !ok || len(d) == 0 {
				static = false
				break
			}
			domains = append(domains, d)
			total *= len(d)
			if total > max {
				return unsupportedf(prog.Body, "quote %d has more than %d presplice variants", id, max)
			}
		}
		if static {
			sp.domains[id] = domains
		}
	}

	var top []int
	for _, id := range ir.ProgIDs() {
		if _, ok := sp.domains[id]; !ok {
			continue
		}
		if outer := sp.outerOwner(id); outer != NoScope {
			sp.nested[outer] = append(sp.nested[outer], id)
		} else {
			top = append(top, id)
		}
	}
	for _, id := range top {
		variants, err := sp.variants(nil, id)
		if err != nil {
			return err
		}
		ir.Variants[id] = variants
	}
	return nil
}

type specializer struct {
	ir      *IR
	domains map[int][][]int
	// nested lists, per quote with variants, the quotes with variants
	// whose nearest such ancestor it is.
	nested map[int][]int
}

// outerOwner returns the nearest enclosing quote of id that has variants.
func (sp *specializer) outerOwner(id int) int {
	for q := sp.ir.Progs[id].QuoteParent; q != NoScope; {
		if _, ok := sp.domains[q]; ok {
			return q
		}
		p, ok := sp.ir.Progs[q]
		if !ok {
			break
		}
		q = p.QuoteParent
	}
	return NoScope
}

// variants builds the variants of quote id on top of outer.
func (sp *specializer) variants(outer *Variant, id int) ([]*Variant, error) {
	prog := outer.SpecializedProg(sp.ir, id)
	var variants []*Variant
	for _, config := range product(sp.domains[id]) {
		v, err := specializeProg(sp.ir, outer, prog, config)
		if err != nil {
			return nil, err
		}
		for _, inner := range sp.nested[id] {
			vs, err := sp.variants(v, inner)
			if err != nil {
				return nil, err
			}
			if v.Nested == nil {
				v.Nested = make(map[int][]*Variant)
			}
			v.Nested[inner] = vs
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// product enumerates every combination of one value per domain. The first
// domain varies slowest.
func product(domains [][]int) [][]int {
	out := [][]int{nil}
	for _, d := range domains {
		var next [][]int
		for _, prefix := range out {
			for _, v := range d {
				c := append(append([]int(nil), prefix...), v)
				next = append(next, c)
			}
		}
		out = next
	}
	return out
}

// variantBuilder copies scopes on first write so the IR itself is never
// modified.
type variantBuilder struct {
	ir *IR
	v  *Variant
}

func (b *variantBuilder) scope(id int) (*Scope, error) {
	if p, ok := b.v.Procs[id]; ok {
		return &p.Scope, nil
	}
	if p, ok := b.v.Progs[id]; ok {
		return &p.Scope, nil
	}
	if p := b.v.Outer.SpecializedProc(b.ir, id); p != nil {
		c := *p
		c.Scope = copyScope(p.Scope)
		b.v.Procs[id] = &c
		return &c.Scope, nil
	}
	if p := b.v.Outer.SpecializedProg(b.ir, id); p != nil {
		c := *p
		c.Scope = copyScope(p.Scope)
		c.OwnedSnippet = append([]*Escape(nil), p.OwnedSnippet...)
		b.v.Progs[id] = &c
		return &c.Scope, nil
	}
	return nil, internalf("presplice: unknown scope %d", id)
}

func copyScope(s Scope) Scope {
	s.Bound = append([]int(nil), s.Bound...)
	s.Free = append([]int(nil), s.Free...)
	s.Children = append([]int(nil), s.Children...)
	return s
}

func specializeProg(ir *IR, outer *Variant, prog *Prog, config []int) (*Variant, error) {
	b := &variantBuilder{
		ir: ir,
		v: &Variant{
			ProgID: prog.ID,
			Config: config,
			Progs:  make(map[int]*Prog),
			Procs:  make(map[int]*Proc),
			Outer:  outer,
		},
	}
	if _, err := b.scope(prog.ID); err != nil {
		return nil, err
	}

	// Later escapes may sit inside the snippets of earlier ones, so they
	// are resolved first.
	for i := len(prog.OwnedSnippet) - 1; i >= 0; i-- {
		if err := b.resolve(prog.OwnedSnippet[i], config[i]); err != nil {
			return nil, err
		}
	}
	owner := b.v.Progs[prog.ID]
	owner.OwnedSnippet = nil
	return b.v, nil
}

// resolve inlines the chosen snippet at esc in every scope from the escape
// point up to the owner.
func (b *variantBuilder) resolve(esc *Escape, choice int) error {
	chosen, err := b.scope(choice)
	if err != nil {
		return err
	}
	if _, ok := b.ir.Progs[choice]; !ok || b.ir.Progs[choice].SnippetEscape != esc.ID {
		return internalf("presplice: %d is not a snippet of escape %d", choice, esc.ID)
	}
	snippets := b.ir.SnippetProgs(esc.ID)

	container, err := b.scope(esc.Container)
	if err != nil {
		return err
	}
	var children []int
	for _, c := range container.Children {
		if !containsInt(snippets, c) {
			children = append(children, c)
		}
	}
	container.Children = append(children, chosen.Children...)
	container.Bound = append(container.Bound, chosen.Bound...)

	for s := esc.Container; ; {
		sc, err := b.scope(s)
		if err != nil {
			return err
		}
		body, ok := ast.Replace(sc.Body, esc.ID, chosen.Body).(ast.Expr)
		if !ok {
			return internalf("presplice: snippet %d is not an expression", choice)
		}
		sc.Body = body
		if s == esc.Owner {
			return nil
		}
		if sc.Parent == NoScope {
			return internalf("presplice: escape %d is outside its owner %d", esc.ID, esc.Owner)
		}
		s = sc.Parent
	}
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// SelectVariant returns the variant built for the live snippet selection.
func SelectVariant(variants []*Variant, live []int) (*Variant, error) {
	for _, v := range variants {
		if equalInts(v.Config, live) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownConfiguration, live)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SpecializedProg returns the variant's copy of a quote, falling back to
// the outer variants and then to the IR.
func (v *Variant) SpecializedProg(ir *IR, id int) *Prog {
	for ; v != nil; v = v.Outer {
		if p, ok := v.Progs[id]; ok {
			return p
		}
	}
	return ir.Progs[id]
}

// SpecializedProc is SpecializedProg for functions.
func (v *Variant) SpecializedProc(ir *IR, id int) *Proc {
	for ; v != nil; v = v.Outer {
		if p, ok := v.Procs[id]; ok {
			return p
		}
	}
	return ir.Procs[id]
}

// VariantsOf returns the variants of quote id as seen under v: the
// innermost Nested table that has them, else the IR's.
func (v *Variant) VariantsOf(ir *IR, id int) []*Variant {
	for ; v != nil; v = v.Outer {
		if vs, ok := v.Nested[id]; ok {
			return vs
		}
	}
	return ir.Variants[id]
}

// Path lists the configurations from the outermost variant down to v.
func (v *Variant) Path() [][]int {
	var path [][]int
	for ; v != nil; v = v.Outer {
		path = append([][]int{v.Config}, path...)
	}
	return path
}
