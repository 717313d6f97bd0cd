package compiler

import (
	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Scope extraction
// ---------------------------------------------------------------------------

// stage is one level of quotation during the walk: the quote that opened
// it and the scope whose code is currently being generated.
type stage struct {
	quote int
	scope int
}

// pendingSnippet is the stage stack at a snippet escape, resumed by the
// snippet quotes in its body.
type pendingSnippet struct {
	escape int
	stages []stage
}

type scopeUse struct {
	use   int
	def   int
	scope int
}

type extractor struct {
	ir       *IR
	opts     Options
	binders  map[int]int
	uses     []scopeUse
	persists []*Escape
	quotes   map[int]*ast.Quote
}

// ExtractIR flattens an elaborated, desugared tree into functions and
// quotes. intrinsics names the externs that have no defining node.
func ExtractIR(tree ast.Node, table *TypeTable, du DefUse, intrinsics map[string]int, opts Options) (*IR, error) {
	body, ok := tree.(ast.Expr)
	if !ok {
		return nil, internalf("program root %T is not an expression", tree)
	}
	ir := &IR{
		Main:       &Proc{Scope: Scope{ID: MainID, Body: body, Parent: NoScope}},
		Procs:      make(map[int]*Proc),
		Progs:      make(map[int]*Prog),
		DefUse:     du,
		Types:      table,
		Externs:    make(map[int]string),
		Variants:   make(map[int][]*Variant),
		Containers: make(map[int]int),
		Escapes:    make(map[int]*Escape),
	}
	for name, id := range intrinsics {
		ir.Externs[id] = name
	}

	x := &extractor{
		ir:      ir,
		opts:    opts,
		binders: make(map[int]int),
		quotes:  make(map[int]*ast.Quote),
	}
	if err := x.walk(body, []stage{{quote: NoScope, scope: MainID}}, nil); err != nil {
		return nil, err
	}
	if err := x.resolveFree(); err != nil {
		return nil, err
	}
	if err := x.threadPersists(); err != nil {
		return nil, err
	}
	if err := x.checkPaired(); err != nil {
		return nil, err
	}
	return ir, nil
}

func top(stages []stage) stage { return stages[len(stages)-1] }

// withScope replaces the current scope of the innermost stage.
func withScope(stages []stage, scope int) []stage {
	out := append([]stage(nil), stages...)
	out[len(out)-1].scope = scope
	return out
}

func (x *extractor) scope(id int) *Scope {
	s, err := x.ir.Scope(id)
	if err != nil {
		return nil
	}
	return s
}

func (x *extractor) bind(def, scope int) {
	x.binders[def] = scope
	if s := x.scope(scope); s != nil {
		s.Bound = append(s.Bound, def)
	}
}

func (x *extractor) addChild(parent, child int) {
	if s := x.scope(parent); s != nil {
		s.Children = append(s.Children, child)
	}
}

func (x *extractor) walk(n ast.Node, stages []stage, snip *pendingSnippet) error {
	cur := top(stages)
	if _, ok := n.(ast.Expr); ok {
		x.ir.Containers[n.NodeID()] = cur.scope
	}

	switch n := n.(type) {
	case *ast.Let:
		x.bind(n.ID, cur.scope)
		return x.walk(n.Expr, stages, snip)

	case *ast.Alloc:
		x.bind(n.ID, cur.scope)
		return x.walk(n.Expr, stages, snip)

	case *ast.Extern:
		x.ir.Externs[n.ID] = n.Name
		return nil

	case *ast.Lookup:
		return x.use(n.ID, cur.scope)

	case *ast.Assign:
		if err := x.walk(n.Expr, stages, snip); err != nil {
			return err
		}
		return x.use(n.ID, cur.scope)

	case *ast.Fun:
		proc := &Proc{Scope: Scope{ID: n.ID, Body: n.Body, Parent: cur.scope}}
		x.ir.Procs[n.ID] = proc
		x.addChild(cur.scope, n.ID)
		for _, p := range n.Params {
			proc.Params = append(proc.Params, p.ID)
			x.bind(p.ID, n.ID)
		}
		return x.walk(n.Body, withScope(stages, n.ID), snip)

	case *ast.Quote:
		if n.Snippet {
			return x.walkSnippetQuote(n, snip)
		}
		prog := &Prog{
			Scope:       Scope{ID: n.ID, Body: n.Expr, Parent: cur.scope},
			Annotation:  n.Annotation,
			QuoteParent: cur.quote,
		}
		x.ir.Progs[n.ID] = prog
		x.quotes[n.ID] = n
		x.addChild(cur.scope, n.ID)
		if parent, ok := x.ir.Progs[cur.quote]; ok {
			parent.QuoteChildren = append(parent.QuoteChildren, n.ID)
		}
		inner := append(append([]stage(nil), stages...), stage{quote: n.ID, scope: n.ID})
		return x.walk(n.Expr, inner, nil)

	case *ast.Escape:
		return x.walkEscape(n, stages)

	case ast.TypeNode, *ast.Param:
		return nil
	}

	for _, c := range ast.Children(n) {
		if err := x.walk(c, stages, snip); err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) walkSnippetQuote(n *ast.Quote, snip *pendingSnippet) error {
	if snip == nil {
		return internalf("snippet quote %d outside of a snippet escape", n.ID)
	}
	at := top(snip.stages)
	prog := &Prog{
		Scope:         Scope{ID: n.ID, Body: n.Expr, Parent: at.scope},
		Annotation:    n.Annotation,
		QuoteParent:   NoScope,
		SnippetEscape: snip.escape,
	}
	x.ir.Progs[n.ID] = prog
	x.quotes[n.ID] = n
	x.addChild(at.scope, n.ID)
	return x.walk(n.Expr, withScope(snip.stages, n.ID), nil)
}

func (x *extractor) walkEscape(n *ast.Escape, stages []stage) error {
	cur := top(stages)
	if n.Count < 1 || n.Count >= len(stages) {
		return internalf("escape %d crosses %d of %d stages", n.ID, n.Count, len(stages)-1)
	}
	outer := stages[:len(stages)-n.Count]
	owner := stages[len(stages)-n.Count].quote

	esc := &Escape{
		ID:        n.ID,
		Body:      n.Expr,
		Count:     n.Count,
		Kind:      n.Kind,
		Owner:     owner,
		Container: cur.scope,
	}
	x.ir.Escapes[n.ID] = esc
	prog, ok := x.ir.Progs[owner]
	if !ok {
		return internalf("escape %d has no owning quote", n.ID)
	}
	var snip *pendingSnippet
	switch n.Kind {
	case ast.Splice:
		prog.OwnedSplice = append(prog.OwnedSplice, esc)
	case ast.Persist:
		prog.OwnedPersist = append(prog.OwnedPersist, esc)
		x.persists = append(x.persists, esc)
	case ast.Snippet:
		prog.OwnedSnippet = append(prog.OwnedSnippet, esc)
		snip = &pendingSnippet{escape: n.ID, stages: stages}
	}
	return x.walk(n.Expr, append([]stage(nil), outer...), snip)
}

func (x *extractor) use(id, scope int) error {
	def, ok := x.ir.DefUse[id]
	if !ok {
		return internalf("use %d has no definition", id)
	}
	x.uses = append(x.uses, scopeUse{use: id, def: def, scope: scope})
	return nil
}

// resolveFree adds each used definition to the free list of every scope
// between the use and the scope that binds it.
func (x *extractor) resolveFree() error {
	for _, u := range x.uses {
		if _, ok := x.ir.Externs[u.def]; ok {
			continue
		}
		binder, ok := x.binders[u.def]
		if !ok {
			return internalf("definition %d of use %d is not bound in any scope", u.def, u.use)
		}
		for s := u.scope; s != binder; {
			sc := x.scope(s)
			if sc == nil {
				return internalf("definition %d is not visible from use %d", u.def, u.use)
			}
			sc.Free = addUnique(sc.Free, u.def)
			s = sc.Parent
		}
	}
	return nil
}

// threadPersists lists each persist on every scope from the escape point
// up to and including its owner.
func (x *extractor) threadPersists() error {
	for _, esc := range x.persists {
		s := esc.Container
		for {
			switch {
			case s == MainID:
				return internalf("persist %d is not inside its owner %d", esc.ID, esc.Owner)
			case x.ir.Procs[s] != nil:
				x.ir.Procs[s].Persist = append(x.ir.Procs[s].Persist, esc)
			case x.ir.Progs[s] != nil:
				x.ir.Progs[s].Persist = append(x.ir.Progs[s].Persist, esc)
			default:
				return internalf("persist %d: unknown scope %d", esc.ID, s)
			}
			if s == esc.Owner {
				break
			}
			sc := x.scope(s)
			if sc == nil {
				return internalf("persist %d: unknown scope %d", esc.ID, s)
			}
			s = sc.Parent
		}
	}
	return nil
}

func (x *extractor) checkPaired() error {
	for _, ann := range x.opts.PairedAnnotations {
		for _, id := range x.ir.ProgIDs() {
			prog := x.ir.Progs[id]
			if prog.Annotation == ann && len(prog.QuoteChildren) > 1 {
				return unsupportedf(x.quotes[id], "%s quote may contain at most one nested quote, found %d", ann, len(prog.QuoteChildren))
			}
		}
	}
	return nil
}

func addUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
