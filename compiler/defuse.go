package compiler

import (
	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Definition/use resolution
// ---------------------------------------------------------------------------

// DefUse maps the id of every lookup and assignment to the id of the node
// that defines the variable: a let, alloc, param or extern. Intrinsic
// externs have negative ids.
type DefUse map[int]int

// nameMap is copied before it is changed.
type nameMap map[string]int

func (m nameMap) with(name string, id int) nameMap {
	out := make(nameMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[name] = id
	return out
}

// nameStack holds one map per stage; index 0 is the current stage.
type nameStack []nameMap

func (s nameStack) lookup(name string) (int, bool) {
	for _, m := range s {
		if id, ok := m[name]; ok {
			return id, true
		}
	}
	return 0, false
}

func (s nameStack) bind(name string, id int) nameStack {
	out := append(nameStack(nil), s...)
	out[0] = out[0].with(name, id)
	return out
}

type defUseState struct {
	ns      nameStack
	externs nameMap
	snip    nameStack
}

type defUseFinder struct {
	table DefUse
}

// FindDefUse resolves every variable use in tree. externs maps intrinsic
// names to their ids. A use that cannot be resolved is an internal error:
// the checker rejects such programs first.
func FindDefUse(tree ast.Node, externs map[string]int) (DefUse, error) {
	f := &defUseFinder{table: make(DefUse)}
	state := defUseState{ns: nameStack{nameMap{}}, externs: nameMap(externs)}
	if _, err := f.visit(tree, state); err != nil {
		return nil, err
	}
	return f.table, nil
}

func (f *defUseFinder) use(n ast.Node, name string, s defUseState) error {
	id, ok := s.ns.lookup(name)
	if !ok {
		if id, ok = s.externs[name]; !ok {
			return internalf("variable %s not in name map", name)
		}
	}
	f.table[n.NodeID()] = id
	return nil
}

// children threads the state through the children of n in order.
func (f *defUseFinder) children(n ast.Node, s defUseState) (defUseState, error) {
	for _, c := range ast.Children(n) {
		var err error
		if s, err = f.visit(c, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (f *defUseFinder) visit(n ast.Node, s defUseState) (defUseState, error) {
	switch n := n.(type) {
	case *ast.Let:
		s1, err := f.visit(n.Expr, s)
		if err != nil {
			return s, err
		}
		s1.ns = s.ns.bind(n.Ident, n.ID)
		return s1, nil

	case *ast.Alloc:
		s1, err := f.visit(n.Expr, s)
		if err != nil {
			return s, err
		}
		s1.ns = s.ns.bind(n.Ident, n.ID)
		return s1, nil

	case *ast.Fun:
		body := s
		for _, p := range n.Params {
			body.ns = body.ns.bind(p.Name, p.ID)
		}
		if _, err := f.visit(n.Body, body); err != nil {
			return s, err
		}
		return s, nil

	case *ast.Lookup:
		return s, f.use(n, n.Ident, s)

	case *ast.Assign:
		s1, err := f.visit(n.Expr, s)
		if err != nil {
			return s, err
		}
		return s1, f.use(n, n.Ident, s1)

	case *ast.Quote:
		inner := s
		if n.Snippet {
			if s.snip == nil {
				return s, internalf("missing snippet state for quote %d", n.ID)
			}
			inner.ns = s.snip
		} else {
			inner.ns = append(nameStack{nameMap{}}, s.ns...)
		}
		inner.snip = nil
		if _, err := f.visit(n.Expr, inner); err != nil {
			return s, err
		}
		return s, nil

	case *ast.Escape:
		inner := s
		if n.Count < 1 || n.Count >= len(s.ns) {
			return s, internalf("escape %d crosses %d of %d stages", n.ID, n.Count, len(s.ns)-1)
		}
		inner.ns = s.ns[n.Count:]
		inner.snip = nil
		if n.Kind == ast.Snippet {
			inner.snip = s.ns
		}
		if _, err := f.visit(n.Expr, inner); err != nil {
			return s, err
		}
		return s, nil

	case *ast.Extern:
		s.externs = s.externs.with(n.Name, n.ID)
		return s, nil

	case ast.TypeNode, *ast.Param:
		return s, nil
	}
	return f.children(n, s)
}
