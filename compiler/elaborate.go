package compiler

import (
	"sort"

	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

// ---------------------------------------------------------------------------
// Elaboration
// ---------------------------------------------------------------------------

// Entry is the elaborated type of one node and the environment after it.
type Entry struct {
	Type types.Type
	Env  *Env
}

// TypeTable maps node ids to elaboration results. Ids are allocated by the
// table, so subtrees elaborated later never collide with earlier ones.
type TypeTable struct {
	entries map[int]Entry
	next    int
}

// NewTypeTable returns an empty table whose first id is 1.
func NewTypeTable() *TypeTable {
	return &TypeTable{entries: make(map[int]Entry), next: 1}
}

// Lookup returns the entry for a node id.
func (t *TypeTable) Lookup(id int) (Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Type returns the type of a node id, or nil.
func (t *TypeTable) Type(id int) types.Type {
	return t.entries[id].Type
}

// Len is the number of recorded nodes.
func (t *TypeTable) Len() int { return len(t.entries) }

// NextID is the id the next stamped node will receive.
func (t *TypeTable) NextID() int { return t.next }

// IDs lists the recorded ids in ascending order.
func (t *TypeTable) IDs() []int {
	ids := make([]int, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *TypeTable) record(next CheckFunc) CheckFunc {
	return func(n ast.Node, env *Env) (types.Type, *Env, error) {
		ty, e, err := next(n, env)
		if err != nil {
			return nil, nil, err
		}
		t.entries[n.NodeID()] = Entry{Type: ty, Env: e}
		return ty, e, nil
	}
}

// Elaborate stamps a copy of tree with ids, checks it, and returns the copy
// with its type table. externs supplies intrinsic signatures and named the
// nominal types; nil selects the builtin operators and builtin types.
func Elaborate(tree ast.Node, externs, named types.Map, opts Options) (ast.Node, *TypeTable, error) {
	if externs == nil {
		externs = BuiltinOperators()
	}
	if named == nil {
		named = types.Builtins()
	}
	table := NewTypeTable()
	out, err := ElaborateSubtree(tree, NewEnv(externs, named), table, opts)
	if err != nil {
		return nil, nil, err
	}
	return out, table, nil
}

// ElaborateSubtree stamps tree with fresh ids from table, checks it in env
// and appends the results to table.
func ElaborateSubtree(tree ast.Node, env *Env, table *TypeTable, opts Options) (ast.Node, error) {
	stamped, next := ast.Stamp(tree, table.next)
	table.next = next
	c := newChecker(opts, table.record)
	if _, _, err := c.Check(stamped, env); err != nil {
		return nil, err
	}
	return stamped, nil
}
