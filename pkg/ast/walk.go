package ast

import "fmt"

// Children returns the direct children of n in source order. Type syntax
// and parameters are included.
func Children(n Node) []Node {
	var out []Node
	add := func(cs ...Node) {
		for _, c := range cs {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Root:
		for _, c := range n.Children {
			add(c)
		}
	case *Literal, *Lookup, *PersistRef, *PrimitiveType:
	case *Seq:
		add(n.LHS, n.RHS)
	case *Let:
		add(n.Expr)
	case *Assign:
		add(n.Expr)
	case *Unary:
		add(n.Expr)
	case *Binary:
		add(n.LHS, n.RHS)
	case *Quote:
		add(n.Expr)
	case *Escape:
		add(n.Expr)
	case *Run:
		add(n.Expr)
	case *Fun:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Param:
		add(n.Type)
	case *Call:
		add(n.Fun)
		for _, a := range n.Args {
			add(a)
		}
	case *Extern:
		add(n.Type)
	case *If:
		add(n.Cond, n.True, n.False)
	case *While:
		add(n.Cond, n.Body)
	case *MacroCall:
		for _, a := range n.Args {
			add(a)
		}
	case *TypeAlias:
		add(n.Type)
	case *Tuple:
		for _, e := range n.Exprs {
			add(e)
		}
	case *TupleIndex:
		add(n.Tuple)
	case *Alloc:
		add(n.Expr)
	case *InstanceType:
		add(n.Arg)
	case *FunType:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Ret)
	case *CodeType:
		add(n.Inner)
	case *TupleType:
		for _, c := range n.Components {
			add(c)
		}
	case *OverloadedType:
		for _, t := range n.Types {
			add(t)
		}
	default:
		panic(fmt.Sprintf("ast: unknown node %T", n))
	}
	return out
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// MapChildren returns a shallow copy of n whose children have been replaced
// by f(child). The original node is not modified.
func MapChildren(n Node, f func(Node) Node) Node {
	expr := func(e Expr) Expr {
		if e == nil {
			return nil
		}
		return f(e).(Expr)
	}
	exprs := func(es []Expr) []Expr {
		if es == nil {
			return nil
		}
		out := make([]Expr, len(es))
		for i, e := range es {
			out[i] = expr(e)
		}
		return out
	}
	typ := func(t TypeNode) TypeNode {
		if t == nil {
			return nil
		}
		return f(t).(TypeNode)
	}
	typs := func(ts []TypeNode) []TypeNode {
		if ts == nil {
			return nil
		}
		out := make([]TypeNode, len(ts))
		for i, t := range ts {
			out[i] = typ(t)
		}
		return out
	}

	switch n := n.(type) {
	case *Root:
		c := *n
		c.Children = exprs(n.Children)
		return &c
	case *Literal:
		c := *n
		return &c
	case *Seq:
		c := *n
		c.LHS, c.RHS = expr(n.LHS), expr(n.RHS)
		return &c
	case *Let:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Assign:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Lookup:
		c := *n
		return &c
	case *Unary:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Binary:
		c := *n
		c.LHS, c.RHS = expr(n.LHS), expr(n.RHS)
		return &c
	case *Quote:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Escape:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Run:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *Fun:
		c := *n
		c.Params = make([]*Param, len(n.Params))
		for i, p := range n.Params {
			c.Params[i] = f(p).(*Param)
		}
		c.Body = expr(n.Body)
		return &c
	case *Param:
		c := *n
		c.Type = typ(n.Type)
		return &c
	case *Call:
		c := *n
		c.Fun = expr(n.Fun)
		c.Args = exprs(n.Args)
		return &c
	case *Extern:
		c := *n
		c.Type = typ(n.Type)
		return &c
	case *If:
		c := *n
		c.Cond, c.True, c.False = expr(n.Cond), expr(n.True), expr(n.False)
		return &c
	case *While:
		c := *n
		c.Cond, c.Body = expr(n.Cond), expr(n.Body)
		return &c
	case *MacroCall:
		c := *n
		c.Args = exprs(n.Args)
		return &c
	case *TypeAlias:
		c := *n
		c.Type = typ(n.Type)
		return &c
	case *Tuple:
		c := *n
		c.Exprs = exprs(n.Exprs)
		return &c
	case *TupleIndex:
		c := *n
		c.Tuple = expr(n.Tuple)
		return &c
	case *Alloc:
		c := *n
		c.Expr = expr(n.Expr)
		return &c
	case *PersistRef:
		c := *n
		return &c
	case *PrimitiveType:
		c := *n
		return &c
	case *InstanceType:
		c := *n
		c.Arg = typ(n.Arg)
		return &c
	case *FunType:
		c := *n
		c.Params = typs(n.Params)
		c.Ret = typ(n.Ret)
		return &c
	case *CodeType:
		c := *n
		c.Inner = typ(n.Inner)
		return &c
	case *TupleType:
		c := *n
		c.Components = typs(n.Components)
		return &c
	case *OverloadedType:
		c := *n
		c.Types = typs(n.Types)
		return &c
	}
	panic(fmt.Sprintf("ast: unknown node %T", n))
}

// Stamp deep-copies n, assigning fresh ids in pre-order starting at next.
// It returns the copy and the next unused id. The input is not modified.
func Stamp(n Node, next int) (Node, int) {
	var stamp func(Node) Node
	stamp = func(n Node) Node {
		id := next
		next++
		c := MapChildren(n, stamp)
		c.base().ID = id
		return c
	}
	out := stamp(n)
	return out, next
}

// Replace returns a copy of tree in which the node with the given id has
// been replaced by repl. Subtrees that do not contain the id are shared
// with the input.
func Replace(tree Node, id int, repl Node) Node {
	if tree.NodeID() == id {
		return repl
	}
	if !containsID(tree, id) {
		return tree
	}
	return MapChildren(tree, func(c Node) Node {
		return Replace(c, id, repl)
	})
}

func containsID(n Node, id int) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c.NodeID() == id {
			found = true
		}
		return !found
	})
	return found
}

// Find returns the node with the given id, or nil.
func Find(tree Node, id int) Node {
	var out Node
	Walk(tree, func(n Node) bool {
		if out != nil {
			return false
		}
		if n.NodeID() == id {
			out = n
			return false
		}
		return true
	})
	return out
}

// NodeAt returns the innermost node whose location contains the 1-based
// line and column of the named file. An empty filename matches any file.
func NodeAt(tree Node, filename string, line, col int) Node {
	var best Node
	Walk(tree, func(n Node) bool {
		loc := n.Location()
		if loc == nil {
			return true
		}
		if filename != "" && loc.Filename != "" && loc.Filename != filename {
			return true
		}
		if !loc.Contains(line, col) {
			return true
		}
		if best == nil || loc.Size() <= best.Location().Size() {
			best = n
		}
		return true
	})
	return best
}
