package compiler

import (
	"sort"

	"github.com/chazu/stagecraft/pkg/types"
)

// ---------------------------------------------------------------------------
// Type environments
// ---------------------------------------------------------------------------

// Frame is a persistent map from names to types. Binding returns a new
// frame that shares its tail with the old one, so frames are never mutated
// and can be kept by any number of environments. The nil *Frame is empty.
type Frame struct {
	name string
	typ  types.Type
	next *Frame
}

// Bind returns a frame in which name maps to t.
func (f *Frame) Bind(name string, t types.Type) *Frame {
	return &Frame{name: name, typ: t, next: f}
}

// Lookup finds the most recent binding of name.
func (f *Frame) Lookup(name string) (types.Type, bool) {
	for ; f != nil; f = f.next {
		if f.name == name {
			return f.typ, true
		}
	}
	return nil, false
}

// Names lists the visible names in sorted order.
func (f *Frame) Names() []string {
	seen := map[string]bool{}
	var out []string
	for ; f != nil; f = f.next {
		if !seen[f.name] {
			seen[f.name] = true
			out = append(out, f.name)
		}
	}
	sort.Strings(out)
	return out
}

func frameOf(m types.Map) *Frame {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	var f *Frame
	for _, name := range names {
		f = f.Bind(name, m[name])
	}
	return f
}

// SnippetState is a pending snippet escape: the escape's id and the
// environment at the escape point, resumed by the matching snippet quote.
type SnippetState struct {
	EscapeID int
	Env      *Env
}

// Env is the immutable state threaded through the checker. stack[0] is the
// current stage; higher indices are enclosing stages. Every operation
// returns a new Env.
type Env struct {
	stack   []*Frame
	anns    []string
	externs *Frame
	named   *Frame
	snip    *SnippetState
}

// NewEnv returns a top-level environment with the given externs and named
// types.
func NewEnv(externs, named types.Map) *Env {
	return &Env{
		stack:   []*Frame{nil},
		anns:    []string{""},
		externs: frameOf(externs),
		named:   frameOf(named),
	}
}

func (e *Env) clone() *Env {
	c := *e
	return &c
}

// Push opens a new stage with an empty frame. A pushed environment has no
// pending snippet.
func (e *Env) Push(annotation string) *Env {
	c := e.clone()
	c.stack = append([]*Frame{nil}, e.stack...)
	c.anns = append([]string{annotation}, e.anns...)
	c.snip = nil
	return c
}

// Pop closes count stages and installs snip as the pending snippet (nil
// for ordinary escapes).
func (e *Env) Pop(count int, snip *SnippetState) *Env {
	c := e.clone()
	c.stack = e.stack[count:]
	c.anns = e.anns[count:]
	c.snip = snip
	return c
}

// Bind adds a variable to the current stage.
func (e *Env) Bind(name string, t types.Type) *Env {
	c := e.clone()
	c.stack = append([]*Frame(nil), e.stack...)
	c.stack[0] = c.stack[0].Bind(name, t)
	return c
}

// Lookup searches the stage stack outward. depth is the number of stage
// boundaries between the use and the binding.
func (e *Env) Lookup(name string) (t types.Type, depth int, ok bool) {
	for i, f := range e.stack {
		if t, ok := f.Lookup(name); ok {
			return t, i, true
		}
	}
	return nil, 0, false
}

// Extern looks up a stage-independent extern.
func (e *Env) Extern(name string) (types.Type, bool) {
	return e.externs.Lookup(name)
}

// WithExtern declares an extern.
func (e *Env) WithExtern(name string, t types.Type) *Env {
	c := e.clone()
	c.externs = e.externs.Bind(name, t)
	return c
}

// NamedType resolves a type name.
func (e *Env) NamedType(name string) (types.Type, bool) {
	return e.named.Lookup(name)
}

// WithNamedType declares a type name.
func (e *Env) WithNamedType(name string, t types.Type) *Env {
	c := e.clone()
	c.named = e.named.Bind(name, t)
	return c
}

// Depth is the number of quotes open at this point.
func (e *Env) Depth() int { return len(e.stack) - 1 }

// Annotation is the annotation of the innermost open quote.
func (e *Env) Annotation() string { return e.anns[0] }

// Snippet returns the pending snippet escape, if any.
func (e *Env) Snippet() *SnippetState { return e.snip }

// WithSnippet replaces the pending snippet.
func (e *Env) WithSnippet(s *SnippetState) *Env {
	c := e.clone()
	c.snip = s
	return c
}

// Names lists the variables visible at the current stage.
func (e *Env) Names() []string { return e.stack[0].Names() }

// ExternNames lists all externs.
func (e *Env) ExternNames() []string { return e.externs.Names() }
