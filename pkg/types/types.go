// Package types is the type model of the staged language: primitive and
// function types, code types that carry their stage annotation and snippet
// identity, generics, overloading and tuples.
package types

import (
	"strconv"
	"strings"
)

// Type is implemented by every type. The set of implementations is closed.
type Type interface {
	String() string
	typ()
}

// TypeVar is a type-level variable. Variables are compared by identity.
type TypeVar struct {
	Name string
}

// Primitive is a named atomic type. Builtin primitives are shared values.
type Primitive struct {
	Name string
}

// AnyType is the top type.
type AnyType struct{}

// VoidType is the bottom type.
type VoidType struct{}

// Fun is a function type.
type Fun struct {
	Params []Type
	Ret    Type
}

// VariadicFun takes any number of arguments of its single parameter type.
type VariadicFun struct {
	Params []Type
	Ret    Type
}

// Code is the type of a quoted program. Snippet is the id of the escape a
// snippet quote belongs to (0 if none); SnippetVar makes a code type
// polymorphic over that identity.
type Code struct {
	Inner      Type
	Annotation string
	Snippet    int
	SnippetVar *TypeVar
}

// Constructor is a type constructor such as Array.
type Constructor struct {
	Name string
}

// Instance applies a constructor to an argument type.
type Instance struct {
	Cons *Constructor
	Arg  Type
}

// Quantified universally quantifies Var over Inner.
type Quantified struct {
	Var   *TypeVar
	Inner Type
}

// Variable is a use of a type variable as a type.
type Variable struct {
	Var *TypeVar
}

// Overloaded is a set of alternatives tried in order.
type Overloaded struct {
	Types []Type
}

// Tuple is a product type.
type Tuple struct {
	Components []Type
}

func (*Primitive) typ()   {}
func (*AnyType) typ()     {}
func (*VoidType) typ()    {}
func (*Fun) typ()         {}
func (*VariadicFun) typ() {}
func (*Code) typ()        {}
func (*Constructor) typ() {}
func (*Instance) typ()    {}
func (*Quantified) typ()  {}
func (*Variable) typ()    {}
func (*Overloaded) typ()  {}
func (*Tuple) typ()       {}

// Instance applies c to arg.
func (c *Constructor) Instance(arg Type) *Instance {
	return &Instance{Cons: c, Arg: arg}
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

var (
	Int    = &Primitive{Name: "Int"}
	Float  = &Primitive{Name: "Float"}
	String = &Primitive{Name: "String"}
	Bool   = &Primitive{Name: "Bool"}
	Any    = &AnyType{}
	Void   = &VoidType{}
)

// Map binds names to types. Maps handed to the checker are treated as
// immutable; use With to extend one.
type Map map[string]Type

// With returns a copy of m that also binds name.
func (m Map) With(name string, t Type) Map {
	out := make(Map, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[name] = t
	return out
}

// Merge returns a copy of m overlaid with every entry of other.
func (m Map) Merge(other Map) Map {
	out := make(Map, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Builtins returns the builtin named types.
func Builtins() Map {
	return Map{
		"Int":    Int,
		"Float":  Float,
		"Void":   Void,
		"String": String,
		"Bool":   Bool,
		"Any":    Any,
	}
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

func (t *Primitive) String() string { return t.Name }
func (*AnyType) String() string     { return "Any" }
func (*VoidType) String() string    { return "Void" }

func (t *Fun) String() string         { return funString(t.Params, t.Ret) }
func (t *VariadicFun) String() string { return funString(t.Params, t.Ret) }

func funString(params []Type, ret Type) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString(p.String())
		b.WriteByte(' ')
	}
	b.WriteString("-> ")
	b.WriteString(ret.String())
	return b.String()
}

func (t *Code) String() string {
	out := "<" + t.Inner.String() + ">"
	if t.Annotation != "" {
		out = t.Annotation + out
	}
	if t.Snippet != 0 {
		out = "$" + strconv.Itoa(t.Snippet) + out
	} else if t.SnippetVar != nil {
		out = "$" + t.SnippetVar.Name + out
	}
	return out
}

func (t *Constructor) String() string { return t.Name }
func (t *Instance) String() string    { return t.Arg.String() + " " + t.Cons.Name }
func (t *Quantified) String() string  { return t.Inner.String() }
func (t *Variable) String() string    { return t.Var.Name }

func (t *Overloaded) String() string {
	parts := make([]string, len(t.Types))
	for i, s := range t.Types {
		parts[i] = s.String()
	}
	return strings.Join(parts, " | ")
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Components))
	for i, c := range t.Components {
		parts[i] = c.String()
	}
	return strings.Join(parts, " * ")
}

// Pretty renders t, tolerating nil.
func Pretty(t Type) string {
	if t == nil {
		return "<none>"
	}
	return t.String()
}
