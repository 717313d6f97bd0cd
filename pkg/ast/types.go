package ast

// ---------------------------------------------------------------------------
// Type syntax
// ---------------------------------------------------------------------------

// PrimitiveType names a type directly: Int, Float, or an alias.
type PrimitiveType struct {
	Base
	Name string
}

// InstanceType applies a type constructor, written "Arg Name".
type InstanceType struct {
	Base
	Name string
	Arg  TypeNode
}

// FunType is a function signature.
type FunType struct {
	Base
	Params []TypeNode
	Ret    TypeNode
}

// CodeType is the type of a quote. Snippet code types are polymorphic in
// the snippet they stand for.
type CodeType struct {
	Base
	Inner      TypeNode
	Annotation string
	Snippet    bool
}

// TupleType is a product type.
type TupleType struct {
	Base
	Components []TypeNode
}

// OverloadedType lists alternative signatures.
type OverloadedType struct {
	Base
	Types []TypeNode
}

func (*PrimitiveType) typeNode()  {}
func (*InstanceType) typeNode()   {}
func (*FunType) typeNode()        {}
func (*CodeType) typeNode()       {}
func (*TupleType) typeNode()      {}
func (*OverloadedType) typeNode() {}
