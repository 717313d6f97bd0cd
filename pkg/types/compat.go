package types

// Same reports whether a and b denote the same type without looking at
// structure: the same value, primitives of the same name, or the Any and
// Void singletons.
func Same(a, b Type) bool {
	if a == b {
		return true
	}
	switch a := a.(type) {
	case *Primitive:
		bp, ok := b.(*Primitive)
		return ok && a.Name == bp.Name
	case *AnyType:
		_, ok := b.(*AnyType)
		return ok
	case *VoidType:
		_, ok := b.(*VoidType)
		return ok
	}
	return false
}

// Compatible reports whether a value of type r may be used where l is
// expected. Float accepts Int; Any accepts everything; function parameters
// are contravariant and results covariant; instances are invariant; code
// types must agree on annotation and snippet identity; tuples are covariant
// per component; an overloaded target accepts r if any alternative does.
func Compatible(l, r Type) bool {
	if Same(l, r) {
		return true
	}
	if Same(l, Float) && Same(r, Int) {
		return true
	}
	if _, ok := l.(*AnyType); ok {
		return true
	}

	if lp, lret, ok := signature(l); ok {
		rp, rret, ok := signature(r)
		if !ok {
			return false
		}
		if len(lp) != len(rp) {
			return false
		}
		for i := range lp {
			if !Compatible(rp[i], lp[i]) {
				return false
			}
		}
		return Compatible(lret, rret)
	}

	switch l := l.(type) {
	case *Instance:
		r, ok := r.(*Instance)
		if !ok || l.Cons != r.Cons {
			return false
		}
		return Compatible(l.Arg, r.Arg) && Compatible(r.Arg, l.Arg)

	case *Code:
		r, ok := r.(*Code)
		if !ok {
			return false
		}
		return Compatible(l.Inner, r.Inner) &&
			l.Annotation == r.Annotation &&
			l.Snippet == r.Snippet &&
			l.SnippetVar == r.SnippetVar

	case *Tuple:
		r, ok := r.(*Tuple)
		if !ok || len(l.Components) != len(r.Components) {
			return false
		}
		for i := range l.Components {
			if !Compatible(l.Components[i], r.Components[i]) {
				return false
			}
		}
		return true

	case *Overloaded:
		for _, alt := range l.Types {
			if Compatible(alt, r) {
				return true
			}
		}
	}
	return false
}

func signature(t Type) ([]Type, Type, bool) {
	switch t := t.(type) {
	case *Fun:
		return t.Params, t.Ret, true
	case *VariadicFun:
		return t.Params, t.Ret, true
	}
	return nil, nil, false
}

// Unquantified strips one outer quantifier.
func Unquantified(t Type) Type {
	if q, ok := t.(*Quantified); ok {
		return q.Inner
	}
	return t
}

// ---------------------------------------------------------------------------
// Substitution
// ---------------------------------------------------------------------------

// Instantiation is what a type variable is replaced with: an ordinary type,
// a concrete snippet id, or another variable. Exactly one field is set.
type Instantiation struct {
	Type    Type
	Snippet int
	Var     *TypeVar
}

// WithType instantiates a variable with a type.
func WithType(t Type) Instantiation { return Instantiation{Type: t} }

// WithSnippet instantiates a snippet variable with a concrete escape id.
func WithSnippet(id int) Instantiation { return Instantiation{Snippet: id} }

// WithVar renames a variable.
func WithVar(v *TypeVar) Instantiation { return Instantiation{Var: v} }

// Apply substitutes inst for v throughout t.
func Apply(t Type, v *TypeVar, inst Instantiation) Type {
	switch t := t.(type) {
	case *Variable:
		if t.Var == v && inst.Type != nil {
			return inst.Type
		}
		return t
	case *Code:
		inner := Apply(t.Inner, v, inst)
		if t.SnippetVar != nil && t.SnippetVar == v {
			switch {
			case inst.Var != nil:
				return &Code{Inner: inner, Annotation: t.Annotation, SnippetVar: inst.Var}
			case inst.Snippet != 0:
				return &Code{Inner: inner, Annotation: t.Annotation, Snippet: inst.Snippet}
			}
		}
		return &Code{Inner: inner, Annotation: t.Annotation, Snippet: t.Snippet, SnippetVar: t.SnippetVar}
	case *Fun:
		return &Fun{Params: applyAll(t.Params, v, inst), Ret: Apply(t.Ret, v, inst)}
	case *VariadicFun:
		return &VariadicFun{Params: applyAll(t.Params, v, inst), Ret: Apply(t.Ret, v, inst)}
	case *Instance:
		return &Instance{Cons: t.Cons, Arg: Apply(t.Arg, v, inst)}
	case *Quantified:
		return &Quantified{Var: t.Var, Inner: Apply(t.Inner, v, inst)}
	case *Overloaded:
		return &Overloaded{Types: applyAll(t.Types, v, inst)}
	case *Tuple:
		return &Tuple{Components: applyAll(t.Components, v, inst)}
	}
	return t
}

func applyAll(ts []Type, v *TypeVar, inst Instantiation) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Apply(t, v, inst)
	}
	return out
}

// ApplyQuantified instantiates the quantifier of q.
func ApplyQuantified(q *Quantified, inst Instantiation) Type {
	return Apply(q.Inner, q.Var, inst)
}

// ---------------------------------------------------------------------------
// Snippet variable rectification
// ---------------------------------------------------------------------------

// RectifyParams makes every snippet type variable in params agree with the
// first one found, so a signature can only be polymorphic over a single
// snippet. It returns the rewritten parameters and the shared variable, or
// nil if no parameter is a snippet code type.
func RectifyParams(params []Type) ([]Type, *TypeVar) {
	var tv *TypeVar
	out := make([]Type, len(params))
	for i, p := range params {
		out[i] = p
		c, ok := p.(*Code)
		if !ok || c.SnippetVar == nil {
			continue
		}
		if tv == nil {
			tv = c.SnippetVar
		} else {
			out[i] = &Code{Inner: c.Inner, Annotation: c.Annotation, Snippet: c.Snippet, SnippetVar: tv}
		}
	}
	return out, tv
}

// RectifyFun rectifies a whole signature, return type included, and wraps
// it in a quantifier when it is snippet-polymorphic.
func RectifyFun(f *Fun) Type {
	params, tv := RectifyParams(f.Params)
	ret := f.Ret
	if c, ok := ret.(*Code); ok && c.SnippetVar != nil {
		if tv == nil {
			tv = c.SnippetVar
		} else {
			ret = &Code{Inner: c.Inner, Annotation: c.Annotation, Snippet: c.Snippet, SnippetVar: tv}
		}
	}
	fn := &Fun{Params: params, Ret: ret}
	if tv != nil {
		return &Quantified{Var: tv, Inner: fn}
	}
	return fn
}
