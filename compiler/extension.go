package compiler

import (
	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"
)

// DemoteInstances returns an extension for quotes annotated with
// annotation: a value of type "T cons" that crosses into such a quote,
// through a persist escape or an implicit cross-stage lookup, is seen as a
// single T. Shader-style backends use it to read per-vertex arrays as
// per-vertex scalars.
func DemoteInstances(annotation, cons string) Extension {
	return func(next CheckFunc) CheckFunc {
		return func(n ast.Node, env *Env) (types.Type, *Env, error) {
			t, e, err := next(n, env)
			if err != nil || env.Annotation() != annotation {
				return t, e, err
			}
			switch n := n.(type) {
			case *ast.Escape:
				if n.Kind == ast.Persist {
					t = demote(t, cons)
				}
			case *ast.Lookup:
				if _, depth, ok := env.Lookup(n.Ident); ok && depth > 0 {
					t = demote(t, cons)
				}
			}
			return t, e, nil
		}
	}
}

func demote(t types.Type, cons string) types.Type {
	if inst, ok := t.(*types.Instance); ok && inst.Cons.Name == cons {
		return inst.Arg
	}
	return t
}
