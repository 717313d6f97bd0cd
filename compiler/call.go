package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/stagecraft/pkg/types"
)

// ---------------------------------------------------------------------------
// Call checking
// ---------------------------------------------------------------------------

func paramError(i int, param, arg types.Type) error {
	return fmt.Errorf("mismatched argument type at index %d: expected %s, got %s", i, param, arg)
}

var (
	errArity          = errors.New("mismatched argument length")
	errVariadicParams = errors.New("variadic function with multiple argument types")
	errNoOverload     = errors.New("no overloaded type applies")
	errNotFunction    = errors.New("call of non-function")
	errUnify          = errors.New("cannot unify the generic type")
)

// CheckCall checks a call of a value of type target with arguments of the
// given types and returns the result type. Overloads are tried in order
// and the first that applies wins. A quantified target is instantiated
// from a snippet argument's identity when one is present, and otherwise by
// unifying its variable against the arguments.
func CheckCall(target types.Type, args []types.Type) (types.Type, error) {
	switch t := target.(type) {
	case *types.VariadicFun:
		if len(t.Params) != 1 {
			return nil, errVariadicParams
		}
		param := t.Params[0]
		for i, arg := range args {
			if !types.Compatible(param, arg) {
				return nil, paramError(i, param, arg)
			}
		}
		return t.Ret, nil

	case *types.Fun:
		if len(args) != len(t.Params) {
			return nil, errArity
		}
		for i, arg := range args {
			if !types.Compatible(t.Params[i], arg) {
				return nil, paramError(i, t.Params[i], arg)
			}
		}
		return t.Ret, nil

	case *types.Overloaded:
		for _, alt := range t.Types {
			if ret, err := CheckCall(alt, args); err == nil {
				return ret, nil
			}
		}
		return nil, errNoOverload

	case *types.Quantified:
		for _, arg := range args {
			c, ok := arg.(*types.Code)
			if !ok {
				continue
			}
			if c.Snippet != 0 {
				return CheckCall(types.ApplyQuantified(t, types.WithSnippet(c.Snippet)), args)
			}
			if c.SnippetVar != nil {
				return CheckCall(types.ApplyQuantified(t, types.WithVar(c.SnippetVar)), args)
			}
		}
		bound, err := checkQuantified(t.Var, t.Inner, args)
		if err != nil {
			return nil, err
		}
		return CheckCall(types.ApplyQuantified(t, types.WithType(bound)), args)
	}
	return nil, errNotFunction
}

// checkQuantified finds the type tv must take for target to accept args.
// When two argument positions bind tv to different types the call is
// rejected.
func checkQuantified(tv *types.TypeVar, target types.Type, args []types.Type) (types.Type, error) {
	switch t := target.(type) {
	case *types.VariadicFun:
		if len(t.Params) != 1 {
			return nil, errVariadicParams
		}
		var bound types.Type
		for i, arg := range args {
			var err error
			if bound, err = unifyInto(tv, bound, t.Params[0], arg, i); err != nil {
				return nil, err
			}
		}
		if bound == nil {
			return nil, errUnify
		}
		return bound, nil

	case *types.Fun:
		if len(args) != len(t.Params) {
			return nil, errArity
		}
		var bound types.Type
		for i, arg := range args {
			var err error
			if bound, err = unifyInto(tv, bound, t.Params[i], arg, i); err != nil {
				return nil, err
			}
		}
		if bound == nil {
			return nil, errUnify
		}
		return bound, nil

	case *types.Overloaded:
		for _, alt := range t.Types {
			if bound, err := checkQuantified(tv, alt, args); err == nil {
				return bound, nil
			}
		}
		return nil, errNoOverload

	case *types.Quantified:
		inner, err := checkQuantified(t.Var, t.Inner, args)
		if err != nil {
			return nil, err
		}
		return checkQuantified(tv, types.ApplyQuantified(t, types.WithType(inner)), args)
	}
	return nil, errors.New("quantified type's inner function is illegal")
}

// unifyInto unifies one parameter/argument pair and merges the result with
// the binding found so far.
func unifyInto(tv *types.TypeVar, bound, param, arg types.Type, i int) (types.Type, error) {
	t, ok := unify(tv, param, arg)
	if !ok {
		return nil, paramError(i, param, arg)
	}
	if t == nil {
		return bound, nil
	}
	if bound == nil || types.Same(bound, t) {
		return t, nil
	}
	return nil, paramError(i, param, arg)
}

// unify matches param against arg. It returns the type bound to tv (nil if
// param does not mention tv) and whether the pair is acceptable at all.
func unify(tv *types.TypeVar, param, arg types.Type) (types.Type, bool) {
	switch p := param.(type) {
	case *types.Variable:
		if p.Var == tv {
			return arg, true
		}
		// Some other variable: accept anything.
		return nil, true
	case *types.Instance:
		if a, ok := arg.(*types.Instance); ok && a.Cons == p.Cons {
			return unify(tv, p.Arg, a.Arg)
		}
	}
	return nil, types.Compatible(param, arg)
}

// ---------------------------------------------------------------------------
// Builtin operators
// ---------------------------------------------------------------------------

// BuiltinOperators returns the extern signatures of the arithmetic and
// comparison operators.
func BuiltinOperators() types.Map {
	unary := []types.Type{
		&types.Fun{Params: []types.Type{types.Int}, Ret: types.Int},
		&types.Fun{Params: []types.Type{types.Float}, Ret: types.Float},
	}
	binary := []types.Type{
		&types.Fun{Params: []types.Type{types.Int, types.Int}, Ret: types.Int},
		&types.Fun{Params: []types.Type{types.Float, types.Float}, Ret: types.Float},
	}
	compare := &types.Overloaded{Types: []types.Type{
		&types.Fun{Params: []types.Type{types.Int, types.Int}, Ret: types.Bool},
		&types.Fun{Params: []types.Type{types.Float, types.Float}, Ret: types.Bool},
	}}
	unaryBinary := &types.Overloaded{Types: append(append([]types.Type{}, unary...), binary...)}
	binaryOnly := &types.Overloaded{Types: binary}

	return types.Map{
		"+":  unaryBinary,
		"-":  unaryBinary,
		"*":  binaryOnly,
		"/":  binaryOnly,
		"~":  &types.Fun{Params: []types.Type{types.Bool}, Ret: types.Bool},
		"==": compare,
		"!=": compare,
		">=": compare,
		"<=": compare,
	}
}
