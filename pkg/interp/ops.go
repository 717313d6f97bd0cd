package interp

import (
	"github.com/chazu/stagecraft/pkg/ast"
)

func unary(n *ast.Unary, v Value) (Value, error) {
	switch n.Op {
	case "+":
		switch v.(type) {
		case int64, float64:
			return v, nil
		}
	case "-":
		switch v := v.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
	case "~":
		if b, ok := v.(bool); ok {
			return !b, nil
		}
	}
	return nil, errorf(n, "invalid operand %s for %s", Format(v), n.Op)
}

func binary(n *ast.Binary, l, r Value) (Value, error) {
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		return intOp(n, li, ri)
	}
	// An Int operand is accepted where a Float is expected.
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		return floatOp(n, lf, rf)
	}
	return nil, errorf(n, "invalid operands %s %s %s", Format(l), n.Op, Format(r))
}

func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func intOp(n *ast.Binary, l, r int64) (Value, error) {
	switch n.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, errorf(n, "division by zero")
		}
		return l / r, nil
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case ">=":
		return l >= r, nil
	case "<=":
		return l <= r, nil
	}
	return nil, errorf(n, "unknown operator %s", n.Op)
}

func floatOp(n *ast.Binary, l, r float64) (Value, error) {
	switch n.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case ">=":
		return l >= r, nil
	case "<=":
		return l <= r, nil
	}
	return nil, errorf(n, "unknown operator %s", n.Op)
}
