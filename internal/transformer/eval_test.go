package transformer

import (
	"testing"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// evalInt evaluates a constant integer expression of the shapes the passes
// generate. Operand values stay small enough that Go and Python arithmetic
// agree.
func evalInt(t *testing.T, e pyast.Expr) int64 {
	t.Helper()
	switch n := e.(type) {
	case *pyast.NumberLit:
		if !n.IsInt {
			t.Fatalf("non-integer literal %q", n.Raw)
		}
		return n.IntVal
	case *pyast.UnaryOp:
		if n.Op != "-" {
			t.Fatalf("unsupported unary op %q", n.Op)
		}
		return -evalInt(t, n.Operand)
	case *pyast.BinOp:
		l, r := evalInt(t, n.Left), evalInt(t, n.Right)
		switch n.Op {
		case "+":
			return l + r
		case "-":
			return l - r
		case "*":
			return l * r
		case "%":
			return l % r
		case "^":
			return l ^ r
		case "|":
			return l | r
		case "&":
			return l & r
		}
		t.Fatalf("unsupported binary op %q", n.Op)
	}
	t.Fatalf("unsupported expression %T", e)
	return 0
}

// evalBool evaluates a single-operator comparison over constant integers.
func evalBool(t *testing.T, e pyast.Expr) bool {
	t.Helper()
	cmp, ok := e.(*pyast.Compare)
	if !ok || len(cmp.Ops) != 1 {
		t.Fatalf("expected single comparison, got %T", e)
	}
	l, r := evalInt(t, cmp.Left), evalInt(t, cmp.Comparators[0])
	switch cmp.Ops[0] {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	t.Fatalf("unsupported comparison op %q", cmp.Ops[0])
	return false
}
