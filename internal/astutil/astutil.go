// Package astutil provides constructors for generated AST fragments. All
// transformation passes build their injected code through these helpers so
// generated nodes carry the zero position, marking them as synthetic.
package astutil

import (
	"strconv"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// Load returns a name in load context.
func Load(id string) *pyast.Name {
	return &pyast.Name{ID: id, Ctx: pyast.Load}
}

// Store returns a name in store context.
func Store(id string) *pyast.Name {
	return &pyast.Name{ID: id, Ctx: pyast.Store}
}

// Str returns a string literal.
func Str(value string) *pyast.StringLit {
	return &pyast.StringLit{Value: value}
}

// Int returns an integer literal.
func Int(v int64) pyast.Expr {
	if v < 0 {
		return &pyast.UnaryOp{Op: "-", Operand: &pyast.NumberLit{
			Raw: strconv.FormatInt(-v, 10), IsInt: true, IntVal: -v,
		}}
	}
	return &pyast.NumberLit{Raw: strconv.FormatInt(v, 10), IsInt: true, IntVal: v}
}

// Assign returns a single-target assignment.
func Assign(target string, value pyast.Expr) *pyast.Assign {
	return &pyast.Assign{Targets: []pyast.Expr{Store(target)}, Value: value}
}

// Call returns a call of a named function.
func Call(fn string, args ...pyast.Expr) *pyast.Call {
	return &pyast.Call{Func: Load(fn), Args: args}
}

// MethodCall returns recv.method(args...).
func MethodCall(recv pyast.Expr, method string, args ...pyast.Expr) *pyast.Call {
	return &pyast.Call{Func: &pyast.Attribute{Value: recv, Attr: method}, Args: args}
}

// BinOp returns a binary operation.
func BinOp(left pyast.Expr, op string, right pyast.Expr) *pyast.BinOp {
	return &pyast.BinOp{Left: left, Op: op, Right: right}
}

// Compare returns a single-operator comparison.
func Compare(left pyast.Expr, op string, right pyast.Expr) *pyast.Compare {
	return &pyast.Compare{Left: left, Ops: []string{op}, Comparators: []pyast.Expr{right}}
}

// If returns a conditional with no else branch.
func If(cond pyast.Expr, body ...pyast.Stmt) *pyast.If {
	return &pyast.If{Cond: cond, Body: body}
}

// Return returns a return statement.
func Return(value pyast.Expr) *pyast.Return {
	return &pyast.Return{Value: value}
}

// ExprStmt wraps an expression as a statement.
func ExprStmt(value pyast.Expr) *pyast.ExprStmt {
	return &pyast.ExprStmt{Value: value}
}

// Def returns a function definition with positional parameters.
func Def(name string, params []string, body ...pyast.Stmt) *pyast.FunctionDef {
	ps := make([]*pyast.Param, len(params))
	for i, p := range params {
		ps[i] = &pyast.Param{Name: p}
	}
	return &pyast.FunctionDef{Name: name, Params: ps, Body: body}
}

// TryExcept returns try: body / except Exception: handler.
func TryExcept(body []pyast.Stmt, handler ...pyast.Stmt) *pyast.Try {
	return &pyast.Try{
		Body: body,
		Handlers: []*pyast.ExceptHandler{{
			Type: Load("Exception"),
			Body: handler,
		}},
	}
}

// Subscript returns value[index].
func Subscript(value, index pyast.Expr) *pyast.Subscript {
	return &pyast.Subscript{Value: value, Index: index}
}

// SliceReverse returns value[::-1].
func SliceReverse(value pyast.Expr) *pyast.Subscript {
	return &pyast.Subscript{Value: value, Index: &pyast.Slice{Step: Int(-1)}}
}

// IntList returns a list literal of integers.
func IntList(vals []int64) *pyast.ListLit {
	elts := make([]pyast.Expr, len(vals))
	for i, v := range vals {
		elts[i] = Int(v)
	}
	return &pyast.ListLit{Elts: elts}
}

// IsDocstring reports whether the statement at index i of a body is a leading
// docstring expression.
func IsDocstring(body []pyast.Stmt, i int) bool {
	if i != 0 || len(body) == 0 {
		return false
	}
	es, ok := body[0].(*pyast.ExprStmt)
	if !ok {
		return false
	}
	_, isStr := es.Value.(*pyast.StringLit)
	return isStr
}

// ContainsYield reports whether stmts contain a yield at the current function
// level, without descending into nested functions or lambdas.
func ContainsYield(stmts []pyast.Stmt) bool {
	found := false
	for _, s := range stmts {
		if found {
			break
		}
		pyast.Inspect(s, func(n pyast.Node) bool {
			switch n.(type) {
			case *pyast.FunctionDef, *pyast.Lambda:
				return false
			case *pyast.Yield:
				found = true
				return false
			}
			return !found
		})
	}
	return found
}
