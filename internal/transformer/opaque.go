package transformer

import (
	"fmt"
	"math/rand"

	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// predicate builders. Each returns an expression that is always true for any
// integer constants k, m >= 2. The constants are baked in as literals, so the
// identity is invisible without evaluating the arithmetic.
var truePredicates = []func(k, m int64) pyast.Expr{
	// ((k + m) * (k + m + 1)) % 2 == 0
	func(k, m int64) pyast.Expr {
		sum := astutil.BinOp(astutil.Int(k), "+", astutil.Int(m))
		succ := astutil.BinOp(astutil.BinOp(astutil.Int(k), "+", astutil.Int(m)), "+", astutil.Int(1))
		prod := astutil.BinOp(sum, "*", succ)
		return astutil.Compare(astutil.BinOp(prod, "%", astutil.Int(2)), "==", astutil.Int(0))
	},
	// k * k + m >= m
	func(k, m int64) pyast.Expr {
		lhs := astutil.BinOp(astutil.BinOp(astutil.Int(k), "*", astutil.Int(k)), "+", astutil.Int(m))
		return astutil.Compare(lhs, ">=", astutil.Int(m))
	},
	// (k + m) * (k + m) == k*k + 2*k*m + m*m
	func(k, m int64) pyast.Expr {
		sum := astutil.BinOp(astutil.Int(k), "+", astutil.Int(m))
		lhs := astutil.BinOp(sum, "*", astutil.BinOp(astutil.Int(k), "+", astutil.Int(m)))
		rhs := astutil.BinOp(
			astutil.BinOp(
				astutil.BinOp(astutil.Int(k), "*", astutil.Int(k)),
				"+",
				astutil.BinOp(astutil.BinOp(astutil.Int(2), "*", astutil.Int(k)), "*", astutil.Int(m)),
			),
			"+",
			astutil.BinOp(astutil.Int(m), "*", astutil.Int(m)),
		)
		return astutil.Compare(lhs, "==", rhs)
	},
	// k*k - m*m == (k - m) * (k + m)
	func(k, m int64) pyast.Expr {
		lhs := astutil.BinOp(
			astutil.BinOp(astutil.Int(k), "*", astutil.Int(k)),
			"-",
			astutil.BinOp(astutil.Int(m), "*", astutil.Int(m)),
		)
		rhs := astutil.BinOp(
			astutil.BinOp(astutil.Int(k), "-", astutil.Int(m)),
			"*",
			astutil.BinOp(astutil.Int(k), "+", astutil.Int(m)),
		)
		return astutil.Compare(lhs, "==", rhs)
	},
	// (k | m) >= (k & m)
	func(k, m int64) pyast.Expr {
		return astutil.Compare(
			astutil.BinOp(astutil.Int(k), "|", astutil.Int(m)),
			">=",
			astutil.BinOp(astutil.Int(k), "&", astutil.Int(m)),
		)
	},
	// (k * m) % m == 0
	func(k, m int64) pyast.Expr {
		prod := astutil.BinOp(astutil.Int(k), "*", astutil.Int(m))
		return astutil.Compare(astutil.BinOp(prod, "%", astutil.Int(m)), "==", astutil.Int(0))
	},
}

// OpaquePredicates wraps statements in conditionals whose condition is an
// algebraic identity that always holds, and conjoins identities onto existing
// if guards. No generated predicate repeats within a file.
type OpaquePredicates struct {
	Cfg *config.OpaquePredicatesConfig
	Rng *rand.Rand

	used  map[string]bool
	count int
}

// NewOpaquePredicates builds the pass from its config section.
func NewOpaquePredicates(cfg *config.OpaquePredicatesConfig, rng *rand.Rand) *OpaquePredicates {
	return &OpaquePredicates{Cfg: cfg, Rng: rng, used: make(map[string]bool)}
}

// Count returns the number of predicates injected.
func (o *OpaquePredicates) Count() int { return o.count }

// Apply wraps eligible statements at the configured rate. The statement
// lists are collected up front so conditionals generated by the pass are
// never revisited and wrapped a second time.
func (o *OpaquePredicates) Apply(mod *pyast.Module) {
	var wrap []func()
	wrap = append(wrap, func() { mod.Body = o.wrapList(mod.Body, true) })
	pyast.Inspect(mod, func(n pyast.Node) bool {
		switch node := n.(type) {
		case *pyast.FunctionDef:
			wrap = append(wrap, func() { node.Body = o.wrapList(node.Body, true) })
		case *pyast.If:
			wrap = append(wrap, func() {
				if o.Rng.Intn(100) < o.Cfg.InjectionRate {
					node.Cond = o.strengthen(node.Cond)
					o.count++
				}
				node.Body = o.wrapList(node.Body, false)
				node.Else = o.wrapList(node.Else, false)
			})
		case *pyast.While:
			wrap = append(wrap, func() { node.Body = o.wrapList(node.Body, false) })
		case *pyast.For:
			wrap = append(wrap, func() { node.Body = o.wrapList(node.Body, false) })
		case *pyast.With:
			wrap = append(wrap, func() { node.Body = o.wrapList(node.Body, false) })
		}
		return true
	})
	for _, apply := range wrap {
		apply()
	}
}

func (o *OpaquePredicates) wrapList(stmts []pyast.Stmt, topOfBody bool) []pyast.Stmt {
	out := make([]pyast.Stmt, len(stmts))
	for i, s := range stmts {
		if topOfBody && astutil.IsDocstring(stmts, i) {
			out[i] = s
			continue
		}
		if o.eligible(s) && o.Rng.Intn(100) < o.Cfg.InjectionRate {
			out[i] = astutil.If(o.predicate(), s)
			o.count++
		} else {
			out[i] = s
		}
	}
	return out
}

// strengthen conjoins an always-true predicate onto an existing guard. The
// truth value of the guard is unchanged.
func (o *OpaquePredicates) strengthen(cond pyast.Expr) pyast.Expr {
	return &pyast.BoolOp{Op: "and", Values: []pyast.Expr{o.predicate(), cond}}
}

// eligible limits wrapping to simple executable statements. Definitions,
// imports and scope declarations keep their position and shape.
func (o *OpaquePredicates) eligible(s pyast.Stmt) bool {
	switch s.(type) {
	case *pyast.Assign, *pyast.AugAssign, *pyast.ExprStmt, *pyast.Return, *pyast.Raise:
		return true
	}
	return false
}

// predicate draws a fresh always-true condition, retrying until the rendered
// template and constants have not been used in this file.
func (o *OpaquePredicates) predicate() pyast.Expr {
	for {
		tmpl := o.Rng.Intn(len(truePredicates))
		k := int64(o.Rng.Intn(97) + 2)
		m := int64(o.Rng.Intn(97) + 2)
		key := fmt.Sprintf("%d:%d:%d", tmpl, k, m)
		if o.used[key] {
			continue
		}
		o.used[key] = true
		return truePredicates[tmpl](k, m)
	}
}
