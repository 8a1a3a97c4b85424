package transformer

import (
	"fmt"
	"math/rand"

	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

// false predicate builders, the unreachable counterparts of the opaque set.
var falsePredicates = []func(k, m int64) pyast.Expr{
	// k * k < 0
	func(k, m int64) pyast.Expr {
		return astutil.Compare(astutil.BinOp(astutil.Int(k), "*", astutil.Int(k)), "<", astutil.Int(0))
	},
	// (k * (k + 1)) % 2 == 1
	func(k, m int64) pyast.Expr {
		prod := astutil.BinOp(astutil.Int(k), "*", astutil.BinOp(astutil.Int(k), "+", astutil.Int(1)))
		return astutil.Compare(astutil.BinOp(prod, "%", astutil.Int(2)), "==", astutil.Int(1))
	},
	// k > k + m
	func(k, m int64) pyast.Expr {
		return astutil.Compare(astutil.Int(k), ">", astutil.BinOp(astutil.Int(k), "+", astutil.Int(m)))
	},
	// (k | m) < (k & m)
	func(k, m int64) pyast.Expr {
		return astutil.Compare(
			astutil.BinOp(astutil.Int(k), "|", astutil.Int(m)),
			"<",
			astutil.BinOp(astutil.Int(k), "&", astutil.Int(m)),
		)
	},
}

// DeadCode injects unreachable branches guarded by always-false predicates.
// Injected variable names come from the scrambler, so a dead assignment can
// never shadow a name the live code resolves, and never promotes a global
// read into a local in the enclosing function.
type DeadCode struct {
	Cfg       *config.DeadCodeConfig
	Rng       *rand.Rand
	Scrambler *scrambler.Scrambler

	counter int
	count   int
}

// NewDeadCode builds the pass from its config section.
func NewDeadCode(cfg *config.DeadCodeConfig, rng *rand.Rand, scr *scrambler.Scrambler) *DeadCode {
	return &DeadCode{Cfg: cfg, Rng: rng, Scrambler: scr}
}

// Count returns the number of dead branches injected.
func (d *DeadCode) Count() int { return d.count }

// Apply inserts dead branches between statements of the module body and of
// every function body.
func (d *DeadCode) Apply(mod *pyast.Module) error {
	var err error
	inject := func(body []pyast.Stmt) []pyast.Stmt {
		if err != nil {
			return body
		}
		var out []pyast.Stmt
		out, err = d.injectList(body)
		return out
	}
	mod.Body = inject(mod.Body)
	pyast.Inspect(mod, func(n pyast.Node) bool {
		if err != nil {
			return false
		}
		if fn, ok := n.(*pyast.FunctionDef); ok {
			fn.Body = inject(fn.Body)
		}
		return true
	})
	return err
}

func (d *DeadCode) injectList(stmts []pyast.Stmt) ([]pyast.Stmt, error) {
	out := make([]pyast.Stmt, 0, len(stmts))
	for i, s := range stmts {
		out = append(out, s)
		if astutil.IsDocstring(stmts, i) {
			continue
		}
		if d.Rng.Intn(100) < d.Cfg.InjectionRate {
			branch, err := d.deadBranch()
			if err != nil {
				return nil, err
			}
			out = append(out, branch)
			d.count++
		}
	}
	return out, nil
}

// deadBranch builds if <false>: junk with one or two junk assignments.
func (d *DeadCode) deadBranch() (pyast.Stmt, error) {
	tmpl := d.Rng.Intn(len(falsePredicates))
	k := int64(d.Rng.Intn(97) + 2)
	m := int64(d.Rng.Intn(97) + 2)
	cond := falsePredicates[tmpl](k, m)

	name, err := d.freshName()
	if err != nil {
		return nil, err
	}
	body := []pyast.Stmt{
		astutil.Assign(name, astutil.Int(int64(d.Rng.Intn(9000)+100))),
	}
	if d.Rng.Intn(2) == 0 {
		second, err := d.freshName()
		if err != nil {
			return nil, err
		}
		body = append(body, astutil.Assign(second,
			astutil.BinOp(astutil.Load(name), "*", astutil.Int(int64(d.Rng.Intn(40)+2)))))
	}
	return &pyast.If{Cond: cond, Body: body}, nil
}

// freshName draws a unique synthetic identifier. The "$" in the key keeps it
// out of the namespace of real source identifiers in the scramble map.
func (d *DeadCode) freshName() (string, error) {
	d.counter++
	return d.Scrambler.Scramble(fmt.Sprintf("dead$%d", d.counter))
}
