package transformer

import (
	"math/rand"

	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// maxObfuscatedInt bounds the literals the pass touches so the rewritten
// arithmetic can never overflow a 64-bit intermediate.
const maxObfuscatedInt = 1 << 30

// NumberObfuscator rewrites integer literals into equivalent arithmetic:
// either (n + k) - k or (n ^ k) ^ k with a random key. It runs before the
// injection passes so their own constants stay untouched.
type NumberObfuscator struct {
	Cfg *config.NumbersConfig
	Rng *rand.Rand

	count int
}

// NewNumberObfuscator builds the pass from its config section.
func NewNumberObfuscator(cfg *config.NumbersConfig, rng *rand.Rand) *NumberObfuscator {
	return &NumberObfuscator{Cfg: cfg, Rng: rng}
}

// Count returns the number of literals rewritten.
func (n *NumberObfuscator) Count() int { return n.count }

// Apply rewrites eligible integer literals throughout mod.
func (n *NumberObfuscator) Apply(mod *pyast.Module) {
	pyast.RewriteExprs(mod.Body, true, func(expr pyast.Expr) pyast.Expr {
		lit, ok := expr.(*pyast.NumberLit)
		if !ok || !lit.IsInt {
			return expr
		}
		if lit.IntVal < 0 || lit.IntVal > maxObfuscatedInt {
			return expr
		}
		n.count++
		k := int64(n.Rng.Intn(254) + 1)
		if n.Rng.Intn(2) == 0 {
			// (v + k) - k, folded to <v+k> - k
			return astutil.BinOp(astutil.Int(lit.IntVal+k), "-", astutil.Int(k))
		}
		// (v ^ k) ^ k, folded to <v^k> ^ k
		return astutil.BinOp(astutil.Int(lit.IntVal^k), "^", astutil.Int(k))
	})
}
