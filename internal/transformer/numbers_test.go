package transformer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

func newNumbers(seed int64) *NumberObfuscator {
	passCfg := &config.NumbersConfig{Enabled: true}
	return NewNumberObfuscator(passCfg, rand.New(rand.NewSource(seed)))
}

func assignedExpr(t *testing.T, s pyast.Stmt) pyast.Expr {
	t.Helper()
	assign, ok := s.(*pyast.Assign)
	require.True(t, ok, "expected assignment, got %T", s)
	return assign.Value
}

func TestNumbersRewritePreservesValue(t *testing.T) {
	mod, err := pysrc.Parse("x = 42\ny = 0\nz = 1073741824\n")
	require.NoError(t, err)

	n := newNumbers(7)
	n.Apply(mod)
	assert.Equal(t, 3, n.Count())

	for i, want := range []int64{42, 0, 1073741824} {
		expr := assignedExpr(t, mod.Body[i])
		_, stillLiteral := expr.(*pyast.NumberLit)
		assert.False(t, stillLiteral, "literal %d not rewritten", want)
		assert.Equal(t, want, evalInt(t, expr))
	}

	_, err = pysrc.Parse(pysrc.Print(mod))
	assert.NoError(t, err)
}

func TestNumbersRewriteInsideFunctions(t *testing.T) {
	mod, err := pysrc.Parse("def f(a):\n    return a + 10\n")
	require.NoError(t, err)
	n := newNumbers(8)
	n.Apply(mod)
	assert.Equal(t, 1, n.Count())
}

func TestNumbersSkipFloats(t *testing.T) {
	mod, err := pysrc.Parse("x = 3.14\ny = 1e9\n")
	require.NoError(t, err)
	n := newNumbers(9)
	n.Apply(mod)
	assert.Zero(t, n.Count())
	assert.Equal(t, "x = 3.14\ny = 1e9\n", pysrc.Print(mod))
}

func TestNumbersSkipLargeValues(t *testing.T) {
	mod, err := pysrc.Parse("x = 1073741825\n")
	require.NoError(t, err)
	n := newNumbers(10)
	n.Apply(mod)
	assert.Zero(t, n.Count())

	lit, ok := assignedExpr(t, mod.Body[0]).(*pyast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, int64(1073741825), lit.IntVal)
}

func TestNumbersDeterministic(t *testing.T) {
	render := func() string {
		mod, err := pysrc.Parse("a = 5\nb = 600\nc = 12345\n")
		require.NoError(t, err)
		newNumbers(42).Apply(mod)
		return pysrc.Print(mod)
	}
	assert.Equal(t, render(), render())
}
