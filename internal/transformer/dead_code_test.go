package transformer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

func TestFalsePredicatesAlwaysFalse(t *testing.T) {
	for tmpl, build := range falsePredicates {
		for _, k := range []int64{2, 3, 17, 50, 98} {
			for _, m := range []int64{2, 5, 42, 98} {
				expr := build(k, m)
				assert.False(t, evalBool(t, expr),
					"predicate template %d true for k=%d m=%d", tmpl, k, m)
			}
		}
	}
}

func newDeadCode(t *testing.T, rate int, seed int64) *DeadCode {
	t.Helper()
	cfg := config.DefaultConfig()
	scr, err := scrambler.NewScrambler(cfg, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	passCfg := &config.DeadCodeConfig{Enabled: true, InjectionRate: rate}
	return NewDeadCode(passCfg, rand.New(rand.NewSource(seed)), scr)
}

func TestDeadCodeFullRate(t *testing.T) {
	mod, err := pysrc.Parse("a = 1\nb = 2\n")
	require.NoError(t, err)

	d := newDeadCode(t, 100, 1)
	require.NoError(t, d.Apply(mod))

	assert.Equal(t, 2, d.Count())
	require.Len(t, mod.Body, 4, "one dead branch after each statement")

	for _, s := range []pyast.Stmt{mod.Body[1], mod.Body[3]} {
		branch, ok := s.(*pyast.If)
		require.True(t, ok)
		assert.False(t, evalBool(t, branch.Cond), "injected branch must be unreachable")
		assert.NotEmpty(t, branch.Body)
	}

	_, err = pysrc.Parse(pysrc.Print(mod))
	assert.NoError(t, err)
}

func TestDeadCodeZeroRate(t *testing.T) {
	mod, err := pysrc.Parse("a = 1\nb = 2\n")
	require.NoError(t, err)
	d := newDeadCode(t, 0, 2)
	require.NoError(t, d.Apply(mod))
	assert.Zero(t, d.Count())
	assert.Len(t, mod.Body, 2)
}

func TestDeadCodeInjectsInFunctions(t *testing.T) {
	mod, err := pysrc.Parse("def f():\n    x = 1\n    return x\n")
	require.NoError(t, err)
	d := newDeadCode(t, 100, 3)
	require.NoError(t, d.Apply(mod))

	fn := mod.Body[0].(*pyast.FunctionDef)
	assert.Greater(t, len(fn.Body), 2, "function body should have grown")
}

func TestDeadCodeFreshNames(t *testing.T) {
	mod, err := pysrc.Parse("a = 1\nb = 2\nc = 3\nd = 4\n")
	require.NoError(t, err)
	d := newDeadCode(t, 100, 4)
	require.NoError(t, d.Apply(mod))

	source := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	seen := make(map[string]bool)
	for _, s := range mod.Body {
		branch, ok := s.(*pyast.If)
		if !ok {
			continue
		}
		for _, inner := range branch.Body {
			assign, ok := inner.(*pyast.Assign)
			require.True(t, ok)
			name := assign.Targets[0].(*pyast.Name).ID
			assert.False(t, source[name], "dead assignment reused source name %q", name)
			seen[name] = true
		}
	}
	assert.NotEmpty(t, seen)
}

func TestDeadCodeSkipsDocstringPosition(t *testing.T) {
	mod, err := pysrc.Parse("'''doc'''\nx = 1\n")
	require.NoError(t, err)
	d := newDeadCode(t, 100, 5)
	require.NoError(t, d.Apply(mod))

	_, isDoc := mod.Body[0].(*pyast.ExprStmt)
	assert.True(t, isDoc)
	_, injectedAfterDoc := mod.Body[1].(*pyast.If)
	assert.False(t, injectedAfterDoc, "no dead branch directly after the docstring")
}
