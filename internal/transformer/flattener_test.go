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

func newFlattener(t *testing.T, minStatements int, seed int64) *Flattener {
	t.Helper()
	cfg := config.DefaultConfig()
	scr, err := scrambler.NewScrambler(cfg, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	passCfg := &config.ControlFlowConfig{Enabled: true, MinStatements: minStatements}
	return NewFlattener(passCfg, rand.New(rand.NewSource(seed)), scr)
}

func TestFlattenBasicFunction(t *testing.T) {
	source := "def f(a, b):\n    x = a + b\n    y = x * 2\n    return y\n"
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)

	f := newFlattener(t, 2, 21)
	require.NoError(t, f.Apply(mod))
	assert.Equal(t, 1, f.Count())
	assert.Empty(t, f.Warnings())

	fn := mod.Body[0].(*pyast.FunctionDef)
	require.Len(t, fn.Body, 2, "state seed plus dispatch loop")

	seedAssign, ok := fn.Body[0].(*pyast.Assign)
	require.True(t, ok)
	stateVar := seedAssign.Targets[0].(*pyast.Name).ID

	loop, ok := fn.Body[1].(*pyast.While)
	require.True(t, ok)
	cond, ok := loop.Cond.(*pyast.Compare)
	require.True(t, ok)
	assert.Equal(t, stateVar, cond.Left.(*pyast.Name).ID)
	assert.Equal(t, []string{">="}, cond.Ops)

	// Three source statements plus one or two unreachable junk arms, all
	// chained through else, two statements per arm.
	arms := dispatchArms(t, loop)
	require.GreaterOrEqual(t, len(arms), 4)
	require.LessOrEqual(t, len(arms), 5)
	seen := map[int64]bool{}
	for _, arm := range arms {
		assert.Len(t, arm.Body, 2, "payload plus successor assignment")
		label := armLabel(t, arm, stateVar)
		assert.False(t, seen[label], "duplicate dispatch label %d", label)
		seen[label] = true
	}

	// The seed assignment targets the arm holding the first source statement.
	entry := seedAssign.Value.(*pyast.NumberLit).IntVal
	require.True(t, seen[entry])
	for _, arm := range arms {
		if armLabel(t, arm, stateVar) == entry {
			first, ok := arm.Body[0].(*pyast.Assign)
			require.True(t, ok)
			assert.Equal(t, "x", first.Targets[0].(*pyast.Name).ID)
		}
	}

	_, err = pysrc.Parse(pysrc.Print(mod))
	assert.NoError(t, err)
}

// dispatchArms collects the if arms of a flattened body's dispatch chain.
func dispatchArms(t *testing.T, loop *pyast.While) []*pyast.If {
	t.Helper()
	var arms []*pyast.If
	body := loop.Body
	for len(body) == 1 {
		arm, ok := body[0].(*pyast.If)
		if !ok {
			break
		}
		arms = append(arms, arm)
		body = arm.Else
	}
	return arms
}

// armLabel extracts the label an arm's guard compares the state variable to.
func armLabel(t *testing.T, arm *pyast.If, stateVar string) int64 {
	t.Helper()
	cond, ok := arm.Cond.(*pyast.Compare)
	require.True(t, ok)
	require.Equal(t, stateVar, cond.Left.(*pyast.Name).ID)
	require.Equal(t, []string{"=="}, cond.Ops)
	return cond.Comparators[0].(*pyast.NumberLit).IntVal
}

func TestFlattenJunkArmsUnreachable(t *testing.T) {
	source := "def f(a):\n    x = a + 1\n    return x\n"
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)

	f := newFlattener(t, 2, 27)
	require.NoError(t, f.Apply(mod))
	require.Equal(t, 1, f.Count())

	fn := mod.Body[0].(*pyast.FunctionDef)
	seedAssign := fn.Body[0].(*pyast.Assign)
	stateVar := seedAssign.Targets[0].(*pyast.Name).ID
	arms := dispatchArms(t, fn.Body[1].(*pyast.While))
	require.Greater(t, len(arms), 2, "junk arms beyond the two source statements")

	// Labels reachable from the entry assignment: follow each live arm's
	// successor assignment. Junk arm labels must never be reached.
	reachable := map[int64]bool{seedAssign.Value.(*pyast.NumberLit).IntVal: true}
	for range arms {
		for _, arm := range arms {
			if !reachable[armLabel(t, arm, stateVar)] {
				continue
			}
			succ := arm.Body[len(arm.Body)-1].(*pyast.Assign)
			if lit, ok := succ.Value.(*pyast.NumberLit); ok && lit.IntVal >= 0 {
				reachable[lit.IntVal] = true
			}
		}
	}
	live := 0
	for _, arm := range arms {
		if reachable[armLabel(t, arm, stateVar)] {
			live++
		}
	}
	assert.Equal(t, 2, live, "exactly the source statements stay reachable")

	_, err = pysrc.Parse(pysrc.Print(mod))
	assert.NoError(t, err)
}

func TestFlattenPreservesDocstring(t *testing.T) {
	source := "def f():\n    '''doc'''\n    a = 1\n    b = 2\n    return a + b\n"
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)

	f := newFlattener(t, 2, 22)
	require.NoError(t, f.Apply(mod))
	require.Equal(t, 1, f.Count())

	fn := mod.Body[0].(*pyast.FunctionDef)
	es, ok := fn.Body[0].(*pyast.ExprStmt)
	require.True(t, ok)
	assert.Equal(t, "doc", es.Value.(*pyast.StringLit).Value)
}

func TestFlattenMinStatementsGate(t *testing.T) {
	mod, err := pysrc.Parse("def f():\n    return 1\n")
	require.NoError(t, err)
	f := newFlattener(t, 3, 23)
	require.NoError(t, f.Apply(mod))
	assert.Zero(t, f.Count())
	assert.Len(t, mod.Body[0].(*pyast.FunctionDef).Body, 1)
}

func TestFlattenExemptions(t *testing.T) {
	cases := []struct {
		name      string
		source    string
		construct string
	}{
		{
			name:      "generator",
			source:    "def g(n):\n    i = 0\n    yield i\n    i = i + 1\n",
			construct: "yield expression",
		},
		{
			name:      "try statement",
			source:    "def f(x):\n    y = 0\n    try:\n        y = 1 / x\n    except ZeroDivisionError:\n        y = 0\n    return y\n",
			construct: "try statement",
		},
		{
			name:      "global declaration",
			source:    "def f():\n    global counter\n    counter = counter + 1\n    return counter\n",
			construct: "global declaration",
		},
		{
			name:      "nonlocal declaration",
			source:    "def outer():\n    n = 0\n    def inner():\n        nonlocal n\n        n = n + 1\n        return n\n    a = 1\n    b = 2\n    return inner\n",
			construct: "nonlocal declaration",
		},
		{
			name:      "nested function",
			source:    "def f():\n    def helper(v):\n        return v\n    a = 1\n    return helper(a)\n",
			construct: "nested function definition",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := pysrc.Parse(tc.source)
			require.NoError(t, err)
			before := pysrc.Print(mod)

			f := newFlattener(t, 2, 24)
			require.NoError(t, f.Apply(mod))

			require.NotEmpty(t, f.Warnings())
			found := false
			for _, w := range f.Warnings() {
				var uce *UnsupportedConstructError
				require.ErrorAs(t, w, &uce)
				assert.Contains(t, uce.Error(), "left untransformed")
				if uce.Construct == tc.construct {
					found = true
				}
			}
			assert.True(t, found, "no warning for %q", tc.construct)
			assert.Equal(t, before, pysrc.Print(mod), "exempt body must pass through unchanged")
		})
	}
}

func TestFlattenNonlocalInsideNestedOnly(t *testing.T) {
	// nonlocal in the inner function exempts the inner body, not the outer.
	source := "def outer():\n    n = 0\n    def inner():\n        nonlocal n\n        n = n + 1\n        return n\n    a = 1\n    b = 2\n    return inner\n"
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)

	f := newFlattener(t, 2, 25)
	require.NoError(t, f.Apply(mod))

	// Outer is exempt for the nested def itself; inner for the nonlocal.
	assert.Zero(t, f.Count())
	assert.Len(t, f.Warnings(), 2)
}

func TestFlattenDeterministic(t *testing.T) {
	source := "def f(a):\n    x = a\n    x = x + 1\n    x = x * 3\n    return x\n"
	render := func() string {
		mod, err := pysrc.Parse(source)
		require.NoError(t, err)
		require.NoError(t, newFlattener(t, 2, 26).Apply(mod))
		return pysrc.Print(mod)
	}
	assert.Equal(t, render(), render())
}
