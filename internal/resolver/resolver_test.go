package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

func resolveSource(t *testing.T, src string) (*pyast.Module, *Table) {
	t.Helper()
	mod, err := pysrc.Parse(src)
	require.NoError(t, err)
	return mod, Resolve(mod)
}

// useOf finds the symbol a Name with the given id resolves to, failing when
// the module contains no such use.
func useOf(t *testing.T, mod *pyast.Module, table *Table, id string) *Symbol {
	t.Helper()
	var sym *Symbol
	pyast.Inspect(mod, func(n pyast.Node) bool {
		if name, ok := n.(*pyast.Name); ok && name.ID == id && name.Ctx == pyast.Load {
			if s, found := table.Uses[name]; found {
				sym = s
			}
		}
		return true
	})
	require.NotNil(t, sym, "no resolved use of %q", id)
	return sym
}

func TestResolveModuleLevel(t *testing.T) {
	_, table := resolveSource(t, "x = 1\ny = x + 1\n")
	root := table.ModuleScope()
	assert.Contains(t, root.Bindings, "x")
	assert.Contains(t, root.Bindings, "y")
	assert.Empty(t, table.Unresolved)
}

func TestResolveFunctionScope(t *testing.T) {
	mod, table := resolveSource(t, `
def f(a):
    b = a + 1
    return b
`)
	sym := useOf(t, mod, table, "a")
	assert.Equal(t, SymParam, sym.Kind)
	assert.NotEqual(t, 0, sym.Scope, "parameter must not live in module scope")
	assert.NotContains(t, table.ModuleScope().Bindings, "b")
}

// A nested function must see module names bound after its definition.
func TestClosureSeesLaterBinding(t *testing.T) {
	mod, table := resolveSource(t, `
def f():
    return later

later = 10
`)
	sym := useOf(t, mod, table, "later")
	assert.Equal(t, 0, sym.Scope, "later should resolve to the module binding")
	assert.Empty(t, table.Unresolved)
}

func TestGlobalDeclaration(t *testing.T) {
	mod, table := resolveSource(t, `
counter = 0

def bump():
    global counter
    counter = counter + 1
`)
	sym := useOf(t, mod, table, "counter")
	assert.Equal(t, 0, sym.Scope, "global declaration should redirect to module scope")
	// Only one binding for counter in total.
	assert.Len(t, table.ModuleScope().Bindings, 2)
}

func TestNonlocalDeclaration(t *testing.T) {
	mod, table := resolveSource(t, `
def outer():
    state = 0
    def inner():
        nonlocal state
        state = state + 1
    return inner
`)
	sym := useOf(t, mod, table, "state")
	outerSym := table.ModuleScope().Bindings["outer"]
	require.NotNil(t, outerSym)
	assert.NotEqual(t, 0, sym.Scope)
	// Both functions' uses of state share one symbol.
	count := 0
	for _, s := range table.Uses {
		if s == sym {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 1)
}

// Class scopes are invisible to nested functions: methods referring to a name
// bound at class level must not resolve to it.
func TestClassScopeSkippedInLookup(t *testing.T) {
	_, table := resolveSource(t, `
class C:
    attr = 1
    def m(self):
        return attr
`)
	require.Len(t, table.Unresolved, 1)
	assert.Equal(t, "attr", table.Unresolved[0].Name)
}

func TestBuiltinsResolve(t *testing.T) {
	_, table := resolveSource(t, "print(len([1, 2]))\nx = range(10)\n")
	assert.Empty(t, table.Unresolved)
}

func TestUnresolvedReference(t *testing.T) {
	_, table := resolveSource(t, "value = undefined_thing + 1\n")
	require.Len(t, table.Unresolved, 1)
	assert.Equal(t, "undefined_thing", table.Unresolved[0].Name)
	assert.Contains(t, table.Unresolved[0].String(), "undefined_thing")
}

func TestImportBindings(t *testing.T) {
	_, table := resolveSource(t, "import os\nimport sys as system\nfrom json import dumps\np = os.path\nsystem.exit\ndumps({})\n")
	root := table.ModuleScope()
	require.Contains(t, root.Bindings, "os")
	assert.Equal(t, SymImport, root.Bindings["os"].Kind)
	assert.Contains(t, root.Bindings, "system")
	assert.NotContains(t, root.Bindings, "sys")
	assert.Contains(t, root.Bindings, "dumps")
	assert.Empty(t, table.Unresolved)
}

func TestForAndWithTargets(t *testing.T) {
	_, table := resolveSource(t, `
for i in range(3):
    print(i)
with open('f') as fh:
    fh.read()
`)
	root := table.ModuleScope()
	assert.Contains(t, root.Bindings, "i")
	assert.Contains(t, root.Bindings, "fh")
	assert.Empty(t, table.Unresolved)
}

func TestExceptAsBinding(t *testing.T) {
	_, table := resolveSource(t, `
try:
    risky()
except ValueError as err:
    print(err)
`)
	assert.Contains(t, table.ModuleScope().Bindings, "err")
	// risky is genuinely unresolved.
	require.Len(t, table.Unresolved, 1)
	assert.Equal(t, "risky", table.Unresolved[0].Name)
}

// The first generator's iterable is evaluated in the enclosing scope; the
// comprehension target is not.
func TestComprehensionScope(t *testing.T) {
	_, table := resolveSource(t, "items = [1, 2]\ndoubled = [x * 2 for x in items]\nprint(x)\n")
	root := table.ModuleScope()
	assert.NotContains(t, root.Bindings, "x", "comprehension target must not leak")
	require.Len(t, table.Unresolved, 1)
	assert.Equal(t, "x", table.Unresolved[0].Name)
}

func TestLambdaScope(t *testing.T) {
	_, table := resolveSource(t, "add = lambda a, b: a + b\nprint(add(1, 2))\n")
	assert.Empty(t, table.Unresolved)
	assert.NotContains(t, table.ModuleScope().Bindings, "a")
}

func TestTupleUnpackTargets(t *testing.T) {
	_, table := resolveSource(t, "a, (b, c) = 1, (2, 3)\nprint(a, b, c)\n")
	root := table.ModuleScope()
	for _, name := range []string{"a", "b", "c"} {
		assert.Contains(t, root.Bindings, name)
	}
	assert.Empty(t, table.Unresolved)
}

func TestDecoratorResolvedInEnclosingScope(t *testing.T) {
	_, table := resolveSource(t, `
def deco(fn):
    return fn

@deco
def target():
    pass
`)
	assert.Empty(t, table.Unresolved)
}

func TestDefaultValuesResolvedOutside(t *testing.T) {
	_, table := resolveSource(t, `
limit = 5

def f(n=limit):
    return n
`)
	assert.Empty(t, table.Unresolved)
}
