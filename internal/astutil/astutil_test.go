package astutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

func TestIntLiterals(t *testing.T) {
	lit, ok := Int(42).(*pyast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, int64(42), lit.IntVal)
	assert.Equal(t, "42", lit.Raw)

	neg, ok := Int(-7).(*pyast.UnaryOp)
	require.True(t, ok)
	assert.Equal(t, "-", neg.Op)
	inner, ok := neg.Operand.(*pyast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, int64(7), inner.IntVal)
}

func TestBuildersRender(t *testing.T) {
	cases := []struct {
		stmt pyast.Stmt
		want string
	}{
		{Assign("x", BinOp(Int(1), "+", Int(2))), "x = 1 + 2\n"},
		{ExprStmt(Call("print", Str("hi"))), "print('hi')\n"},
		{ExprStmt(MethodCall(Load("s"), "encode")), "s.encode()\n"},
		{Return(Compare(Load("a"), "==", Int(0))), "return a == 0\n"},
		{ExprStmt(Subscript(Load("t"), Int(3))), "t[3]\n"},
		{ExprStmt(SliceReverse(Load("s"))), "s[::-1]\n"},
		{ExprStmt(IntList([]int64{0, 2})), "[0, 2]\n"},
		{If(Load("flag"), Assign("y", Int(1))), "if flag:\n    y = 1\n"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, pysrc.PrintStmts([]pyast.Stmt{tc.stmt}))
	}
}

func TestDefRenders(t *testing.T) {
	def := Def("f", []string{"a", "b"}, Return(BinOp(Load("a"), "*", Load("b"))))
	assert.Equal(t, "def f(a, b):\n    return a * b\n", pysrc.PrintStmts([]pyast.Stmt{def}))
}

func TestTryExceptRenders(t *testing.T) {
	try := TryExcept(
		[]pyast.Stmt{Return(Load("s"))},
		Return(Int(0)),
	)
	out := pysrc.PrintStmts([]pyast.Stmt{try})
	assert.Contains(t, out, "try:")
	assert.Contains(t, out, "except Exception:")
}

func TestIsDocstring(t *testing.T) {
	doc := ExprStmt(Str("doc"))
	other := Assign("x", Int(1))

	assert.True(t, IsDocstring([]pyast.Stmt{doc, other}, 0))
	assert.False(t, IsDocstring([]pyast.Stmt{doc, other}, 1))
	assert.False(t, IsDocstring([]pyast.Stmt{other, doc}, 0))
	assert.False(t, IsDocstring(nil, 0))
	assert.False(t, IsDocstring([]pyast.Stmt{ExprStmt(Int(1))}, 0))
}

func TestContainsYield(t *testing.T) {
	mod, err := pysrc.Parse("def g():\n    yield 1\n")
	require.NoError(t, err)
	gen := mod.Body[0].(*pyast.FunctionDef)
	assert.True(t, ContainsYield(gen.Body))

	mod, err = pysrc.Parse("def f():\n    def g():\n        yield 1\n    return g\n")
	require.NoError(t, err)
	outer := mod.Body[0].(*pyast.FunctionDef)
	assert.False(t, ContainsYield(outer.Body), "nested generators do not mark the outer body")

	mod, err = pysrc.Parse("def f():\n    return 1\n")
	require.NoError(t, err)
	assert.False(t, ContainsYield(mod.Body[0].(*pyast.FunctionDef).Body))
}
