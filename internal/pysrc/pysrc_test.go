package pysrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// reprint parses src and prints it back, failing the test on parse errors.
func reprint(t *testing.T, src string) string {
	t.Helper()
	mod, err := Parse(src)
	require.NoError(t, err, "parse failed for:\n%s", src)
	return Print(mod)
}

// TestRoundTripStable parses, prints, reparses, and expects the second print
// to be byte-identical to the first. Printed output must always be valid
// input for the parser.
func TestRoundTripStable(t *testing.T) {
	sources := []string{
		"x = 1\n",
		"def f(a, b=2, *args, **kwargs):\n    return a + b\n",
		"class C(Base):\n    def method(self):\n        pass\n",
		"for i in range(10):\n    if i % 2 == 0:\n        continue\n    print(i)\n",
		"while x > 0:\n    x -= 1\nelse:\n    print('done')\n",
		"try:\n    risky()\nexcept ValueError as e:\n    handle(e)\nexcept Exception:\n    raise\nfinally:\n    cleanup()\n",
		"with open('f') as fh, lock:\n    data = fh.read()\n",
		"import os\nimport sys as system\nfrom os.path import join, split as sp\n",
		"result = [x * 2 for x in items if x > 0]\n",
		"d = {'a': 1, 'b': 2, **extra}\n",
		"s = x[1:10:2]\nr = x[::-1]\nc = m[i, j]\n",
		"value = a if cond else b\n",
		"f(x, y=2, *rest, **kw)\n",
		"x, y = y, x\n",
		"lambda_result = (lambda a, b: a + b)(1, 2)\n",
		"def g():\n    global counter\n    counter = counter + 1\n",
		"@decorator\ndef h():\n    yield 1\n",
		"empty = ()\nsingle = (1,)\npair = 1, 2\n",
		"not_chain = not a and b or c\n",
		"cmp = 0 <= x < 10\n",
		"raise RuntimeError('boom') from cause\n",
	}
	for _, src := range sources {
		first := reprint(t, src)
		second := reprint(t, first)
		assert.Equal(t, first, second, "reprint not stable for:\n%s", src)
	}
}

func TestParseIndentation(t *testing.T) {
	src := "def f():\n    if x:\n        return 1\n    return 2\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)
	fn, ok := mod.Body[0].(*pyast.FunctionDef)
	require.True(t, ok)
	assert.Len(t, fn.Body, 2)
}

func TestParseBlankLinesAndComments(t *testing.T) {
	src := "# leading comment\nx = 1\n\n\n# another\ny = 2  # trailing\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	assert.Len(t, mod.Body, 2)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unclosed paren", "x = (1 + 2\n"},
		{"bad indent", "if x:\n  a = 1\n    b = 2\n"},
		{"assign to literal", "1 = x\n"},
		{"lone else", "else:\n    pass\n"},
		{"try without handler", "try:\n    pass\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseStringPrefixes(t *testing.T) {
	src := "a = 'plain'\nb = \"double\"\nc = '''triple\nline'''\nd = r'raw\\n'\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, mod.Body, 4)

	lit := func(i int) *pyast.StringLit {
		assign := mod.Body[i].(*pyast.Assign)
		s, ok := assign.Value.(*pyast.StringLit)
		require.True(t, ok, "statement %d is not a string literal", i)
		return s
	}
	assert.Equal(t, "plain", lit(0).Value)
	assert.Equal(t, "double", lit(1).Value)
	assert.Equal(t, "triple\nline", lit(2).Value)
	assert.Equal(t, `raw\n`, lit(3).Value)
}

func TestParseForTargets(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"simple name", "for x in ys:\n    pass\n"},
		{"tuple", "for k, v in items:\n    pass\n"},
		{"parenthesized tuple", "for (a, b) in pairs:\n    pass\n"},
		{"starred", "for first, *rest in rows:\n    pass\n"},
		{"attribute", "for obj.field in source:\n    pass\n"},
		{"subscript", "for arr[0] in source:\n    pass\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := Parse(tc.src)
			require.NoError(t, err)
			loop, ok := mod.Body[0].(*pyast.For)
			require.True(t, ok)
			_, isCompare := loop.Target.(*pyast.Compare)
			assert.False(t, isCompare, "target must not swallow the in keyword")
			assert.Equal(t, tc.src, Print(mod))
		})
	}
}

func TestParseForTargetKeepsMembershipExpressions(t *testing.T) {
	// 'in' is still the membership operator outside a for target.
	mod, err := Parse("flag = x in ys\n")
	require.NoError(t, err)
	assign := mod.Body[0].(*pyast.Assign)
	cmp, ok := assign.Value.(*pyast.Compare)
	require.True(t, ok)
	assert.Equal(t, []string{"in"}, cmp.Ops)

	// The iterable of a for clause may itself use membership.
	_, err = Parse("for x in [v for v in xs if v in allowed]:\n    pass\n")
	require.NoError(t, err)
}

func TestParseComprehensionTargets(t *testing.T) {
	cases := []string{
		"r = [x * 2 for x in items]\n",
		"r = [v for k, v in d.items()]\n",
		"r = [x for row in grid for x in row]\n",
		"r = {k: v for k, v in pairs}\n",
		"r = {x for x in xs if x > 0}\n",
	}
	for _, src := range cases {
		first := reprint(t, src)
		assert.Equal(t, first, reprint(t, first), "reprint not stable for:\n%s", src)
	}
}

func TestParseBytesLiterals(t *testing.T) {
	mod, err := Parse("x = b'ab'\n")
	require.NoError(t, err)
	lit, ok := mod.Body[0].(*pyast.Assign).Value.(*pyast.StringLit)
	require.True(t, ok)
	assert.True(t, lit.Bytes)
	assert.Equal(t, "ab", lit.Value)
	assert.Equal(t, "x = b'ab'\n", Print(mod))
}

func TestParseBytesEscapesAndPrinting(t *testing.T) {
	mod, err := Parse(`x = b'\x00\xff'` + "\n")
	require.NoError(t, err)
	lit := mod.Body[0].(*pyast.Assign).Value.(*pyast.StringLit)
	assert.Equal(t, "\x00\xff", lit.Value)
	// Bytes above 0x7f re-emit as hex escapes, never as raw bytes.
	assert.Equal(t, `x = b'\x00\xff'`+"\n", Print(mod))

	// \u is not an escape inside bytes literals.
	mod, err = Parse(`y = b'A'` + "\n")
	require.NoError(t, err)
	assert.Equal(t, `A`, mod.Body[0].(*pyast.Assign).Value.(*pyast.StringLit).Value)
}

func TestParseRejectsMixedBytesAndStr(t *testing.T) {
	_, err := Parse("x = 'a' b'b'\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot mix bytes and str")
}

func TestParseStringEscapes(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"bell", `x = '\a'`, "\a"},
		{"backspace", `x = '\b'`, "\b"},
		{"formfeed", `x = '\f'`, "\f"},
		{"vertical tab", `x = '\v'`, "\v"},
		{"nul", `x = '\0'`, "\x00"},
		{"octal", `x = '\101'`, "A"},
		{"octal short", `x = '\10'`, "\x08"},
		{"hex", `x = '\x41'`, "A"},
		{"unicode 16", `x = 'é'`, "é"},
		{"unicode 32", `x = '\U0001f600'`, "\U0001f600"},
		{"unknown keeps backslash", `x = '\q'`, `\q`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := Parse(tc.src + "\n")
			require.NoError(t, err)
			lit := mod.Body[0].(*pyast.Assign).Value.(*pyast.StringLit)
			assert.Equal(t, tc.want, lit.Value)

			// Printing must preserve the decoded value through a reparse.
			again, err := Parse(Print(mod))
			require.NoError(t, err)
			assert.Equal(t, tc.want, again.Body[0].(*pyast.Assign).Value.(*pyast.StringLit).Value)
		})
	}
}

func TestParseStringEscapeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"bad hex", `x = '\xzz'`},
		{"bad unicode", `x = '\u12'`},
		{"named escape", `x = '\N{BULLET}'`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src + "\n")
			require.Error(t, err)
		})
	}
}

// F-strings are carried through verbatim and never unpacked.
func TestFStringOpaque(t *testing.T) {
	src := "msg = f'count: {n}'\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	assign := mod.Body[0].(*pyast.Assign)
	fs, ok := assign.Value.(*pyast.FString)
	require.True(t, ok)
	assert.Equal(t, "f'count: {n}'", fs.Raw)
	assert.Contains(t, Print(mod), "f'count: {n}'")
}

func TestParseNumbers(t *testing.T) {
	src := "a = 42\nb = 0xff\nc = 0b101\nd = 3.14\ne = 1_000\n"
	mod, err := Parse(src)
	require.NoError(t, err)

	num := func(i int) *pyast.NumberLit {
		return mod.Body[i].(*pyast.Assign).Value.(*pyast.NumberLit)
	}
	assert.True(t, num(0).IsInt)
	assert.Equal(t, int64(42), num(0).IntVal)
	assert.True(t, num(1).IsInt)
	assert.Equal(t, int64(255), num(1).IntVal)
	assert.True(t, num(2).IsInt)
	assert.Equal(t, int64(5), num(2).IntVal)
	assert.False(t, num(3).IsInt)
	assert.True(t, num(4).IsInt)
	assert.Equal(t, int64(1000), num(4).IntVal)
}

func TestPrintPrecedence(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"x = (a + b) * c\n", "x = (a + b) * c\n"},
		{"x = a + b * c\n", "x = a + b * c\n"},
		{"x = -(a + b)\n", "x = -(a + b)\n"},
		{"x = (a or b) and c\n", "x = (a or b) and c\n"},
		{"x = a ** b ** c\n", "x = a ** b ** c\n"},
		{"x = (a ** b) ** c\n", "x = (a ** b) ** c\n"},
		{"x = (k * (k + 1)) % 2 == 0\n", "x = k * (k + 1) % 2 == 0\n"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, reprint(t, tc.src), "source: %s", tc.src)
	}
}

func TestPrintSingleElementTuple(t *testing.T) {
	got := reprint(t, "x = (1,)\n")
	assert.Equal(t, "x = (1,)\n", got)
	// A second round trip must keep it a tuple, not collapse to grouping.
	assert.Equal(t, got, reprint(t, got))
}

func TestPrintStringEscapes(t *testing.T) {
	mod, err := Parse("s = 'tab\\there'\nq = \"it's\"\n")
	require.NoError(t, err)
	out := Print(mod)
	assert.Contains(t, out, `'tab\there'`)
	assert.Contains(t, out, `"it's"`)
}

func TestUnsupportedStatements(t *testing.T) {
	for _, src := range []string{
		"assert x\n",
		"del x\n",
		"async def f():\n    pass\n",
		"match x:\n    case 1:\n        pass\n",
	} {
		_, err := Parse(src)
		assert.Error(t, err, "expected parse error for: %s", strings.TrimSpace(src))
	}
}

func TestEmptyBodyPrintsPass(t *testing.T) {
	mod := &pyast.Module{}
	assert.Equal(t, "pass\n", Print(mod))
}
