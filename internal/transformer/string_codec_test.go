package transformer

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/pysrc"
)

func newEncoder(min, max int, seed int64) *StringEncoder {
	passCfg := &config.StringsConfig{Enabled: true, MinLayers: min, MaxLayers: max, SkipDocstrings: true}
	return NewStringEncoder(passCfg, rand.New(rand.NewSource(seed)))
}

func TestLayerRoundTrips(t *testing.T) {
	samples := []string{"hello", "a", "with spaces and\ttabs", "line\nbreak", "!@#$%^&*()"}
	for id := 0; id < numLayers; id++ {
		for _, s := range samples {
			encoded := encodeLayer(id, s)
			decoded, err := decodeLayer(id, encoded)
			require.NoError(t, err, "layer %s on %q", LayerName(id), s)
			assert.Equal(t, s, decoded, "layer %s on %q", LayerName(id), s)
		}
	}
}

func TestLayerStacksRoundTrip(t *testing.T) {
	stacks := [][]int{
		{LayerReverse, LayerBase64},
		{LayerBase64, LayerRot13, LayerHex},
		{LayerHex, LayerReverse, LayerRot13, LayerBase64},
	}
	for _, stack := range stacks {
		encoded := "hello"
		for _, id := range stack {
			encoded = encodeLayer(id, encoded)
		}
		decoded := encoded
		for i := len(stack) - 1; i >= 0; i-- {
			var err error
			decoded, err = decodeLayer(stack[i], decoded)
			require.NoError(t, err, "stack %v", stack)
		}
		assert.Equal(t, "hello", decoded, "stack %v", stack)
	}
}

func TestRot13LosesWideRunes(t *testing.T) {
	encoded := encodeLayer(LayerRot13, "日本語")
	decoded, err := decodeLayer(LayerRot13, encoded)
	require.NoError(t, err)
	assert.NotEqual(t, "日本語", decoded, "code points above 255 cannot survive the byte rotation")
}

func TestRot13DecodeRejectsWideRunes(t *testing.T) {
	_, err := decodeLayer(LayerRot13, "日本語")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside byte range")
}

func TestEncoderRewritesLiterals(t *testing.T) {
	mod, err := pysrc.Parse("x = 'hello'\nprint('world')\n")
	require.NoError(t, err)

	e := newEncoder(1, 4, 11)
	e.Apply(mod)
	assert.Equal(t, 2, e.Count())
	assert.Empty(t, e.Warnings())

	out := pysrc.Print(mod)
	assert.Contains(t, out, decodeFuncName+"(")
	assert.NotContains(t, out, "'hello'")
	assert.NotContains(t, out, "'world'")

	_, err = pysrc.Parse(out)
	assert.NoError(t, err)
}

func TestEncoderPrependsRuntimeOnce(t *testing.T) {
	mod, err := pysrc.Parse("x = 'a'\ny = 'b'\n")
	require.NoError(t, err)
	before := len(mod.Body)

	e := newEncoder(1, 2, 12)
	e.Apply(mod)

	runtime := len(DecodeRuntime())
	require.Len(t, mod.Body, before+runtime)
	fn, ok := mod.Body[0].(*pyast.FunctionDef)
	require.True(t, ok, "runtime helpers lead the module body")
	assert.True(t, strings.HasPrefix(fn.Name, "_pymix_"))
}

func TestEncoderRuntimeAfterDocstring(t *testing.T) {
	mod, err := pysrc.Parse("'''module doc'''\nx = 'payload'\n")
	require.NoError(t, err)

	e := newEncoder(1, 4, 13)
	e.Apply(mod)
	require.Equal(t, 1, e.Count())

	es, ok := mod.Body[0].(*pyast.ExprStmt)
	require.True(t, ok)
	doc, ok := es.Value.(*pyast.StringLit)
	require.True(t, ok)
	assert.Equal(t, "module doc", doc.Value)

	_, ok = mod.Body[1].(*pyast.FunctionDef)
	assert.True(t, ok, "runtime goes right after the docstring")
}

func TestEncoderSkipsDocstrings(t *testing.T) {
	source := "'''module doc'''\ndef f():\n    '''fn doc'''\n    return 'secret'\n"
	mod, err := pysrc.Parse(source)
	require.NoError(t, err)

	e := newEncoder(1, 4, 14)
	e.Apply(mod)
	assert.Equal(t, 1, e.Count())

	out := pysrc.Print(mod)
	assert.Contains(t, out, "module doc")
	assert.Contains(t, out, "fn doc")
	assert.NotContains(t, out, "'secret'")
}

func TestEncoderSkipsEmptyStrings(t *testing.T) {
	mod, err := pysrc.Parse("x = ''\n")
	require.NoError(t, err)
	e := newEncoder(1, 4, 15)
	e.Apply(mod)
	assert.Zero(t, e.Count())
	assert.Len(t, mod.Body, 1, "no runtime without encoded literals")
}

func TestEncoderSkipsBytesLiterals(t *testing.T) {
	// The decode helpers return str, so encoding a bytes literal would
	// change its type.
	mod, err := pysrc.Parse("payload = b'\\x00\\x01'\ntext = 'hello'\n")
	require.NoError(t, err)
	e := newEncoder(1, 4, 17)
	e.Apply(mod)

	assert.Equal(t, 1, e.Count())
	out := pysrc.Print(mod)
	assert.Contains(t, out, "b'\\x00\\x01'")
	assert.NotContains(t, out, "hello")
}

func TestEncoderWideRuneFallback(t *testing.T) {
	// Single-layer stacks draw rot13 often enough that some wide-rune
	// literals must fail the round trip and fall back to clear text.
	e := newEncoder(1, 1, 16)
	total := 100
	var fallbacks int
	for i := 0; i < total; i++ {
		lit := &pyast.StringLit{Value: fmt.Sprintf("характеристика-%d", i)}
		result := e.encodeLiteral(lit)
		if result == pyast.Expr(lit) {
			fallbacks++
		}
	}
	require.NotEmpty(t, e.Warnings())
	assert.Equal(t, len(e.Warnings()), fallbacks, "every warning leaves its literal unchanged")
	assert.Equal(t, total, e.Count()+fallbacks)

	var rtErr *RoundTripError
	require.ErrorAs(t, e.Warnings()[0], &rtErr)
	assert.Contains(t, rtErr.Layers, LayerRot13)
}
