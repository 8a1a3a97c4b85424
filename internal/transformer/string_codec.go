package transformer

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// Layer identifiers. The values index the dispatch table the emitted runtime
// carries, so they are part of the output format and must not change.
const (
	LayerBase64 = iota
	LayerRot13
	LayerReverse
	LayerHex

	numLayers
)

// LayerName returns the configuration name of a layer id.
func LayerName(id int) string {
	switch id {
	case LayerBase64:
		return config.StringLayerBase64
	case LayerRot13:
		return config.StringLayerRot13
	case LayerReverse:
		return config.StringLayerReverse
	case LayerHex:
		return config.StringLayerHex
	}
	return "unknown"
}

// RoundTripError reports a literal whose encoding did not decode back to the
// original text. The literal is left in clear text and processing continues.
type RoundTripError struct {
	Literal string
	Layers  []int
	Pos     pyast.Pos
}

func (e *RoundTripError) Error() string {
	names := make([]string, len(e.Layers))
	for i, id := range e.Layers {
		names[i] = LayerName(id)
	}
	return fmt.Sprintf("%d:%d: string encoding round trip failed for layers %v", e.Pos.Line, e.Pos.Col, names)
}

// StringEncoder replaces string literals with decode calls layered over one
// to four reversible transforms.
type StringEncoder struct {
	Cfg *config.StringsConfig
	Rng *rand.Rand

	count    int
	warnings []error
}

// NewStringEncoder builds the pass from its config section.
func NewStringEncoder(cfg *config.StringsConfig, rng *rand.Rand) *StringEncoder {
	return &StringEncoder{Cfg: cfg, Rng: rng}
}

// Count returns the number of literals encoded.
func (e *StringEncoder) Count() int { return e.count }

// Warnings returns per-literal round trip failures.
func (e *StringEncoder) Warnings() []error { return e.warnings }

// Apply encodes every eligible string literal in mod and, when at least one
// literal was encoded, prepends the decode runtime. Bytes literals are left
// alone: the decode helpers produce str, not bytes.
func (e *StringEncoder) Apply(mod *pyast.Module) {
	skip := e.collectSkipped(mod)
	pyast.RewriteExprs(mod.Body, true, func(expr pyast.Expr) pyast.Expr {
		lit, ok := expr.(*pyast.StringLit)
		if !ok || skip[lit] || lit.Bytes || lit.Value == "" {
			return expr
		}
		return e.encodeLiteral(lit)
	})
	if e.count > 0 {
		mod.Body = insertAfterDocstring(mod.Body, DecodeRuntime())
	}
}

// collectSkipped marks literals the pass must leave alone: docstrings when
// configured, and f-strings are opaque nodes so they never reach the rewrite.
func (e *StringEncoder) collectSkipped(mod *pyast.Module) map[*pyast.StringLit]bool {
	skip := make(map[*pyast.StringLit]bool)
	if !e.Cfg.SkipDocstrings {
		return skip
	}
	markDoc := func(body []pyast.Stmt) {
		if len(body) == 0 {
			return
		}
		if es, ok := body[0].(*pyast.ExprStmt); ok {
			if lit, ok := es.Value.(*pyast.StringLit); ok {
				skip[lit] = true
			}
		}
	}
	markDoc(mod.Body)
	pyast.Inspect(mod, func(n pyast.Node) bool {
		switch node := n.(type) {
		case *pyast.FunctionDef:
			markDoc(node.Body)
		case *pyast.ClassDef:
			markDoc(node.Body)
		}
		return true
	})
	return skip
}

// encodeLiteral picks a random layer stack, applies it, verifies the round
// trip, and returns the decode call. On round trip failure the original
// literal is returned unchanged and a warning is recorded.
func (e *StringEncoder) encodeLiteral(lit *pyast.StringLit) pyast.Expr {
	n := e.Cfg.MinLayers
	if e.Cfg.MaxLayers > e.Cfg.MinLayers {
		n += e.Rng.Intn(e.Cfg.MaxLayers - e.Cfg.MinLayers + 1)
	}
	layers := e.Rng.Perm(numLayers)[:n]

	encoded := lit.Value
	for _, id := range layers {
		encoded = encodeLayer(id, encoded)
	}

	// The emitted runtime must be able to reverse the stack exactly.
	decoded := encoded
	for i := len(layers) - 1; i >= 0; i-- {
		var err error
		decoded, err = decodeLayer(layers[i], decoded)
		if err != nil {
			decoded = ""
			break
		}
	}
	if decoded != lit.Value {
		e.warnings = append(e.warnings, &RoundTripError{Literal: lit.Value, Layers: layers, Pos: lit.Pos})
		return lit
	}

	e.count++
	ids := make([]int64, len(layers))
	for i, id := range layers {
		ids[i] = int64(id)
	}
	return astutil.Call(decodeFuncName, astutil.Str(encoded), astutil.IntList(ids))
}

// encodeLayer applies one transform the way the emitted runtime reverses it.
func encodeLayer(id int, s string) string {
	switch id {
	case LayerBase64:
		return base64.StdEncoding.EncodeToString([]byte(s))
	case LayerRot13:
		runes := []rune(s)
		for i, r := range runes {
			runes[i] = (r + 13) % 256
		}
		return string(runes)
	case LayerReverse:
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	case LayerHex:
		return hex.EncodeToString([]byte(s))
	}
	return s
}

// decodeLayer mirrors the emitted decode helpers, bytewise-identically, so a
// successful Go round trip guarantees the runtime decodes correctly.
func decodeLayer(id int, s string) (string, error) {
	switch id {
	case LayerBase64:
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case LayerRot13:
		runes := []rune(s)
		for i, r := range runes {
			if r >= 256 {
				return "", fmt.Errorf("rot13 layer saw code point %d outside byte range", r)
			}
			runes[i] = (r - 13 + 256) % 256
		}
		return string(runes), nil
	case LayerReverse:
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	case LayerHex:
		raw, err := hex.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return s, nil
}

// insertAfterDocstring splices stmts into body, after a leading docstring if
// one is present.
func insertAfterDocstring(body []pyast.Stmt, stmts []pyast.Stmt) []pyast.Stmt {
	at := 0
	if astutil.IsDocstring(body, 0) {
		at = 1
	}
	out := make([]pyast.Stmt, 0, len(body)+len(stmts))
	out = append(out, body[:at]...)
	out = append(out, stmts...)
	out = append(out, body[at:]...)
	return out
}
