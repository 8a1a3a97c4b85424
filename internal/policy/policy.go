// Package policy decides which identifiers survive renaming. Rules are
// checked in a fixed order and the first match wins; anything not protected
// is fair game for the scrambler.
package policy

import (
	"path/filepath"
	"strings"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/resolver"
)

// RuntimePrefix is reserved for the decode helpers the string pass emits.
// User identifiers carrying it are left alone so the helpers never collide.
const RuntimePrefix = "_pymix_"

// Reason explains why a name was protected. Used in debug reporting.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonRuntime    Reason = "runtime helper prefix"
	ReasonDunder     Reason = "dunder name"
	ReasonBuiltin    Reason = "builtin"
	ReasonImport     Reason = "imported name"
	ReasonClassScope Reason = "class attribute"
	ReasonKeywordArg Reason = "keyword argument of external callee"
	ReasonFString    Reason = "referenced inside f-string"
	ReasonEntryPoint Reason = "entry point"
	ReasonConfigured Reason = "configured ignore list"
)

// Policy answers protection queries for one module.
type Policy struct {
	cfg *config.Config

	table *resolver.Table
	// params named as keyword arguments of calls whose callee cannot be
	// resolved to a local function definition
	externalKw map[string]bool
	// local function symbol each call site resolves to, for keyword renaming
	callees map[*pyast.Call]*resolver.Symbol
	// definition node for each local function symbol
	funcOf map[*resolver.Symbol]*pyast.FunctionDef
	// identifiers appearing inside f-string replacement fields; f-strings
	// are opaque to the rewriter, so these names must not change
	fstringNames map[string]bool
}

// Build computes the protection policy for mod given its resolution table.
func Build(mod *pyast.Module, table *resolver.Table, cfg *config.Config) *Policy {
	p := &Policy{
		cfg:          cfg,
		table:        table,
		externalKw:   make(map[string]bool),
		callees:      make(map[*pyast.Call]*resolver.Symbol),
		funcOf:       make(map[*resolver.Symbol]*pyast.FunctionDef),
		fstringNames: make(map[string]bool),
	}
	p.scan(mod)
	return p
}

func (p *Policy) scan(mod *pyast.Module) {
	pyast.Inspect(mod, func(n pyast.Node) bool {
		switch node := n.(type) {
		case *pyast.FunctionDef:
			if sym := p.table.Defs[node]; sym != nil {
				p.funcOf[sym] = node
			}
		case *pyast.FString:
			for _, name := range FStringNames(node.Raw) {
				p.fstringNames[name] = true
			}
		case *pyast.Call:
			if len(node.Keywords) == 0 {
				return true
			}
			if fn, ok := node.Func.(*pyast.Name); ok {
				if sym := p.table.Uses[fn]; sym != nil && sym.Kind == resolver.SymFunction {
					p.callees[node] = sym
					return true
				}
			}
			// Callee is an attribute, a builtin, or unresolvable: its
			// parameter names are part of an interface we cannot see.
			for _, kw := range node.Keywords {
				if kw.Name != "" {
					p.externalKw[kw.Name] = true
				}
			}
		}
		return true
	})
}

// Callee returns the local function symbol a call site resolves to, or nil
// when the callee is not a renameable local function.
func (p *Policy) Callee(call *pyast.Call) *resolver.Symbol { return p.callees[call] }

// FunctionDef returns the definition node of a local function symbol.
func (p *Policy) FunctionDef(sym *resolver.Symbol) *pyast.FunctionDef { return p.funcOf[sym] }

// ProtectedName applies the purely name-based rules. It is used both for
// symbol checks and for deciding whether a free-standing occurrence may be
// rewritten.
func (p *Policy) ProtectedName(name string) Reason {
	if strings.HasPrefix(name, RuntimePrefix) {
		return ReasonRuntime
	}
	if name == "_" || (strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")) {
		return ReasonDunder
	}
	if resolver.IsBuiltin(name) {
		return ReasonBuiltin
	}
	if p.cfg.Obfuscation.Entry.Preserve && name == p.cfg.Obfuscation.Entry.Name {
		return ReasonEntryPoint
	}
	for _, ignored := range p.cfg.Obfuscation.Ignore.Names {
		if name == ignored {
			return ReasonConfigured
		}
	}
	for _, pat := range p.cfg.Obfuscation.Ignore.Patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return ReasonConfigured
		}
	}
	return ReasonNone
}

// Protected reports whether a symbol must keep its name, and why.
func (p *Policy) Protected(sym *resolver.Symbol) Reason {
	if reason := p.ProtectedName(sym.Name); reason != ReasonNone {
		return reason
	}
	if sym.Kind == resolver.SymImport {
		return ReasonImport
	}
	// Names bound in class bodies are reachable as attributes, which the
	// resolver cannot see through.
	if p.table.Scopes[sym.Scope].Kind == resolver.ScopeClass {
		return ReasonClassScope
	}
	if sym.Kind == resolver.SymParam && p.externalKw[sym.Name] {
		return ReasonKeywordArg
	}
	if p.fstringNames[sym.Name] {
		return ReasonFString
	}
	return ReasonNone
}

// FStringNames extracts the identifiers appearing inside the replacement
// fields of a raw f-string literal. Doubled braces are literal text. The scan
// is conservative: every identifier-shaped token inside braces counts, so a
// format spec like {v:>10} only yields v.
func FStringNames(raw string) []string {
	var names []string
	seen := make(map[string]bool)
	depth := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{' && depth == 0:
			i++
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}' && depth == 0:
			i++
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth > 0 && isIdentStart(c):
			j := i
			for j < len(raw) && isIdentPart(raw[j]) {
				j++
			}
			name := raw[i:j]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i = j - 1
		}
	}
	return names
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
