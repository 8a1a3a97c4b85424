// Package transformer implements the AST transformation passes. Each pass is
// a struct holding its dependencies, with an Apply method that mutates the
// module in place. The pipeline in the obfuscator package decides ordering.
package transformer

import (
	"sort"

	"github.com/whit3rabbit/pymixer/internal/policy"
	"github.com/whit3rabbit/pymixer/internal/pyast"
	"github.com/whit3rabbit/pymixer/internal/resolver"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

// Renamer rewrites every occurrence of unprotected symbols with names drawn
// from the scrambler.
type Renamer struct {
	Table     *resolver.Table
	Policy    *policy.Policy
	Scrambler *scrambler.Scrambler

	newNames map[*resolver.Symbol]string
}

// NewRenamer builds a renamer for one module.
func NewRenamer(table *resolver.Table, pol *policy.Policy, scr *scrambler.Scrambler) *Renamer {
	return &Renamer{
		Table:     table,
		Policy:    pol,
		Scrambler: scr,
		newNames:  make(map[*resolver.Symbol]string),
	}
}

// Apply renames all unprotected symbols in mod. It fails only when no unique
// replacement name can be generated.
func (r *Renamer) Apply(mod *pyast.Module) error {
	r.reserveSourceNames(mod)
	if err := r.assignNames(); err != nil {
		return err
	}
	r.rewrite(mod)
	return nil
}

// Renamed returns the symbols renamed in this module with their new names.
func (r *Renamer) Renamed() map[*resolver.Symbol]string { return r.newNames }

// reserveSourceNames marks every identifier appearing in the module as taken,
// so generated names never shadow anything the source refers to.
func (r *Renamer) reserveSourceNames(mod *pyast.Module) {
	pyast.Inspect(mod, func(n pyast.Node) bool {
		switch node := n.(type) {
		case *pyast.Name:
			r.Scrambler.Reserve(node.ID)
		case *pyast.FunctionDef:
			r.Scrambler.Reserve(node.Name)
		case *pyast.ClassDef:
			r.Scrambler.Reserve(node.Name)
		case *pyast.Param:
			r.Scrambler.Reserve(node.Name)
		case *pyast.Attribute:
			r.Scrambler.Reserve(node.Attr)
		case *pyast.Keyword:
			if node.Name != "" {
				r.Scrambler.Reserve(node.Name)
			}
		case *pyast.ExceptHandler:
			if node.Name != "" {
				r.Scrambler.Reserve(node.Name)
			}
		case *pyast.Alias:
			r.Scrambler.Reserve(importBoundName(node))
		case *pyast.FString:
			for _, name := range policy.FStringNames(node.Raw) {
				r.Scrambler.Reserve(name)
			}
		case *pyast.Global:
			for _, name := range node.Names {
				r.Scrambler.Reserve(name)
			}
		case *pyast.Nonlocal:
			for _, name := range node.Names {
				r.Scrambler.Reserve(name)
			}
		}
		return true
	})
}

func importBoundName(a *pyast.Alias) string {
	if a.AsName != "" {
		return a.AsName
	}
	name := a.Name
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

// assignNames draws a replacement for every unprotected symbol. Symbols are
// visited in a deterministic order so the same seed yields the same names.
func (r *Renamer) assignNames() error {
	type scopedSym struct {
		scope int
		name  string
		sym   *resolver.Symbol
	}
	var all []scopedSym
	seen := make(map[*resolver.Symbol]bool)
	for _, sc := range r.Table.Scopes {
		for name, sym := range sc.Bindings {
			if sym == nil || seen[sym] {
				continue
			}
			seen[sym] = true
			all = append(all, scopedSym{scope: sc.ID, name: name, sym: sym})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].scope != all[j].scope {
			return all[i].scope < all[j].scope
		}
		return all[i].name < all[j].name
	})
	for _, entry := range all {
		if r.Policy.Protected(entry.sym) != policy.ReasonNone {
			continue
		}
		replacement, err := r.Scrambler.Scramble(entry.sym.Name)
		if err != nil {
			return err
		}
		r.newNames[entry.sym] = replacement
	}
	return nil
}

// rewrite applies the computed names to every occurrence: uses, definitions,
// global/nonlocal declarations, and keyword arguments of local calls.
func (r *Renamer) rewrite(mod *pyast.Module) {
	pyast.Inspect(mod, func(n pyast.Node) bool {
		switch node := n.(type) {
		case *pyast.Name:
			if sym := r.Table.Uses[node]; sym != nil {
				if newName, ok := r.newNames[sym]; ok {
					node.ID = newName
				}
			}
		case *pyast.FunctionDef:
			if sym := r.Table.Defs[node]; sym != nil {
				if newName, ok := r.newNames[sym]; ok {
					node.Name = newName
				}
			}
		case *pyast.ClassDef:
			if sym := r.Table.Defs[node]; sym != nil {
				if newName, ok := r.newNames[sym]; ok {
					node.Name = newName
				}
			}
		case *pyast.Param:
			if sym := r.Table.Defs[node]; sym != nil {
				if newName, ok := r.newNames[sym]; ok {
					node.Name = newName
				}
			}
		case *pyast.ExceptHandler:
			if sym := r.Table.Defs[node]; sym != nil {
				if newName, ok := r.newNames[sym]; ok {
					node.Name = newName
				}
			}
		case *pyast.Global:
			r.rewriteDecl(node, node.Names)
		case *pyast.Nonlocal:
			r.rewriteDecl(node, node.Names)
		case *pyast.Call:
			r.rewriteKeywords(node)
		}
		return true
	})
}

func (r *Renamer) rewriteDecl(stmt pyast.Stmt, names []string) {
	syms := r.Table.Decls[stmt]
	for i, sym := range syms {
		if sym == nil {
			continue
		}
		if newName, ok := r.newNames[sym]; ok {
			names[i] = newName
		}
	}
}

// rewriteKeywords renames keyword arguments at calls that resolve to a local
// function whose parameters were renamed. Keyword names are matched against
// the parameters' original names, which symbols retain.
func (r *Renamer) rewriteKeywords(call *pyast.Call) {
	funcSym := r.Policy.Callee(call)
	if funcSym == nil {
		return
	}
	def := r.Policy.FunctionDef(funcSym)
	if def == nil {
		return
	}
	for _, kw := range call.Keywords {
		if kw.Name == "" {
			continue
		}
		for _, prm := range def.Params {
			prmSym := r.Table.Defs[prm]
			if prmSym == nil || prmSym.Name != kw.Name {
				continue
			}
			if newName, ok := r.newNames[prmSym]; ok {
				kw.Name = newName
			}
			break
		}
	}
}
