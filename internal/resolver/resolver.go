// Package resolver builds the scope tree for a module and resolves every
// identifier occurrence to the symbol it names. The output table is what the
// renaming pass consults: two occurrences rename together exactly when they
// resolve to the same symbol.
package resolver

import (
	"fmt"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// ScopeKind classifies a scope.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeClass
	ScopeComprehension
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeComprehension:
		return "comprehension"
	}
	return "unknown"
}

// SymbolKind classifies what a symbol was bound by.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymClass
	SymParam
	SymImport
)

// Symbol is one binding. All occurrences of a name that resolve to the same
// Symbol are renamed together.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Scope int // owning scope id
	Pos   pyast.Pos
}

// Scope is one node of the scope tree. Scopes live in an arena indexed by id;
// Parent is -1 for the module scope.
type Scope struct {
	ID        int
	Parent    int
	Kind      ScopeKind
	Bindings  map[string]*Symbol
	globals   map[string]bool
	nonlocals map[string]bool
}

// Unresolved records a reference that could not be resolved to any binding.
type Unresolved struct {
	Name string
	Pos  pyast.Pos
}

func (u Unresolved) String() string {
	return fmt.Sprintf("%d:%d: unresolved reference %q", u.Pos.Line, u.Pos.Col, u.Name)
}

// Table is the result of resolving one module.
type Table struct {
	Scopes     []*Scope
	Uses       map[*pyast.Name]*Symbol
	Defs       map[pyast.Node]*Symbol   // FunctionDef, ClassDef, Param, ExceptHandler, Alias
	Decls      map[pyast.Stmt][]*Symbol // Global and Nonlocal statements, index-aligned with Names
	Unresolved []Unresolved
}

// ModuleScope returns the root scope.
func (t *Table) ModuleScope() *Scope { return t.Scopes[0] }

// Resolve builds the scope tree for mod and resolves every name occurrence.
// Resolution never fails hard: references without a binding are collected in
// Table.Unresolved and left for the caller to report.
func Resolve(mod *pyast.Module) *Table {
	r := &resolver{
		table: &Table{
			Uses:  make(map[*pyast.Name]*Symbol),
			Defs:  make(map[pyast.Node]*Symbol),
			Decls: make(map[pyast.Stmt][]*Symbol),
		},
	}
	root := r.newScope(-1, ScopeModule)
	r.bindBlock(mod.Body, root)
	r.resolveStmts(mod.Body, root)
	return r.table
}

type resolver struct {
	table *Table
	// scopeOf remembers which scope each scope-opening node created, so the
	// resolve phase can revisit it without replaying creation order.
	scopeOf map[pyast.Node]int
}

func (r *resolver) newScope(parent int, kind ScopeKind) int {
	if r.scopeOf == nil {
		r.scopeOf = make(map[pyast.Node]int)
	}
	id := len(r.table.Scopes)
	r.table.Scopes = append(r.table.Scopes, &Scope{
		ID:        id,
		Parent:    parent,
		Kind:      kind,
		Bindings:  make(map[string]*Symbol),
		globals:   make(map[string]bool),
		nonlocals: make(map[string]bool),
	})
	return id
}

func (r *resolver) scope(id int) *Scope { return r.table.Scopes[id] }

// bind adds a binding for name in scope unless a global or nonlocal
// declaration redirects it, or the name is already bound there.
func (r *resolver) bind(name string, kind SymbolKind, scopeID int, pos pyast.Pos) *Symbol {
	sc := r.scope(scopeID)
	if sc.globals[name] && scopeID != 0 {
		return r.bind(name, kind, 0, pos)
	}
	if sc.nonlocals[name] {
		// Deferred: resolved against enclosing functions after their blocks
		// are fully bound.
		return nil
	}
	if sym, ok := sc.Bindings[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name, Kind: kind, Scope: scopeID, Pos: pos}
	sc.Bindings[name] = sym
	return sym
}

func (r *resolver) enclosingFunctionBinding(scopeID int, name string) *Symbol {
	for id := scopeID; id > 0; {
		sc := r.scope(id)
		if sc.Kind == ScopeFunction {
			if sym, ok := sc.Bindings[name]; ok {
				return sym
			}
		}
		id = sc.Parent
	}
	return nil
}

// --- binding phase ---

// bindBlock binds a scope body in three passes: declarations, then every name
// bound directly in this scope, then nested scopes. Binding all local names
// before descending lets closures see bindings made later in the block.
func (r *resolver) bindBlock(stmts []pyast.Stmt, scopeID int) {
	r.walkShallow(stmts, func(s pyast.Stmt) {
		sc := r.scope(scopeID)
		switch n := s.(type) {
		case *pyast.Global:
			for _, name := range n.Names {
				sc.globals[name] = true
			}
		case *pyast.Nonlocal:
			for _, name := range n.Names {
				sc.nonlocals[name] = true
			}
		}
	})
	r.walkShallow(stmts, func(s pyast.Stmt) {
		r.bindShallow(s, scopeID)
	})
	r.walkShallow(stmts, func(s pyast.Stmt) {
		r.bindNested(s, scopeID)
	})
}

// walkShallow visits every statement in the block, descending into compound
// statement bodies but never into nested def, class, lambda or comprehension
// scopes.
func (r *resolver) walkShallow(stmts []pyast.Stmt, f func(pyast.Stmt)) {
	for _, s := range stmts {
		f(s)
		switch n := s.(type) {
		case *pyast.If:
			r.walkShallow(n.Body, f)
			r.walkShallow(n.Else, f)
		case *pyast.While:
			r.walkShallow(n.Body, f)
			r.walkShallow(n.Else, f)
		case *pyast.For:
			r.walkShallow(n.Body, f)
			r.walkShallow(n.Else, f)
		case *pyast.Try:
			r.walkShallow(n.Body, f)
			for _, h := range n.Handlers {
				r.walkShallow(h.Body, f)
			}
			r.walkShallow(n.Else, f)
			r.walkShallow(n.Finally, f)
		case *pyast.With:
			r.walkShallow(n.Body, f)
		}
	}
}

func (r *resolver) bindShallow(s pyast.Stmt, scopeID int) {
	switch n := s.(type) {
	case *pyast.FunctionDef:
		if sym := r.bind(n.Name, SymFunction, scopeID, n.Pos); sym != nil {
			r.table.Defs[n] = sym
		}
	case *pyast.ClassDef:
		if sym := r.bind(n.Name, SymClass, scopeID, n.Pos); sym != nil {
			r.table.Defs[n] = sym
		}
	case *pyast.Assign:
		for _, t := range n.Targets {
			r.bindTarget(t, scopeID)
		}
	case *pyast.AugAssign:
		r.bindTarget(n.Target, scopeID)
	case *pyast.For:
		r.bindTarget(n.Target, scopeID)
	case *pyast.With:
		for _, it := range n.Items {
			if it.As != nil {
				r.bindTarget(it.As, scopeID)
			}
		}
	case *pyast.Try:
		for _, h := range n.Handlers {
			if h.Name != "" {
				if sym := r.bind(h.Name, SymVariable, scopeID, h.Pos); sym != nil {
					r.table.Defs[h] = sym
				}
			}
		}
	case *pyast.Import:
		for _, a := range n.Names {
			if sym := r.bind(importBoundName(a), SymImport, scopeID, a.Pos); sym != nil {
				r.table.Defs[a] = sym
			}
		}
	case *pyast.ImportFrom:
		for _, a := range n.Names {
			if a.Name == "*" {
				continue
			}
			bound := a.AsName
			if bound == "" {
				bound = a.Name
			}
			if sym := r.bind(bound, SymImport, scopeID, a.Pos); sym != nil {
				r.table.Defs[a] = sym
			}
		}
	}
}

// bindNested opens and binds nested scopes, and records the symbols that
// global/nonlocal statements refer to now that enclosing blocks are bound.
func (r *resolver) bindNested(s pyast.Stmt, scopeID int) {
	switch n := s.(type) {
	case *pyast.FunctionDef:
		for _, d := range n.Decorators {
			r.bindExprScopes(d, scopeID)
		}
		inner := r.newScope(scopeID, ScopeFunction)
		r.scopeOf[n] = inner
		for _, prm := range n.Params {
			if prm.Default != nil {
				r.bindExprScopes(prm.Default, scopeID)
			}
			if sym := r.bind(prm.Name, SymParam, inner, prm.Pos); sym != nil {
				r.table.Defs[prm] = sym
			}
		}
		r.bindBlock(n.Body, inner)
	case *pyast.ClassDef:
		for _, d := range n.Decorators {
			r.bindExprScopes(d, scopeID)
		}
		for _, b := range n.Bases {
			r.bindExprScopes(b, scopeID)
		}
		inner := r.newScope(scopeID, ScopeClass)
		r.scopeOf[n] = inner
		r.bindBlock(n.Body, inner)
	case *pyast.Assign:
		r.bindExprScopes(n.Value, scopeID)
		for _, t := range n.Targets {
			r.bindExprScopes(t, scopeID)
		}
	case *pyast.AugAssign:
		r.bindExprScopes(n.Value, scopeID)
	case *pyast.ExprStmt:
		r.bindExprScopes(n.Value, scopeID)
	case *pyast.Return:
		r.bindExprScopes(n.Value, scopeID)
	case *pyast.If:
		r.bindExprScopes(n.Cond, scopeID)
	case *pyast.While:
		r.bindExprScopes(n.Cond, scopeID)
	case *pyast.For:
		r.bindExprScopes(n.Iter, scopeID)
	case *pyast.Raise:
		r.bindExprScopes(n.Exc, scopeID)
		r.bindExprScopes(n.Cause, scopeID)
	case *pyast.Try:
		for _, h := range n.Handlers {
			r.bindExprScopes(h.Type, scopeID)
		}
	case *pyast.With:
		for _, it := range n.Items {
			r.bindExprScopes(it.Context, scopeID)
		}
	case *pyast.Global:
		syms := make([]*Symbol, len(n.Names))
		for i, name := range n.Names {
			syms[i] = r.bind(name, SymVariable, 0, n.Pos)
		}
		r.table.Decls[n] = syms
	case *pyast.Nonlocal:
		syms := make([]*Symbol, len(n.Names))
		for i, name := range n.Names {
			syms[i] = r.enclosingFunctionBinding(r.scope(scopeID).Parent, name)
		}
		r.table.Decls[n] = syms
	}
}

// importBoundName returns the local name an import alias binds: the alias if
// present, otherwise the first segment of the dotted path.
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

func (r *resolver) bindTarget(e pyast.Expr, scopeID int) {
	switch n := e.(type) {
	case *pyast.Name:
		r.bind(n.ID, SymVariable, scopeID, n.Pos)
	case *pyast.TupleLit:
		for _, el := range n.Elts {
			r.bindTarget(el, scopeID)
		}
	case *pyast.ListLit:
		for _, el := range n.Elts {
			r.bindTarget(el, scopeID)
		}
	case *pyast.Starred:
		r.bindTarget(n.Value, scopeID)
	}
	// Attribute and Subscript targets bind nothing themselves.
}

// bindExprScopes finds lambdas and comprehensions inside an expression and
// opens their scopes.
func (r *resolver) bindExprScopes(e pyast.Expr, scopeID int) {
	if e == nil {
		return
	}
	pyast.Inspect(e, func(child pyast.Node) bool {
		switch c := child.(type) {
		case *pyast.Lambda:
			inner := r.newScope(scopeID, ScopeFunction)
			r.scopeOf[c] = inner
			for _, prm := range c.Params {
				if prm.Default != nil {
					r.bindExprScopes(prm.Default, scopeID)
				}
				if sym := r.bind(prm.Name, SymParam, inner, prm.Pos); sym != nil {
					r.table.Defs[prm] = sym
				}
			}
			r.bindExprScopes(c.Body, inner)
			return false
		case *pyast.ListComp:
			inner := r.newScope(scopeID, ScopeComprehension)
			r.scopeOf[c] = inner
			for i, g := range c.Generators {
				if i == 0 {
					r.bindExprScopes(g.Iter, scopeID)
				} else {
					r.bindExprScopes(g.Iter, inner)
				}
				r.bindTarget(g.Target, inner)
				for _, cond := range g.Ifs {
					r.bindExprScopes(cond, inner)
				}
			}
			r.bindExprScopes(c.Elt, inner)
			return false
		}
		return true
	})
}
