package resolver

import (
	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// lookup resolves name starting at scopeID. The chain skips class scopes
// unless they are the innermost scope, and honors global and nonlocal
// redirections declared in the starting scope.
func (r *resolver) lookup(name string, scopeID int) *Symbol {
	start := r.scope(scopeID)
	if start.globals[name] {
		return r.table.Scopes[0].Bindings[name]
	}
	if start.nonlocals[name] {
		return r.enclosingFunctionBinding(start.Parent, name)
	}
	if sym, ok := start.Bindings[name]; ok {
		return sym
	}
	for id := start.Parent; id >= 0; {
		sc := r.scope(id)
		if sc.Kind != ScopeClass {
			if sym, ok := sc.Bindings[name]; ok {
				return sym
			}
		}
		id = sc.Parent
	}
	return nil
}

func (r *resolver) resolveName(n *pyast.Name, scopeID int) {
	sym := r.lookup(n.ID, scopeID)
	if sym == nil {
		if !IsBuiltin(n.ID) {
			r.table.Unresolved = append(r.table.Unresolved, Unresolved{Name: n.ID, Pos: n.Pos})
		}
		return
	}
	r.table.Uses[n] = sym
}

func (r *resolver) resolveStmts(stmts []pyast.Stmt, scopeID int) {
	for _, s := range stmts {
		r.resolveStmt(s, scopeID)
	}
}

func (r *resolver) resolveStmt(s pyast.Stmt, scopeID int) {
	switch n := s.(type) {
	case *pyast.FunctionDef:
		for _, d := range n.Decorators {
			r.resolveExpr(d, scopeID)
		}
		inner := r.scopeOf[n]
		for _, prm := range n.Params {
			if prm.Default != nil {
				r.resolveExpr(prm.Default, scopeID)
			}
		}
		r.resolveStmts(n.Body, inner)
	case *pyast.ClassDef:
		for _, d := range n.Decorators {
			r.resolveExpr(d, scopeID)
		}
		for _, b := range n.Bases {
			r.resolveExpr(b, scopeID)
		}
		r.resolveStmts(n.Body, r.scopeOf[n])
	case *pyast.Return:
		r.resolveExpr(n.Value, scopeID)
	case *pyast.Assign:
		r.resolveExpr(n.Value, scopeID)
		for _, t := range n.Targets {
			r.resolveExpr(t, scopeID)
		}
	case *pyast.AugAssign:
		r.resolveExpr(n.Target, scopeID)
		r.resolveExpr(n.Value, scopeID)
	case *pyast.ExprStmt:
		r.resolveExpr(n.Value, scopeID)
	case *pyast.If:
		r.resolveExpr(n.Cond, scopeID)
		r.resolveStmts(n.Body, scopeID)
		r.resolveStmts(n.Else, scopeID)
	case *pyast.While:
		r.resolveExpr(n.Cond, scopeID)
		r.resolveStmts(n.Body, scopeID)
		r.resolveStmts(n.Else, scopeID)
	case *pyast.For:
		r.resolveExpr(n.Target, scopeID)
		r.resolveExpr(n.Iter, scopeID)
		r.resolveStmts(n.Body, scopeID)
		r.resolveStmts(n.Else, scopeID)
	case *pyast.Raise:
		r.resolveExpr(n.Exc, scopeID)
		r.resolveExpr(n.Cause, scopeID)
	case *pyast.Try:
		r.resolveStmts(n.Body, scopeID)
		for _, h := range n.Handlers {
			r.resolveExpr(h.Type, scopeID)
			r.resolveStmts(h.Body, scopeID)
		}
		r.resolveStmts(n.Else, scopeID)
		r.resolveStmts(n.Finally, scopeID)
	case *pyast.With:
		for _, it := range n.Items {
			r.resolveExpr(it.Context, scopeID)
			r.resolveExpr(it.As, scopeID)
		}
		r.resolveStmts(n.Body, scopeID)
	}
}

func (r *resolver) resolveExpr(e pyast.Expr, scopeID int) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *pyast.Name:
		r.resolveName(n, scopeID)
	case *pyast.Lambda:
		inner := r.scopeOf[n]
		for _, prm := range n.Params {
			if prm.Default != nil {
				r.resolveExpr(prm.Default, scopeID)
			}
		}
		r.resolveExpr(n.Body, inner)
	case *pyast.ListComp:
		inner := r.scopeOf[n]
		for i, g := range n.Generators {
			if i == 0 {
				r.resolveExpr(g.Iter, scopeID)
			} else {
				r.resolveExpr(g.Iter, inner)
			}
			r.resolveExpr(g.Target, inner)
			for _, cond := range g.Ifs {
				r.resolveExpr(cond, inner)
			}
		}
		r.resolveExpr(n.Elt, inner)
	case *pyast.Call:
		r.resolveExpr(n.Func, scopeID)
		for _, a := range n.Args {
			r.resolveExpr(a, scopeID)
		}
		for _, k := range n.Keywords {
			r.resolveExpr(k.Value, scopeID)
		}
	case *pyast.Attribute:
		r.resolveExpr(n.Value, scopeID)
	case *pyast.Subscript:
		r.resolveExpr(n.Value, scopeID)
		r.resolveExpr(n.Index, scopeID)
	case *pyast.Slice:
		r.resolveExpr(n.Lo, scopeID)
		r.resolveExpr(n.Hi, scopeID)
		r.resolveExpr(n.Step, scopeID)
	case *pyast.BinOp:
		r.resolveExpr(n.Left, scopeID)
		r.resolveExpr(n.Right, scopeID)
	case *pyast.UnaryOp:
		r.resolveExpr(n.Operand, scopeID)
	case *pyast.BoolOp:
		for _, v := range n.Values {
			r.resolveExpr(v, scopeID)
		}
	case *pyast.Compare:
		r.resolveExpr(n.Left, scopeID)
		for _, c := range n.Comparators {
			r.resolveExpr(c, scopeID)
		}
	case *pyast.ListLit:
		for _, el := range n.Elts {
			r.resolveExpr(el, scopeID)
		}
	case *pyast.TupleLit:
		for _, el := range n.Elts {
			r.resolveExpr(el, scopeID)
		}
	case *pyast.DictLit:
		for i := range n.Keys {
			r.resolveExpr(n.Keys[i], scopeID)
			r.resolveExpr(n.Values[i], scopeID)
		}
	case *pyast.Yield:
		r.resolveExpr(n.Value, scopeID)
	case *pyast.Starred:
		r.resolveExpr(n.Value, scopeID)
	case *pyast.Conditional:
		r.resolveExpr(n.Cond, scopeID)
		r.resolveExpr(n.Body, scopeID)
		r.resolveExpr(n.Orelse, scopeID)
	}
}
