package pyast

// Visitor is the traversal callback pair used by every pass. EnterNode
// returning false prunes the subtree; LeaveNode always runs for entered nodes.
type Visitor interface {
	EnterNode(n Node) bool
	LeaveNode(n Node)
}

// NullVisitor provides default no-op implementations so visitors only
// override what they need.
type NullVisitor struct{}

func (NullVisitor) EnterNode(Node) bool { return true }
func (NullVisitor) LeaveNode(Node)      {}

// Walk traverses the tree rooted at n in source order, calling v on every
// non-nil node.
func Walk(n Node, v Visitor) {
	if n == nil {
		return
	}
	if !v.EnterNode(n) {
		v.LeaveNode(n)
		return
	}
	switch node := n.(type) {
	case *Module:
		walkStmts(node.Body, v)
	case *FunctionDef:
		walkExprs(node.Decorators, v)
		for _, p := range node.Params {
			Walk(p, v)
		}
		walkStmts(node.Body, v)
	case *Param:
		walkExpr(node.Default, v)
	case *ClassDef:
		walkExprs(node.Decorators, v)
		walkExprs(node.Bases, v)
		walkStmts(node.Body, v)
	case *Return:
		walkExpr(node.Value, v)
	case *Assign:
		walkExprs(node.Targets, v)
		walkExpr(node.Value, v)
	case *AugAssign:
		walkExpr(node.Target, v)
		walkExpr(node.Value, v)
	case *ExprStmt:
		walkExpr(node.Value, v)
	case *If:
		walkExpr(node.Cond, v)
		walkStmts(node.Body, v)
		walkStmts(node.Else, v)
	case *While:
		walkExpr(node.Cond, v)
		walkStmts(node.Body, v)
		walkStmts(node.Else, v)
	case *For:
		walkExpr(node.Target, v)
		walkExpr(node.Iter, v)
		walkStmts(node.Body, v)
		walkStmts(node.Else, v)
	case *Break, *Continue, *Pass, *Global, *Nonlocal, *Import, *ImportFrom:
		// leaves
	case *Raise:
		walkExpr(node.Exc, v)
		walkExpr(node.Cause, v)
	case *Try:
		walkStmts(node.Body, v)
		for _, h := range node.Handlers {
			Walk(h, v)
		}
		walkStmts(node.Else, v)
		walkStmts(node.Finally, v)
	case *ExceptHandler:
		walkExpr(node.Type, v)
		walkStmts(node.Body, v)
	case *With:
		for _, item := range node.Items {
			Walk(item, v)
		}
		walkStmts(node.Body, v)
	case *WithItem:
		walkExpr(node.Context, v)
		walkExpr(node.As, v)

	case *Name, *StringLit, *FString, *NumberLit, *BoolLit, *NoneLit:
		// leaves
	case *Call:
		walkExpr(node.Func, v)
		walkExprs(node.Args, v)
		for _, kw := range node.Keywords {
			Walk(kw, v)
		}
	case *Keyword:
		walkExpr(node.Value, v)
	case *Attribute:
		walkExpr(node.Value, v)
	case *Subscript:
		walkExpr(node.Value, v)
		walkExpr(node.Index, v)
	case *Slice:
		walkExpr(node.Lo, v)
		walkExpr(node.Hi, v)
		walkExpr(node.Step, v)
	case *BinOp:
		walkExpr(node.Left, v)
		walkExpr(node.Right, v)
	case *UnaryOp:
		walkExpr(node.Operand, v)
	case *BoolOp:
		walkExprs(node.Values, v)
	case *Compare:
		walkExpr(node.Left, v)
		walkExprs(node.Comparators, v)
	case *ListLit:
		walkExprs(node.Elts, v)
	case *TupleLit:
		walkExprs(node.Elts, v)
	case *DictLit:
		walkExprs(node.Keys, v)
		walkExprs(node.Values, v)
	case *Lambda:
		for _, p := range node.Params {
			Walk(p, v)
		}
		walkExpr(node.Body, v)
	case *Yield:
		walkExpr(node.Value, v)
	case *Starred:
		walkExpr(node.Value, v)
	case *ListComp:
		// Source order: the first iterable is evaluated in the enclosing
		// scope, then targets/ifs/element inside the comprehension scope.
		for _, g := range node.Generators {
			Walk(g, v)
		}
		walkExpr(node.Elt, v)
	case *CompFor:
		walkExpr(node.Target, v)
		walkExpr(node.Iter, v)
		walkExprs(node.Ifs, v)
	case *Conditional:
		walkExpr(node.Cond, v)
		walkExpr(node.Body, v)
		walkExpr(node.Orelse, v)
	}
	v.LeaveNode(n)
}

func walkStmts(stmts []Stmt, v Visitor) {
	for _, s := range stmts {
		Walk(s, v)
	}
}

func walkExpr(e Expr, v Visitor) {
	if e != nil {
		Walk(e, v)
	}
}

func walkExprs(exprs []Expr, v Visitor) {
	for _, e := range exprs {
		walkExpr(e, v)
	}
}

type inspector func(Node) bool

func (f inspector) EnterNode(n Node) bool { return f(n) }
func (f inspector) LeaveNode(Node)        {}

// Inspect traverses the tree calling f on every node; f returning false
// prunes that subtree.
func Inspect(n Node, f func(Node) bool) {
	Walk(n, inspector(f))
}

// RewriteExprs rewrites every expression reachable from the given statement
// list, bottom-up, replacing each expression with f's return value. Statement
// boundaries are not crossed into nested function or class bodies when
// recurse is false.
func RewriteExprs(stmts []Stmt, recurse bool, f func(Expr) Expr) {
	for _, s := range stmts {
		rewriteStmtExprs(s, recurse, f)
	}
}

func rewriteStmtExprs(s Stmt, recurse bool, f func(Expr) Expr) {
	switch node := s.(type) {
	case *FunctionDef:
		for i := range node.Decorators {
			node.Decorators[i] = rewriteExpr(node.Decorators[i], f)
		}
		for _, p := range node.Params {
			if p.Default != nil {
				p.Default = rewriteExpr(p.Default, f)
			}
		}
		if recurse {
			RewriteExprs(node.Body, recurse, f)
		}
	case *ClassDef:
		for i := range node.Decorators {
			node.Decorators[i] = rewriteExpr(node.Decorators[i], f)
		}
		for i := range node.Bases {
			node.Bases[i] = rewriteExpr(node.Bases[i], f)
		}
		if recurse {
			RewriteExprs(node.Body, recurse, f)
		}
	case *Return:
		if node.Value != nil {
			node.Value = rewriteExpr(node.Value, f)
		}
	case *Assign:
		for i := range node.Targets {
			node.Targets[i] = rewriteExpr(node.Targets[i], f)
		}
		node.Value = rewriteExpr(node.Value, f)
	case *AugAssign:
		node.Target = rewriteExpr(node.Target, f)
		node.Value = rewriteExpr(node.Value, f)
	case *ExprStmt:
		node.Value = rewriteExpr(node.Value, f)
	case *If:
		node.Cond = rewriteExpr(node.Cond, f)
		RewriteExprs(node.Body, recurse, f)
		RewriteExprs(node.Else, recurse, f)
	case *While:
		node.Cond = rewriteExpr(node.Cond, f)
		RewriteExprs(node.Body, recurse, f)
		RewriteExprs(node.Else, recurse, f)
	case *For:
		node.Target = rewriteExpr(node.Target, f)
		node.Iter = rewriteExpr(node.Iter, f)
		RewriteExprs(node.Body, recurse, f)
		RewriteExprs(node.Else, recurse, f)
	case *Raise:
		if node.Exc != nil {
			node.Exc = rewriteExpr(node.Exc, f)
		}
		if node.Cause != nil {
			node.Cause = rewriteExpr(node.Cause, f)
		}
	case *Try:
		RewriteExprs(node.Body, recurse, f)
		for _, h := range node.Handlers {
			if h.Type != nil {
				h.Type = rewriteExpr(h.Type, f)
			}
			RewriteExprs(h.Body, recurse, f)
		}
		RewriteExprs(node.Else, recurse, f)
		RewriteExprs(node.Finally, recurse, f)
	case *With:
		for _, item := range node.Items {
			item.Context = rewriteExpr(item.Context, f)
			if item.As != nil {
				item.As = rewriteExpr(item.As, f)
			}
		}
		RewriteExprs(node.Body, recurse, f)
	}
}

func rewriteExpr(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch node := e.(type) {
	case *Call:
		node.Func = rewriteExpr(node.Func, f)
		for i := range node.Args {
			node.Args[i] = rewriteExpr(node.Args[i], f)
		}
		for _, kw := range node.Keywords {
			kw.Value = rewriteExpr(kw.Value, f)
		}
	case *Attribute:
		node.Value = rewriteExpr(node.Value, f)
	case *Subscript:
		node.Value = rewriteExpr(node.Value, f)
		node.Index = rewriteExpr(node.Index, f)
	case *Slice:
		node.Lo = rewriteExpr(node.Lo, f)
		node.Hi = rewriteExpr(node.Hi, f)
		node.Step = rewriteExpr(node.Step, f)
	case *BinOp:
		node.Left = rewriteExpr(node.Left, f)
		node.Right = rewriteExpr(node.Right, f)
	case *UnaryOp:
		node.Operand = rewriteExpr(node.Operand, f)
	case *BoolOp:
		for i := range node.Values {
			node.Values[i] = rewriteExpr(node.Values[i], f)
		}
	case *Compare:
		node.Left = rewriteExpr(node.Left, f)
		for i := range node.Comparators {
			node.Comparators[i] = rewriteExpr(node.Comparators[i], f)
		}
	case *ListLit:
		for i := range node.Elts {
			node.Elts[i] = rewriteExpr(node.Elts[i], f)
		}
	case *TupleLit:
		for i := range node.Elts {
			node.Elts[i] = rewriteExpr(node.Elts[i], f)
		}
	case *DictLit:
		for i := range node.Keys {
			node.Keys[i] = rewriteExpr(node.Keys[i], f)
		}
		for i := range node.Values {
			node.Values[i] = rewriteExpr(node.Values[i], f)
		}
	case *Lambda:
		for _, p := range node.Params {
			if p.Default != nil {
				p.Default = rewriteExpr(p.Default, f)
			}
		}
		node.Body = rewriteExpr(node.Body, f)
	case *Yield:
		if node.Value != nil {
			node.Value = rewriteExpr(node.Value, f)
		}
	case *Starred:
		node.Value = rewriteExpr(node.Value, f)
	case *ListComp:
		for _, g := range node.Generators {
			g.Target = rewriteExpr(g.Target, f)
			g.Iter = rewriteExpr(g.Iter, f)
			for i := range g.Ifs {
				g.Ifs[i] = rewriteExpr(g.Ifs[i], f)
			}
		}
		node.Elt = rewriteExpr(node.Elt, f)
	case *Conditional:
		node.Cond = rewriteExpr(node.Cond, f)
		node.Body = rewriteExpr(node.Body, f)
		node.Orelse = rewriteExpr(node.Orelse, f)
	}
	return f(e)
}
