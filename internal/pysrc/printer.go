package pysrc

import (
	"fmt"
	"strings"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// Print renders a module back to source text with four-space indentation.
// Formatting is canonical: original spacing and comments are not preserved.
func Print(mod *pyast.Module) string {
	p := &printer{}
	p.stmts(mod.Body)
	return p.sb.String()
}

// PrintStmts renders a statement list at the top level. Used by tests and by
// the decode-helper emitter.
func PrintStmts(stmts []pyast.Stmt) string {
	p := &printer{}
	p.stmts(stmts)
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(s string) {
	for i := 0; i < p.indent; i++ {
		p.sb.WriteString("    ")
	}
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
}

func (p *printer) stmts(list []pyast.Stmt) {
	if len(list) == 0 {
		p.line("pass")
		return
	}
	for _, s := range list {
		p.stmt(s)
	}
}

func (p *printer) block(list []pyast.Stmt) {
	p.indent++
	p.stmts(list)
	p.indent--
}

func (p *printer) stmt(s pyast.Stmt) {
	switch n := s.(type) {
	case *pyast.FunctionDef:
		for _, d := range n.Decorators {
			p.line("@" + p.expr(d, 0))
		}
		p.line("def " + n.Name + "(" + p.params(n.Params) + "):")
		p.block(n.Body)
	case *pyast.ClassDef:
		for _, d := range n.Decorators {
			p.line("@" + p.expr(d, 0))
		}
		head := "class " + n.Name
		if len(n.Bases) > 0 {
			parts := make([]string, len(n.Bases))
			for i, b := range n.Bases {
				parts[i] = p.expr(b, 0)
			}
			head += "(" + strings.Join(parts, ", ") + ")"
		}
		p.line(head + ":")
		p.block(n.Body)
	case *pyast.Return:
		if n.Value == nil {
			p.line("return")
		} else {
			p.line("return " + p.expr(n.Value, 0))
		}
	case *pyast.Assign:
		parts := make([]string, 0, len(n.Targets)+1)
		for _, t := range n.Targets {
			parts = append(parts, p.expr(t, 0))
		}
		parts = append(parts, p.expr(n.Value, 0))
		p.line(strings.Join(parts, " = "))
	case *pyast.AugAssign:
		p.line(p.expr(n.Target, 0) + " " + n.Op + "= " + p.expr(n.Value, 0))
	case *pyast.ExprStmt:
		p.line(p.expr(n.Value, 0))
	case *pyast.If:
		p.ifChain(n, "if")
	case *pyast.While:
		p.line("while " + p.expr(n.Cond, 0) + ":")
		p.block(n.Body)
		if len(n.Else) > 0 {
			p.line("else:")
			p.block(n.Else)
		}
	case *pyast.For:
		p.line("for " + p.expr(n.Target, 0) + " in " + p.expr(n.Iter, 0) + ":")
		p.block(n.Body)
		if len(n.Else) > 0 {
			p.line("else:")
			p.block(n.Else)
		}
	case *pyast.Break:
		p.line("break")
	case *pyast.Continue:
		p.line("continue")
	case *pyast.Pass:
		p.line("pass")
	case *pyast.Raise:
		switch {
		case n.Exc == nil:
			p.line("raise")
		case n.Cause != nil:
			p.line("raise " + p.expr(n.Exc, 0) + " from " + p.expr(n.Cause, 0))
		default:
			p.line("raise " + p.expr(n.Exc, 0))
		}
	case *pyast.Try:
		p.line("try:")
		p.block(n.Body)
		for _, h := range n.Handlers {
			switch {
			case h.Type == nil:
				p.line("except:")
			case h.Name != "":
				p.line("except " + p.expr(h.Type, 0) + " as " + h.Name + ":")
			default:
				p.line("except " + p.expr(h.Type, 0) + ":")
			}
			p.block(h.Body)
		}
		if len(n.Else) > 0 {
			p.line("else:")
			p.block(n.Else)
		}
		if len(n.Finally) > 0 {
			p.line("finally:")
			p.block(n.Finally)
		}
	case *pyast.With:
		parts := make([]string, len(n.Items))
		for i, it := range n.Items {
			if it.As != nil {
				parts[i] = p.expr(it.Context, 0) + " as " + p.expr(it.As, 0)
			} else {
				parts[i] = p.expr(it.Context, 0)
			}
		}
		p.line("with " + strings.Join(parts, ", ") + ":")
		p.block(n.Body)
	case *pyast.Import:
		p.line("import " + p.aliases(n.Names))
	case *pyast.ImportFrom:
		p.line("from " + n.Module + " import " + p.aliases(n.Names))
	case *pyast.Global:
		p.line("global " + strings.Join(n.Names, ", "))
	case *pyast.Nonlocal:
		p.line("nonlocal " + strings.Join(n.Names, ", "))
	default:
		p.line(fmt.Sprintf("# <unprintable %T>", s))
	}
}

func (p *printer) ifChain(n *pyast.If, kw string) {
	p.line(kw + " " + p.expr(n.Cond, 0) + ":")
	p.block(n.Body)
	if len(n.Else) == 0 {
		return
	}
	if elif, ok := n.Else[0].(*pyast.If); ok && len(n.Else) == 1 {
		p.ifChain(elif, "elif")
		return
	}
	p.line("else:")
	p.block(n.Else)
}

func (p *printer) aliases(names []*pyast.Alias) string {
	parts := make([]string, len(names))
	for i, a := range names {
		if a.AsName != "" {
			parts[i] = a.Name + " as " + a.AsName
		} else {
			parts[i] = a.Name
		}
	}
	return strings.Join(parts, ", ")
}

func (p *printer) params(params []*pyast.Param) string {
	parts := make([]string, len(params))
	for i, prm := range params {
		s := prm.Star + prm.Name
		if prm.Default != nil {
			s += "=" + p.expr(prm.Default, 0)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

// Operator precedence levels, loosest first. The parens argument to expr is
// the binding power of the surrounding context: a child whose own level is
// lower gets parenthesized.
const (
	precLowest  = 0
	precTernary = 1
	precOr      = 2
	precAnd     = 3
	precNot     = 4
	precCompare = 5
	precBitOr   = 6
	precBitXor  = 7
	precBitAnd  = 8
	precShift   = 9
	precArith   = 10
	precTerm    = 11
	precUnary   = 12
	precPower   = 13
	precPostfix = 14
)

func binOpPrec(op string) int {
	switch op {
	case "|":
		return precBitOr
	case "^":
		return precBitXor
	case "&":
		return precBitAnd
	case "<<", ">>":
		return precShift
	case "+", "-":
		return precArith
	case "*", "/", "//", "%", "@":
		return precTerm
	case "**":
		return precPower
	}
	return precLowest
}

func (p *printer) expr(e pyast.Expr, ctx int) string {
	s, prec := p.exprPrec(e)
	if prec < ctx {
		return "(" + s + ")"
	}
	return s
}

func (p *printer) exprPrec(e pyast.Expr) (string, int) {
	switch n := e.(type) {
	case *pyast.Name:
		return n.ID, precPostfix
	case *pyast.StringLit:
		return quoteString(n.Value, n.Bytes), precPostfix
	case *pyast.FString:
		return n.Raw, precPostfix
	case *pyast.NumberLit:
		return n.Raw, precPostfix
	case *pyast.BoolLit:
		if n.Value {
			return "True", precPostfix
		}
		return "False", precPostfix
	case *pyast.NoneLit:
		return "None", precPostfix
	case *pyast.Call:
		args := make([]string, 0, len(n.Args)+len(n.Keywords))
		for _, a := range n.Args {
			args = append(args, p.expr(a, precLowest))
		}
		for _, k := range n.Keywords {
			if k.Name == "" {
				args = append(args, "**"+p.expr(k.Value, precLowest))
			} else {
				args = append(args, k.Name+"="+p.expr(k.Value, precLowest))
			}
		}
		return p.expr(n.Func, precPostfix) + "(" + strings.Join(args, ", ") + ")", precPostfix
	case *pyast.Attribute:
		return p.expr(n.Value, precPostfix) + "." + n.Attr, precPostfix
	case *pyast.Subscript:
		return p.expr(n.Value, precPostfix) + "[" + p.subscriptIndex(n.Index) + "]", precPostfix
	case *pyast.Slice:
		return p.sliceText(n), precLowest
	case *pyast.BinOp:
		prec := binOpPrec(n.Op)
		left := p.expr(n.Left, prec)
		var right string
		if n.Op == "**" {
			right = p.expr(n.Right, prec) // right associative
			left = p.expr(n.Left, prec+1)
		} else {
			right = p.expr(n.Right, prec+1)
		}
		return left + " " + n.Op + " " + right, prec
	case *pyast.UnaryOp:
		if n.Op == "not" {
			return "not " + p.expr(n.Operand, precNot), precNot
		}
		return n.Op + p.expr(n.Operand, precUnary), precUnary
	case *pyast.BoolOp:
		prec := precOr
		if n.Op == "and" {
			prec = precAnd
		}
		parts := make([]string, len(n.Values))
		for i, v := range n.Values {
			parts[i] = p.expr(v, prec+1)
		}
		return strings.Join(parts, " "+n.Op+" "), prec
	case *pyast.Compare:
		var sb strings.Builder
		sb.WriteString(p.expr(n.Left, precCompare+1))
		for i, op := range n.Ops {
			sb.WriteString(" " + op + " ")
			sb.WriteString(p.expr(n.Comparators[i], precCompare+1))
		}
		return sb.String(), precCompare
	case *pyast.ListLit:
		parts := make([]string, len(n.Elts))
		for i, el := range n.Elts {
			parts[i] = p.expr(el, precLowest)
		}
		return "[" + strings.Join(parts, ", ") + "]", precPostfix
	case *pyast.TupleLit:
		parts := make([]string, len(n.Elts))
		for i, el := range n.Elts {
			parts[i] = p.expr(el, precTernary)
		}
		body := strings.Join(parts, ", ")
		if len(n.Elts) == 1 {
			body += ","
		}
		if n.Paren || len(n.Elts) <= 1 {
			return "(" + body + ")", precPostfix
		}
		return body, precLowest
	case *pyast.DictLit:
		parts := make([]string, len(n.Keys))
		for i := range n.Keys {
			if n.Keys[i] == nil {
				parts[i] = "**" + p.expr(n.Values[i], precLowest)
			} else {
				parts[i] = p.expr(n.Keys[i], precLowest) + ": " + p.expr(n.Values[i], precLowest)
			}
		}
		return "{" + strings.Join(parts, ", ") + "}", precPostfix
	case *pyast.Lambda:
		if len(n.Params) == 0 {
			return "lambda: " + p.expr(n.Body, precTernary), precTernary
		}
		return "lambda " + p.params(n.Params) + ": " + p.expr(n.Body, precTernary), precTernary
	case *pyast.Yield:
		if n.Value == nil {
			return "yield", precLowest
		}
		return "yield " + p.expr(n.Value, precTernary), precLowest
	case *pyast.Starred:
		return "*" + p.expr(n.Value, precUnary), precUnary
	case *pyast.ListComp:
		var sb strings.Builder
		sb.WriteString("[" + p.expr(n.Elt, precTernary))
		for _, g := range n.Generators {
			sb.WriteString(" for " + p.expr(g.Target, precOr) + " in " + p.expr(g.Iter, precOr))
			for _, cond := range g.Ifs {
				sb.WriteString(" if " + p.expr(cond, precOr))
			}
		}
		sb.WriteString("]")
		return sb.String(), precPostfix
	case *pyast.Conditional:
		body := p.expr(n.Body, precOr)
		cond := p.expr(n.Cond, precOr)
		orelse := p.expr(n.Orelse, precTernary)
		return body + " if " + cond + " else " + orelse, precTernary
	}
	return fmt.Sprintf("<unprintable %T>", e), precPostfix
}

func (p *printer) subscriptIndex(e pyast.Expr) string {
	if t, ok := e.(*pyast.TupleLit); ok && !t.Paren && len(t.Elts) > 1 {
		parts := make([]string, len(t.Elts))
		for i, el := range t.Elts {
			parts[i] = p.sliceOrExpr(el)
		}
		return strings.Join(parts, ", ")
	}
	return p.sliceOrExpr(e)
}

func (p *printer) sliceOrExpr(e pyast.Expr) string {
	if sl, ok := e.(*pyast.Slice); ok {
		return p.sliceText(sl)
	}
	return p.expr(e, precLowest)
}

func (p *printer) sliceText(sl *pyast.Slice) string {
	var sb strings.Builder
	if sl.Lo != nil {
		sb.WriteString(p.expr(sl.Lo, precTernary))
	}
	sb.WriteByte(':')
	if sl.Hi != nil {
		sb.WriteString(p.expr(sl.Hi, precTernary))
	}
	if sl.Step != nil {
		sb.WriteByte(':')
		sb.WriteString(p.expr(sl.Step, precTernary))
	}
	return sb.String()
}

// quoteString renders a string literal with single quotes, switching to
// double quotes when that avoids escaping.
func quoteString(s string, bytes bool) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		quote = '"'
	}
	var sb strings.Builder
	if bytes {
		sb.WriteByte('b')
	}
	sb.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20 || c == 0x7f:
			sb.WriteString(fmt.Sprintf(`\x%02x`, c))
		case bytes && c >= 0x80:
			// bytes literals stay ASCII-clean
			sb.WriteString(fmt.Sprintf(`\x%02x`, c))
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}
