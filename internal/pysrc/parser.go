package pysrc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// ParseError describes a syntax error with its source position.
type ParseError struct {
	Msg  string
	Line int
	Col  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse converts source text into a module tree. The accepted grammar covers
// the statement and expression forms the transformation passes understand;
// anything outside it is a parse error, not a silent skip.
func Parse(src string) (*pyast.Module, error) {
	lx := newLexer(src)
	p := &parser{lx: lx}
	if err := p.fill(); err != nil {
		return nil, err
	}
	mod := &pyast.Module{Pos: pyast.Pos{Line: 1, Col: 1}}
	for p.tok.kind != tokEOF {
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmts...)
	}
	return mod, nil
}

type parser struct {
	lx   *lexer
	tok  token
	ahead *token
}

func (p *parser) fill() error {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		if le, ok := err.(*lexError); ok {
			return &ParseError{Msg: le.msg, Line: le.line, Col: le.col}
		}
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) peek() (token, error) {
	if p.ahead == nil {
		t, err := p.lx.next()
		if err != nil {
			if le, ok := err.(*lexError); ok {
				return token{}, &ParseError{Msg: le.msg, Line: le.line, Col: le.col}
			}
			return token{}, err
		}
		p.ahead = &t
	}
	return *p.ahead, nil
}

func (p *parser) next() error { return p.fill() }

func (p *parser) errf(format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Line: p.tok.line, Col: p.tok.col}
}

func (p *parser) pos() pyast.Pos { return pyast.Pos{Line: p.tok.line, Col: p.tok.col} }

func (p *parser) isOp(v string) bool { return p.tok.kind == tokOp && p.tok.val == v }

func (p *parser) isKw(v string) bool { return p.tok.kind == tokKeyword && p.tok.val == v }

func (p *parser) expectOp(v string) error {
	if !p.isOp(v) {
		return p.errf("expected %q, found %s", v, p.tok)
	}
	return p.next()
}

func (p *parser) expectKw(v string) error {
	if !p.isKw(v) {
		return p.errf("expected %q, found %s", v, p.tok)
	}
	return p.next()
}

func (p *parser) expectNewline() error {
	if p.tok.kind == tokEOF {
		return nil
	}
	if p.tok.kind != tokNewline {
		return p.errf("expected end of line, found %s", p.tok)
	}
	return p.next()
}

// parseStatement parses one logical statement line, which may expand to
// several statements when semicolons join simple statements.
func (p *parser) parseStatement() ([]pyast.Stmt, error) {
	if p.tok.kind == tokKeyword {
		switch p.tok.val {
		case "if":
			s, err := p.parseIf()
			return wrap(s, err)
		case "while":
			s, err := p.parseWhile()
			return wrap(s, err)
		case "for":
			s, err := p.parseFor()
			return wrap(s, err)
		case "try":
			s, err := p.parseTry()
			return wrap(s, err)
		case "with":
			s, err := p.parseWith()
			return wrap(s, err)
		case "def":
			s, err := p.parseFunctionDef(nil)
			return wrap(s, err)
		case "class":
			s, err := p.parseClassDef(nil)
			return wrap(s, err)
		}
	}
	if p.isOp("@") {
		s, err := p.parseDecorated()
		return wrap(s, err)
	}
	return p.parseSimpleLine()
}

func wrap(s pyast.Stmt, err error) ([]pyast.Stmt, error) {
	if err != nil {
		return nil, err
	}
	return []pyast.Stmt{s}, nil
}

func (p *parser) parseSimpleLine() ([]pyast.Stmt, error) {
	var out []pyast.Stmt
	for {
		s, err := p.parseSmallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if p.isOp(";") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokNewline || p.tok.kind == tokEOF {
				break
			}
			continue
		}
		break
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseSmallStmt() (pyast.Stmt, error) {
	pos := p.pos()
	if p.tok.kind == tokKeyword {
		switch p.tok.val {
		case "return":
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokNewline || p.tok.kind == tokEOF || p.isOp(";") {
				return &pyast.Return{Pos: pos}, nil
			}
			v, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			return &pyast.Return{Value: v, Pos: pos}, nil
		case "pass":
			return &pyast.Pass{Pos: pos}, p.next()
		case "break":
			return &pyast.Break{Pos: pos}, p.next()
		case "continue":
			return &pyast.Continue{Pos: pos}, p.next()
		case "raise":
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokNewline || p.tok.kind == tokEOF || p.isOp(";") {
				return &pyast.Raise{Pos: pos}, nil
			}
			exc, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			var cause pyast.Expr
			if p.isKw("from") {
				if err := p.next(); err != nil {
					return nil, err
				}
				cause, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
			return &pyast.Raise{Exc: exc, Cause: cause, Pos: pos}, nil
		case "import":
			return p.parseImport(pos)
		case "from":
			return p.parseImportFrom(pos)
		case "global", "nonlocal":
			kw := p.tok.val
			if err := p.next(); err != nil {
				return nil, err
			}
			names, err := p.parseNameList()
			if err != nil {
				return nil, err
			}
			if kw == "global" {
				return &pyast.Global{Names: names, Pos: pos}, nil
			}
			return &pyast.Nonlocal{Names: names, Pos: pos}, nil
		case "yield", "lambda", "not", "None", "True", "False":
			// fall through to expression statement
		case "assert", "del", "async", "await":
			return nil, p.errf("unsupported statement %q", p.tok.val)
		}
	}
	return p.parseExprOrAssign(pos)
}

func (p *parser) parseNameList() ([]string, error) {
	var names []string
	for {
		if p.tok.kind != tokName {
			return nil, p.errf("expected identifier, found %s", p.tok)
		}
		names = append(names, p.tok.val)
		if err := p.next(); err != nil {
			return nil, err
		}
		if !p.isOp(",") {
			return names, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseImport(pos pyast.Pos) (pyast.Stmt, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	var names []*pyast.Alias
	for {
		a, err := p.parseAlias(true)
		if err != nil {
			return nil, err
		}
		names = append(names, a)
		if !p.isOp(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return &pyast.Import{Names: names, Pos: pos}, nil
}

func (p *parser) parseImportFrom(pos pyast.Pos) (pyast.Stmt, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	var mod strings.Builder
	for p.isOp(".") {
		mod.WriteByte('.')
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind == tokName {
		d, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}
		mod.WriteString(d)
	}
	if err := p.expectKw("import"); err != nil {
		return nil, err
	}
	var names []*pyast.Alias
	if p.isOp("*") {
		names = append(names, &pyast.Alias{Name: "*", Pos: p.pos()})
		if err := p.next(); err != nil {
			return nil, err
		}
		return &pyast.ImportFrom{Module: mod.String(), Names: names, Pos: pos}, nil
	}
	paren := p.isOp("(")
	if paren {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	for {
		a, err := p.parseAlias(false)
		if err != nil {
			return nil, err
		}
		names = append(names, a)
		if p.isOp(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if paren && p.isOp(")") {
				break
			}
			continue
		}
		break
	}
	if paren {
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	return &pyast.ImportFrom{Module: mod.String(), Names: names, Pos: pos}, nil
}

func (p *parser) parseDottedName() (string, error) {
	if p.tok.kind != tokName {
		return "", p.errf("expected module name, found %s", p.tok)
	}
	var sb strings.Builder
	sb.WriteString(p.tok.val)
	if err := p.next(); err != nil {
		return "", err
	}
	for p.isOp(".") {
		if err := p.next(); err != nil {
			return "", err
		}
		if p.tok.kind != tokName {
			return "", p.errf("expected identifier after '.', found %s", p.tok)
		}
		sb.WriteByte('.')
		sb.WriteString(p.tok.val)
		if err := p.next(); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (p *parser) parseAlias(dotted bool) (*pyast.Alias, error) {
	pos := p.pos()
	var name string
	var err error
	if dotted {
		name, err = p.parseDottedName()
	} else {
		if p.tok.kind != tokName {
			return nil, p.errf("expected identifier, found %s", p.tok)
		}
		name = p.tok.val
		err = p.next()
	}
	if err != nil {
		return nil, err
	}
	a := &pyast.Alias{Name: name, Pos: pos}
	if p.isKw("as") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokName {
			return nil, p.errf("expected identifier after 'as', found %s", p.tok)
		}
		a.AsName = p.tok.val
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (p *parser) parseExprOrAssign(pos pyast.Pos) (pyast.Stmt, error) {
	first, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp {
		switch p.tok.val {
		case "=":
			targets := []pyast.Expr{first}
			var value pyast.Expr
			for p.isOp("=") {
				if err := p.next(); err != nil {
					return nil, err
				}
				value, err = p.parseExprList()
				if err != nil {
					return nil, err
				}
				if p.isOp("=") {
					targets = append(targets, value)
				}
			}
			for _, t := range targets {
				if err := markStore(t); err != nil {
					return nil, &ParseError{Msg: err.Error(), Line: pos.Line, Col: pos.Col}
				}
			}
			return &pyast.Assign{Targets: targets, Value: value, Pos: pos}, nil
		case "+=", "-=", "*=", "/=", "//=", "%=", "**=", "&=", "|=", "^=", "<<=", ">>=", "@=":
			op := strings.TrimSuffix(p.tok.val, "=")
			if err := p.next(); err != nil {
				return nil, err
			}
			value, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			if err := markStore(first); err != nil {
				return nil, &ParseError{Msg: err.Error(), Line: pos.Line, Col: pos.Col}
			}
			return &pyast.AugAssign{Target: first, Op: op, Value: value, Pos: pos}, nil
		}
	}
	return &pyast.ExprStmt{Value: first, Pos: pos}, nil
}

// markStore flips the expression context of an assignment target to Store.
func markStore(e pyast.Expr) error {
	switch n := e.(type) {
	case *pyast.Name:
		n.Ctx = pyast.Store
	case *pyast.Attribute:
		n.Ctx = pyast.Store
	case *pyast.Subscript:
		n.Ctx = pyast.Store
	case *pyast.Starred:
		return markStore(n.Value)
	case *pyast.TupleLit:
		for _, el := range n.Elts {
			if err := markStore(el); err != nil {
				return err
			}
		}
	case *pyast.ListLit:
		for _, el := range n.Elts {
			if err := markStore(el); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot assign to this expression")
	}
	return nil
}

// --- compound statements ---

func (p *parser) parseSuite() ([]pyast.Stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokNewline {
		// inline suite: stmt [; stmt]* NEWLINE
		return p.parseSimpleLine()
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokIndent {
		return nil, p.errf("expected an indented block")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var body []pyast.Stmt
	for p.tok.kind != tokDedent && p.tok.kind != tokEOF {
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.tok.kind == tokDedent {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (p *parser) parseIf() (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &pyast.If{Cond: cond, Body: body, Pos: pos}
	if p.isKw("elif") {
		elifPos := p.pos()
		elif, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		elif.(*pyast.If).Pos = elifPos
		node.Else = []pyast.Stmt{elif}
	} else if p.isKw("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		node.Else, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) parseWhile() (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &pyast.While{Cond: cond, Body: body, Pos: pos}
	if p.isKw("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		node.Else, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) parseFor() (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	target, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &pyast.For{Target: target, Iter: iter, Body: body, Pos: pos}
	if p.isKw("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		node.Else, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// parseTargetList parses a comma-separated assignment target and marks every
// name in it as a Store. Target elements are parsed below comparison level,
// so the 'in' keyword of the enclosing for clause is never consumed as an
// operator.
func (p *parser) parseTargetList() (pyast.Expr, error) {
	pos := p.pos()
	first, err := p.parseTargetItem()
	if err != nil {
		return nil, err
	}
	e := first
	if p.isOp(",") {
		elts := []pyast.Expr{first}
		for p.isOp(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.exprListEnd() {
				break
			}
			item, err := p.parseTargetItem()
			if err != nil {
				return nil, err
			}
			elts = append(elts, item)
		}
		e = &pyast.TupleLit{Elts: elts, Pos: pos}
	}
	if err := markStore(e); err != nil {
		return nil, &ParseError{Msg: err.Error(), Line: pos.Line, Col: pos.Col}
	}
	return e, nil
}

// parseTargetItem parses one target element: a starred target, or a name,
// attribute, subscript or parenthesized form at bit-or level.
func (p *parser) parseTargetItem() (pyast.Expr, error) {
	if p.isOp("*") {
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		return &pyast.Starred{Value: v, Pos: pos}, nil
	}
	return p.parseBitOr()
}

func (p *parser) parseTry() (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &pyast.Try{Body: body, Pos: pos}
	for p.isKw("except") {
		hPos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		h := &pyast.ExceptHandler{Pos: hPos}
		if !p.isOp(":") {
			h.Type, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.isKw("as") {
				if err := p.next(); err != nil {
					return nil, err
				}
				if p.tok.kind != tokName {
					return nil, p.errf("expected identifier after 'as', found %s", p.tok)
				}
				h.Name = p.tok.val
				if err := p.next(); err != nil {
					return nil, err
				}
			}
		}
		h.Body, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
		node.Handlers = append(node.Handlers, h)
	}
	if p.isKw("else") {
		if len(node.Handlers) == 0 {
			return nil, p.errf("try with else requires at least one except clause")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		node.Else, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	if p.isKw("finally") {
		if err := p.next(); err != nil {
			return nil, err
		}
		node.Finally, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	if len(node.Handlers) == 0 && len(node.Finally) == 0 {
		return nil, p.errf("try requires an except or finally clause")
	}
	return node, nil
}

func (p *parser) parseWith() (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	node := &pyast.With{Pos: pos}
	for {
		iPos := p.pos()
		ctx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := &pyast.WithItem{Context: ctx, Pos: iPos}
		if p.isKw("as") {
			if err := p.next(); err != nil {
				return nil, err
			}
			item.As, err = p.parseTarget()
			if err != nil {
				return nil, err
			}
		}
		node.Items = append(node.Items, item)
		if !p.isOp(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node.Body = body
	return node, nil
}

func (p *parser) parseTarget() (pyast.Expr, error) {
	pos := p.pos()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := markStore(e); err != nil {
		return nil, &ParseError{Msg: err.Error(), Line: pos.Line, Col: pos.Col}
	}
	return e, nil
}

func (p *parser) parseDecorated() (pyast.Stmt, error) {
	var decorators []pyast.Expr
	for p.isOp("@") {
		if err := p.next(); err != nil {
			return nil, err
		}
		d, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
	}
	if p.isKw("def") {
		return p.parseFunctionDef(decorators)
	}
	if p.isKw("class") {
		return p.parseClassDef(decorators)
	}
	return nil, p.errf("expected 'def' or 'class' after decorators, found %s", p.tok)
}

func (p *parser) parseFunctionDef(decorators []pyast.Expr) (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokName {
		return nil, p.errf("expected function name, found %s", p.tok)
	}
	name := p.tok.val
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	params, err := p.parseParamList(")")
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.isOp("->") {
		// return annotation, parsed and discarded
		if err := p.next(); err != nil {
			return nil, err
		}
		if _, err := p.parseExpr(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &pyast.FunctionDef{Name: name, Params: params, Body: body, Decorators: decorators, Pos: pos}, nil
}

func (p *parser) parseParamList(terminator string) ([]*pyast.Param, error) {
	var params []*pyast.Param
	for !p.isOp(terminator) && !(terminator == ":" && p.isOp(":")) {
		pPos := p.pos()
		star := ""
		if p.isOp("*") {
			star = "*"
			if err := p.next(); err != nil {
				return nil, err
			}
		} else if p.isOp("**") {
			star = "**"
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tok.kind != tokName {
			return nil, p.errf("expected parameter name, found %s", p.tok)
		}
		prm := &pyast.Param{Name: p.tok.val, Star: star, Pos: pPos}
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.isOp(":") && terminator != ":" {
			// annotation, parsed and discarded
			if err := p.next(); err != nil {
				return nil, err
			}
			if _, err := p.parseExpr(); err != nil {
				return nil, err
			}
		}
		if p.isOp("=") {
			if err := p.next(); err != nil {
				return nil, err
			}
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			prm.Default = def
		}
		params = append(params, prm)
		if !p.isOp(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func (p *parser) parseClassDef(decorators []pyast.Expr) (pyast.Stmt, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokName {
		return nil, p.errf("expected class name, found %s", p.tok)
	}
	name := p.tok.val
	if err := p.next(); err != nil {
		return nil, err
	}
	var bases []pyast.Expr
	if p.isOp("(") {
		if err := p.next(); err != nil {
			return nil, err
		}
		for !p.isOp(")") {
			b, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			bases = append(bases, b)
			if !p.isOp(",") {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &pyast.ClassDef{Name: name, Bases: bases, Body: body, Decorators: decorators, Pos: pos}, nil
}

// --- expressions ---

// parseExprList parses expr [, expr]* and builds an unparenthesized tuple
// when more than one element (or a trailing comma) is present.
func (p *parser) parseExprList() (pyast.Expr, error) {
	pos := p.pos()
	first, err := p.parseStarExpr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []pyast.Expr{first}
	for p.isOp(",") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.exprListEnd() {
			break
		}
		e, err := p.parseStarExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &pyast.TupleLit{Elts: elts, Pos: pos}, nil
}

func (p *parser) exprListEnd() bool {
	if p.tok.kind == tokNewline || p.tok.kind == tokEOF {
		return true
	}
	if p.tok.kind == tokOp {
		switch p.tok.val {
		case "=", ")", "]", "}", ":", ";":
			return true
		}
	}
	return p.isKw("in")
}

func (p *parser) parseStarExpr() (pyast.Expr, error) {
	if p.isOp("*") {
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &pyast.Starred{Value: v, Pos: pos}, nil
	}
	return p.parseExpr()
}

// parseExpr parses a single expression: conditional, lambda, or below.
func (p *parser) parseExpr() (pyast.Expr, error) {
	if p.isKw("lambda") {
		return p.parseLambda()
	}
	if p.isKw("yield") {
		return p.parseYield()
	}
	pos := p.pos()
	body, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}
	if p.isKw("if") {
		if err := p.next(); err != nil {
			return nil, err
		}
		cond, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("else"); err != nil {
			return nil, err
		}
		orelse, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &pyast.Conditional{Cond: cond, Body: body, Orelse: orelse, Pos: pos}, nil
	}
	return body, nil
}

func (p *parser) parseLambda() (pyast.Expr, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	params, err := p.parseParamList(":")
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &pyast.Lambda{Params: params, Body: body, Pos: pos}, nil
}

func (p *parser) parseYield() (pyast.Expr, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.exprListEnd() {
		return &pyast.Yield{Pos: pos}, nil
	}
	v, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	return &pyast.Yield{Value: v, Pos: pos}, nil
}

func (p *parser) parseOrExpr() (pyast.Expr, error) {
	pos := p.pos()
	first, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKw("or") {
		return first, nil
	}
	values := []pyast.Expr{first}
	for p.isKw("or") {
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &pyast.BoolOp{Op: "or", Values: values, Pos: pos}, nil
}

func (p *parser) parseAndExpr() (pyast.Expr, error) {
	pos := p.pos()
	first, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKw("and") {
		return first, nil
	}
	values := []pyast.Expr{first}
	for p.isKw("and") {
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &pyast.BoolOp{Op: "and", Values: values, Pos: pos}, nil
}

func (p *parser) parseNotExpr() (pyast.Expr, error) {
	if p.isKw("not") {
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		operand, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &pyast.UnaryOp{Op: "not", Operand: operand, Pos: pos}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (pyast.Expr, error) {
	pos := p.pos()
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comparators []pyast.Expr
	for {
		op, ok, err := p.compareOp()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &pyast.Compare{Left: left, Ops: ops, Comparators: comparators, Pos: pos}, nil
}

func (p *parser) compareOp() (string, bool, error) {
	if p.tok.kind == tokOp {
		switch p.tok.val {
		case "==", "!=", "<", "<=", ">", ">=":
			op := p.tok.val
			return op, true, p.next()
		}
	}
	if p.isKw("in") {
		return "in", true, p.next()
	}
	if p.isKw("not") {
		nt, err := p.peek()
		if err != nil {
			return "", false, err
		}
		if nt.kind == tokKeyword && nt.val == "in" {
			if err := p.next(); err != nil {
				return "", false, err
			}
			return "not in", true, p.next()
		}
		return "", false, nil
	}
	if p.isKw("is") {
		nt, err := p.peek()
		if err != nil {
			return "", false, err
		}
		if nt.kind == tokKeyword && nt.val == "not" {
			if err := p.next(); err != nil {
				return "", false, err
			}
			return "is not", true, p.next()
		}
		return "is", true, p.next()
	}
	return "", false, nil
}

func (p *parser) parseBinary(ops []string, sub func() (pyast.Expr, error)) (pyast.Expr, error) {
	pos := p.pos()
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		if p.tok.kind == tokOp {
			for _, op := range ops {
				if p.tok.val == op {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return left, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := sub()
		if err != nil {
			return nil, err
		}
		left = &pyast.BinOp{Left: left, Op: matched, Right: right, Pos: pos}
	}
}

func (p *parser) parseBitOr() (pyast.Expr, error) {
	return p.parseBinary([]string{"|"}, p.parseBitXor)
}

func (p *parser) parseBitXor() (pyast.Expr, error) {
	return p.parseBinary([]string{"^"}, p.parseBitAnd)
}

func (p *parser) parseBitAnd() (pyast.Expr, error) {
	return p.parseBinary([]string{"&"}, p.parseShift)
}

func (p *parser) parseShift() (pyast.Expr, error) {
	return p.parseBinary([]string{"<<", ">>"}, p.parseArith)
}

func (p *parser) parseArith() (pyast.Expr, error) {
	return p.parseBinary([]string{"+", "-"}, p.parseTerm)
}

func (p *parser) parseTerm() (pyast.Expr, error) {
	return p.parseBinary([]string{"*", "/", "//", "%", "@"}, p.parseFactor)
}

func (p *parser) parseFactor() (pyast.Expr, error) {
	if p.tok.kind == tokOp && (p.tok.val == "-" || p.tok.val == "+" || p.tok.val == "~") {
		pos := p.pos()
		op := p.tok.val
		if err := p.next(); err != nil {
			return nil, err
		}
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &pyast.UnaryOp{Op: op, Operand: operand, Pos: pos}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (pyast.Expr, error) {
	pos := p.pos()
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		if err := p.next(); err != nil {
			return nil, err
		}
		exp, err := p.parseFactor() // right associative
		if err != nil {
			return nil, err
		}
		return &pyast.BinOp{Left: base, Op: "**", Right: exp, Pos: pos}, nil
	}
	return base, nil
}

func (p *parser) parsePostfix() (pyast.Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("("):
			e, err = p.parseCall(e)
		case p.isOp("."):
			pos := p.pos()
			if err = p.next(); err != nil {
				return nil, err
			}
			if p.tok.kind != tokName {
				return nil, p.errf("expected attribute name, found %s", p.tok)
			}
			e = &pyast.Attribute{Value: e, Attr: p.tok.val, Pos: pos}
			err = p.next()
		case p.isOp("["):
			e, err = p.parseSubscript(e)
		default:
			return e, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseCall(fn pyast.Expr) (pyast.Expr, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	call := &pyast.Call{Func: fn, Pos: pos}
	for !p.isOp(")") {
		if p.isOp("**") {
			kPos := p.pos()
			if err := p.next(); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, &pyast.Keyword{Value: v, Pos: kPos})
		} else if p.isOp("*") {
			sPos := p.pos()
			if err := p.next(); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &pyast.Starred{Value: v, Pos: sPos})
		} else if p.tok.kind == tokName {
			nt, err := p.peek()
			if err != nil {
				return nil, err
			}
			if nt.kind == tokOp && nt.val == "=" {
				kPos := p.pos()
				kwName := p.tok.val
				if err := p.next(); err != nil { // name
					return nil, err
				}
				if err := p.next(); err != nil { // '='
					return nil, err
				}
				v, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				call.Keywords = append(call.Keywords, &pyast.Keyword{Name: kwName, Value: v, Pos: kPos})
			} else {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, a)
			}
		} else {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, a)
		}
		if !p.isOp(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parseSubscript(value pyast.Expr) (pyast.Expr, error) {
	pos := p.pos()
	if err := p.next(); err != nil {
		return nil, err
	}
	idx, err := p.parseSliceExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp(",") {
		elts := []pyast.Expr{idx}
		for p.isOp(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.isOp("]") {
				break
			}
			e, err := p.parseSliceExpr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		idx = &pyast.TupleLit{Elts: elts, Pos: pos}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &pyast.Subscript{Value: value, Index: idx, Pos: pos}, nil
}

func (p *parser) parseSliceExpr() (pyast.Expr, error) {
	pos := p.pos()
	var lo pyast.Expr
	var err error
	if !p.isOp(":") {
		lo, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return lo, nil
		}
	}
	sl := &pyast.Slice{Lo: lo, Pos: pos}
	if err := p.next(); err != nil { // first ':'
		return nil, err
	}
	if !p.isOp(":") && !p.isOp("]") && !p.isOp(",") {
		sl.Hi, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.isOp(":") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if !p.isOp("]") && !p.isOp(",") {
			sl.Step, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
	}
	return sl, nil
}

func (p *parser) parseAtom() (pyast.Expr, error) {
	pos := p.pos()
	switch p.tok.kind {
	case tokName:
		n := &pyast.Name{ID: p.tok.val, Ctx: pyast.Load, Pos: pos}
		return n, p.next()
	case tokNumber:
		return p.parseNumberLit(pos)
	case tokString:
		val := p.tok.val
		isBytes := p.tok.bytes
		if err := p.next(); err != nil {
			return nil, err
		}
		// adjacent string literals concatenate
		for p.tok.kind == tokString {
			if p.tok.bytes != isBytes {
				return nil, p.errf("cannot mix bytes and str literals")
			}
			val += p.tok.val
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		return &pyast.StringLit{Value: val, Bytes: isBytes, Pos: pos}, nil
	case tokFString:
		raw := p.tok.raw
		return &pyast.FString{Raw: raw, Pos: pos}, p.next()
	case tokKeyword:
		switch p.tok.val {
		case "True":
			return &pyast.BoolLit{Value: true, Pos: pos}, p.next()
		case "False":
			return &pyast.BoolLit{Value: false, Pos: pos}, p.next()
		case "None":
			return &pyast.NoneLit{Pos: pos}, p.next()
		case "lambda":
			return p.parseLambda()
		case "yield":
			return p.parseYield()
		}
	case tokOp:
		switch p.tok.val {
		case "(":
			return p.parseParenForm(pos)
		case "[":
			return p.parseListForm(pos)
		case "{":
			return p.parseDictForm(pos)
		}
	}
	return nil, p.errf("unexpected %s", p.tok)
}

func (p *parser) parseNumberLit(pos pyast.Pos) (pyast.Expr, error) {
	raw := p.tok.raw
	if err := p.next(); err != nil {
		return nil, err
	}
	lit := &pyast.NumberLit{Raw: raw, Pos: pos}
	clean := strings.ReplaceAll(raw, "_", "")
	if !strings.ContainsAny(clean, ".eE") || strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		if v, err := strconv.ParseInt(clean, 0, 64); err == nil {
			lit.IsInt = true
			lit.IntVal = v
		}
	}
	return lit, nil
}

func (p *parser) parseParenForm(pos pyast.Pos) (pyast.Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.isOp(")") {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &pyast.TupleLit{Paren: true, Pos: pos}, nil
	}
	first, err := p.parseStarExpr()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		gens, err := p.parseCompClauses()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		// generator expressions share the comprehension node
		return &pyast.ListComp{Elt: first, Generators: gens, Pos: pos}, nil
	}
	if p.isOp(",") {
		elts := []pyast.Expr{first}
		for p.isOp(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.isOp(")") {
				break
			}
			e, err := p.parseStarExpr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return &pyast.TupleLit{Elts: elts, Paren: true, Pos: pos}, nil
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if t, ok := first.(*pyast.TupleLit); ok {
		t.Paren = true
	}
	return first, nil
}

func (p *parser) parseListForm(pos pyast.Pos) (pyast.Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.isOp("]") {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &pyast.ListLit{Pos: pos}, nil
	}
	first, err := p.parseStarExpr()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		gens, err := p.parseCompClauses()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return &pyast.ListComp{Elt: first, Generators: gens, Pos: pos}, nil
	}
	elts := []pyast.Expr{first}
	for p.isOp(",") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.isOp("]") {
			break
		}
		e, err := p.parseStarExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &pyast.ListLit{Elts: elts, Pos: pos}, nil
}

func (p *parser) parseDictForm(pos pyast.Pos) (pyast.Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	d := &pyast.DictLit{Pos: pos}
	for !p.isOp("}") {
		if p.isOp("**") {
			if err := p.next(); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, v)
		} else {
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, k)
			d.Values = append(d.Values, v)
		}
		if !p.isOp(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseCompClauses() ([]*pyast.CompFor, error) {
	var gens []*pyast.CompFor
	for p.isKw("for") {
		gPos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		target, err := p.parseCompTarget()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		g := &pyast.CompFor{Target: target, Iter: iter, Pos: gPos}
		for p.isKw("if") {
			if err := p.next(); err != nil {
				return nil, err
			}
			cond, err := p.parseOrExpr()
			if err != nil {
				return nil, err
			}
			g.Ifs = append(g.Ifs, cond)
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// parseCompTarget parses the target of a comprehension's for clause with the
// same restricted grammar as parseTargetList.
func (p *parser) parseCompTarget() (pyast.Expr, error) {
	pos := p.pos()
	first, err := p.parseTargetItem()
	if err != nil {
		return nil, err
	}
	if p.isOp(",") {
		elts := []pyast.Expr{first}
		for p.isOp(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.isKw("in") {
				break
			}
			e, err := p.parseTargetItem()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		first = &pyast.TupleLit{Elts: elts, Pos: pos}
	}
	if err := markStore(first); err != nil {
		return nil, &ParseError{Msg: err.Error(), Line: pos.Line, Col: pos.Col}
	}
	return first, nil
}
