// Package pysrc converts guest-language source text to and from the pyast
// tree. It plays the role an external parser/printer service would: the
// obfuscation core only ever sees *pyast.Module values.
package pysrc

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIndent
	tokDedent
	tokName
	tokKeyword
	tokNumber
	tokString  // processed literal value in val
	tokFString // raw token text in raw
	tokOp
)

type token struct {
	kind  tokenKind
	val   string // identifier, keyword, operator text, or decoded string value
	raw   string // raw source text (strings and numbers)
	bytes bool   // string literal carried a b prefix
	line  int
	col   int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "newline"
	case tokIndent:
		return "indent"
	case tokDedent:
		return "dedent"
	case tokString, tokFString:
		return "string literal"
	default:
		return fmt.Sprintf("%q", t.val)
	}
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// multi-character operators, longest first
var operators = []string{
	"**=", "//=", "<<=", ">>=", "...",
	"==", "!=", "<=", ">=", "**", "//", "<<", ">>", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

type lexer struct {
	src        string
	pos        int
	line       int
	col        int
	parenDepth int
	indents    []int
	pending    []token
	atLineHead bool
}

func newLexer(src string) *lexer {
	// Normalize line endings so column/indent math stays simple.
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return &lexer{src: src, line: 1, col: 1, indents: []int{0}, atLineHead: true}
}

type lexError struct {
	msg  string
	line int
	col  int
}

func (e *lexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.line, e.col, e.msg)
}

func (l *lexer) errf(format string, args ...interface{}) error {
	return &lexError{msg: fmt.Sprintf(format, args...), line: l.line, col: l.col}
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) byteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// next returns the next token, synthesizing INDENT/DEDENT/NEWLINE tokens the
// way the guest language's grammar expects them.
func (l *lexer) next() (token, error) {
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t, nil
	}

	if l.atLineHead && l.parenDepth == 0 {
		if t, ok, err := l.handleLineHead(); err != nil {
			return token{}, err
		} else if ok {
			return t, nil
		}
	}

	// Skip inline whitespace and comments.
	for l.pos < len(l.src) {
		c := l.peekByte()
		if c == ' ' || c == '\t' {
			l.advance()
			continue
		}
		if c == '#' {
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
			continue
		}
		if c == '\\' && l.byteAt(1) == '\n' {
			l.advance()
			l.advance()
			continue
		}
		break
	}

	line, col := l.line, l.col

	if l.pos >= len(l.src) {
		// Flush any open indentation levels before EOF.
		if len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			return token{kind: tokDedent, line: line, col: col}, nil
		}
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	c := l.peekByte()

	if c == '\n' {
		l.advance()
		if l.parenDepth > 0 {
			return l.next() // implicit line joining
		}
		l.atLineHead = true
		return token{kind: tokNewline, line: line, col: col}, nil
	}

	// String prefixes and literals.
	if isStringStart(l.src[l.pos:]) {
		return l.lexString(line, col)
	}

	if isIdentStart(c) {
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
			l.advance()
		}
		word := l.src[start:l.pos]
		kind := tokName
		if keywords[word] {
			kind = tokKeyword
		}
		return token{kind: kind, val: word, line: line, col: col}, nil
	}

	if isDigit(c) || (c == '.' && isDigit(l.byteAt(1))) {
		return l.lexNumber(line, col)
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			for range op {
				l.advance()
			}
			switch op {
			case "(", "[", "{":
				l.parenDepth++
			case ")", "]", "}":
				if l.parenDepth > 0 {
					l.parenDepth--
				}
			}
			return token{kind: tokOp, val: op, line: line, col: col}, nil
		}
	}

	return token{}, l.errf("unexpected character %q", c)
}

// handleLineHead measures indentation at the start of a logical line and
// emits INDENT/DEDENT tokens as needed. Blank and comment-only lines are
// consumed without affecting indentation.
func (l *lexer) handleLineHead() (token, bool, error) {
	for {
		start := l.pos
		width := 0
		for l.pos < len(l.src) {
			c := l.peekByte()
			if c == ' ' {
				width++
				l.advance()
			} else if c == '\t' {
				width += 8 - width%8
				l.advance()
			} else {
				break
			}
		}
		if l.pos >= len(l.src) {
			l.atLineHead = false
			return token{}, false, nil
		}
		c := l.peekByte()
		if c == '\n' {
			l.advance()
			continue // blank line
		}
		if c == '#' {
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
			continue
		}
		l.atLineHead = false
		cur := l.indents[len(l.indents)-1]
		if width > cur {
			l.indents = append(l.indents, width)
			return token{kind: tokIndent, line: l.line, col: 1}, true, nil
		}
		if width < cur {
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				l.pending = append(l.pending, token{kind: tokDedent, line: l.line, col: 1})
			}
			if l.indents[len(l.indents)-1] != width {
				return token{}, false, &lexError{msg: "inconsistent dedent", line: l.line, col: 1}
			}
			t := l.pending[0]
			l.pending = l.pending[1:]
			return t, true, nil
		}
		_ = start
		return token{}, false, nil
	}
}

func isStringStart(s string) bool {
	i := 0
	for i < len(s) && i < 3 {
		c := lowerByte(s[i])
		if c == 'r' || c == 'b' || c == 'f' || c == 'u' {
			i++
			continue
		}
		break
	}
	return i < len(s) && (s[i] == '\'' || s[i] == '"')
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func (l *lexer) lexString(line, col int) (token, error) {
	start := l.pos
	isRaw, isFmt, isBytes := false, false, false
	for l.pos < len(l.src) {
		c := lowerByte(l.peekByte())
		if c == 'r' {
			isRaw = true
			l.advance()
		} else if c == 'f' {
			isFmt = true
			l.advance()
		} else if c == 'b' {
			isBytes = true
			l.advance()
		} else if c == 'u' {
			l.advance()
		} else {
			break
		}
	}
	quote := l.advance()
	triple := false
	if l.peekByte() == quote && l.byteAt(1) == quote {
		triple = true
		l.advance()
		l.advance()
	}

	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, l.errf("unterminated string literal")
		}
		c := l.peekByte()
		if !triple && c == '\n' {
			return token{}, l.errf("unterminated string literal")
		}
		if c == quote {
			if !triple {
				l.advance()
				break
			}
			if l.byteAt(1) == quote && l.byteAt(2) == quote {
				l.advance()
				l.advance()
				l.advance()
				break
			}
			sb.WriteByte(l.advance())
			continue
		}
		if c == '\\' && !isRaw {
			l.advance()
			if l.pos >= len(l.src) {
				return token{}, l.errf("unterminated string literal")
			}
			esc := l.advance()
			switch {
			case esc == 'n':
				sb.WriteByte('\n')
			case esc == 't':
				sb.WriteByte('\t')
			case esc == 'r':
				sb.WriteByte('\r')
			case esc == 'a':
				sb.WriteByte(0x07)
			case esc == 'b':
				sb.WriteByte(0x08)
			case esc == 'f':
				sb.WriteByte(0x0c)
			case esc == 'v':
				sb.WriteByte(0x0b)
			case esc == '\\' || esc == '\'' || esc == '"':
				sb.WriteByte(esc)
			case esc == '\n':
				// escaped newline is swallowed
			case esc >= '0' && esc <= '7':
				v := int(esc - '0')
				for i := 0; i < 2; i++ {
					c := l.peekByte()
					if c < '0' || c > '7' {
						break
					}
					v = v<<3 | int(c-'0')
					l.advance()
				}
				if v > 0xff {
					return token{}, l.errf("octal escape out of range")
				}
				sb.WriteByte(byte(v))
			case esc == 'x':
				hi, lo := hexVal(l.peekByte()), hexVal(l.byteAt(1))
				if hi < 0 || lo < 0 {
					return token{}, l.errf("invalid \\x escape")
				}
				l.advance()
				l.advance()
				sb.WriteByte(byte(hi<<4 | lo))
			case (esc == 'u' || esc == 'U') && !isBytes:
				n := 4
				if esc == 'U' {
					n = 8
				}
				r := 0
				for i := 0; i < n; i++ {
					h := hexVal(l.byteAt(i))
					if h < 0 {
						return token{}, l.errf("invalid \\%c escape", esc)
					}
					r = r<<4 | h
				}
				for i := 0; i < n; i++ {
					l.advance()
				}
				if r > 0x10ffff {
					return token{}, l.errf("invalid \\%c escape", esc)
				}
				sb.WriteRune(rune(r))
			case esc == 'N' && !isBytes:
				return token{}, l.errf("named unicode escapes are not supported")
			default:
				// Other escapes keep the backslash, as the guest language does.
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(l.advance())
	}

	raw := l.src[start:l.pos]
	if isFmt {
		if isBytes {
			return token{}, l.errf("string literal cannot combine f and b prefixes")
		}
		return token{kind: tokFString, raw: raw, line: line, col: col}, nil
	}
	val := sb.String()
	if isRaw {
		// Raw strings keep backslashes; recover the body from the raw token.
		val = rawStringBody(raw, quote, triple)
	}
	return token{kind: tokString, val: val, raw: raw, bytes: isBytes, line: line, col: col}, nil
}

func rawStringBody(raw string, quote byte, triple bool) string {
	q := string(quote)
	if triple {
		q = strings.Repeat(q, 3)
	}
	i := strings.Index(raw, q)
	body := raw[i+len(q):]
	return strings.TrimSuffix(body, q)
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func (l *lexer) lexNumber(line, col int) (token, error) {
	start := l.pos
	if l.peekByte() == '0' && (lowerByte(l.byteAt(1)) == 'x' || lowerByte(l.byteAt(1)) == 'o' || lowerByte(l.byteAt(1)) == 'b') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && (isIdentPart(l.peekByte())) {
			l.advance()
		}
		return token{kind: tokNumber, raw: l.src[start:l.pos], line: line, col: col}, nil
	}
	seenDot, seenExp := false, false
	for l.pos < len(l.src) {
		c := l.peekByte()
		if isDigit(c) || c == '_' {
			l.advance()
		} else if c == '.' && !seenDot && !seenExp && isDigitOrEnd(l.byteAt(1)) {
			seenDot = true
			l.advance()
		} else if (c == 'e' || c == 'E') && !seenExp && (isDigit(l.byteAt(1)) || l.byteAt(1) == '+' || l.byteAt(1) == '-') {
			seenExp = true
			l.advance()
			l.advance()
		} else {
			break
		}
	}
	return token{kind: tokNumber, raw: l.src[start:l.pos], line: line, col: col}, nil
}

func isDigitOrEnd(c byte) bool { return c == 0 || isDigit(c) || !isIdentPart(c) }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
