package scenelang

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is matched by every error returned by [Parse].
var ErrParse = errors.New("parse error")

// ParseError describes where and why parsing stopped.
type ParseError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scenelang: %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Is reports true for [ErrParse].
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Parse parses the whole of src into a sequence of top level statements.
// Any input that is not consumed by the grammar is an error; no partial
// result is returned in that case.
//
// Statement bodies come in three forms:
//
//	a(1);          // empty body
//	a(1) b(2);     // single statement body, same as a(1){ b(2); }
//	a(1) { b; c; } // block body, optionally followed by a semicolon
//
// Whitespace is space, tab, carriage return and newline. Line comments start
// with // and run to the end of the line.
func Parse(src []byte) ([]Statement, error) {
	p := parser{src: src}
	p.skipWS()
	var stmts []Statement
	for p.pos < len(p.src) {
		if !isAlpha(p.peek()) {
			return nil, p.errorf("expected statement, found %s", p.describe())
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// ParseString is a convenience wrapper around [Parse].
func ParseString(src string) ([]Statement, error) {
	return Parse([]byte(src))
}

type parser struct {
	src []byte
	pos int
}

func (p *parser) statement() (stmt Statement, err error) {
	stmt.Name = p.ident()
	if stmt.Name == "" {
		return stmt, p.errorf("expected identifier, found %s", p.describe())
	}
	p.skipWS()
	if p.peek() == '(' {
		stmt.Args, err = p.args()
		if err != nil {
			return stmt, err
		}
	}
	p.skipWS()
	switch c := p.peek(); {
	case c == ';':
		p.pos++
		p.skipWS()
	case isAlpha(c):
		child, err := p.statement()
		if err != nil {
			return stmt, err
		}
		stmt.Body = []Statement{child}
	case c == '{':
		stmt.Body, err = p.block()
		if err != nil {
			return stmt, err
		}
	}
	return stmt, nil
}

func (p *parser) block() ([]Statement, error) {
	open := p.pos
	p.pos++ // Consume '{'.
	p.skipWS()
	body := []Statement{}
	for {
		c := p.peek()
		switch {
		case c == '}':
			p.pos++
			p.skipWS()
			if p.peek() == ';' {
				p.pos++
				p.skipWS()
			}
			return body, nil
		case isAlpha(c):
			stmt, err := p.statement()
			if err != nil {
				return nil, err
			}
			body = append(body, stmt)
		case p.pos >= len(p.src):
			return nil, p.errorAt(open, "unclosed '{'")
		default:
			return nil, p.errorf("expected statement or '}', found %s", p.describe())
		}
	}
}

func (p *parser) args() ([]string, error) {
	open := p.pos
	p.pos++ // Consume '('.
	p.skipWS()
	args := []string{}
	if p.peek() == ')' {
		p.pos++
		return args, nil
	}
	for {
		arg, err := p.complexValue()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipWS()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipWS()
		case ')':
			p.pos++
			return args, nil
		default:
			if p.pos >= len(p.src) {
				return nil, p.errorAt(open, "unclosed '('")
			}
			return nil, p.errorf("expected ',' or ')', found %s", p.describe())
		}
	}
}

// complexValue parses one argument expression. It is a sequence of simple
// values, operator runs and nested argument lists joined without separators.
func (p *parser) complexValue() (string, error) {
	var sb strings.Builder
	parts := 0
loop:
	for {
		p.skipWS()
		c := p.peek()
		switch {
		case isSimple(c):
			start := p.pos
			for p.pos < len(p.src) && isSimple(p.src[p.pos]) {
				p.pos++
			}
			sb.Write(bytes.TrimSpace(p.src[start:p.pos]))
		case isOperator(c):
			start := p.pos
			for p.pos < len(p.src) && isOperator(p.src[p.pos]) && !p.atComment() {
				p.pos++
			}
			if p.pos == start {
				break loop // Comment start, not an operator.
			}
			sb.Write(p.src[start:p.pos])
		case c == '(':
			nested, err := p.args()
			if err != nil {
				return "", err
			}
			sb.WriteByte('(')
			sb.WriteString(strings.Join(nested, ", "))
			sb.WriteByte(')')
		default:
			break loop
		}
		parts++
	}
	if parts == 0 {
		return "", p.errorf("expected expression, found %s", p.describe())
	}
	return sb.String(), nil
}

func (p *parser) ident() string {
	start := p.pos
	if !isAlpha(p.peek()) {
		return ""
	}
	p.pos++
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !isAlpha(c) && !isDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) skipWS() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '/':
			if !p.atComment() {
				return
			}
			end := bytes.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 1
		default:
			return
		}
	}
}

func (p *parser) atComment() bool {
	return p.pos+1 < len(p.src) && p.src[p.pos] == '/' && p.src[p.pos+1] == '/'
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) describe() string {
	if p.pos >= len(p.src) {
		return "end of input"
	}
	return fmt.Sprintf("%q", p.src[p.pos])
}

func (p *parser) errorf(format string, args ...any) error {
	return p.errorAt(p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) errorAt(offset int, msg string) error {
	line := 1 + bytes.Count(p.src[:offset], []byte{'\n'})
	col := offset + 1
	if nl := bytes.LastIndexByte(p.src[:offset], '\n'); nl >= 0 {
		col = offset - nl
	}
	return &ParseError{Offset: offset, Line: line, Column: col, Msg: msg}
}

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSimple(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '$' || c == '.' || c == '_' || c == ' '
}

func isOperator(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '=', '!', '&', '|':
		return true
	}
	return false
}
