// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package expr

import (
	"strconv"

	"github.com/pkg/errors"
)

// Sentinel failure modes, matchable with errors.Is against the error
// returned from Parse.
var (
	ErrNonLinear             = errors.New("expr: non-linear multiplication")
	ErrUnexpectedToken       = errors.New("expr: unexpected token")
	ErrUnexpectedEnd         = errors.New("expr: unexpected end of input")
	ErrUnexpectedExtraTokens = errors.New("expr: unexpected extra tokens")
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokSymbol
	tokPlus
	tokMinus
	tokTimes
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// lexer tokenizes an expression's source text one byte at a time.
type lexer struct {
	src []byte
	pos int
}

func newLexer(s string) *lexer {
	return &lexer{src: []byte(s)}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isSymbolStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}
func isSymbolCont(c byte) bool { return isSymbolStart(c) || isDigit(c) }

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) nextToken() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '+':
		l.pos++
		return token{kind: tokPlus, text: "+"}, nil
	case c == '-':
		l.pos++
		return token{kind: tokMinus, text: "-"}, nil
	case c == '*':
		l.pos++
		return token{kind: tokTimes, text: "*"}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case isDigit(c):
		start := l.pos
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokInt, text: string(l.src[start:l.pos])}, nil
	case isSymbolStart(c):
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && isSymbolCont(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokSymbol, text: string(l.src[start:l.pos])}, nil
	default:
		return token{}, errors.Wrapf(ErrUnexpectedToken, "unexpected character %q", string(c))
	}
}

type parser struct {
	lex *lexer
	cur token
}

func newParser(s string) (*parser, error) {
	p := &parser{lex: newLexer(s)}
	tok, err := p.lex.nextToken()
	if err != nil {
		return nil, err
	}
	p.cur = tok
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.nextToken()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// Parse recognizes the grammar
//
//	expr   := term (('+'|'-') term)*
//	term   := factor ('*' factor)*
//	factor := '(' expr ')' | ('+'|'-') factor | integer | symbol
//
// Symbols match [A-Za-z_.][A-Za-z0-9_.]*. Whitespace is insignificant.
// Empty input parses to the scalar 0.
func Parse(source string) (Expression, error) {
	p, err := newParser(source)
	if err != nil {
		return Expression{}, err
	}
	if p.cur.kind == tokEOF {
		return Int(0), nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return Expression{}, err
	}
	if p.cur.kind != tokEOF {
		return Expression{}, errors.Wrapf(ErrUnexpectedExtraTokens, "trailing input starting at %q", p.cur.text)
	}
	return e, nil
}

func (p *parser) parseExpr() (Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return Expression{}, err
	}
	for p.cur.kind == tokPlus || p.cur.kind == tokMinus {
		op := p.cur.kind
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return Expression{}, err
		}
		if op == tokPlus {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return Expression{}, err
	}
	for p.cur.kind == tokTimes {
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return Expression{}, err
		}
		left, err = multiplyLinear(left, right)
		if err != nil {
			return Expression{}, err
		}
	}
	return left, nil
}

// multiplyLinear multiplies two expressions, restricted to at most one
// non-scalar factor (the algebra has no representation for a product of two
// symbolic expressions).
func multiplyLinear(a, b Expression) (Expression, error) {
	switch {
	case a.IsScalar():
		return b.Mul(a.Constant()), nil
	case b.IsScalar():
		return a.Mul(b.Constant()), nil
	default:
		return Expression{}, errors.Wrapf(ErrNonLinear, "%s * %s", a.String(), b.String())
	}
}

func (p *parser) parseFactor() (Expression, error) {
	switch p.cur.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return Expression{}, err
		}
		if p.cur.kind != tokRParen {
			return Expression{}, errors.Wrapf(ErrUnexpectedToken, "expected ')', got %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		return e, nil
	case tokPlus:
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		return p.parseFactor()
	case tokMinus:
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		e, err := p.parseFactor()
		if err != nil {
			return Expression{}, err
		}
		return e.Mul(-1), nil
	case tokInt:
		n, convErr := strconv.Atoi(p.cur.text)
		if convErr != nil {
			return Expression{}, errors.Wrapf(convErr, "expr: invalid integer %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		return Int(n), nil
	case tokSymbol:
		sym := p.cur.text
		if err := p.advance(); err != nil {
			return Expression{}, err
		}
		return Sym(sym), nil
	case tokEOF:
		return Expression{}, ErrUnexpectedEnd
	default:
		return Expression{}, errors.Wrapf(ErrUnexpectedToken, "unexpected token %q", p.cur.text)
	}
}
