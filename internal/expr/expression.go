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
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Expression is a linear combination of an integer constant and named
// symbols with integer coefficients: constant + sum(coefficient*symbol).
// The zero value is the scalar 0.
type Expression struct {
	constant int
	terms    map[string]int
}

// Int builds the pure constant expression n.
func Int(n int) Expression {
	return Expression{constant: n}
}

// Sym builds the expression 1*name.
func Sym(name string) Expression {
	return Expression{terms: map[string]int{name: 1}}
}

func (e Expression) cloneTerms() map[string]int {
	if len(e.terms) == 0 {
		return nil
	}
	out := make(map[string]int, len(e.terms))
	for k, v := range e.terms {
		out[k] = v
	}
	return out
}

// operand is anything that Add/Sub/Substitute accept on the right-hand
// side: an int, a symbol name (string), or another Expression.
func asExpression(v interface{}) (Expression, error) {
	switch t := v.(type) {
	case int:
		return Int(t), nil
	case string:
		return Sym(t), nil
	case Expression:
		return t, nil
	default:
		return Expression{}, errors.Errorf("expr: unsupported operand type %T", v)
	}
}

// Add returns e + v where v is an int, symbol name, or Expression.
func (e Expression) Add(v interface{}) Expression {
	other, err := asExpression(v)
	if err != nil {
		panic(err)
	}
	return e.addExpr(other, 1)
}

// Sub returns e - v where v is an int, symbol name, or Expression.
func (e Expression) Sub(v interface{}) Expression {
	other, err := asExpression(v)
	if err != nil {
		panic(err)
	}
	return e.addExpr(other, -1)
}

func (e Expression) addExpr(other Expression, sign int) Expression {
	result := Expression{constant: e.constant + sign*other.constant, terms: e.cloneTerms()}
	for sym, coeff := range other.terms {
		result = result.addTerm(sym, sign*coeff)
	}
	return result
}

func (e Expression) addTerm(sym string, coeff int) Expression {
	terms := e.cloneTerms()
	if terms == nil {
		terms = make(map[string]int)
	}
	newCoeff := terms[sym] + coeff
	if newCoeff == 0 {
		delete(terms, sym)
	} else {
		terms[sym] = newCoeff
	}
	return Expression{constant: e.constant, terms: terms}
}

// Mul returns e * n. Only scaling by an integer is supported: the product
// of two non-constant expressions is not representable in this linear
// algebra, so no method multiplies two Expressions (Parse rejects such
// products with ErrNonLinear).
func (e Expression) Mul(n int) Expression {
	if n == 0 {
		return Expression{}
	}
	terms := make(map[string]int, len(e.terms))
	for sym, coeff := range e.terms {
		terms[sym] = coeff * n
	}
	return Expression{constant: e.constant * n, terms: terms}
}

// Substitute replaces every occurrence of symbol sym with value (an int or
// Expression), distributing algebraically. It is a no-op if sym is absent.
func (e Expression) Substitute(sym string, value interface{}) Expression {
	coeff, present := e.terms[sym]
	if !present {
		return e
	}
	replacement, err := asExpression(value)
	if err != nil {
		panic(err)
	}
	result := Expression{constant: e.constant, terms: e.cloneTerms()}
	delete(result.terms, sym)
	result = result.addExpr(replacement, coeff)
	return result
}

// IsScalar reports whether the expression has no remaining symbolic terms.
func (e Expression) IsScalar() bool {
	return len(e.terms) == 0
}

// Constant returns the constant term. Only meaningful in isolation when
// IsScalar() is true.
func (e Expression) Constant() int {
	return e.constant
}

// Symbols returns the expression's symbol names, sorted lexicographically.
func (e Expression) Symbols() []string {
	syms := make([]string, 0, len(e.terms))
	for sym := range e.terms {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Coefficient returns the coefficient of sym, or 0 if absent.
func (e Expression) Coefficient(sym string) int {
	return e.terms[sym]
}

// Equal reports structural equality of the canonical form.
func (e Expression) Equal(other Expression) bool {
	if e.constant != other.constant {
		return false
	}
	if len(e.terms) != len(other.terms) {
		return false
	}
	for sym, coeff := range e.terms {
		if other.terms[sym] != coeff {
			return false
		}
	}
	return true
}

// String renders AT&T/GAS-compatible text: terms sorted lexicographically,
// coefficient 1 rendered bare, -1 rendered with a leading '-', any other k
// rendered "k*sym"; a nonzero constant is appended; "+-" collapses to "-";
// the empty expression prints "0".
func (e Expression) String() string {
	var b strings.Builder
	first := true
	for _, sym := range e.Symbols() {
		coeff := e.terms[sym]
		term := formatTerm(coeff, sym)
		if first {
			b.WriteString(term)
			first = false
			continue
		}
		appendSigned(&b, term)
	}
	if e.constant != 0 {
		if first {
			b.WriteString(fmt.Sprintf("%d", e.constant))
			first = false
		} else {
			appendSigned(&b, fmt.Sprintf("%d", e.constant))
		}
	}
	if first {
		return "0"
	}
	return b.String()
}

func formatTerm(coeff int, sym string) string {
	switch coeff {
	case 1:
		return sym
	case -1:
		return "-" + sym
	default:
		return fmt.Sprintf("%d*%s", coeff, sym)
	}
}

// appendSigned appends term to b, collapsing a leading "+-" into "-".
func appendSigned(b *strings.Builder, term string) {
	if strings.HasPrefix(term, "-") {
		b.WriteString(term)
		return
	}
	b.WriteString("+")
	b.WriteString(term)
}
