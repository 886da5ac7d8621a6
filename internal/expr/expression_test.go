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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustBe(t *testing.T, got, want interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestStringification(t *testing.T) {
	e := Sym("A").Add(4).Add("B").Sub("A")
	mustBe(t, e.String(), "B+4")
}

func TestParsePrintsCollectedTerm(t *testing.T) {
	e, err := Parse("2*(A-1)+3*A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustBe(t, e.String(), "5*A-2")
}

func TestParseNonLinear(t *testing.T) {
	_, err := Parse("A*B")
	if err == nil {
		t.Fatal("expected a non-linear multiplication error")
	}
}

func TestEmptyExpressionPrintsZero(t *testing.T) {
	mustBe(t, Int(0).String(), "0")
	e, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustBe(t, e.String(), "0")
}

func TestNegativeCoefficient(t *testing.T) {
	e := Sym("s").Mul(-1)
	mustBe(t, e.String(), "-s")
}

func TestRoundTrip(t *testing.T) {
	cases := []Expression{
		Int(0),
		Int(42),
		Sym("x"),
		Sym("x").Mul(-1),
		Sym("x").Add(3).Add("y").Mul(2),
	}
	for _, e := range cases {
		parsed, err := Parse(e.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", e.String(), err)
		}
		if !parsed.Equal(e) {
			t.Fatalf("round-trip mismatch for %q: got %q", e.String(), parsed.String())
		}
	}
}

func TestAddSubIdentities(t *testing.T) {
	e := Sym("x").Add(7)
	mustBe(t, e.Add(5).Sub(5).Equal(e), true)
	mustBe(t, e.Mul(0).Equal(Int(0)), true)
	mustBe(t, e.Sub(e).Equal(Int(0)), true)
}

func TestSubstituteToScalarMakesIsScalarTrue(t *testing.T) {
	e := Sym("x").Add(Sym("y")).Add(1)
	e = e.Substitute("x", 2)
	e = e.Substitute("y", 3)
	if !e.IsScalar() {
		t.Fatalf("expected scalar after substituting all symbols, got %q", e.String())
	}
	mustBe(t, e.Constant(), 6)
}

func TestSubstituteDistributesOverExpression(t *testing.T) {
	e := Sym("x").Mul(2).Add(5)
	e = e.Substitute("x", Sym("base").Add(4))
	mustBe(t, e.String(), "2*base+13")
}

func TestSubstituteAbsentSymbolIsNoop(t *testing.T) {
	e := Sym("x").Add(1)
	mustBe(t, e.Substitute("z", 99).Equal(e), true)
}
