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
package asmir

import (
	"strconv"
	"strings"

	"movfuscator/internal/expr"
)

// Operand is the sum type over the three operand shapes a 32-bit x86
// instruction can reference: a register, an immediate, or a memory
// reference.
type Operand interface {
	String() string
	isOperand()
}

// RegisterOperand names a GPR directly.
type RegisterOperand struct {
	Reg Register
}

func (RegisterOperand) isOperand() {}

func (o RegisterOperand) String() string { return o.Reg.String() }

// ImmediateOperand carries a constant/symbolic Expression, always rendered
// parenthesized: $(<expr>).
type ImmediateOperand struct {
	Value expr.Expression
}

func (ImmediateOperand) isOperand() {}

func (o ImmediateOperand) String() string {
	return "$(" + o.Value.String() + ")"
}

// MemoryOperand is disp(base,index,scale) with base, index, and scale all
// optional (Base/Index are NoRegister when absent, Scale is 0 when unset
// and otherwise one of {1,2,4,8}).
type MemoryOperand struct {
	Base  Register
	Index Register
	Scale int
	Disp  expr.Expression
}

func (MemoryOperand) isOperand() {}

func (o MemoryOperand) String() string {
	var b strings.Builder
	hasBaseOrIndex := o.Base != NoRegister || o.Index != NoRegister

	suppressDisp := hasBaseOrIndex && o.Disp.IsScalar() && o.Disp.Constant() == 0
	if !suppressDisp {
		b.WriteString(o.Disp.String())
	}

	if hasBaseOrIndex {
		b.WriteString("(")
		if o.Base != NoRegister {
			b.WriteString(o.Base.String())
		}
		if o.Index != NoRegister {
			b.WriteString(",")
			b.WriteString(o.Index.String())
			if o.Scale != 0 && o.Scale != 1 {
				b.WriteString(",")
				b.WriteString(strconv.Itoa(o.Scale))
			}
		}
		b.WriteString(")")
	}
	return b.String()
}

// References reports whether the memory operand's base or index is reg
// (after folding to its 32-bit parent).
func (o MemoryOperand) References(reg Register) bool {
	return o.Base.Parent32() == reg.Parent32() && o.Base != NoRegister ||
		o.Index.Parent32() == reg.Parent32() && o.Index != NoRegister
}
