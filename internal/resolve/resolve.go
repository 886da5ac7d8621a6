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

// Package resolve rewrites every data symbol referenced by an operand's
// Expression into (data_label + offset), the way Assembler.patchSymbol
// rewrites a placeholder symbol once its true value is known, generalized
// here to every data symbol via expr.Expression.Substitute.
package resolve

import (
	"github.com/samber/lo"

	"movfuscator/internal/asmir"
	"movfuscator/internal/expr"
	"movfuscator/internal/layout"
)

// SymbolTable builds symbol -> offset from the *first* Allocation recorded
// under each label. Labels with multiple allocations expose only that
// first offset by name; later items remain physically laid out but are
// only reachable via manual "label+k" Expression arithmetic.
func SymbolTable(allocations map[string][]*layout.Allocation) map[string]int {
	offsets := make(map[string]int, len(allocations))
	for label, allocs := range allocations {
		if len(allocs) == 0 {
			continue
		}
		offsets[label] = allocs[0].Offset
	}
	return offsets
}

// Resolve rewrites every Immediate/Memory operand's Expression across every
// instruction of every function, substituting each known data symbol s with
// (dataLabel + offsets[s]). Symbols not present in offsets (e.g. branch
// target labels already folded into successor edges, or genuinely unknown
// names) are left untouched.
func Resolve(functions []*asmir.Function, offsets map[string]int, dataLabel string) {
	for _, fn := range functions {
		walkFunction(fn, func(instr *asmir.Instruction) {
			for i, op := range instr.Operands {
				instr.Operands[i] = resolveOperand(op, offsets, dataLabel)
			}
		})
	}
}

func resolveOperand(op asmir.Operand, offsets map[string]int, dataLabel string) asmir.Operand {
	switch v := op.(type) {
	case asmir.ImmediateOperand:
		v.Value = resolveExpr(v.Value, offsets, dataLabel)
		return v
	case asmir.MemoryOperand:
		v.Disp = resolveExpr(v.Disp, offsets, dataLabel)
		return v
	default:
		return op
	}
}

func resolveExpr(e expr.Expression, offsets map[string]int, dataLabel string) expr.Expression {
	syms := lo.Filter(e.Symbols(), func(s string, _ int) bool {
		_, ok := offsets[s]
		return ok
	})
	for _, sym := range syms {
		off := offsets[sym]
		replacement := expr.Sym(dataLabel).Add(off)
		e = e.Substitute(sym, replacement)
	}
	return e
}

// walkFunction visits every instruction reachable from fn.Entry (and, once
// present, fn.Prologue), applying visit to each in place. Blocks are
// visited at most once via an identity-based visited set, matching the
// linearizer's traversal discipline.
func walkFunction(fn *asmir.Function, visit func(*asmir.Instruction)) {
	for i := range fn.Prologue {
		visit(&fn.Prologue[i])
	}
	visited := make(map[*asmir.BasicBlock]bool)
	var walk func(b *asmir.BasicBlock)
	walk = func(b *asmir.BasicBlock) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		for i := range b.Instructions {
			visit(&b.Instructions[i])
		}
		if b.Successor == nil {
			return
		}
		switch b.Successor.Kind {
		case asmir.SuccessorDirect:
			walk(b.Successor.Direct)
		case asmir.SuccessorConditional:
			walk(b.Successor.True)
			walk(b.Successor.False)
		}
	}
	walk(fn.Entry)
}
