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

// Package emit walks a flattened CFG in deterministic DFS order,
// re-materializes conditional and unconditional jumps from the edge
// representation, and prints the final .data + .text listing. Grounded on
// CodeGen (compile/codegen/asm_x86.go): a running string buffer and
// per-function label prefixing, with the final buffer run through
// asmfmt.Format for deterministic whitespace.
package emit

import (
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"

	"movfuscator/internal/asmir"
	"movfuscator/internal/layout"
)

// linearize performs a DFS from fn.Entry (true-successor first, then
// false), recording each block once via an identity-based visited set.
func linearize(entry *asmir.BasicBlock) []*asmir.BasicBlock {
	var order []*asmir.BasicBlock
	visited := make(map[*asmir.BasicBlock]bool)
	var walk func(b *asmir.BasicBlock)
	walk = func(b *asmir.BasicBlock) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
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
	walk(entry)
	return order
}

// logicalFallThrough returns the block B would fall through to if nothing
// intervened: DirectSuccessor's target, ConditionalSuccessor's false arm,
// or nil for a terminal block.
func logicalFallThrough(b *asmir.BasicBlock) *asmir.BasicBlock {
	if b.Successor == nil {
		return nil
	}
	switch b.Successor.Kind {
	case asmir.SuccessorDirect:
		return b.Successor.Direct
	case asmir.SuccessorConditional:
		return b.Successor.False
	default:
		return nil
	}
}

func endsWithControlTransfer(b *asmir.BasicBlock) bool {
	if len(b.Instructions) == 0 {
		return false
	}
	last := b.Instructions[len(b.Instructions)-1]
	return asmir.IsReturn(last.Mnemonic) || asmir.IsUnconditionalJump(last.Mnemonic)
}

// Function renders one function's prologue and linearized, jump-resynthesized
// body.
func Function(fn *asmir.Function) string {
	var b strings.Builder
	order := linearize(fn.Entry)

	fmt.Fprintf(&b, "%s:\n", fn.Name)
	for _, instr := range fn.Prologue {
		fmt.Fprintf(&b, "    %s\n", instr.String())
	}
	if len(order) > 0 && order[0].Name != fn.Name {
		fmt.Fprintf(&b, "%s:\n", order[0].Name)
	}

	for i, blk := range order {
		if i > 0 {
			fmt.Fprintf(&b, "%s:\n", blk.Name)
		}
		for _, instr := range blk.Instructions {
			fmt.Fprintf(&b, "    %s\n", instr.String())
		}

		var physicalNext *asmir.BasicBlock
		if i+1 < len(order) {
			physicalNext = order[i+1]
		}

		if blk.Successor != nil && blk.Successor.Kind == asmir.SuccessorConditional {
			fmt.Fprintf(&b, "    %s %s\n", blk.Successor.Condition.String(), blk.Successor.True.Name)
		}

		fallThrough := logicalFallThrough(blk)
		if fallThrough != nil && fallThrough != physicalNext && !endsWithControlTransfer(blk) {
			fmt.Fprintf(&b, "    jmp %s\n", fallThrough.Name)
		}
	}
	return b.String()
}

// Program renders the full output listing: a .data section holding
// dataLabel's allocations (in arena order) followed by a .text section with
// one .global + linearized body per function.
func Program(dataLabel string, allocations []*layout.Allocation, functions []*asmir.Function) (string, error) {
	var b strings.Builder

	b.WriteString(".section .data\n")
	fmt.Fprintf(&b, "%s:\n", dataLabel)
	for _, a := range allocations {
		b.WriteString(a.String())
		b.WriteString("\n")
	}

	b.WriteString(".section .text\n")
	for _, fn := range functions {
		fmt.Fprintf(&b, ".global %s\n", fn.Name)
		b.WriteString(Function(fn))
	}

	formatted, err := asmfmt.Format(strings.NewReader(b.String()))
	if err != nil {
		// asmfmt is a cosmetic pass; fall back to the unformatted buffer
		// rather than lose otherwise-valid output.
		return b.String(), nil
	}
	return string(formatted), nil
}
