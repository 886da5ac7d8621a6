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
package emit

import (
	"strings"
	"testing"

	"movfuscator/internal/asmir"
)

func TestNoSpuriousJumpToPhysicalNext(t *testing.T) {
	b1 := &asmir.BasicBlock{Name: "a", Instructions: []asmir.Instruction{{Mnemonic: "movl"}}}
	b2 := &asmir.BasicBlock{Name: "b", Instructions: []asmir.Instruction{{Mnemonic: "ret"}}}
	b1.Successor = asmir.DirectSuccessor(b2)

	fn := &asmir.Function{Name: "f", Entry: b1}
	out := Function(fn)
	if strings.Contains(out, "jmp b") {
		t.Errorf("expected no jmp to physically-next block, got:\n%s", out)
	}
}

// TestConditionalEmitsJumpToTrueThenJumpToFalse: the DFS linearizes the true
// arm right after start, so the false arm is not physically adjacent and
// needs an explicit jmp after the conditional jump.
func TestConditionalEmitsJumpToTrueThenJumpToFalse(t *testing.T) {
	trueBlk := &asmir.BasicBlock{Name: "taken", Instructions: []asmir.Instruction{{Mnemonic: "ret"}}}
	falseBlk := &asmir.BasicBlock{Name: "fallthru", Instructions: []asmir.Instruction{{Mnemonic: "ret"}}}
	entry := &asmir.BasicBlock{Name: "start", Instructions: []asmir.Instruction{{Mnemonic: "cmpl"}}}
	entry.Successor = asmir.ConditionalSuccessor(trueBlk, falseBlk, asmir.JL)

	fn := &asmir.Function{Name: "f", Entry: entry}
	out := Function(fn)
	if !strings.Contains(out, "jl taken") {
		t.Errorf("expected a jl to the true block, got:\n%s", out)
	}
	if !strings.Contains(out, "jmp fallthru") {
		t.Errorf("expected a jmp to the non-adjacent false block, got:\n%s", out)
	}
}

// TestUnconditionalJumpAcrossNonAdjacentBlock builds entry -> A -> {loop,
// mid}, where A's true arm goes straight to loop (so loop is linearized
// right after A) and its false arm falls through to mid. mid then jumps
// back to loop with a bare DirectSuccessor. Because loop was already
// linearized before mid (DFS visits true before false), mid's target is
// not physically adjacent, so the emitter must resynthesize an explicit
// "jmp loop" after mid's body rather than silently falling through.
func TestUnconditionalJumpAcrossNonAdjacentBlock(t *testing.T) {
	loop := &asmir.BasicBlock{Name: "loop", Instructions: []asmir.Instruction{{Mnemonic: "ret"}}}
	mid := &asmir.BasicBlock{Name: "mid", Instructions: []asmir.Instruction{{Mnemonic: "movl"}}}
	a := &asmir.BasicBlock{Name: "a", Instructions: []asmir.Instruction{{Mnemonic: "cmpl"}}}
	entry := &asmir.BasicBlock{Name: "start", Instructions: []asmir.Instruction{{Mnemonic: "movl"}}}

	entry.Successor = asmir.DirectSuccessor(a)
	a.Successor = asmir.ConditionalSuccessor(loop, mid, asmir.JE)
	mid.Successor = asmir.DirectSuccessor(loop)

	fn := &asmir.Function{Name: "f", Entry: entry}
	out := Function(fn)

	midIdx := strings.Index(out, "mid:")
	jmpIdx := strings.Index(out, "jmp loop")
	if midIdx == -1 {
		t.Fatalf("expected mid's label in output, got:\n%s", out)
	}
	if jmpIdx == -1 {
		t.Fatalf("expected an explicit jmp back to the non-adjacent loop block, got:\n%s", out)
	}
	if jmpIdx < midIdx {
		t.Errorf("expected the jmp to loop to follow mid's label, got:\n%s", out)
	}
	if strings.Count(out, "loop:") != 1 {
		t.Errorf("expected loop's label to be emitted exactly once, got:\n%s", out)
	}
}
