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
package ctxswitch

import (
	"testing"

	"movfuscator/internal/asmir"
	"movfuscator/internal/layout"
)

func TestAllocateSlotsFixedOrder(t *testing.T) {
	alloc := layout.NewAllocator(4)
	sw, err := AllocateSlots(alloc, "mov_data")
	if err != nil {
		t.Fatal(err)
	}
	prev := -1
	for _, reg := range asmir.TrackedRegisters {
		off := sw.slots[reg]
		if off <= prev {
			t.Fatalf("register %v slot offset %d did not increase from %d", reg, off, prev)
		}
		prev = off
	}
}

func TestUsedRegistersExplicitAndImplicit(t *testing.T) {
	instrs := []asmir.Instruction{
		{Mnemonic: "movl", Operands: []asmir.Operand{
			asmir.RegisterOperand{Reg: asmir.AL},
			asmir.RegisterOperand{Reg: asmir.ECX},
		}},
		{Mnemonic: "mull", Operands: []asmir.Operand{asmir.RegisterOperand{Reg: asmir.EBX}}},
	}
	got := usedRegisters(instrs)
	want := []asmir.Register{asmir.EAX, asmir.EBX, asmir.ECX, asmir.EDX}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestApplyRenamesEntryBlock(t *testing.T) {
	alloc := layout.NewAllocator(4)
	sw, err := AllocateSlots(alloc, "mov_data")
	if err != nil {
		t.Fatal(err)
	}
	block := &asmir.BasicBlock{Name: "myfunc", Instructions: []asmir.Instruction{
		{Mnemonic: "movl", Operands: []asmir.Operand{
			asmir.RegisterOperand{Reg: asmir.EAX}, asmir.RegisterOperand{Reg: asmir.EBX},
		}},
	}}
	fn := &asmir.Function{Name: "myfunc", Entry: block}
	sw.Apply([]*asmir.Function{fn})

	if fn.Entry.Name != "myfunc__entry_block" {
		t.Errorf("entry block name = %q, want myfunc__entry_block", fn.Entry.Name)
	}
	if len(fn.Prologue) != len(asmir.TrackedRegisters) {
		t.Errorf("prologue length = %d, want %d", len(fn.Prologue), len(asmir.TrackedRegisters))
	}
	// load EAX, load EBX, original instruction, save EAX, save EBX
	if len(fn.Entry.Instructions) != 5 {
		t.Fatalf("block instructions = %v", fn.Entry.Instructions)
	}
}
