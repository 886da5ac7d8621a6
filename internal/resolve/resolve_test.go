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
package resolve

import (
	"testing"

	"movfuscator/internal/asmir"
	"movfuscator/internal/expr"
	"movfuscator/internal/layout"
)

func TestSymbolTableKeepsOnlyFirstAllocation(t *testing.T) {
	allocs := map[string][]*layout.Allocation{
		"counter": {{Offset: 0}, {Offset: 8}},
		"flag":    {{Offset: 4}},
	}
	table := SymbolTable(allocs)
	if table["counter"] != 0 {
		t.Errorf("counter offset = %d, want 0", table["counter"])
	}
	if table["flag"] != 4 {
		t.Errorf("flag offset = %d, want 4", table["flag"])
	}
}

func TestResolveRewritesDataSymbols(t *testing.T) {
	block := &asmir.BasicBlock{
		Name: "entry",
		Instructions: []asmir.Instruction{
			{Mnemonic: "movl", Operands: []asmir.Operand{
				asmir.MemoryOperand{Disp: expr.Sym("counter")},
				asmir.RegisterOperand{Reg: asmir.EAX},
			}},
			{Mnemonic: "movl", Operands: []asmir.Operand{
				asmir.ImmediateOperand{Value: expr.Sym("counter").Add(4)},
				asmir.RegisterOperand{Reg: asmir.EBX},
			}},
		},
	}
	fn := &asmir.Function{Name: "entry", Entry: block}
	offsets := map[string]int{"counter": 12}

	Resolve([]*asmir.Function{fn}, offsets, "mov_data")

	mem := block.Instructions[0].Operands[0].(asmir.MemoryOperand)
	if got, want := mem.Disp.String(), "mov_data+12"; got != want {
		t.Errorf("memory disp = %q, want %q", got, want)
	}
	imm := block.Instructions[1].Operands[0].(asmir.ImmediateOperand)
	if got, want := imm.Value.String(), "mov_data+16"; got != want {
		t.Errorf("immediate value = %q, want %q", got, want)
	}
}

func TestResolveLeavesUnknownSymbolsAlone(t *testing.T) {
	block := &asmir.BasicBlock{
		Name: "entry",
		Instructions: []asmir.Instruction{
			{Mnemonic: "movl", Operands: []asmir.Operand{
				asmir.ImmediateOperand{Value: expr.Sym("unrelated")},
				asmir.RegisterOperand{Reg: asmir.EAX},
			}},
		},
	}
	fn := &asmir.Function{Name: "entry", Entry: block}
	Resolve([]*asmir.Function{fn}, map[string]int{"counter": 0}, "mov_data")

	imm := block.Instructions[0].Operands[0].(asmir.ImmediateOperand)
	if got, want := imm.Value.String(), "unrelated"; got != want {
		t.Errorf("immediate value = %q, want %q", got, want)
	}
}
