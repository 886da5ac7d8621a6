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
package expand

import (
	"testing"

	"movfuscator/internal/asmir"
	"movfuscator/internal/expr"
)

func exprInt(n int) expr.Expression { return expr.Int(n) }

func instrStrings(instrs []asmir.Instruction) []string {
	out := make([]string, len(instrs))
	for i, in := range instrs {
		out[i] = in.String()
	}
	return out
}

func mustExpand(t *testing.T, mnemonic string, op asmir.Operand) []string {
	t.Helper()
	x := New("mov_data", 0)
	block := &asmir.BasicBlock{
		Name:         "b",
		Instructions: []asmir.Instruction{{Mnemonic: mnemonic, Operands: []asmir.Operand{op}}},
	}
	fn := &asmir.Function{Name: "f", Entry: block}
	if err := x.Expand([]*asmir.Function{fn}); err != nil {
		t.Fatal(err)
	}
	return instrStrings(block.Instructions)
}

func TestExpandPushRegister(t *testing.T) {
	got := mustExpand(t, "pushl", asmir.RegisterOperand{Reg: asmir.EAX})
	want := []string{"subl $(4), %esp", "movl %eax, (%esp)"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandPushEsp(t *testing.T) {
	got := mustExpand(t, "pushl", asmir.RegisterOperand{Reg: asmir.ESP})
	want := []string{"movl %esp, -4(%esp)", "subl $(4), %esp"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandPopEsp(t *testing.T) {
	got := mustExpand(t, "popl", asmir.RegisterOperand{Reg: asmir.ESP})
	want := []string{"movl (%esp), %esp"}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandPushMemoryUsesScratch(t *testing.T) {
	mem := asmir.MemoryOperand{Base: asmir.EBP, Disp: exprInt(8)}
	got := mustExpand(t, "pushl", mem)
	if len(got) != 5 {
		t.Fatalf("expected 5 expanded instructions, got %v", got)
	}
	if got[1] != "movl 8(%ebp), %eax" {
		t.Errorf("got %q, want load into %%eax", got[1])
	}
}

func TestExpandPushMemoryReferencingEaxUsesEbx(t *testing.T) {
	mem := asmir.MemoryOperand{Base: asmir.EAX, Disp: exprInt(0)}
	got := mustExpand(t, "pushl", mem)
	if got[1] != "movl (%eax), %ebx" {
		t.Errorf("got %q, want load into %%ebx", got[1])
	}
}
