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

// Package expand lowers pushl/popl into explicit subl/movl/addl sequences,
// the same shape Assembler.push/Assembler.pop/Assembler.GetScratchReg
// already use: pick a scratch register, thread a save/restore around a
// memory-to-memory move, backed here by a dedicated scratch slot in the
// data arena instead of the teacher's register-only scratch.
package expand

import (
	"github.com/pkg/errors"

	"movfuscator/internal/asmir"
	"movfuscator/internal/expr"
	"movfuscator/internal/layout"
)

// ScratchSlotName is the label the stack expander's scratch slot is
// reserved under.
const ScratchSlotName = "__scratch"

// AllocateScratch reserves the 4-byte scratch slot used to stage
// memory-operand pushes/pops. Must run after all user data has been
// allocated (spec's pipeline ordering: D, E, F, then G).
func AllocateScratch(alloc *layout.Allocator) (*layout.Allocation, error) {
	return alloc.AllocateEmpty(4, ScratchSlotName, true)
}

// Expander rewrites pushl/popl instructions, addressing its scratch slot as
// dataLabel+scratchOffset.
type Expander struct {
	DataLabel     string
	ScratchOffset int
}

func New(dataLabel string, scratchOffset int) *Expander {
	return &Expander{DataLabel: dataLabel, ScratchOffset: scratchOffset}
}

func (x *Expander) scratchOperand() asmir.Operand {
	return asmir.MemoryOperand{Disp: expr.Sym(x.DataLabel).Add(x.ScratchOffset)}
}

// Expand rewrites every block reachable from each function's entry,
// replacing pushl/popl with their explicit expansions.
func (x *Expander) Expand(functions []*asmir.Function) error {
	for _, fn := range functions {
		visited := make(map[*asmir.BasicBlock]bool)
		var walk func(b *asmir.BasicBlock) error
		walk = func(b *asmir.BasicBlock) error {
			if b == nil || visited[b] {
				return nil
			}
			visited[b] = true
			expanded, err := x.expandBlock(b.Instructions)
			if err != nil {
				return err
			}
			b.Instructions = expanded
			if b.Successor == nil {
				return nil
			}
			switch b.Successor.Kind {
			case asmir.SuccessorDirect:
				return walk(b.Successor.Direct)
			case asmir.SuccessorConditional:
				if err := walk(b.Successor.True); err != nil {
					return err
				}
				return walk(b.Successor.False)
			}
			return nil
		}
		if err := walk(fn.Entry); err != nil {
			return err
		}
	}
	return nil
}

func (x *Expander) expandBlock(instrs []asmir.Instruction) ([]asmir.Instruction, error) {
	out := make([]asmir.Instruction, 0, len(instrs))
	for _, instr := range instrs {
		switch instr.Mnemonic {
		case "pushl":
			expanded, err := x.expandPush(instr)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		case "popl":
			expanded, err := x.expandPop(instr)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		default:
			out = append(out, instr)
		}
	}
	return out, nil
}

func mk(line int, mnemonic string, ops ...asmir.Operand) asmir.Instruction {
	return asmir.Instruction{Mnemonic: mnemonic, Operands: ops, Line: line}
}

func reg(r asmir.Register) asmir.Operand { return asmir.RegisterOperand{Reg: r} }
func imm(n int) asmir.Operand            { return asmir.ImmediateOperand{Value: expr.Int(n)} }
func espMem(disp int) asmir.Operand {
	return asmir.MemoryOperand{Base: asmir.ESP, Disp: expr.Int(disp)}
}

// scratchRegisterFor picks EAX, unless the operand references EAX, in which
// case EBX.
func scratchRegisterFor(op asmir.Operand) asmir.Register {
	if mem, ok := op.(asmir.MemoryOperand); ok && mem.References(asmir.EAX) {
		return asmir.EBX
	}
	return asmir.EAX
}

func (x *Expander) expandPush(instr asmir.Instruction) ([]asmir.Instruction, error) {
	if len(instr.Operands) != 1 {
		return nil, errors.Errorf("expand: line %d: pushl expects exactly one operand", instr.Line)
	}
	src := instr.Operands[0]
	line := instr.Line

	if r, ok := src.(asmir.RegisterOperand); ok && r.Reg == asmir.ESP {
		return []asmir.Instruction{
			mk(line, "movl", reg(asmir.ESP), espMem(-4)),
			mk(line, "subl", imm(4), reg(asmir.ESP)),
		}, nil
	}

	switch src.(type) {
	case asmir.RegisterOperand, asmir.ImmediateOperand:
		return []asmir.Instruction{
			mk(line, "subl", imm(4), reg(asmir.ESP)),
			mk(line, "movl", src, espMem(0)),
		}, nil
	default:
		scratch := scratchRegisterFor(src)
		return []asmir.Instruction{
			mk(line, "movl", reg(scratch), x.scratchOperand()),
			mk(line, "movl", src, reg(scratch)),
			mk(line, "subl", imm(4), reg(asmir.ESP)),
			mk(line, "movl", reg(scratch), espMem(0)),
			mk(line, "movl", x.scratchOperand(), reg(scratch)),
		}, nil
	}
}

func (x *Expander) expandPop(instr asmir.Instruction) ([]asmir.Instruction, error) {
	if len(instr.Operands) != 1 {
		return nil, errors.Errorf("expand: line %d: popl expects exactly one operand", instr.Line)
	}
	dst := instr.Operands[0]
	line := instr.Line

	if r, ok := dst.(asmir.RegisterOperand); ok && r.Reg == asmir.ESP {
		return []asmir.Instruction{
			mk(line, "movl", espMem(0), reg(asmir.ESP)),
		}, nil
	}

	switch dst.(type) {
	case asmir.RegisterOperand:
		return []asmir.Instruction{
			mk(line, "movl", espMem(0), dst),
			mk(line, "addl", imm(4), reg(asmir.ESP)),
		}, nil
	default:
		scratch := scratchRegisterFor(dst)
		return []asmir.Instruction{
			mk(line, "movl", reg(scratch), x.scratchOperand()),
			mk(line, "movl", espMem(0), reg(scratch)),
			mk(line, "addl", imm(4), reg(asmir.ESP)),
			mk(line, "movl", reg(scratch), dst),
			mk(line, "movl", x.scratchOperand(), reg(scratch)),
		}, nil
	}
}
