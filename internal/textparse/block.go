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
package textparse

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"movfuscator/internal/asmir"
)

// ErrUnresolvedBranchTarget is returned when a jump's target cannot be
// resolved to a known block.
var ErrUnresolvedBranchTarget = errors.New("textparse: unresolved branch target")

// ErrUnknownConditionalMnemonic is returned for a terminator mnemonic that
// looks conditional (starts with j/b) but is not a recognized jump.
var ErrUnknownConditionalMnemonic = errors.New("textparse: unknown conditional jump mnemonic")

func buildBlocks(lines []sourceLine) ([]*asmir.BasicBlock, map[string]*asmir.BasicBlock, error) {
	var blocks []*asmir.BasicBlock
	labelToBlock := make(map[string]*asmir.BasicBlock)
	var current *asmir.BasicBlock

	for _, line := range lines {
		switch line.kind {
		case lineLabel:
			block := &asmir.BasicBlock{Name: line.text}
			blocks = append(blocks, block)
			labelToBlock[line.text] = block
			current = block
		case lineDirective:
			// ignored
		case lineInstruction:
			if current == nil {
				current = &asmir.BasicBlock{Name: fmt.Sprintf("loc_%d", line.lineNo)}
				blocks = append(blocks, current)
			}
			instr, err := parseInstruction(line.text, line.lineNo)
			if err != nil {
				return nil, nil, err
			}
			current.Instructions = append(current.Instructions, instr)
			if asmir.IsTerminator(instr.Mnemonic) {
				current = nil
			}
		}
	}
	return blocks, labelToBlock, nil
}

// linkBlocks assigns each block's successor edge per the five link rules
// and removes resolved branch terminators from instruction lists.
func linkBlocks(blocks []*asmir.BasicBlock, labelToBlock map[string]*asmir.BasicBlock) error {
	for i, b := range blocks {
		var next *asmir.BasicBlock
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}

		if len(b.Instructions) == 0 {
			if next != nil {
				b.Successor = asmir.DirectSuccessor(next)
			}
			continue
		}

		last := b.Instructions[len(b.Instructions)-1]
		mnemonic := strings.ToLower(last.Mnemonic)

		switch {
		case asmir.IsReturn(mnemonic):
			// successor stays None; terminator remains in the instruction list.

		case asmir.IsUnconditionalJump(mnemonic):
			target, err := resolveJumpTarget(last, labelToBlock)
			if err != nil {
				return err
			}
			b.Successor = asmir.DirectSuccessor(target)
			b.Instructions = b.Instructions[:len(b.Instructions)-1]

		default:
			if cond, swap, ok := asmir.LookupJumpCondition(mnemonic); ok {
				target, err := resolveJumpTarget(last, labelToBlock)
				if err != nil {
					return err
				}
				if swap {
					b.Successor = asmir.ConditionalSuccessor(next, target, cond)
				} else {
					b.Successor = asmir.ConditionalSuccessor(target, next, cond)
				}
				b.Instructions = b.Instructions[:len(b.Instructions)-1]
			} else if asmir.IsTerminator(mnemonic) {
				return errors.Wrapf(ErrUnknownConditionalMnemonic, "%q at line %d", last.Mnemonic, last.Line)
			} else if next != nil {
				b.Successor = asmir.DirectSuccessor(next)
			}
		}
	}
	return nil
}

func resolveJumpTarget(instr asmir.Instruction, labelToBlock map[string]*asmir.BasicBlock) (*asmir.BasicBlock, error) {
	if len(instr.Operands) != 1 {
		return nil, errors.Wrapf(ErrUnresolvedBranchTarget, "line %d: expected exactly one branch target operand", instr.Line)
	}
	mem, ok := instr.Operands[0].(asmir.MemoryOperand)
	if !ok || mem.Base != asmir.NoRegister || mem.Index != asmir.NoRegister {
		return nil, errors.Wrapf(ErrUnresolvedBranchTarget, "line %d: branch target is not a bare symbol", instr.Line)
	}
	syms := mem.Disp.Symbols()
	if len(syms) != 1 || mem.Disp.Constant() != 0 || mem.Disp.Coefficient(syms[0]) != 1 {
		return nil, errors.Wrapf(ErrUnresolvedBranchTarget, "line %d: branch target is not a bare symbol", instr.Line)
	}
	target, ok := labelToBlock[syms[0]]
	if !ok {
		return nil, errors.Wrapf(ErrUnresolvedBranchTarget, "line %d: unknown label %q", instr.Line, syms[0])
	}
	return target, nil
}
