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
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"movfuscator/internal/asmir"
	"movfuscator/internal/expr"
)

// splitTopLevelCommas splits s on commas that are not nested inside
// parentheses, the way a memory operand's base/index/scale group is
// shielded from an instruction's operand-list split.
func splitTopLevelCommas(s string) []string {
	var fields []string
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

var memoryOperandRe = regexp.MustCompile(`^([^()]*)(?:\(([^()]*)\))?$`)

// parseOperand recognizes, in order: a bare register, a "$expr" immediate,
// or a "disp(base,index,scale)" memory operand (each of base/index/scale
// optional).
func parseOperand(text string, lineNo int) (asmir.Operand, error) {
	text = strings.TrimSpace(text)
	if reg, ok := asmir.LookupRegister(text); ok {
		return asmir.RegisterOperand{Reg: reg}, nil
	}
	if strings.HasPrefix(text, "$") {
		return parseImmediate(text[1:], lineNo)
	}
	return parseMemory(text, lineNo)
}

func parseImmediate(text string, lineNo int) (asmir.Operand, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = text[1 : len(text)-1]
	}
	e, err := expr.Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "textparse: line %d: bad immediate operand", lineNo)
	}
	return asmir.ImmediateOperand{Value: e}, nil
}

func parseMemory(text string, lineNo int) (asmir.Operand, error) {
	m := memoryOperandRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.Errorf("textparse: line %d: malformed memory operand %q", lineNo, text)
	}
	dispText := strings.TrimSpace(m[1])
	parenBody := m[2]

	var disp expr.Expression
	if dispText == "" {
		disp = expr.Int(0)
	} else {
		var err error
		disp, err = expr.Parse(dispText)
		if err != nil {
			return nil, errors.Wrapf(err, "textparse: line %d: bad displacement in %q", lineNo, text)
		}
	}

	mem := asmir.MemoryOperand{Disp: disp}
	hasParens := strings.Contains(text, "(")
	if hasParens {
		fields := splitTopLevelCommas(parenBody)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) >= 1 && fields[0] != "" {
			base, ok := asmir.LookupRegister(fields[0])
			if !ok {
				return nil, errors.Errorf("textparse: line %d: unknown base register %q", lineNo, fields[0])
			}
			mem.Base = base
		}
		if len(fields) >= 2 && fields[1] != "" {
			index, ok := asmir.LookupRegister(fields[1])
			if !ok {
				return nil, errors.Errorf("textparse: line %d: unknown index register %q", lineNo, fields[1])
			}
			mem.Index = index
		}
		if len(fields) >= 3 && fields[2] != "" {
			scale, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, errors.Wrapf(err, "textparse: line %d: bad scale %q", lineNo, fields[2])
			}
			if scale != 1 && scale != 2 && scale != 4 && scale != 8 {
				return nil, errors.Errorf("textparse: line %d: unknown scale %d", lineNo, scale)
			}
			mem.Scale = scale
		}
		if len(fields) > 3 {
			return nil, errors.Errorf("textparse: line %d: too many fields in memory operand %q", lineNo, text)
		}
	}
	return mem, nil
}

// parseInstruction splits "mnemonic operands..." on the first run of
// whitespace, then the operand list on top-level commas.
func parseInstruction(text string, lineNo int) (asmir.Instruction, error) {
	fields := strings.SplitN(text, " ", 2)
	mnemonic := strings.ToLower(strings.TrimSpace(fields[0]))
	// SplitN on a single space does not account for tabs; re-split robustly.
	if idx := strings.IndexAny(text, " \t"); idx >= 0 {
		mnemonic = strings.ToLower(text[:idx])
		fields = []string{mnemonic, strings.TrimSpace(text[idx:])}
	} else {
		fields = []string{mnemonic}
	}

	instr := asmir.Instruction{Mnemonic: mnemonic, Line: lineNo}
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return instr, nil
	}
	for _, opText := range splitTopLevelCommas(fields[1]) {
		opText = strings.TrimSpace(opText)
		if opText == "" {
			continue
		}
		op, err := parseOperand(opText, lineNo)
		if err != nil {
			return asmir.Instruction{}, err
		}
		instr.Operands = append(instr.Operands, op)
	}
	return instr, nil
}
