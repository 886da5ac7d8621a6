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

import "strings"

// JumpCondition is the canonical 5-value set every x86 conditional jump
// mnemonic reduces to.
type JumpCondition int

const (
	JE JumpCondition = iota
	JL
	JG
	JB
	JA
)

func (c JumpCondition) String() string {
	switch c {
	case JE:
		return "je"
	case JL:
		return "jl"
	case JG:
		return "jg"
	case JB:
		return "jb"
	case JA:
		return "ja"
	default:
		return "j?"
	}
}

type conditionMapping struct {
	cond JumpCondition
	swap bool
}

var conditionAliases = map[string]conditionMapping{
	"je": {JE, false}, "jz": {JE, false},
	"jne": {JE, true}, "jnz": {JE, true},

	"jl": {JL, false}, "jnge": {JL, false},
	"jge": {JL, true}, "jnl": {JL, true},

	"jg": {JG, false}, "jnle": {JG, false},
	"jle": {JG, true}, "jng": {JG, true},

	"jb": {JB, false}, "jnae": {JB, false}, "jc": {JB, false},
	"jae": {JB, true}, "jnb": {JB, true}, "jnc": {JB, true},

	"ja": {JA, false}, "jnbe": {JA, false},
	"jbe": {JA, true}, "jna": {JA, true},
}

// LookupJumpCondition resolves a conditional jump mnemonic to its canonical
// condition and whether the true/false branches must be swapped.
func LookupJumpCondition(mnemonic string) (cond JumpCondition, swap bool, ok bool) {
	m, ok := conditionAliases[strings.ToLower(mnemonic)]
	return m.cond, m.swap, ok
}
