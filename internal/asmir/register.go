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

// Register enumerates the 32/16/8-bit x86 GPRs this system tracks. Ordinal
// order of the 32-bit members (EAX..ESP) is load-bearing: it is the fixed
// declaration order the context switcher iterates in for deterministic
// output.
type Register int

const (
	NoRegister Register = iota
	EAX
	EBX
	ECX
	EDX
	ESI
	EDI
	EBP
	ESP
	AX
	BX
	CX
	DX
	SI
	DI
	BP
	SP
	AL
	BL
	CL
	DL
	AH
	BH
	CH
	DH
)

type registerInfo struct {
	name   string
	bits   int
	parent Register
}

var registerTable = map[Register]registerInfo{
	EAX: {"%eax", 32, EAX},
	EBX: {"%ebx", 32, EBX},
	ECX: {"%ecx", 32, ECX},
	EDX: {"%edx", 32, EDX},
	ESI: {"%esi", 32, ESI},
	EDI: {"%edi", 32, EDI},
	EBP: {"%ebp", 32, EBP},
	ESP: {"%esp", 32, ESP},
	AX:  {"%ax", 16, EAX},
	BX:  {"%bx", 16, EBX},
	CX:  {"%cx", 16, ECX},
	DX:  {"%dx", 16, EDX},
	SI:  {"%si", 16, ESI},
	DI:  {"%di", 16, EDI},
	BP:  {"%bp", 16, EBP},
	SP:  {"%sp", 16, ESP},
	AL:  {"%al", 8, EAX},
	BL:  {"%bl", 8, EBX},
	CL:  {"%cl", 8, ECX},
	DL:  {"%dl", 8, EDX},
	AH:  {"%ah", 8, EAX},
	BH:  {"%bh", 8, EBX},
	CH:  {"%ch", 8, ECX},
	DH:  {"%dh", 8, EDX},
}

// TrackedRegisters is the fixed-order set of 32-bit registers the context
// switcher virtualizes into the shared memory context.
var TrackedRegisters = []Register{EAX, EBX, ECX, EDX, ESI, EDI, EBP, ESP}

var registerByName = func() map[string]Register {
	m := make(map[string]Register, len(registerTable))
	for reg, info := range registerTable {
		m[info.name] = reg
	}
	return m
}()

// LookupRegister resolves an AT&T register spelling ("%eax", case
// insensitive) to its Register constant. ok is false if text does not name
// one of the recognized 32/16/8-bit registers.
func LookupRegister(text string) (Register, bool) {
	reg, ok := registerByName[strings.ToLower(text)]
	return reg, ok
}

// String returns the AT&T spelling, e.g. "%eax".
func (r Register) String() string {
	if info, ok := registerTable[r]; ok {
		return info.name
	}
	return "%<invalid>"
}

// Bits returns the register's width: 32, 16, or 8.
func (r Register) Bits() int {
	return registerTable[r].bits
}

// Parent32 folds an 8/16-bit partial register to its 32-bit container
// (AL, AH, AX -> EAX, etc). 32-bit registers fold to themselves.
func (r Register) Parent32() Register {
	return registerTable[r].parent
}

// Valid reports whether r names a recognized register.
func (r Register) Valid() bool {
	_, ok := registerTable[r]
	return ok
}
