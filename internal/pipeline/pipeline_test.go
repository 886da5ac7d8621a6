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
package pipeline

import (
	"strings"
	"testing"
)

const sampleSource = `
.section .data
counter:
    .int 1337
.section .text
main:
    movl counter, %eax
    cmpl $0, %eax
    jge skip
    pushl %eax
    popl %ebx
skip:
    ret
`

func TestRunProducesDataAndTextSections(t *testing.T) {
	out, err := Run(sampleSource, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ".section .data") {
		t.Errorf("missing .data section in output:\n%s", out)
	}
	if !strings.Contains(out, ".section .text") {
		t.Errorf("missing .text section in output:\n%s", out)
	}
	if !strings.Contains(out, ".global main") {
		t.Errorf("missing .global main in output:\n%s", out)
	}
	if strings.Contains(out, "counter,") || strings.Contains(out, " counter\n") {
		t.Errorf("user data symbol leaked into emitted text:\n%s", out)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	out1, err := Run(sampleSource, Options{})
	if err != nil {
		t.Fatal(err)
	}
	out2, err := Run(sampleSource, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out1 != out2 {
		t.Errorf("pipeline output is not deterministic across runs")
	}
}

func TestRunPropagatesParseErrors(t *testing.T) {
	bad := `
.section .text
main:
    jmp nowhere
`
	if _, err := Run(bad, Options{}); err == nil {
		t.Fatal("expected an error for an unresolvable jump target")
	}
}
