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
package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Allocation is one datum in the master data arena: a name (the label it
// was parsed under), its byte offset from the start of the arena, its size,
// and the directive + value needed to re-emit it.
type Allocation struct {
	Name      string
	Offset    int
	Size      int
	Directive string // one of ".int", ".float", ".asciz", ".zero"

	Ints   []int
	Floats []float64
	Str    string
}

func (a *Allocation) valueText() string {
	switch a.Directive {
	case ".int":
		parts := make([]string, len(a.Ints))
		for i, v := range a.Ints {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, ",")
	case ".float":
		parts := make([]string, len(a.Floats))
		for i, v := range a.Floats {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	case ".asciz":
		return quoteString(a.Str)
	case ".zero":
		return strconv.Itoa(a.Size)
	default:
		return ""
	}
}

// String renders the allocation the way the emitter prints a data-section
// line: "    <directive> <value>  # <name> (+<offset>)".
func (a *Allocation) String() string {
	return fmt.Sprintf("    %s %s  # %s (+%d)", a.Directive, a.valueText(), a.Name, a.Offset)
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
