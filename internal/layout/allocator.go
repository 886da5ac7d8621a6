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

	"github.com/pkg/errors"
)

// Allocator lays out Allocations in a single monotonically growing arena,
// the way Assembler.allocateStackSlot lays out stack slots: a running
// cursor plus automatically inserted alignment padding.
type Allocator struct {
	Alignment int

	cursor      int
	Allocations []*Allocation
}

// NewAllocator builds an Allocator with the given byte alignment (spec
// default is 4).
func NewAllocator(alignment int) *Allocator {
	if alignment <= 0 {
		alignment = 1
	}
	return &Allocator{Alignment: alignment}
}

// Size is the current extent of the arena in bytes.
func (a *Allocator) Size() int {
	return a.cursor
}

func (a *Allocator) alignCursor() {
	if a.Alignment <= 1 {
		return
	}
	rem := a.cursor % a.Alignment
	if rem == 0 {
		return
	}
	padSize := a.Alignment - rem
	pad := &Allocation{
		Name:      fmt.Sprintf("__pad_%d", a.cursor),
		Offset:    a.cursor,
		Size:      padSize,
		Directive: ".zero",
	}
	a.Allocations = append(a.Allocations, pad)
	a.cursor += padSize
}

func (a *Allocator) place(al *Allocation, enforceAlignment bool) *Allocation {
	if enforceAlignment {
		a.alignCursor()
	}
	al.Offset = a.cursor
	a.Allocations = append(a.Allocations, al)
	a.cursor += al.Size
	return al
}

// AllocateData lays out value (int, []int, float64, []float64, or string)
// under name, returning the new Allocation. Every call site in this
// repository passes enforceAlignment=true; with false, the allocation is
// placed at the current cursor without inserting padding.
func (a *Allocator) AllocateData(value interface{}, name string, enforceAlignment bool) (*Allocation, error) {
	al := &Allocation{Name: name}
	switch v := value.(type) {
	case int:
		al.Directive = ".int"
		al.Ints = []int{v}
		al.Size = 4
	case []int:
		if len(v) == 0 {
			return nil, errors.Errorf("layout: empty int list allocation for %q", name)
		}
		al.Directive = ".int"
		al.Ints = v
		al.Size = 4 * len(v)
	case float64:
		al.Directive = ".float"
		al.Floats = []float64{v}
		al.Size = 4
	case []float64:
		if len(v) == 0 {
			return nil, errors.Errorf("layout: empty float list allocation for %q", name)
		}
		al.Directive = ".float"
		al.Floats = v
		al.Size = 4 * len(v)
	case string:
		al.Directive = ".asciz"
		al.Str = v
		al.Size = len([]byte(v)) + 1
	default:
		return nil, errors.Errorf("layout: unsupported allocation value type %T for %q", value, name)
	}
	return a.place(al, enforceAlignment), nil
}

// AllocateEmpty reserves size zero-initialized bytes under name.
func (a *Allocator) AllocateEmpty(size int, name string, enforceAlignment bool) (*Allocation, error) {
	if size <= 0 {
		return nil, errors.Errorf("layout: non-positive empty allocation size %d for %q", size, name)
	}
	al := &Allocation{Name: name, Directive: ".zero", Size: size}
	return a.place(al, enforceAlignment), nil
}
