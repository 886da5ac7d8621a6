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

// Package textparse tokenizes the .text section of a GAS assembly source
// file, groups instructions into basic blocks, links the blocks into a CFG
// by lowering branch terminators into typed successor edges, and
// partitions the result into functions.
package textparse

import "movfuscator/internal/asmir"

// ParseText builds the CFG for every function in source's .text section.
func ParseText(source string) ([]*asmir.Function, error) {
	lines := textSectionLines(source)
	blocks, labelToBlock, err := buildBlocks(lines)
	if err != nil {
		return nil, err
	}
	if err := linkBlocks(blocks, labelToBlock); err != nil {
		return nil, err
	}
	return extractFunctions(blocks), nil
}
