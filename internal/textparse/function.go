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

import "movfuscator/internal/asmir"

func successorsOf(b *asmir.BasicBlock) []*asmir.BasicBlock {
	if b.Successor == nil {
		return nil
	}
	switch b.Successor.Kind {
	case asmir.SuccessorDirect:
		return []*asmir.BasicBlock{b.Successor.Direct}
	case asmir.SuccessorConditional:
		return []*asmir.BasicBlock{b.Successor.True, b.Successor.False}
	default:
		return nil
	}
}

// extractFunctions treats blocks as a graph and partitions it into
// connected components reached via successor edges, each becoming a
// Function named after its first (lowest source-order) block.
func extractFunctions(blocks []*asmir.BasicBlock) []*asmir.Function {
	visited := make(map[*asmir.BasicBlock]bool, len(blocks))
	var functions []*asmir.Function

	for _, entry := range blocks {
		if visited[entry] {
			continue
		}
		queue := []*asmir.BasicBlock{entry}
		visited[entry] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, succ := range successorsOf(cur) {
				if succ != nil && !visited[succ] {
					visited[succ] = true
					queue = append(queue, succ)
				}
			}
		}
		functions = append(functions, &asmir.Function{Name: entry.Name, Entry: entry})
	}
	return functions
}
