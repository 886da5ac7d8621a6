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
	"strings"
)

type lineKind int

const (
	lineLabel lineKind = iota
	lineDirective
	lineInstruction
)

type sourceLine struct {
	kind   lineKind
	text   string // label name, directive text, or "mnemonic operands"
	lineNo int
}

var labelLineRe = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*:$`)

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return line
}

// sectionKind recognizes a ".section .xxx"/".xxx" header line. ok is false
// for a non-section line.
func sectionKind(trimmed string) (string, bool) {
	fields := strings.Fields(strings.ToLower(trimmed))
	if len(fields) == 0 {
		return "", false
	}
	switch fields[0] {
	case ".data":
		return "data", true
	case ".text":
		return "text", true
	case ".bss":
		return "bss", true
	case ".section":
		if len(fields) < 2 {
			return "other", true
		}
		switch {
		case strings.HasPrefix(fields[1], ".data"):
			return "data", true
		case strings.HasPrefix(fields[1], ".text"):
			return "text", true
		case strings.HasPrefix(fields[1], ".bss"):
			return "bss", true
		default:
			return "other", true
		}
	default:
		return "", false
	}
}

// textSectionLines filters source to the lines lexically inside ".text",
// classifying each as a label, a directive (ignored), or an instruction.
func textSectionLines(source string) []sourceLine {
	var lines []sourceLine
	inText := false
	for i, raw := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(stripComment(raw))
		if trimmed == "" {
			continue
		}
		if kind, ok := sectionKind(trimmed); ok {
			inText = kind == "text"
			continue
		}
		if !inText {
			continue
		}

		lineNo := i + 1
		switch {
		case labelLineRe.MatchString(trimmed):
			lines = append(lines, sourceLine{kind: lineLabel, text: strings.TrimSuffix(trimmed, ":"), lineNo: lineNo})
		case strings.HasPrefix(trimmed, "."):
			lines = append(lines, sourceLine{kind: lineDirective, text: trimmed, lineNo: lineNo})
		default:
			lines = append(lines, sourceLine{kind: lineInstruction, text: trimmed, lineNo: lineNo})
		}
	}
	return lines
}
