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
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// AnonymousDataLabel is the sentinel label holding allocations that precede
// any explicit label in the .data section.
const AnonymousDataLabel = "__anonymous_data"

var labelPrefixRe = regexp.MustCompile(`^([A-Za-z_.][A-Za-z0-9_.]*):`)

// ParseData streams source, filters to the .data section, and feeds every
// recognized directive to alloc. It returns a map from label to the
// Allocations produced under that label, each list in insertion order (the
// map itself has no order).
func ParseData(source string, alloc *Allocator) (map[string][]*Allocation, error) {
	result := make(map[string][]*Allocation)
	currentLabel := AnonymousDataLabel
	inData := false

	for lineNo, raw := range strings.Split(source, "\n") {
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if kind, ok := sectionKind(trimmed); ok {
			inData = kind == "data"
			continue
		}
		if !inData {
			continue
		}

		for {
			m := labelPrefixRe.FindStringSubmatchIndex(trimmed)
			if m == nil {
				break
			}
			currentLabel = trimmed[m[2]:m[3]]
			trimmed = strings.TrimSpace(trimmed[m[1]:])
			if trimmed == "" {
				break
			}
		}
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, ".") {
			continue
		}

		allocs, err := parseDirective(trimmed, alloc, currentLabel, lineNo+1)
		if err != nil {
			return nil, err
		}
		result[currentLabel] = append(result[currentLabel], allocs...)
	}
	return result, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return line
}

// sectionKind recognizes ".section .data"/".data"/".section .text"/".text"/
// ".section .bss"/".bss" headers. ok is false for a non-section line.
func sectionKind(trimmed string) (string, bool) {
	lower := strings.ToLower(trimmed)
	lower = strings.TrimSuffix(lower, ",\"awb\"")
	fields := strings.Fields(lower)
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

func splitDirective(line string) (directive string, rest string) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	directive = strings.ToLower(fields[0])
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}
	return directive, rest
}

func parseDirective(line string, alloc *Allocator, label string, lineNo int) ([]*Allocation, error) {
	directive, rest := splitDirective(line)
	switch directive {
	case ".int", ".long":
		values, err := parseIntList(rest, lineNo)
		if err != nil {
			return nil, err
		}
		return allocateIntOrList(alloc, values, label)
	case ".float":
		values, err := parseFloatList(rest, lineNo)
		if err != nil {
			return nil, err
		}
		return allocateFloatOrList(alloc, values, label)
	case ".asciz", ".string", ".ascii":
		s, err := parseQuotedString(rest, lineNo)
		if err != nil {
			return nil, err
		}
		al, err := alloc.AllocateData(s, label, true)
		if err != nil {
			return nil, err
		}
		return []*Allocation{al}, nil
	case ".zero", ".space", ".skip":
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return nil, errors.Wrapf(err, "layout: line %d: bad size in %q", lineNo, line)
		}
		al, err := alloc.AllocateEmpty(n, label, true)
		if err != nil {
			return nil, err
		}
		return []*Allocation{al}, nil
	default:
		return nil, nil
	}
}

func allocateIntOrList(alloc *Allocator, values []int, label string) ([]*Allocation, error) {
	var al *Allocation
	var err error
	if len(values) == 1 {
		al, err = alloc.AllocateData(values[0], label, true)
	} else {
		al, err = alloc.AllocateData(values, label, true)
	}
	if err != nil {
		return nil, err
	}
	return []*Allocation{al}, nil
}

func allocateFloatOrList(alloc *Allocator, values []float64, label string) ([]*Allocation, error) {
	var al *Allocation
	var err error
	if len(values) == 1 {
		al, err = alloc.AllocateData(values[0], label, true)
	} else {
		al, err = alloc.AllocateData(values, label, true)
	}
	if err != nil {
		return nil, err
	}
	return []*Allocation{al}, nil
}

func parseIntList(rest string, lineNo int) ([]int, error) {
	fields := lo.Filter(strings.Split(rest, ","), func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
	if len(fields) == 0 {
		return nil, errors.Errorf("layout: line %d: empty .int/.long list", lineNo)
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		n, err := strconv.ParseInt(f, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "layout: line %d: bad integer %q", lineNo, f)
		}
		out = append(out, int(n))
	}
	return out, nil
}

func parseFloatList(rest string, lineNo int) ([]float64, error) {
	fields := lo.Filter(strings.Split(rest, ","), func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
	if len(fields) == 0 {
		return nil, errors.Errorf("layout: line %d: empty .float list", lineNo)
	}
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "layout: line %d: bad float %q", lineNo, f)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseQuotedString(rest string, lineNo int) (string, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", errors.Errorf("layout: line %d: expected a quoted string, got %q", lineNo, rest)
	}
	body := rest[1 : len(rest)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}
