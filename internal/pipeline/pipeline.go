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

// Package pipeline sequences the compilation stages end to end: text
// parsing (CFG construction), data parsing and allocation, symbol
// resolution, stack expansion, register virtualization, and linearization.
// Grounded on compile/compiler.go's CompileTheWorld/CompileText staged
// orchestration (stage functions called in sequence, with debug-dump hooks
// between them).
package pipeline

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movfuscator/internal/ctxswitch"
	"movfuscator/internal/emit"
	"movfuscator/internal/expand"
	"movfuscator/internal/layout"
	"movfuscator/internal/resolve"
	"movfuscator/internal/textparse"
)

// DataLabel names the single master symbol in front of the emitted .data
// region; every rewritten reference is "<DataLabel>+<offset>".
const DataLabel = "mov_data"

// Options controls pipeline behavior beyond the pure source-to-source
// transform.
type Options struct {
	// Alignment is the data arena's byte alignment. Zero selects spec's
	// default of 4.
	Alignment int
	// Debug enables stage-by-stage logging of intermediate state.
	Debug bool
}

// Run executes the full transform: C (text parse/CFG) -> D (data parse +
// allocate) -> E (symbol resolve) -> F (stack expand) -> G (context
// switch) -> H (linearize + emit). Register and scratch slots are
// allocated strictly after user data, per spec's binding pipeline
// ordering.
func Run(source string, opts Options) (string, error) {
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = 4
	}

	functions, err := textparse.ParseText(source)
	if err != nil {
		return "", errors.Wrap(err, "pipeline: text parse")
	}
	if opts.Debug {
		log.WithField("stage", "textparse").WithField("functions", len(functions)).Debug("parsed CFG")
	}

	alloc := layout.NewAllocator(alignment)
	dataAllocs, err := layout.ParseData(source, alloc)
	if err != nil {
		return "", errors.Wrap(err, "pipeline: data parse")
	}
	if opts.Debug {
		log.WithField("stage", "layout").WithField("labels", len(dataAllocs)).Debug("allocated data")
	}

	offsets := resolve.SymbolTable(dataAllocs)
	resolve.Resolve(functions, offsets, DataLabel)
	if opts.Debug {
		log.WithField("stage", "resolve").WithField("symbols", len(offsets)).Debug("resolved data symbols")
	}

	scratch, err := expand.AllocateScratch(alloc)
	if err != nil {
		return "", errors.Wrap(err, "pipeline: scratch slot allocation")
	}
	expander := expand.New(DataLabel, scratch.Offset)
	if err := expander.Expand(functions); err != nil {
		return "", errors.Wrap(err, "pipeline: stack expansion")
	}
	if opts.Debug {
		log.WithField("stage", "expand").Debug("expanded push/pop")
	}

	switcher, err := ctxswitch.AllocateSlots(alloc, DataLabel)
	if err != nil {
		return "", errors.Wrap(err, "pipeline: register slot allocation")
	}
	switcher.Apply(functions)
	if opts.Debug {
		log.WithField("stage", "ctxswitch").Debug("virtualized register context")
	}

	output, err := emit.Program(DataLabel, alloc.Allocations, functions)
	if err != nil {
		return "", errors.Wrap(err, "pipeline: emit")
	}
	if opts.Debug {
		log.WithField("stage", "emit").WithField("bytes", len(output)).Debug("emitted output")
	}
	return output, nil
}
