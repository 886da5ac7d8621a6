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

// Command movfuscator reads a 32-bit x86 AT&T assembly source file and
// writes an equivalent file whose control flow has been flattened into
// straight-line, memory-context-threaded basic blocks.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"movfuscator/internal/pipeline"
)

var (
	outputPath string
	alignment  int
	debug      bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "movfuscator <input.s>",
		Short:         "Flatten a 32-bit x86 assembly file's control flow",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTransform,
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: standard output)")
	cmd.Flags().IntVar(&alignment, "alignment", 4, "data arena byte alignment")
	cmd.Flags().BoolVar(&debug, "debug", false, "log stage-by-stage pipeline progress")
	return cmd
}

func runTransform(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	inputPath := args[0]
	source, err := os.ReadFile(inputPath)
	if err != nil {
		err = errors.Wrapf(err, "movfuscator: reading %q", inputPath)
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	output, err := pipeline.Run(string(source), pipeline.Options{Alignment: alignment, Debug: debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if outputPath == "" {
		fmt.Fprint(os.Stdout, output)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(output), 0644); err != nil {
		err = errors.Wrapf(err, "movfuscator: writing %q", outputPath)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	log.WithField("output", outputPath).Info("wrote flattened assembly")
	return nil
}
