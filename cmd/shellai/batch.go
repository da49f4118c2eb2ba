// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

type BatchCmd struct {
	StopOnError bool `long:"stop-on-error" description:"stop at the first failed prompt"`
}

func (b *BatchCmd) Execute(_ []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	a.logger.Debug().Msg("Running in batch mode")
	return runBatch(context.Background(), a.console(os.Stdout), os.Stdin, os.Stderr, b.StopOnError)
}

// runBatch answers each non-blank input line. Failures are reported on
// errOut; the returned error counts them.
func runBatch(ctx context.Context, c *console, in io.Reader, errOut io.Writer, stopOnError bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	failed := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Info().Int("length", len(line)).Msg("User input received")
		if err := c.prompt(ctx, line); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			failed++
			if stopOnError {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d prompt(s) failed", failed)
	}
	return nil
}
