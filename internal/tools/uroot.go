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

package tools

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/u-root/u-root/pkg/core"
	coremkdir "github.com/u-root/u-root/pkg/core/mkdir"
	corerm "github.com/u-root/u-root/pkg/core/rm"
)

// runCoreCommand runs a u-root core command in-process with the sandbox root
// as working directory. Arguments must already be validated absolute paths.
func (t *Toolset) runCoreCommand(ctx context.Context, cmd core.Command, args []string) (string, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)
	cmd.SetWorkingDir(t.box.Root())

	if err := cmd.RunContext(ctx, args...); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%v: %s", err, errMsg)
		}
		return "", err
	}

	return stdout.String(), nil
}

func (t *Toolset) runMkdir(ctx context.Context, resolved string) error {
	_, err := t.runCoreCommand(ctx, coremkdir.New(), []string{"-p", resolved})
	return err
}

func (t *Toolset) runRemove(ctx context.Context, resolved string) error {
	_, err := t.runCoreCommand(ctx, corerm.New(), []string{resolved})
	return err
}
