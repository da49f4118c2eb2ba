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

package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
	"shellai/internal/tools"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "box")
	require.NoError(t, os.Mkdir(root, 0o755))
	box, err := sandbox.New(root)
	require.NoError(t, err)
	registry := tools.NewBuiltinRegistry(tools.NewToolset(box, tools.DefaultLimits()), nil)
	return New(registry, zerolog.Nop()), box.Root()
}

func TestDispatchRunsToolCalls(t *testing.T) {
	d, root := newTestDispatcher(t)
	ctx := context.Background()

	out := d.Dispatch(ctx, "```python\nwrite_file('notes/a.txt', 'hello')\n```")
	require.True(t, out.Invoked())
	assert.True(t, out.Result.OK())
	assert.Equal(t, "Wrote 5 bytes to 'notes/a.txt'.", out.Text)

	data, err := os.ReadFile(filepath.Join(root, "notes", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out = d.Dispatch(ctx, `read_file(name="notes/a.txt")`)
	assert.Equal(t, "hello", out.Text)
}

func TestDispatchJoinsSequences(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("22"), 0o644))

	out := d.Dispatch(context.Background(), "list_files()")
	lines := strings.Split(out.Text, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "a.txt (file, 1 bytes"))
	assert.True(t, strings.HasPrefix(lines[1], "b.txt (file, 2 bytes"))
}

func TestDispatchReturnsProseVerbatim(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	for _, reply := range []string{
		"Sure! The file contains a greeting.",
		"launch_rockets('now')",
		"read_file(open('/etc/passwd'))",
		"read_file('a.txt') and more",
	} {
		out := d.Dispatch(ctx, reply)
		assert.False(t, out.Invoked(), reply)
		assert.Equal(t, reply, out.Text)
	}
}

func TestDispatchRendersFailures(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	out := d.Dispatch(ctx, "read_file('../../etc/passwd')")
	require.True(t, out.Invoked())
	assert.Equal(t, apperrors.CodeOutOfSandbox, out.Result.Code())
	assert.True(t, strings.HasPrefix(out.Text, "Error: "))

	out = d.Dispatch(ctx, "read_file('a', 'b')")
	require.True(t, out.Invoked())
	assert.Equal(t, apperrors.CodeInvalidArgument, out.Result.Code())

	out = d.Dispatch(ctx, "read_file(nme='a')")
	require.True(t, out.Invoked())
	assert.Equal(t, apperrors.CodeInvalidArgument, out.Result.Code())
	assert.Contains(t, out.Text, "nme")
}
