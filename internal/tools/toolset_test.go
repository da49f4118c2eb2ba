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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

// newTestToolset returns a toolset rooted at <tmp>/box, plus the root path.
func newTestToolset(t *testing.T) (*Toolset, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "box")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("failed to create sandbox root: %v", err)
	}
	box, err := sandbox.New(root)
	if err != nil {
		t.Fatalf("failed to open sandbox: %v", err)
	}
	return NewToolset(box, DefaultLimits()), box.Root()
}

func writeTestFile(t *testing.T, root, name, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", name, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func expectCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("expected %s error, got %s (%v)", code, got, err)
	}
}

func TestWriteThenRead(t *testing.T) {
	ts, _ := newTestToolset(t)
	ctx := context.Background()

	n, err := ts.Write(ctx, "a.txt", "hello", WriteOverwrite)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}
	got, err := ts.Read(ctx, "a.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestWriteAppendAndNestedParents(t *testing.T) {
	ts, root := newTestToolset(t)
	ctx := context.Background()

	if _, err := ts.Write(ctx, "deep/nested/log.txt", "one\n", WriteOverwrite); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := ts.Write(ctx, "deep/nested/log.txt", "two\n", WriteAppend); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "log.txt"))
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestWriteMultibyteCountsBytes(t *testing.T) {
	ts, _ := newTestToolset(t)
	n, err := ts.Write(context.Background(), "u.txt", "héllo", WriteOverwrite)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 bytes, got %d", n)
	}
}

func TestWriteToDirectoryFails(t *testing.T) {
	ts, root := newTestToolset(t)
	if err := os.Mkdir(filepath.Join(root, "d"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	_, err := ts.Write(context.Background(), "d", "x", WriteOverwrite)
	expectCode(t, err, apperrors.CodeWrongKind)
}

func TestParseWriteMode(t *testing.T) {
	for input, want := range map[string]WriteMode{"": WriteOverwrite, "w": WriteOverwrite, "append": WriteAppend, "A": WriteAppend} {
		got, err := ParseWriteMode(input)
		if err != nil || got != want {
			t.Fatalf("ParseWriteMode(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	_, err := ParseWriteMode("x")
	expectCode(t, err, apperrors.CodeInvalidArgument)
}

func TestReadEscapesAreRejected(t *testing.T) {
	ts, _ := newTestToolset(t)
	_, err := ts.Read(context.Background(), "../../etc/passwd")
	expectCode(t, err, apperrors.CodeOutOfSandbox)
}

func TestReadMissingAndWrongKind(t *testing.T) {
	ts, root := newTestToolset(t)
	if err := os.Mkdir(filepath.Join(root, "d"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	_, err := ts.Read(context.Background(), "missing.txt")
	expectCode(t, err, apperrors.CodeNotFound)
	_, err = ts.Read(context.Background(), "d")
	expectCode(t, err, apperrors.CodeWrongKind)
}

func TestReadRejectsOversizedFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "box")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	box, err := sandbox.New(root)
	if err != nil {
		t.Fatalf("sandbox failed: %v", err)
	}
	ts := NewToolset(box, Limits{MaxFileSizeBytes: 4})
	writeTestFile(t, box.Root(), "big.txt", "too large")

	_, err = ts.Read(context.Background(), "big.txt")
	expectCode(t, err, apperrors.CodeInvalidArgument)
}

func TestMkdirTwiceFails(t *testing.T) {
	ts, root := newTestToolset(t)
	ctx := context.Background()
	if err := ts.Mkdir(ctx, "d/e"); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if info, err := os.Stat(filepath.Join(root, "d", "e")); err != nil || !info.IsDir() {
		t.Fatalf("expected nested directory to exist: %v", err)
	}
	err := ts.Mkdir(ctx, "d/e")
	expectCode(t, err, apperrors.CodeAlreadyExists)
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected 'already exists' message, got %v", err)
	}
}

func TestDeleteDirectoryIsRefused(t *testing.T) {
	ts, root := newTestToolset(t)
	dir := filepath.Join(root, "keep")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	err := ts.Delete(context.Background(), "keep")
	expectCode(t, err, apperrors.CodeWrongKind)
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory should remain on disk: %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "gone.txt", "x")
	if err := ts.Delete(context.Background(), "gone.txt"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "gone.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
}

func TestRename(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "old.txt", "data")
	ctx := context.Background()

	if err := ts.Rename(ctx, "old.txt", "moved/new.txt"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	got, err := ts.Read(ctx, "moved/new.txt")
	if err != nil || got != "data" {
		t.Fatalf("expected moved content, got %q, %v", got, err)
	}
	expectCode(t, ts.Rename(ctx, "old.txt", "x.txt"), apperrors.CodeNotFound)
	expectCode(t, ts.Rename(ctx, "moved/new.txt", "../outside.txt"), apperrors.CodeOutOfSandbox)
}

func TestListOrderingAndEmpty(t *testing.T) {
	ts, root := newTestToolset(t)
	ctx := context.Background()

	items, err := ts.List(ctx, ".")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0] != EmptyDirectoryEntry {
		t.Fatalf("expected empty marker, got %v", items)
	}

	writeTestFile(t, root, "b.txt", "12")
	writeTestFile(t, root, "A.txt", "1")
	if err := os.Mkdir(filepath.Join(root, "zdir"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	items, err = ts.List(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 entries, got %v", items)
	}
	if !strings.HasPrefix(items[0], "zdir/ (directory, ---, ") {
		t.Fatalf("expected directory first, got %q", items[0])
	}
	if !strings.HasPrefix(items[1], "A.txt (file, 1 bytes, ") || !strings.HasPrefix(items[2], "b.txt (file, 2 bytes, ") {
		t.Fatalf("unexpected file ordering: %v", items)
	}
}

func TestListHidesEscapingSymlinkTarget(t *testing.T) {
	ts, root := newTestToolset(t)
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	items, err := ts.List(context.Background(), ".")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0] != "link (inaccessible)" {
		t.Fatalf("expected inaccessible entry, got %v", items)
	}
}

func TestDiff(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "one\ntwo\n")
	writeTestFile(t, root, "b.txt", "one\nthree\n")
	writeTestFile(t, root, "c.txt", "one\ntwo\n")
	ctx := context.Background()

	diff, err := ts.Diff(ctx, "a.txt", "b.txt")
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	for _, want := range []string{"--- a.txt", "+++ b.txt", "-two", "+three"} {
		if !strings.Contains(diff, want) {
			t.Fatalf("expected diff to contain %q, got:\n%s", want, diff)
		}
	}

	same, err := ts.Diff(ctx, "a.txt", "c.txt")
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if same != "Files 'a.txt' and 'c.txt' are identical." {
		t.Fatalf("unexpected identical message %q", same)
	}
}

func TestTree(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "x")
	writeTestFile(t, root, "sub/b.txt", "y")
	ctx := context.Background()

	got, err := ts.Tree(ctx, ".", -1)
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	want := strings.Join([]string{
		"./box/",
		"├── sub/",
		"│   └── b.txt",
		"└── a.txt",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}

	shallow, err := ts.Tree(ctx, ".", 1)
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	if shallow != "./box/\n├── sub/\n└── a.txt" {
		t.Fatalf("unexpected depth-1 tree:\n%s", shallow)
	}

	label, err := ts.Tree(ctx, "sub", 0)
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	if label != "sub/" {
		t.Fatalf("expected root label only, got %q", label)
	}
}

func TestTreeMarksInaccessibleDirs(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "x")
	writeTestFile(t, root, "locked/secret.txt", "s")
	writeTestFile(t, root, "open/b.txt", "y")

	locked := filepath.Join(root, "locked")
	orig := readDir
	readDir = func(dir string) ([]os.DirEntry, error) {
		if dir == locked {
			return nil, os.ErrPermission
		}
		return orig(dir)
	}
	t.Cleanup(func() { readDir = orig })

	got, err := ts.Tree(context.Background(), ".", -1)
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	want := strings.Join([]string{
		"./box/",
		"├── locked/",
		"│   └── [inaccessible]",
		"├── open/",
		"│   └── b.txt",
		"└── a.txt",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestPwd(t *testing.T) {
	ts, _ := newTestToolset(t)
	if got := ts.Pwd(context.Background()); got != "./box/" {
		t.Fatalf("expected ./box/, got %q", got)
	}
}

func TestSystemInfo(t *testing.T) {
	ts, _ := newTestToolset(t)
	out, err := ts.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("system info failed: %v", err)
	}
	for _, key := range []string{`"os"`, `"hostname"`, `"cpu_cores"`, `"total_memory_gb"`, `"user"`} {
		if !strings.Contains(out, key) {
			t.Fatalf("expected %s in %s", key, out)
		}
	}
}
