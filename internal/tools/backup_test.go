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
	"testing"
	"time"

	apperrors "shellai/internal/errors"
)

func TestBackupCopiesWithTimestamp(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "notes.txt", "keep me")
	stamp := time.Date(2024, 3, 5, 7, 8, 9, 0, time.Local)
	ts.now = func() time.Time { return stamp }

	mtime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(root, "notes.txt"), mtime, mtime); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	msg, err := ts.Backup(context.Background(), "notes.txt", "")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if msg != "Backed up 'notes.txt' to 'backups/notes.20240305070809.txt.bak'." {
		t.Fatalf("unexpected message %q", msg)
	}
	copyPath := filepath.Join(root, "backups", "notes.20240305070809.txt.bak")
	data, err := os.ReadFile(copyPath)
	if err != nil || string(data) != "keep me" {
		t.Fatalf("expected copied content, got %q, %v", data, err)
	}
	info, err := os.Stat(copyPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected preserved mtime %v, got %v", mtime, info.ModTime())
	}

	_, err = ts.Backup(context.Background(), "notes.txt", "")
	expectCode(t, err, apperrors.CodeAlreadyExists)
}

func TestBackupValidatesDirectory(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "x")
	ctx := context.Background()

	_, err := ts.Backup(ctx, "a.txt", "../elsewhere")
	expectCode(t, err, apperrors.CodeOutOfSandbox)

	_, err = ts.Backup(ctx, "a.txt", "a.txt")
	expectCode(t, err, apperrors.CodeWrongKind)

	_, err = ts.Backup(ctx, "missing.txt", "")
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestBackupFileName(t *testing.T) {
	cases := map[string]string{
		"report.txt":     "report.S.txt.bak",
		"archive.tar.gz": "archive.tar.S.gz.bak",
		".bashrc":        ".bashrc.S.bak",
		"Makefile":       "Makefile.S.bak",
	}
	for base, want := range cases {
		if got := backupFileName(base, "S"); got != want {
			t.Fatalf("backupFileName(%q) = %q, want %q", base, got, want)
		}
	}
}
