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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

// EmptyDirectoryEntry is the single entry List returns for an empty directory.
const EmptyDirectoryEntry = "(empty)"

const listTimeFormat = "2006-01-02 15:04:05"

// WriteMode selects how Write treats an existing file.
type WriteMode string

const (
	WriteOverwrite WriteMode = "w"
	WriteAppend    WriteMode = "a"
)

// ParseWriteMode accepts "w"/"overwrite" and "a"/"append".
func ParseWriteMode(mode string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "w", "overwrite":
		return WriteOverwrite, nil
	case "a", "append":
		return WriteAppend, nil
	}
	return "", apperrors.Newf(apperrors.CodeInvalidArgument, "unsupported write mode '%s', use 'w' or 'a'", mode)
}

// Read returns the UTF-8 text of an existing file.
func (t *Toolset) Read(ctx context.Context, name string) (string, error) {
	resolved, err := t.mustExistFile(name)
	if err != nil {
		return "", err
	}
	data, err := t.readLimited(resolved, name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", apperrors.Newf(apperrors.CodeIO, "failed to read file '%s': content is not valid UTF-8", name)
	}
	return string(data), nil
}

func (t *Toolset) readLimited(resolved, name string) ([]byte, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, ioError("failed to read file '%s'", err, name)
	}
	if info.Size() > t.limits.MaxFileSizeBytes {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "file '%s' exceeds maximum size of %d bytes", name, t.limits.MaxFileSizeBytes)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, ioError("failed to read file '%s'", err, name)
	}
	return data, nil
}

type listEntry struct {
	name  string
	isDir bool
	line  string
}

// List describes the entries of an existing directory: directories first,
// then files, each group ordered case-insensitively by name.
func (t *Toolset) List(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	resolved, err := t.mustExistDir(path)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, ioError("failed to list directory '%s'", err, path)
	}

	entries := make([]listEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(resolved, de.Name())
		// Entries are symlink-resolved again; a link pointing out of the
		// tree is listed without exposing its target's metadata.
		target, err := t.validate(full, sandbox.Options{})
		if err != nil {
			entries = append(entries, listEntry{name: de.Name(), line: fmt.Sprintf("%s (inaccessible)", de.Name())})
			continue
		}
		info, err := os.Stat(target)
		if err != nil {
			entries = append(entries, listEntry{name: de.Name(), line: fmt.Sprintf("%s (inaccessible)", de.Name())})
			continue
		}
		mtime := info.ModTime().Format(listTimeFormat)
		if info.IsDir() {
			entries = append(entries, listEntry{
				name:  de.Name(),
				isDir: true,
				line:  fmt.Sprintf("%s/ (directory, ---, %s)", de.Name(), mtime),
			})
			continue
		}
		entries = append(entries, listEntry{
			name: de.Name(),
			line: fmt.Sprintf("%s (file, %d bytes, %s)", de.Name(), info.Size(), mtime),
		})
	}

	if len(entries) == 0 {
		return []string{EmptyDirectoryEntry}, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.line
	}
	return lines, nil
}

// Write stores content at name, creating parent directories. It returns the
// number of UTF-8 bytes written.
func (t *Toolset) Write(ctx context.Context, name, content string, mode WriteMode) (int, error) {
	resolved, err := t.validate(name, sandbox.Options{})
	if err != nil {
		return 0, err
	}
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return 0, apperrors.Newf(apperrors.CodeWrongKind, "path '%s' is a directory, cannot write file", name)
	}
	if int64(len(content)) > t.limits.MaxFileSizeBytes {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "content exceeds maximum size of %d bytes", t.limits.MaxFileSizeBytes)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, ioError("failed to create parent directories for '%s'", err, name)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if mode == WriteAppend {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return 0, ioError("failed to write file '%s'", err, name)
	}
	n, err := f.WriteString(content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, ioError("failed to write file '%s'", err, name)
	}
	return n, nil
}

// Mkdir creates a directory and any missing parents. It fails if the path
// already exists.
func (t *Toolset) Mkdir(ctx context.Context, name string) error {
	resolved, err := t.validate(name, sandbox.Options{})
	if err != nil {
		return err
	}
	if _, err := os.Lstat(resolved); err == nil {
		return apperrors.Newf(apperrors.CodeAlreadyExists, "path '%s' already exists", name)
	}
	if err := t.runMkdir(ctx, resolved); err != nil {
		return ioError("failed to create directory '%s'", err, name)
	}
	return nil
}

// Delete removes a file. Directories are rejected with wrong_kind.
func (t *Toolset) Delete(ctx context.Context, name string) error {
	resolved, err := t.mustExistFile(name)
	if err != nil {
		return err
	}
	if err := t.runRemove(ctx, resolved); err != nil {
		return ioError("failed to delete file '%s'", err, name)
	}
	return nil
}

// Rename moves name to newName, creating the destination's parents.
func (t *Toolset) Rename(ctx context.Context, name, newName string) error {
	src, err := t.validate(name, sandbox.Options{CheckExistence: true})
	if err != nil {
		return err
	}
	dst, err := t.validate(newName, sandbox.Options{})
	if err != nil {
		return err
	}
	if src == t.box.Root() {
		return apperrors.New(apperrors.CodeInvalidArgument, "cannot rename the sandbox root")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ioError("failed to create parent directories for '%s'", err, newName)
	}
	if err := os.Rename(src, dst); err != nil {
		return ioError("failed to rename '%s' to '%s'", err, name, newName)
	}
	return nil
}

// Diff returns a unified diff of two files, or an "identical" notice.
func (t *Toolset) Diff(ctx context.Context, f1, f2 string) (string, error) {
	path1, err := t.mustExistFile(f1)
	if err != nil {
		return "", err
	}
	path2, err := t.mustExistFile(f2)
	if err != nil {
		return "", err
	}
	a, err := t.readLimited(path1, f1)
	if err != nil {
		return "", err
	}
	b, err := t.readLimited(path2, f2)
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: f1,
		ToFile:   f2,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", ioError("failed to diff '%s' and '%s'", err, f1, f2)
	}
	if text == "" {
		return fmt.Sprintf("Files '%s' and '%s' are identical.", f1, f2), nil
	}
	return text, nil
}
