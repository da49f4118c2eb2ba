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
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

// DefaultBackupDir is where backup_file puts copies when no directory is given.
const DefaultBackupDir = "backups"

const backupTimeFormat = "20060102150405"

// Backup copies an existing file into backupDir as
// "stem.YYYYMMDDhhmmss.suffix.bak", keeping its mode and modification time.
// An existing backup with the generated name is never overwritten.
func (t *Toolset) Backup(ctx context.Context, name, backupDir string) (string, error) {
	if backupDir == "" {
		backupDir = DefaultBackupDir
	}
	src, err := t.mustExistFile(name)
	if err != nil {
		return "", err
	}
	dir, err := t.validate(backupDir, sandbox.Options{ExpectDir: true})
	if err != nil {
		return "", err
	}

	backupName := backupFileName(filepath.Base(src), t.now().Format(backupTimeFormat))
	dst, err := t.validate(filepath.Join(dir, backupName), sandbox.Options{})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioError("failed to create backup directory '%s'", err, backupDir)
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", ioError("failed to back up '%s'", err, name)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", ioError("failed to back up '%s'", err, name)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return "", apperrors.Newf(apperrors.CodeAlreadyExists, "backup '%s' already exists", t.box.Rel(dst))
		}
		return "", ioError("failed to create backup of '%s'", err, name)
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", ioError("failed to write backup of '%s'", err, name)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return "", ioError("failed to preserve timestamps on backup of '%s'", err, name)
	}
	return fmt.Sprintf("Backed up '%s' to '%s'.", name, t.box.Rel(dst)), nil
}

// backupFileName inserts stamp between the stem and the last extension.
// Dotfiles without a further extension keep their full name as stem.
func backupFileName(base, stamp string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return stem + "." + stamp + ext + ".bak"
}
