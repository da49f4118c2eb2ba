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

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxSymlinkHops = 40

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	if maxLen > 0 && len(path) > maxLen {
		return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
	}
	return nil
}

// ResolveSymlinkedPath resolves every symlink in an absolute, cleaned path.
// Missing trailing components are kept verbatim after the longest existing
// ancestor is resolved. Dangling symlinks are followed textually so that a
// link pointing at a not-yet-existing target outside the tree is still
// reported at its real destination.
func ResolveSymlinkedPath(path string) (string, error) {
	return resolveHops(path, 0)
}

func resolveHops(path string, hops int) (string, error) {
	if hops > maxSymlinkHops {
		return "", fmt.Errorf("too many levels of symbolic links")
	}

	var rest []string
	cur := path
	for {
		info, err := os.Lstat(cur)
		if err == nil {
			resolved, evalErr := filepath.EvalSymlinks(cur)
			if evalErr == nil {
				return joinRest(resolved, rest), nil
			}
			if info.Mode()&os.ModeSymlink == 0 || !os.IsNotExist(evalErr) {
				return "", fmt.Errorf("failed to resolve path: %v", evalErr)
			}
			target, err := os.Readlink(cur)
			if err != nil {
				return "", fmt.Errorf("failed to read symlink: %v", err)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			base, err := resolveHops(filepath.Clean(target), hops+1)
			if err != nil {
				return "", err
			}
			return joinRest(base, rest), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

func joinRest(base string, rest []string) string {
	parts := make([]string, 0, len(rest)+1)
	parts = append(parts, base)
	for i := len(rest) - 1; i >= 0; i-- {
		parts = append(parts, rest[i])
	}
	return filepath.Join(parts...)
}

// HasPathPrefix reports whether path equals base or lies beneath it.
// Comparison is by whole segments: "/srv/boxevil" is not within "/srv/box".
func HasPathPrefix(path, base string) bool {
	if path == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, prefix)
}
