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

// Package sandbox confines file operations to a single directory tree.
//
// Every path handed to a file primitive goes through Sandbox.Validate, which
// resolves it (relative segments, "..", symlinks, dangling symlinks) and only
// then compares it against the root by whole path segments.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "shellai/internal/errors"
)

// DefaultMaxPathLength bounds raw path input.
const DefaultMaxPathLength = 4096

// Options selects the checks performed by Validate.
type Options struct {
	// CheckExistence fails with not_found when the path is missing.
	CheckExistence bool
	// ExpectDir fails with wrong_kind when the path exists and is not a directory.
	ExpectDir bool
	// ExpectFile fails with wrong_kind when the path exists and is not a regular file.
	ExpectFile bool
}

// Sandbox is an immutable confinement root.
type Sandbox struct {
	root          string
	maxPathLength int
}

// New returns a Sandbox rooted at dir. The directory must exist; it is
// resolved once here and never changes afterwards.
func New(dir string) (*Sandbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid sandbox root: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sandbox root: %v", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %s is not a directory", resolved)
	}
	return &Sandbox{root: resolved, maxPathLength: DefaultMaxPathLength}, nil
}

// Root returns the resolved absolute root.
func (s *Sandbox) Root() string {
	return s.root
}

// Name returns the base name of the root directory.
func (s *Sandbox) Name() string {
	return filepath.Base(s.root)
}

// Label renders the root the way tools present it to users, e.g. "./workspace".
func (s *Sandbox) Label() string {
	return "./" + s.Name()
}

// DirLabel is Label with a trailing slash, as pwd and the system prompt
// show it.
func (s *Sandbox) DirLabel() string {
	return s.Label() + "/"
}

// Validate resolves candidate and checks it against the root and opts.
// Relative candidates are taken relative to the root. It returns the
// resolved absolute path. Validate never creates anything.
func (s *Sandbox) Validate(candidate string, opts Options) (string, error) {
	if err := ValidatePathString(candidate, s.maxPathLength); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid path '%s'", candidate), err)
	}
	if info, err := os.Stat(s.root); err != nil || !info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeIO, "sandbox root '%s' does not exist or is not a directory", s.root)
	}

	resolved, err := s.Resolve(candidate)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to resolve path '%s'", candidate), err)
	}
	if !HasPathPrefix(resolved, s.root) {
		return "", apperrors.Newf(apperrors.CodeOutOfSandbox, "path '%s' is outside the allowed directory '%s'", candidate, s.Label())
	}

	info, statErr := os.Stat(resolved)
	exists := statErr == nil
	if opts.CheckExistence && !exists {
		return "", apperrors.Newf(apperrors.CodeNotFound, "path '%s' does not exist", candidate)
	}
	if exists {
		if opts.ExpectDir && !info.IsDir() {
			return "", apperrors.Newf(apperrors.CodeWrongKind, "path '%s' is not a directory", candidate)
		}
		if opts.ExpectFile && !info.Mode().IsRegular() {
			return "", apperrors.Newf(apperrors.CodeWrongKind, "path '%s' is not a file", candidate)
		}
	}
	return resolved, nil
}

// Resolve returns the absolute, symlink-resolved form of candidate without
// checking confinement.
func (s *Sandbox) Resolve(candidate string) (string, error) {
	p := candidate
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	return ResolveSymlinkedPath(filepath.Clean(p))
}

// Rel renders a resolved path relative to the root using forward slashes.
// The root itself renders as ".".
func (s *Sandbox) Rel(resolved string) string {
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil {
		return resolved
	}
	return filepath.ToSlash(rel)
}
