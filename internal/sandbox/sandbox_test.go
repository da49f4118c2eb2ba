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
	"os"
	"path/filepath"
	"testing"

	apperrors "shellai/internal/errors"
)

func newTestSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	parent := t.TempDir()
	root := filepath.Join(parent, "box")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	sb, err := New(root)
	if err != nil {
		t.Fatalf("failed to create sandbox: %v", err)
	}
	return sb, parent
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

func TestValidateRootAndDescendants(t *testing.T) {
	sb, _ := newTestSandbox(t)

	resolved, err := sb.Validate(".", Options{CheckExistence: true, ExpectDir: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != sb.Root() {
		t.Fatalf("expected root %s, got %s", sb.Root(), resolved)
	}

	resolved, err = sb.Validate("sub/new.txt", Options{})
	if err != nil {
		t.Fatalf("unexpected error for missing descendant: %v", err)
	}
	if resolved != filepath.Join(sb.Root(), "sub", "new.txt") {
		t.Fatalf("unexpected resolution: %s", resolved)
	}
	if _, err := os.Stat(filepath.Join(sb.Root(), "sub")); !os.IsNotExist(err) {
		t.Fatal("validate must not create anything")
	}
}

func TestValidateRejectsEscapes(t *testing.T) {
	sb, parent := newTestSandbox(t)
	if err := os.Mkdir(filepath.Join(parent, "boxevil"), 0o755); err != nil {
		t.Fatalf("failed to create sibling: %v", err)
	}

	cases := []string{
		"../../etc/passwd",
		"..",
		"a/../../box2",
		"../boxevil",
		"/etc/passwd",
		filepath.Join(parent, "boxevil", "x"),
	}
	for _, candidate := range cases {
		_, err := sb.Validate(candidate, Options{})
		expectCode(t, err, apperrors.CodeOutOfSandbox)
	}
}

func TestValidateAcceptsAbsolutePathInside(t *testing.T) {
	sb, _ := newTestSandbox(t)
	target := filepath.Join(sb.Root(), "inside.txt")
	if _, err := sb.Validate(target, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsSymlinkEscape(t *testing.T) {
	sb, parent := newTestSandbox(t)
	outside := filepath.Join(parent, "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("failed to write outside file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(sb.Root(), "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(parent, filepath.Join(sb.Root(), "up")); err != nil {
		t.Fatalf("failed to create dir symlink: %v", err)
	}

	_, err := sb.Validate("link.txt", Options{CheckExistence: true, ExpectFile: true})
	expectCode(t, err, apperrors.CodeOutOfSandbox)

	_, err = sb.Validate("up/secret.txt", Options{})
	expectCode(t, err, apperrors.CodeOutOfSandbox)

	_, err = sb.Validate("up/not-yet.txt", Options{})
	expectCode(t, err, apperrors.CodeOutOfSandbox)
}

func TestValidateRejectsDanglingSymlinkEscape(t *testing.T) {
	sb, parent := newTestSandbox(t)
	if err := os.Symlink(filepath.Join(parent, "later.txt"), filepath.Join(sb.Root(), "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err := sb.Validate("dangling", Options{})
	expectCode(t, err, apperrors.CodeOutOfSandbox)
}

func TestValidateAllowsInternalSymlink(t *testing.T) {
	sb, _ := newTestSandbox(t)
	if err := os.WriteFile(filepath.Join(sb.Root(), "real.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := os.Symlink("real.txt", filepath.Join(sb.Root(), "alias.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	resolved, err := sb.Validate("alias.txt", Options{CheckExistence: true, ExpectFile: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(resolved) != "real.txt" {
		t.Fatalf("expected link to resolve to real.txt, got %s", resolved)
	}
}

func TestValidateExistenceAndKind(t *testing.T) {
	sb, _ := newTestSandbox(t)
	if err := os.WriteFile(filepath.Join(sb.Root(), "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(sb.Root(), "d"), 0o755); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}

	_, err := sb.Validate("missing.txt", Options{CheckExistence: true})
	expectCode(t, err, apperrors.CodeNotFound)

	_, err = sb.Validate("f.txt", Options{CheckExistence: true, ExpectDir: true})
	expectCode(t, err, apperrors.CodeWrongKind)

	_, err = sb.Validate("d", Options{CheckExistence: true, ExpectFile: true})
	expectCode(t, err, apperrors.CodeWrongKind)

	if _, err := sb.Validate("missing-dir", Options{ExpectDir: true}); err != nil {
		t.Fatalf("absence with expected kind should be tolerated: %v", err)
	}
}

func TestValidateRejectsBadStrings(t *testing.T) {
	sb, _ := newTestSandbox(t)
	for _, candidate := range []string{"", "  ", "bad\x00path"} {
		_, err := sb.Validate(candidate, Options{})
		expectCode(t, err, apperrors.CodeInvalidArgument)
	}
}

func TestHasPathPrefixComparesSegments(t *testing.T) {
	if HasPathPrefix("/srv/boxevil", "/srv/box") {
		t.Fatal("sibling with shared string prefix must not match")
	}
	if !HasPathPrefix("/srv/box/a", "/srv/box") {
		t.Fatal("descendant must match")
	}
	if !HasPathPrefix("/srv/box", "/srv/box") {
		t.Fatal("root must match itself")
	}
	if !HasPathPrefix("/anything", "/") {
		t.Fatal("filesystem root contains everything")
	}
}

func TestRelAndLabel(t *testing.T) {
	sb, _ := newTestSandbox(t)
	if got := sb.Rel(sb.Root()); got != "." {
		t.Fatalf("expected '.', got %q", got)
	}
	if got := sb.Rel(filepath.Join(sb.Root(), "a", "b.txt")); got != "a/b.txt" {
		t.Fatalf("expected a/b.txt, got %q", got)
	}
	if got := sb.DirLabel(); got != "./box/" {
		t.Fatalf("unexpected dir label %q", got)
	}
	if got := sb.Label(); got != "./box" {
		t.Fatalf("expected ./box, got %q", got)
	}
}
