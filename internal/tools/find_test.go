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
)

func TestFindByName(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "alpha")
	writeTestFile(t, root, "sub/b.txt", "beta")
	writeTestFile(t, root, "sub/c.md", "gamma")
	ctx := context.Background()

	out, err := ts.Find(ctx, "*.txt", ".", FindOptions{Recursive: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || !containsLine(lines, "a.txt") || !containsLine(lines, "sub/b.txt") {
		t.Fatalf("unexpected matches: %q", out)
	}

	flat, err := ts.Find(ctx, "*.txt", ".", FindOptions{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if flat != "a.txt" {
		t.Fatalf("expected only top-level match, got %q", flat)
	}

	none, err := ts.Find(ctx, "*.go", ".", FindOptions{Recursive: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !strings.HasPrefix(none, "No files or directories matching '*.go'") {
		t.Fatalf("unexpected no-match message %q", none)
	}
}

func TestFindContent(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "notes.txt", "first line\n  TODO: fix me  \nlast\n")
	writeTestFile(t, root, "other.txt", "nothing here\n")
	ctx := context.Background()

	out, err := ts.Find(ctx, "*.txt", ".", FindOptions{ContentRegex: "todo", Recursive: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if out != "notes.txt: line 2: TODO: fix me" {
		t.Fatalf("unexpected content match %q", out)
	}

	sensitive, err := ts.Find(ctx, "*.txt", ".", FindOptions{ContentRegex: "todo", CaseSensitive: true, Recursive: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !strings.HasPrefix(sensitive, "No content matching 'todo'") {
		t.Fatalf("expected no case-sensitive match, got %q", sensitive)
	}
}

func TestFindInvalidRegexHasNoPartialOutput(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "alpha")

	out, err := ts.Find(context.Background(), "*.txt", ".", FindOptions{ContentRegex: "(unclosed", Recursive: true})
	expectCode(t, err, apperrors.CodeInvalidPattern)
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestFindInvalidGlob(t *testing.T) {
	ts, _ := newTestToolset(t)
	_, err := ts.Find(context.Background(), "[", ".", FindOptions{})
	expectCode(t, err, apperrors.CodeInvalidPattern)
}

func TestFindTruncatesResults(t *testing.T) {
	ts, root := newTestToolset(t)
	ts.limits.MaxFindResults = 2
	for _, name := range []string{"1.txt", "2.txt", "3.txt"} {
		writeTestFile(t, root, name, "x")
	}
	out, err := ts.Find(context.Background(), "*.txt", ".", FindOptions{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "truncated") {
		t.Fatalf("expected truncation notice, got %q", out)
	}
}

func TestFindNoNoticeAtExactLimit(t *testing.T) {
	ts, root := newTestToolset(t)
	ts.limits.MaxFindResults = 2
	writeTestFile(t, root, "a.txt", "hit\n")
	writeTestFile(t, root, "b.txt", "hit\n")
	ctx := context.Background()

	out, err := ts.Find(ctx, "*.txt", ".", FindOptions{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if out != "a.txt\nb.txt" {
		t.Fatalf("expected both matches without a notice, got %q", out)
	}

	out, err = ts.Find(ctx, "*.txt", ".", FindOptions{ContentRegex: "hit"})
	if err != nil {
		t.Fatalf("content find failed: %v", err)
	}
	if strings.Contains(out, "truncated") || len(strings.Split(out, "\n")) != 2 {
		t.Fatalf("expected two content lines without a notice, got %q", out)
	}

	writeTestFile(t, root, "c.txt", "hit\n")
	out, err = ts.Find(ctx, "*.txt", ".", FindOptions{ContentRegex: "hit"})
	if err != nil {
		t.Fatalf("content find failed: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "truncated at 2 lines") {
		t.Fatalf("expected truncation after two lines, got %q", out)
	}
}

func TestFindDoesNotFollowSymlinkedDirs(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "d/a.txt", "alpha")
	if err := os.Symlink("..", filepath.Join(root, "d", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	out, err := ts.Find(context.Background(), "a.txt", ".", FindOptions{Recursive: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if out != "d/a.txt" {
		t.Fatalf("expected a single match, got %q", out)
	}
}

func TestReplaceAllThenIdempotent(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "cat cat cat")
	ctx := context.Background()

	n, err := ts.Replace(ctx, "a.txt", "cat", "dog", 0)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 replacements, got %d, %v", n, err)
	}
	n, err = ts.Replace(ctx, "a.txt", "cat", "dog", 0)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 replacements on second pass, got %d, %v", n, err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	if string(data) != "dog dog dog" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestReplaceCountAndGroups(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "a1 b2 c3")
	ctx := context.Background()

	n, err := ts.Replace(ctx, "a.txt", `([a-z])(\d)`, `\2\1`, 2)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 replacements, got %d, %v", n, err)
	}
	got, _ := ts.Read(ctx, "a.txt")
	if got != "1a 2b c3" {
		t.Fatalf("unexpected content %q", got)
	}

	n, err = ts.Replace(ctx, "a.txt", `(?P<letter>c)3`, `\g<letter>$1`, 0)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 replacement, got %d, %v", n, err)
	}
	got, _ = ts.Read(ctx, "a.txt")
	if got != "1a 2b c$1" {
		t.Fatalf("expected literal dollar, got %q", got)
	}
}

func TestReplaceErrors(t *testing.T) {
	ts, root := newTestToolset(t)
	writeTestFile(t, root, "a.txt", "x")
	ctx := context.Background()

	_, err := ts.Replace(ctx, "a.txt", "(", "y", 0)
	expectCode(t, err, apperrors.CodeInvalidPattern)
	_, err = ts.Replace(ctx, "a.txt", "x", "y", -1)
	expectCode(t, err, apperrors.CodeInvalidArgument)
	_, err = ts.Replace(ctx, "missing.txt", "x", "y", 0)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestConvertReplacement(t *testing.T) {
	cases := map[string]string{
		`\1-\2`:      "${1}-${2}",
		`\g<word>!`:  "${word}!",
		`$5 and \10`: "$$5 and ${10}",
		`plain`:      "plain",
	}
	for input, want := range cases {
		if got := convertReplacement(input); got != want {
			t.Fatalf("convertReplacement(%q) = %q, want %q", input, got, want)
		}
	}
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if line == want {
			return true
		}
	}
	return false
}
