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
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

// FindOptions narrows a Find call.
type FindOptions struct {
	// ContentRegex, when set, restricts results to matching lines of files.
	ContentRegex  string
	CaseSensitive bool
	Recursive     bool
}

// Find glob-matches pattern under path. Without a content regex it returns
// the matched paths relative to the sandbox root; with one it returns
// "path: line N: text" for every matching line.
func (t *Toolset) Find(ctx context.Context, pattern, path string, opts FindOptions) (string, error) {
	if path == "" {
		path = "."
	}
	if strings.TrimSpace(pattern) == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "pattern cannot be empty")
	}
	resolved, err := t.mustExistDir(path)
	if err != nil {
		return "", err
	}

	var content *regexp.Regexp
	if opts.ContentRegex != "" {
		expr := opts.ContentRegex
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		content, err = regexp.Compile(expr)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeInvalidPattern, fmt.Sprintf("invalid regular expression '%s'", opts.ContentRegex), err)
		}
	}

	glob := filepath.ToSlash(pattern)
	if opts.Recursive {
		glob = "**/" + strings.TrimPrefix(glob, "/")
	}
	if !doublestar.ValidatePattern(glob) {
		return "", apperrors.Newf(apperrors.CodeInvalidPattern, "invalid glob pattern '%s'", pattern)
	}
	// Symlinked directories are listed but never descended into.
	matches, err := doublestar.Glob(os.DirFS(resolved), glob, doublestar.WithNoFollow())
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPattern, fmt.Sprintf("failed to match pattern '%s'", pattern), err)
	}

	var found []string
	for _, match := range matches {
		if match == "." {
			continue
		}
		if _, err := t.validate(filepath.Join(resolved, filepath.FromSlash(match)), sandbox.Options{CheckExistence: true}); err != nil {
			continue
		}
		found = append(found, match)
	}
	if len(found) == 0 {
		return fmt.Sprintf("No files or directories matching '%s' found under '%s' (recursive=%t).", pattern, path, opts.Recursive), nil
	}

	if content == nil {
		lines := make([]string, 0, len(found))
		for i, match := range found {
			if i == t.limits.MaxFindResults {
				lines = append(lines, fmt.Sprintf("... results truncated at %d entries", t.limits.MaxFindResults))
				break
			}
			lines = append(lines, t.box.Rel(filepath.Join(resolved, filepath.FromSlash(match))))
		}
		return strings.Join(lines, "\n"), nil
	}

	var results []string
	for _, match := range found {
		if ctx.Err() != nil {
			return "", ioError("search under '%s' interrupted", ctx.Err(), path)
		}
		full := filepath.Join(resolved, filepath.FromSlash(match))
		target, err := t.validate(full, sandbox.Options{CheckExistence: true, ExpectFile: true})
		if err != nil {
			if apperrors.Is(err, apperrors.CodeWrongKind) {
				continue
			}
			results = append(results, fmt.Sprintf("skipped %s: %v", match, err))
			continue
		}
		rel := t.box.Rel(full)
		data, err := t.readLimited(target, rel)
		if err != nil {
			results = append(results, fmt.Sprintf("failed to read %s: %v", rel, err))
			continue
		}
		text := strings.ToValidUTF8(string(data), "")
		for i, line := range strings.Split(text, "\n") {
			line = strings.TrimSuffix(line, "\r")
			if content.MatchString(line) {
				results = append(results, fmt.Sprintf("%s: line %d: %s", rel, i+1, strings.TrimSpace(line)))
			}
		}
		if len(results) > t.limits.MaxFindResults {
			results = append(results[:t.limits.MaxFindResults], fmt.Sprintf("... results truncated at %d lines", t.limits.MaxFindResults))
			break
		}
	}
	if len(results) == 0 {
		return fmt.Sprintf("No content matching '%s' found in files matching '%s'.", opts.ContentRegex, pattern), nil
	}
	return strings.Join(results, "\n"), nil
}

// Replace substitutes matches of searchRegex in a file. count 0 replaces
// every match. It returns the number of replacements made; zero is not an
// error. Group references in replacement use the \1 and \g<name> forms;
// '$' is literal.
func (t *Toolset) Replace(ctx context.Context, name, searchRegex, replacement string, count int) (int, error) {
	if count < 0 {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "count cannot be negative")
	}
	resolved, err := t.mustExistFile(name)
	if err != nil {
		return 0, err
	}
	re, err := regexp.Compile(searchRegex)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidPattern, fmt.Sprintf("invalid regular expression '%s'", searchRegex), err)
	}
	data, err := t.readLimited(resolved, name)
	if err != nil {
		return 0, err
	}
	original := string(data)

	limit := -1
	if count > 0 {
		limit = count
	}
	matches := re.FindAllStringSubmatchIndex(original, limit)
	if len(matches) == 0 {
		return 0, nil
	}

	template := convertReplacement(replacement)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(original[last:m[0]])
		b.Write(re.ExpandString(nil, template, original, m))
		last = m[1]
	}
	b.WriteString(original[last:])

	info, err := os.Stat(resolved)
	if err != nil {
		return 0, ioError("failed to replace in file '%s'", err, name)
	}
	if err := os.WriteFile(resolved, []byte(b.String()), info.Mode().Perm()); err != nil {
		return 0, ioError("failed to replace in file '%s'", err, name)
	}
	return len(matches), nil
}

var groupRef = regexp.MustCompile(`\\(\d+)|\\g<(\w+)>`)

// convertReplacement turns a replacement string into a regexp.Expand
// template: literal '$' is escaped and \N / \g<name> become ${N} / ${name}.
func convertReplacement(replacement string) string {
	escaped := strings.ReplaceAll(replacement, "$", "$$")
	return groupRef.ReplaceAllStringFunc(escaped, func(ref string) string {
		sub := groupRef.FindStringSubmatch(ref)
		if sub[1] != "" {
			return "${" + sub[1] + "}"
		}
		return "${" + sub[2] + "}"
	})
}
