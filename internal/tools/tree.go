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
	"sort"
	"strings"

	"shellai/internal/sandbox"
)

const (
	treeMiddle     = "├── "
	treeLast       = "└── "
	treeIndent     = "│   "
	treeLastIndent = "    "
)

// readDir is swapped out in tests to simulate unreadable directories.
var readDir = os.ReadDir

// Tree renders path as an indented directory tree. depth < 0 is unlimited;
// depth 0 renders the root label only.
func (t *Toolset) Tree(ctx context.Context, path string, depth int) (string, error) {
	if path == "" {
		path = "."
	}
	resolved, err := t.mustExistDir(path)
	if err != nil {
		return "", err
	}

	label := t.box.Rel(resolved)
	if resolved == t.box.Root() {
		label = t.box.Label()
	}
	lines := []string{label + "/"}
	if depth != 0 {
		lines = append(lines, t.treeLines(ctx, resolved, "", 1, depth)...)
	}
	return strings.Join(lines, "\n"), nil
}

type treeEntry struct {
	name    string
	isDir   bool
	link    bool
	target  string
	outside bool
}

func (t *Toolset) treeLines(ctx context.Context, dir, prefix string, level, maxDepth int) []string {
	if maxDepth >= 0 && level > maxDepth {
		return nil
	}
	if ctx.Err() != nil {
		return []string{prefix + treeLast + "[cancelled]"}
	}
	dirEntries, err := readDir(dir)
	if err != nil {
		return []string{prefix + treeLast + "[inaccessible]"}
	}

	entries := make([]treeEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(dir, de.Name())
		entry := treeEntry{name: de.Name(), link: de.Type()&os.ModeSymlink != 0}
		target, err := t.validate(full, sandbox.Options{})
		if err != nil {
			entry.outside = true
		} else if info, err := os.Stat(target); err == nil {
			entry.isDir = info.IsDir()
			entry.target = target
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})

	var lines []string
	for i, entry := range entries {
		last := i == len(entries)-1
		connector, indent := treeMiddle, treeIndent
		if last {
			connector, indent = treeLast, treeLastIndent
		}
		name := entry.name
		switch {
		case entry.outside:
			name += " [outside sandbox]"
		case entry.isDir:
			name += "/"
		}
		lines = append(lines, prefix+connector+name)
		// Symlinked directories are shown but not descended, which keeps
		// link cycles inside the tree finite.
		if entry.isDir && !entry.link {
			lines = append(lines, t.treeLines(ctx, entry.target, prefix+indent, level+1, maxDepth)...)
		}
	}
	return lines
}
