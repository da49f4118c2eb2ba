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
	"strings"
)

const builtinToolVersion = "1.0.0"

// Searcher answers web queries for the web_search tool.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type builtinTool struct {
	name        string
	description string
	spec        argSpec
	execute     ExecutorFunc
	validate    ValidationRule
}

// registerBuiltInTools registers all built-in tools to the registry.
func registerBuiltInTools(r *Registry, ts *Toolset, searcher Searcher) {
	register := func(bt builtinTool) {
		tool := &ToolDefinition{
			NameValue:          bt.name,
			DescriptionValue:   bt.description,
			ParametersValue:    bt.spec.Parameters,
			ArgumentOrderValue: bt.spec.Order,
			ExecuteFunc:        bt.execute,
			ValidateFunc:       ChainValidation(RejectUnknownArgs(bt.spec.Order...), bt.validate),
			VersionValue:       builtinToolVersion,
		}
		if err := r.RegisterTool(tool); err != nil {
			panic(err)
		}
	}

	register(builtinTool{
		name:        "read_file",
		description: "Read the text content of a file",
		spec:        mustArgSpecFor[readFileArgs](),
		validate:    RequireStringArg("name", "missing or invalid 'name' parameter"),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := ts.Read(ctx, stringArg(args, "name", ""))
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "list_files",
		description: "List a directory with type and size and modification time of each entry",
		spec:        mustArgSpecFor[listFilesArgs](),
		validate:    OptionalTypedArgs(map[string]string{"path": "string"}),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			items, err := ts.List(ctx, stringArg(args, "path", "."))
			if err != nil {
				return Output{}, err
			}
			return ItemsOutput(items), nil
		},
	})

	register(builtinTool{
		name:        "write_file",
		description: "Write text to a file, creating parent directories; mode 'a' appends",
		spec:        mustArgSpecFor[writeFileArgs](),
		validate: ChainValidation(
			RequireStringArg("name", "missing or invalid 'name' parameter"),
			RequireTextArg("content", "missing or invalid 'content' parameter"),
			OptionalTypedArgs(map[string]string{"mode": "string"}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			mode, err := ParseWriteMode(stringArg(args, "mode", ""))
			if err != nil {
				return Output{}, err
			}
			name := stringArg(args, "name", "")
			n, err := ts.Write(ctx, name, stringArg(args, "content", ""), mode)
			if err != nil {
				return Output{}, err
			}
			return TextOutput(fmt.Sprintf("Wrote %d bytes to '%s'.", n, name)), nil
		},
	})

	register(builtinTool{
		name:        "create_directory",
		description: "Create a directory and any missing parents; fails if it already exists",
		spec:        mustArgSpecFor[createDirectoryArgs](),
		validate:    RequireStringArg("name", "missing or invalid 'name' parameter"),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			name := stringArg(args, "name", "")
			if err := ts.Mkdir(ctx, name); err != nil {
				return Output{}, err
			}
			return TextOutput(fmt.Sprintf("Directory '%s' created.", name)), nil
		},
	})

	register(builtinTool{
		name:        "delete_file",
		description: "Delete a single file",
		spec:        mustArgSpecFor[deleteFileArgs](),
		validate:    RequireStringArg("name", "missing or invalid 'name' parameter"),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			name := stringArg(args, "name", "")
			if err := ts.Delete(ctx, name); err != nil {
				return Output{}, err
			}
			return TextOutput(fmt.Sprintf("File '%s' deleted.", name)), nil
		},
	})

	register(builtinTool{
		name:        "rename_file",
		description: "Rename or move a file or directory",
		spec:        mustArgSpecFor[renameFileArgs](),
		validate: ChainValidation(
			RequireStringArg("name", "missing or invalid 'name' parameter"),
			RequireStringArg("new_name", "missing or invalid 'new_name' parameter"),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			name, newName := stringArg(args, "name", ""), stringArg(args, "new_name", "")
			if err := ts.Rename(ctx, name, newName); err != nil {
				return Output{}, err
			}
			return TextOutput(fmt.Sprintf("Renamed '%s' to '%s'.", name, newName)), nil
		},
	})

	register(builtinTool{
		name:        "diff_files",
		description: "Show a unified diff between two text files",
		spec:        mustArgSpecFor[diffFilesArgs](),
		validate: ChainValidation(
			RequireStringArg("f1", "missing or invalid 'f1' parameter"),
			RequireStringArg("f2", "missing or invalid 'f2' parameter"),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := ts.Diff(ctx, stringArg(args, "f1", ""), stringArg(args, "f2", ""))
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "tree",
		description: "Render a directory as a tree",
		spec:        mustArgSpecFor[treeArgs](),
		validate:    OptionalTypedArgs(map[string]string{"path": "string", "depth": "int"}),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			depth, err := intArg(args, "depth", -1)
			if err != nil {
				return Output{}, NewArgumentError("tree", err)
			}
			text, err := ts.Tree(ctx, stringArg(args, "path", "."), depth)
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "find_files",
		description: "Find files by glob pattern, optionally reporting lines that match a regular expression",
		spec:        mustArgSpecFor[findFilesArgs](),
		validate: ChainValidation(
			RequireStringArg("pattern", "missing or invalid 'pattern' parameter"),
			OptionalTypedArgs(map[string]string{
				"path":                 "string",
				"search_content_regex": "string",
				"case_sensitive":       "bool",
				"recursive":            "bool",
			}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := ts.Find(ctx, stringArg(args, "pattern", ""), stringArg(args, "path", "."), FindOptions{
				ContentRegex:  stringArg(args, "search_content_regex", ""),
				CaseSensitive: boolArg(args, "case_sensitive", false),
				Recursive:     boolArg(args, "recursive", true),
			})
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "replace_in_file",
		description: "Replace regular expression matches in a file; count 0 replaces all",
		spec:        mustArgSpecFor[replaceInFileArgs](),
		validate: ChainValidation(
			RequireStringArg("name", "missing or invalid 'name' parameter"),
			RequireStringArg("search_regex", "missing or invalid 'search_regex' parameter"),
			RequireTextArg("replace_string", "missing or invalid 'replace_string' parameter"),
			OptionalTypedArgs(map[string]string{"count": "int"}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			count, err := intArg(args, "count", 0)
			if err != nil {
				return Output{}, NewArgumentError("replace_in_file", err)
			}
			name, pattern := stringArg(args, "name", ""), stringArg(args, "search_regex", "")
			n, err := ts.Replace(ctx, name, pattern, stringArg(args, "replace_string", ""), count)
			if err != nil {
				return Output{}, err
			}
			if n == 0 {
				return TextOutput(fmt.Sprintf("No matches for '%s' found in '%s'.", pattern, name)), nil
			}
			return TextOutput(fmt.Sprintf("Replaced %d match(es) in '%s'.", n, name)), nil
		},
	})

	register(builtinTool{
		name:        "archive_files",
		description: "Pack files and directories into a new zip or tar archive",
		spec:        mustArgSpecFor[archiveFilesArgs](),
		validate: ChainValidation(
			RequireStringArg("archive_name", "missing or invalid 'archive_name' parameter"),
			RequireNonEmptyArg("items_to_archive", "missing or empty 'items_to_archive' parameter"),
			OptionalTypedArgs(map[string]string{"items_to_archive": "[]string", "archive_format": "string"}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			items, err := stringListArg(args, "items_to_archive")
			if err != nil {
				return Output{}, NewArgumentError("archive_files", err)
			}
			text, err := ts.Archive(ctx, stringArg(args, "archive_name", ""), items, stringArg(args, "archive_format", ""))
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "extract_archive",
		description: "Extract a zip or tar archive, optionally only selected members",
		spec:        mustArgSpecFor[extractArchiveArgs](),
		validate: ChainValidation(
			RequireStringArg("archive_name", "missing or invalid 'archive_name' parameter"),
			OptionalTypedArgs(map[string]string{"destination_path": "string", "specific_members": "[]string"}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			members, err := stringListArg(args, "specific_members")
			if err != nil {
				return Output{}, NewArgumentError("extract_archive", err)
			}
			text, err := ts.Extract(ctx, stringArg(args, "archive_name", ""), stringArg(args, "destination_path", "."), members)
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "backup_file",
		description: "Copy a file into a backup directory under a timestamped name",
		spec:        mustArgSpecFor[backupFileArgs](),
		validate: ChainValidation(
			RequireStringArg("name", "missing or invalid 'name' parameter"),
			OptionalTypedArgs(map[string]string{"backup_dir_name": "string"}),
		),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := ts.Backup(ctx, stringArg(args, "name", ""), stringArg(args, "backup_dir_name", DefaultBackupDir))
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	register(builtinTool{
		name:        "pwd",
		description: "Show the directory all file operations are confined to",
		spec:        mustArgSpecFor[noArgs](),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			return TextOutput(fmt.Sprintf("Operations are confined to '%s'", ts.Pwd(ctx))), nil
		},
	})

	register(builtinTool{
		name:        "get_system_info",
		description: "Report basic host information (OS, hostname, CPU cores, memory, user) as JSON",
		spec:        mustArgSpecFor[noArgs](),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := ts.SystemInfo(ctx)
			if err != nil {
				return Output{}, err
			}
			return TextOutput(text), nil
		},
	})

	if searcher == nil {
		return
	}
	register(builtinTool{
		name:        "web_search",
		description: "Search the web and return a summary with the top results",
		spec:        mustArgSpecFor[webSearchArgs](),
		validate:    RequireStringArg("query", "missing or invalid 'query' parameter"),
		execute: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			text, err := searcher.Search(ctx, strings.TrimSpace(stringArg(args, "query", "")))
			if err != nil {
				return Output{}, err
			}
			filtered, truncated := r.OutputFilter().Apply(text)
			if truncated {
				filtered += "\n... (truncated)"
			}
			return TextOutput(filtered), nil
		},
	})
}
