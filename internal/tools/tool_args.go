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

// Argument structs define each tool's JSON schema and, through field order,
// the positional binding order of call expressions.

type readFileArgs struct {
	Name string `json:"name" jsonschema:"description=File path relative to the sandbox root"`
}

type listFilesArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list (default: sandbox root)"`
}

type writeFileArgs struct {
	Name    string `json:"name" jsonschema:"description=File path to write"`
	Content string `json:"content" jsonschema:"description=Text content to write"`
	Mode    string `json:"mode,omitempty" jsonschema:"description=w to overwrite or a to append (default: w),enum=w,enum=a"`
}

type createDirectoryArgs struct {
	Name string `json:"name" jsonschema:"description=Directory path to create (parents are created too)"`
}

type deleteFileArgs struct {
	Name string `json:"name" jsonschema:"description=File to delete (directories are refused)"`
}

type renameFileArgs struct {
	Name    string `json:"name" jsonschema:"description=Existing file or directory"`
	NewName string `json:"new_name" jsonschema:"description=New path"`
}

type diffFilesArgs struct {
	F1 string `json:"f1" jsonschema:"description=Original file"`
	F2 string `json:"f2" jsonschema:"description=Changed file"`
}

type treeArgs struct {
	Path  string `json:"path,omitempty" jsonschema:"description=Directory to render (default: sandbox root)"`
	Depth int    `json:"depth,omitempty" jsonschema:"description=Maximum depth; -1 for unlimited and 0 for the root only (default: -1)"`
}

type findFilesArgs struct {
	Pattern            string `json:"pattern" jsonschema:"description=Glob pattern such as *.txt"`
	Path               string `json:"path,omitempty" jsonschema:"description=Directory to search (default: sandbox root)"`
	SearchContentRegex string `json:"search_content_regex,omitempty" jsonschema:"description=Only report lines of matched files that match this regular expression"`
	CaseSensitive      bool   `json:"case_sensitive,omitempty" jsonschema:"description=Case-sensitive content matching (default: false)"`
	Recursive          bool   `json:"recursive,omitempty" jsonschema:"description=Search subdirectories (default: true)"`
}

type replaceInFileArgs struct {
	Name          string `json:"name" jsonschema:"description=File to modify"`
	SearchRegex   string `json:"search_regex" jsonschema:"description=Regular expression to search for"`
	ReplaceString string `json:"replace_string" jsonschema:"description=Replacement text; use \\1 or \\g<name> for groups"`
	Count         int    `json:"count,omitempty" jsonschema:"description=Maximum replacements; 0 replaces all (default: 0)"`
}

type archiveFilesArgs struct {
	ArchiveName    string   `json:"archive_name" jsonschema:"description=Archive file to create"`
	ItemsToArchive []string `json:"items_to_archive" jsonschema:"description=Files and directories to include"`
	ArchiveFormat  string   `json:"archive_format,omitempty" jsonschema:"description=zip or tar or gztar or bztar (default: zip),enum=zip,enum=tar,enum=gztar,enum=bztar"`
}

type extractArchiveArgs struct {
	ArchiveName     string   `json:"archive_name" jsonschema:"description=Archive file to extract"`
	DestinationPath string   `json:"destination_path,omitempty" jsonschema:"description=Target directory (default: sandbox root)"`
	SpecificMembers []string `json:"specific_members,omitempty" jsonschema:"description=Only extract these members or directory prefixes"`
}

type backupFileArgs struct {
	Name          string `json:"name" jsonschema:"description=File to back up"`
	BackupDirName string `json:"backup_dir_name,omitempty" jsonschema:"description=Directory for the copy (default: backups)"`
}

type noArgs struct{}

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"description=Search query"`
}
