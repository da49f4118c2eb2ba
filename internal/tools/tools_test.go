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
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "shellai/internal/errors"
)

type fakeSearcher struct {
	query string
	reply string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.query = query
	return f.reply, nil
}

func TestBuiltinRegistryNames(t *testing.T) {
	ts, _ := newTestToolset(t)
	registry := NewBuiltinRegistry(ts, nil)

	want := []string{
		"read_file", "list_files", "write_file", "create_directory", "delete_file",
		"rename_file", "diff_files", "tree", "find_files", "replace_in_file",
		"archive_files", "extract_archive", "backup_file", "pwd", "get_system_info",
	}
	got := registry.GetToolNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected tools:\n got %v\nwant %v", got, want)
	}
	if _, ok := registry.Lookup("web_search"); ok {
		t.Fatal("web_search must not be registered without a searcher")
	}
}

func TestWebSearchToolFiltersOutput(t *testing.T) {
	ts, _ := newTestToolset(t)
	searcher := &fakeSearcher{reply: "\x1b[1mbold\x1b[0m answer\x00"}
	registry := NewBuiltinRegistry(ts, searcher)

	result := registry.Execute(context.Background(), "web_search", map[string]interface{}{"query": "  go  "})
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if searcher.query != "go" {
		t.Fatalf("expected trimmed query, got %q", searcher.query)
	}
	if result.Text() != "bold answer" {
		t.Fatalf("expected sanitized output, got %q", result.Text())
	}
}

func TestExecuteWriteAndReadThroughRegistry(t *testing.T) {
	ts, _ := newTestToolset(t)
	registry := NewBuiltinRegistry(ts, nil)
	ctx := context.Background()

	result := registry.Execute(ctx, "write_file", map[string]interface{}{"name": "a.txt", "content": "hello"})
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if result.Text() != "Wrote 5 bytes to 'a.txt'." {
		t.Fatalf("unexpected write message %q", result.Text())
	}

	result = registry.Execute(ctx, "read_file", map[string]interface{}{"name": "a.txt"})
	if result.Text() != "hello" {
		t.Fatalf("expected file content, got %q", result.Text())
	}

	result = registry.Execute(ctx, "list_files", nil)
	if !result.OK() || len(result.Output.Items) != 1 || !strings.HasPrefix(result.Output.Items[0], "a.txt (file, 5 bytes") {
		t.Fatalf("unexpected listing %+v", result)
	}
}

func TestExecuteRendersFailures(t *testing.T) {
	ts, _ := newTestToolset(t)
	registry := NewBuiltinRegistry(ts, nil)

	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{"name": "../../etc/passwd"})
	if result.Code() != apperrors.CodeOutOfSandbox {
		t.Fatalf("expected out_of_sandbox, got %s", result.Code())
	}
	if !strings.HasPrefix(result.Text(), "Error: ") || !strings.Contains(result.Text(), "outside the allowed directory") {
		t.Fatalf("unexpected failure text %q", result.Text())
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	registry := NewRegistry()
	result := registry.Execute(context.Background(), "does_not_exist", nil)
	if result.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !errors.Is(result.Error, ErrToolNotFound) || result.Code() != apperrors.CodeToolNotFound {
		t.Fatalf("expected tool_not_found, got %v", result.Error)
	}
}

func TestExecuteRejectsBadArguments(t *testing.T) {
	ts, _ := newTestToolset(t)
	registry := NewBuiltinRegistry(ts, nil)
	ctx := context.Background()

	cases := []struct {
		tool string
		args map[string]interface{}
	}{
		{"read_file", map[string]interface{}{}},
		{"read_file", map[string]interface{}{"name": "a", "bogus": true}},
		{"tree", map[string]interface{}{"depth": "deep"}},
		{"tree", map[string]interface{}{"depth": 1.5}},
		{"archive_files", map[string]interface{}{"archive_name": "x.zip", "items_to_archive": []interface{}{}}},
		{"extract_archive", map[string]interface{}{"archive_name": "x.zip", "specific_members": []interface{}{1}}},
	}
	for _, tc := range cases {
		result := registry.Execute(ctx, tc.tool, tc.args)
		if result.Code() != apperrors.CodeInvalidArgument {
			t.Fatalf("%s(%v): expected invalid_argument, got %v", tc.tool, tc.args, result.Error)
		}
		if !errors.Is(result.Error, ErrInvalidArguments) {
			t.Fatalf("%s: expected ErrInvalidArguments in chain", tc.tool)
		}
	}
}

func TestRegisterToolRejectsDuplicatesAndIncompatible(t *testing.T) {
	registry := NewRegistry()
	tool := &ToolDefinition{NameValue: "x", VersionValue: "1.0.0"}
	if err := registry.RegisterTool(tool); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.RegisterTool(tool); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	old := &ToolDefinition{
		NameValue:          "old",
		CompatibleWithFunc: func(string) bool { return false },
	}
	if err := registry.RegisterTool(old); !errors.Is(err, ErrIncompatibleTool) {
		t.Fatalf("expected incompatible error, got %v", err)
	}
	if err := registry.RegisterTool(&ToolDefinition{NameValue: "  "}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	registry := NewRegistry()
	err := registry.RegisterTool(&ToolDefinition{
		NameValue: "boom",
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			panic("kaboom")
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	result := registry.Execute(context.Background(), "boom", nil)
	if result.Code() != apperrors.CodeIO || !strings.Contains(result.Text(), "kaboom") {
		t.Fatalf("expected recovered io failure, got %v", result.Error)
	}
}

func TestExecuteAppliesTimeout(t *testing.T) {
	registry := NewRegistry()
	registry.SetTimeouts(TimeoutConfig{PerTool: map[string]time.Duration{"slow": 10 * time.Millisecond}})
	err := registry.RegisterTool(&ToolDefinition{
		NameValue: "slow",
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (Output, error) {
			<-ctx.Done()
			return Output{}, ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	result := registry.Execute(context.Background(), "slow", nil)
	if !errors.Is(result.Error, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", result.Error)
	}
}

func TestDescribe(t *testing.T) {
	ts, _ := newTestToolset(t)
	desc := NewBuiltinRegistry(ts, nil).Describe()
	for _, want := range []string{
		"- read_file(name: string): ",
		"- list_files(path?: string): ",
		"- archive_files(archive_name: string, items_to_archive: string[], archive_format?: string): ",
		"- pwd(): ",
	} {
		if !strings.Contains(desc, want) {
			t.Fatalf("expected %q in description:\n%s", want, desc)
		}
	}
}

func TestOutputString(t *testing.T) {
	if got := ItemsOutput([]string{"a", "b"}).String(); got != "a\nb" {
		t.Fatalf("expected joined items, got %q", got)
	}
	if got := TextOutput("x").String(); got != "x" {
		t.Fatalf("expected text, got %q", got)
	}
}
