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
	"sort"
	"strings"
	"sync"

	apperrors "shellai/internal/errors"
)

// ToolResult represents the result of a tool execution.
// Exactly one of Output or Error is meaningful.
type ToolResult struct {
	Function string
	Output   Output
	Error    error
}

// OK reports whether the tool succeeded.
func (r *ToolResult) OK() bool {
	return r.Error == nil
}

// Code returns the error code of a failed result, or "" on success.
func (r *ToolResult) Code() apperrors.Code {
	return apperrors.CodeOf(r.Error)
}

// Text renders the result as the human-readable string handed to callers.
func (r *ToolResult) Text() string {
	if r.Error != nil {
		return fmt.Sprintf("Error: %v", r.Error)
	}
	return r.Output.String()
}

// Registry holds all available tools. It is populated at startup and only
// read afterwards.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	timeouts TimeoutConfig
	filter   OutputFilter
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// SetTimeouts configures per-tool execution deadlines.
func (r *Registry) SetTimeouts(cfg TimeoutConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts = cfg
}

// SetOutputFilter configures how remote text, such as search results, is
// sanitized before it is returned.
func (r *Registry) SetOutputFilter(f OutputFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
}

// OutputFilter returns the configured filter.
func (r *Registry) OutputFilter() OutputFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter
}

// NewBuiltinRegistry creates a registry holding every builtin tool bound to
// the given toolset. searcher may be nil, in which case web_search is absent.
func NewBuiltinRegistry(ts *Toolset, searcher Searcher) *Registry {
	r := NewRegistry()
	r.timeouts = DefaultTimeoutConfig()
	r.filter = DefaultOutputFilter()
	registerBuiltInTools(r, ts, searcher)
	return r
}

// RegisterTool adds a new tool to the registry.
func (r *Registry) RegisterTool(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if !tool.CompatibleWith(HostAPIVersion) {
		return fmt.Errorf("%w: %s (version %s)", ErrIncompatibleTool, name, tool.Version())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// GetToolNames returns tool names in registration order.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Describe renders one line per tool, "name(arg: type, opt?: type): description",
// for the model's instructions.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, name := range r.order {
		tool := r.tools[name]
		fmt.Fprintf(&b, "- %s(%s): %s\n", name, signature(tool), tool.Description())
	}
	return b.String()
}

func signature(tool Tool) string {
	params := tool.Parameters()
	props, _ := params["properties"].(map[string]interface{})
	required := map[string]bool{}
	switch req := params["required"].(type) {
	case []interface{}:
		for _, v := range req {
			if s, ok := v.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}

	order := tool.ArgumentOrder()
	if len(order) == 0 {
		for name := range props {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		typ := "any"
		if prop, ok := props[name].(map[string]interface{}); ok {
			if t, ok := prop["type"].(string); ok {
				typ = t
				if t == "array" {
					if items, ok := prop["items"].(map[string]interface{}); ok {
						if it, ok := items["type"].(string); ok {
							typ = it + "[]"
						}
					}
				}
			}
		}
		opt := ""
		if !required[name] {
			opt = "?"
		}
		parts = append(parts, fmt.Sprintf("%s%s: %s", name, opt, typ))
	}
	return strings.Join(parts, ", ")
}

// Execute validates and runs the named tool. Executor panics are recovered
// and reported as failures.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) (result *ToolResult) {
	result = &ToolResult{Function: function}

	tool, exists := r.Lookup(function)
	if !exists {
		result.Error = apperrors.Wrap(apperrors.CodeToolNotFound,
			fmt.Sprintf("tool '%s' not found, available tools: %s", function, strings.Join(r.GetToolNames(), ", ")),
			ErrToolNotFound)
		return result
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := tool.Validate(args); err != nil {
		result.Error = NewArgumentError(function, err)
		return result
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Output = Output{}
			result.Error = NewToolExecutionError(function, "", fmt.Errorf("panic: %v", rec))
		}
	}()

	r.mu.RLock()
	timeout := r.timeouts.TimeoutForTool(function)
	r.mu.RUnlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := tool.Execute(ctx, args)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = NewToolExecutionError(function, "", err)
		}
		result.Error = err
		return result
	}
	result.Output = output
	return result
}
