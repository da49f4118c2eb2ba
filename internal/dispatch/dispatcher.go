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

package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	apperrors "shellai/internal/errors"
	"shellai/internal/tools"
)

// Outcome is what a reply turned into.
type Outcome struct {
	// Text is the string handed back to the user.
	Text string
	// Result is set when a tool was invoked.
	Result *tools.ToolResult
}

// Invoked reports whether the reply was executed as a tool call.
func (o Outcome) Invoked() bool {
	return o.Result != nil
}

// Dispatcher executes model replies that are tool calls against a registry.
type Dispatcher struct {
	registry *tools.Registry
	logger   zerolog.Logger
}

// New creates a dispatcher for registry.
func New(registry *tools.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch runs reply as a tool call when it is one. Anything else, including
// calls to unknown tools and calls with unparsable arguments, is returned
// verbatim as a natural-language answer. Tool failures come back as text.
func (d *Dispatcher) Dispatch(ctx context.Context, reply string) Outcome {
	candidate := StripFences(reply)
	call, err := Parse(candidate)
	if err != nil {
		d.logger.Debug().Err(err).Msg("reply is not a tool call")
		return Outcome{Text: reply}
	}
	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		d.logger.Debug().Str("tool", call.Name).Msg("reply names an unknown tool")
		return Outcome{Text: reply}
	}

	args, err := Bind(call, tool.ArgumentOrder())
	var result *tools.ToolResult
	if err != nil {
		result = &tools.ToolResult{Function: call.Name, Error: tools.NewArgumentError(call.Name, err)}
	} else {
		result = d.registry.Execute(ctx, call.Name, args)
	}

	event := d.logger.Debug()
	if !result.OK() {
		event = d.logger.Info()
	}
	event.Str("tool", call.Name).
		Strs("args", argKeys(args)).
		Str("code", string(apperrors.CodeOf(result.Error))).
		Msg("tool invoked")

	return Outcome{Text: result.Text(), Result: result}
}

// Bind maps positional arguments onto order and merges keyword arguments.
func Bind(call *Call, order []string) (map[string]interface{}, error) {
	if len(call.Args) > len(order) {
		return nil, fmt.Errorf("%s takes at most %d positional argument(s), got %d", call.Name, len(order), len(call.Args))
	}
	args := make(map[string]interface{}, len(call.Args)+len(call.Kwargs))
	for i, value := range call.Args {
		args[order[i]] = value
	}
	for _, key := range call.KwargOrder {
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("%s got multiple values for argument '%s'", call.Name, key)
		}
		args[key] = call.Kwargs[key]
	}
	return args, nil
}

// StripFences removes a surrounding markdown code fence or inline backticks
// and trims whitespace.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// Drop an info string such as "python".
			if first := strings.TrimSpace(s[:nl]); first == "" || isInfoString(first) {
				s = s[nl+1:]
			}
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		return strings.TrimSpace(s)
	}
	if len(s) >= 2 && strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") && !strings.Contains(s[1:len(s)-1], "`") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func isInfoString(s string) bool {
	for _, r := range s {
		if !(r == '-' || r == '_' || r == '+' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func argKeys(args map[string]interface{}) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
