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
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationRule checks tool arguments and returns an error if invalid.
type ValidationRule func(args map[string]interface{}) error

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args map[string]interface{}) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireStringArg ensures a string argument is present and non-empty.
func RequireStringArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return fmt.Errorf("%s", message)
		}
		str, ok := value.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// RequireTextArg ensures a string argument is present. Empty strings pass.
func RequireTextArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		if _, ok := args[key].(string); !ok {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// RequireNonEmptyArg ensures an argument is present and non-empty.
func RequireNonEmptyArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return fmt.Errorf("%s", message)
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s", message)
			}
		case []interface{}:
			if len(v) == 0 {
				return fmt.Errorf("%s", message)
			}
		case map[string]interface{}:
			if len(v) == 0 {
				return fmt.Errorf("%s", message)
			}
		}
		return nil
	}
}

// OptionalTypedArgs checks the types of optional arguments when present.
// kinds maps argument name to one of "string", "bool", "int", "[]string".
func OptionalTypedArgs(kinds map[string]string) ValidationRule {
	return func(args map[string]interface{}) error {
		for key, kind := range kinds {
			value, ok := args[key]
			if !ok || value == nil {
				continue
			}
			var err error
			switch kind {
			case "string":
				if _, ok := value.(string); !ok {
					err = fmt.Errorf("'%s' must be a string", key)
				}
			case "bool":
				if _, ok := value.(bool); !ok {
					err = fmt.Errorf("'%s' must be a boolean", key)
				}
			case "int":
				_, err = toInt(key, value)
			case "[]string":
				_, err = toStringList(key, value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// RejectUnknownArgs fails on argument names outside allowed.
func RejectUnknownArgs(allowed ...string) ValidationRule {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	return func(args map[string]interface{}) error {
		var unknown []string
		for key := range args {
			if !set[key] {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return fmt.Errorf("unexpected argument(s): %s", strings.Join(unknown, ", "))
		}
		return nil
	}
}

func stringArg(args map[string]interface{}, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func intArg(args map[string]interface{}, key string, def int) (int, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return def, nil
	}
	return toInt(key, value)
}

func stringListArg(args map[string]interface{}, key string) ([]string, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return nil, nil
	}
	return toStringList(key, value)
}

func toInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("'%s' must be an integer", key)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("'%s' must be an integer", key)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("'%s' must be an integer", key)
}

func toStringList(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("'%s' must be a list of strings", key)
}
