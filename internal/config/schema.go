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

package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

func SchemaJSON() string {
	return configSchemaJSON
}

func ExampleConfigJSON() string {
	return exampleConfigJSON
}

type fieldCheck func(interface{}) error

// normalizeConfigJSON type-checks a raw JSON config before it is decoded,
// so that errors name the offending field.
func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// migrateLegacyConfig maps the extension's older camelCase keys.
func migrateLegacyConfig(raw map[string]interface{}) {
	renames := map[string]string{
		"deepseek_api_key": "api_key",
		"tavily_api_key":   "search_api_key",
		"proxyConfig":      "proxy",
	}
	for legacy, current := range renames {
		value, ok := raw[legacy]
		if !ok {
			continue
		}
		if _, exists := raw[current]; !exists {
			raw[current] = value
		}
		delete(raw, legacy)
	}
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]fieldCheck{
		"sandbox_root":            func(v interface{}) error { return validateString(v, prefix+"sandbox_root") },
		"host":                    func(v interface{}) error { return validateString(v, prefix+"host") },
		"port":                    func(v interface{}) error { return validateNumber(v, prefix+"port") },
		"api_key":                 func(v interface{}) error { return validateString(v, prefix+"api_key") },
		"api_url":                 func(v interface{}) error { return validateString(v, prefix+"api_url") },
		"model":                   func(v interface{}) error { return validateString(v, prefix+"model") },
		"temperature":             func(v interface{}) error { return validateNumber(v, prefix+"temperature") },
		"max_tokens":              func(v interface{}) error { return validateNumber(v, prefix+"max_tokens") },
		"search_api_key":          func(v interface{}) error { return validateString(v, prefix+"search_api_key") },
		"search_api_url":          func(v interface{}) error { return validateString(v, prefix+"search_api_url") },
		"broker_url":              func(v interface{}) error { return validateString(v, prefix+"broker_url") },
		"allowed_origins":         func(v interface{}) error { return validateStringArray(v, prefix+"allowed_origins") },
		"request_timeout_seconds": func(v interface{}) error { return validateNumber(v, prefix+"request_timeout_seconds") },
		"history_file":            func(v interface{}) error { return validateString(v, prefix+"history_file") },
		"proxy":                   func(v interface{}) error { return validateProxy(v, prefix+"proxy.") },
		"tool_limits":             func(v interface{}) error { return validateToolLimits(v, prefix+"tool_limits.") },
		"tool_timeouts":           func(v interface{}) error { return validateToolTimeouts(v, prefix+"tool_timeouts.") },
		"tool_output_filters":     func(v interface{}) error { return validateToolOutputFilters(v, prefix+"tool_output_filters.") },
	}
	return validateSection(raw, allowed, prefix)
}

func validateProxy(value interface{}, prefix string) error {
	if value == nil {
		return nil
	}
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]fieldCheck{
		"enabled": func(v interface{}) error { return validateBool(v, prefix+"enabled") },
		"type":    func(v interface{}) error { return validateString(v, prefix+"type") },
		"host":    func(v interface{}) error { return validateString(v, prefix+"host") },
		"port":    func(v interface{}) error { return validateNumber(v, prefix+"port") },
		"auth": func(v interface{}) error {
			if v == nil {
				return nil
			}
			auth, ok := v.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%sauth must be an object", prefix)
			}
			return validateSection(auth, map[string]fieldCheck{
				"username": func(v interface{}) error { return validateString(v, prefix+"auth.username") },
				"password": func(v interface{}) error { return validateString(v, prefix+"auth.password") },
			}, prefix+"auth.")
		},
	}
	return validateSection(section, allowed, prefix)
}

func validateToolLimits(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]fieldCheck{
		"max_file_size_bytes": func(v interface{}) error { return validateNumber(v, prefix+"max_file_size_bytes") },
		"preview_members":     func(v interface{}) error { return validateNumber(v, prefix+"preview_members") },
		"max_find_results":    func(v interface{}) error { return validateNumber(v, prefix+"max_find_results") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolTimeouts(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]fieldCheck{
		"default_seconds":  func(v interface{}) error { return validateNumber(v, prefix+"default_seconds") },
		"per_tool_seconds": func(v interface{}) error { return validateStringNumberMap(v, prefix+"per_tool_seconds") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolOutputFilters(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]fieldCheck{
		"max_chars":     func(v interface{}) error { return validateNumber(v, prefix+"max_chars") },
		"strip_ansi":    func(v interface{}) error { return validateBool(v, prefix+"strip_ansi") },
		"strip_control": func(v interface{}) error { return validateBool(v, prefix+"strip_control") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]fieldCheck, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		check, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := check(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func trimDot(prefix string) string {
	if len(prefix) > 0 && prefix[len(prefix)-1] == '.' {
		return prefix[:len(prefix)-1]
	}
	return prefix
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
	}
	return nil
}

func validateStringNumberMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of number values", name)
	}
	for key, entry := range section {
		if _, ok := entry.(float64); !ok {
			return fmt.Errorf("%s.%s must be a number", name, key)
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "ShellAI Config",
  "type": "object",
  "properties": {
    "sandbox_root": { "type": "string" },
    "host": { "type": "string" },
    "port": { "type": "number" },
    "api_key": { "type": "string" },
    "api_url": { "type": "string" },
    "model": { "type": "string" },
    "temperature": { "type": "number" },
    "max_tokens": { "type": "number" },
    "search_api_key": { "type": "string" },
    "search_api_url": { "type": "string" },
    "broker_url": { "type": "string" },
    "allowed_origins": { "type": "array", "items": { "type": "string" } },
    "request_timeout_seconds": { "type": "number" },
    "history_file": { "type": "string" },
    "proxy": {
      "type": "object",
      "properties": {
        "enabled": { "type": "boolean" },
        "type": { "type": "string", "enum": ["http", "https", "socks5"] },
        "host": { "type": "string" },
        "port": { "type": "number" },
        "auth": {
          "type": "object",
          "properties": {
            "username": { "type": "string" },
            "password": { "type": "string" }
          }
        }
      }
    },
    "tool_limits": {
      "type": "object",
      "properties": {
        "max_file_size_bytes": { "type": "number" },
        "preview_members": { "type": "number" },
        "max_find_results": { "type": "number" }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "default_seconds": { "type": "number" },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "properties": {
        "max_chars": { "type": "number" },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    }
  }
}`

const exampleConfigJSON = `{
  "sandbox_root": "sandbox",
  "host": "127.0.0.1",
  "port": 5001,
  "api_key": "sk-...",
  "api_url": "https://api.deepseek.com/v1",
  "model": "deepseek-chat",
  "search_api_key": "tvly-...",
  "broker_url": "memory://",
  "allowed_origins": ["chrome-extension://*", "http://localhost:*", "http://127.0.0.1:*"],
  "tool_limits": {
    "max_file_size_bytes": 10485760,
    "preview_members": 10,
    "max_find_results": 1000
  },
  "tool_timeouts": {
    "default_seconds": 60,
    "per_tool_seconds": {
      "archive_files": 300,
      "extract_archive": 300
    }
  }
}`
