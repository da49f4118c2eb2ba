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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"shellai/internal/proxy"
	"shellai/internal/tools"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 5001
	DefaultAPIURL      = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultSandboxRoot = "sandbox"
	DefaultHistoryFile = ".shellai_history"

	defaultRequestTimeoutSeconds = 120
)

// DefaultAllowedOrigins lets the browser extension and local pages call the
// server.
var DefaultAllowedOrigins = []string{"chrome-extension://*", "http://localhost:*", "http://127.0.0.1:*"}

type Config struct {
	SandboxRoot           string            `json:"sandbox_root" yaml:"sandbox_root" validate:"required"`
	Host                  string            `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port                  int               `json:"port" yaml:"port" validate:"min=1,max=65535"`
	APIKey                string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIURL                string            `json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"omitempty,url"`
	Model                 string            `json:"model" yaml:"model"`
	Temperature           *float32          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens             *int              `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	SearchAPIKey          string            `json:"search_api_key,omitempty" yaml:"search_api_key,omitempty"`
	SearchAPIURL          string            `json:"search_api_url,omitempty" yaml:"search_api_url,omitempty" validate:"omitempty,url"`
	BrokerURL             string            `json:"broker_url,omitempty" yaml:"broker_url,omitempty" validate:"omitempty,startswith=memory://|startswith=redis://|startswith=rediss://"`
	AllowedOrigins        []string          `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	Proxy                 *proxy.Config     `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"-"`
	ToolLimits            ToolLimits        `json:"tool_limits,omitempty" yaml:"tool_limits,omitempty"`
	ToolTimeouts          ToolTimeouts      `json:"tool_timeouts,omitempty" yaml:"tool_timeouts,omitempty"`
	ToolOutputFilters     ToolOutputFilters `json:"tool_output_filters,omitempty" yaml:"tool_output_filters,omitempty"`
	RequestTimeoutSeconds int               `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty" validate:"min=0"`
	HistoryFile           string            `json:"history_file,omitempty" yaml:"history_file,omitempty"`
}

type ToolLimits struct {
	MaxFileSizeBytes int64 `json:"max_file_size_bytes,omitempty" yaml:"max_file_size_bytes,omitempty" validate:"min=0"`
	// PreviewMembers caps how many extracted names are echoed back.
	PreviewMembers int `json:"preview_members,omitempty" yaml:"preview_members,omitempty" validate:"min=0"`
	MaxFindResults int `json:"max_find_results,omitempty" yaml:"max_find_results,omitempty" validate:"min=0"`
}

type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty" yaml:"default_seconds,omitempty" validate:"min=0"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty" yaml:"per_tool_seconds,omitempty"`
}

type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty" yaml:"max_chars,omitempty" validate:"min=0"`
	StripANSI    bool `json:"strip_ansi,omitempty" yaml:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty" yaml:"strip_control,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultConfig() *Config {
	limits := tools.DefaultLimits()
	timeouts := tools.DefaultTimeoutConfig()
	perTool := make(map[string]int, len(timeouts.PerTool))
	for name, d := range timeouts.PerTool {
		perTool[name] = int(d.Seconds())
	}
	filter := tools.DefaultOutputFilter()
	return &Config{
		SandboxRoot:    DefaultSandboxRoot,
		Host:           DefaultHost,
		Port:           DefaultPort,
		APIURL:         DefaultAPIURL,
		Model:          DefaultModel,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		ToolLimits: ToolLimits{
			MaxFileSizeBytes: limits.MaxFileSizeBytes,
			PreviewMembers:   limits.PreviewMembers,
			MaxFindResults:   limits.MaxFindResults,
		},
		ToolTimeouts: ToolTimeouts{
			DefaultSeconds: int(timeouts.Default.Seconds()),
			PerToolSeconds: perTool,
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filter.MaxChars,
			StripANSI:    filter.StripANSI,
			StripControl: filter.StripControl,
		},
		RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		HistoryFile:           DefaultHistoryFile,
	}
}

// LoadConfig reads path (JSON, or YAML for .yaml/.yml), applies environment
// overrides and defaults, and checks the result. A missing file is not an
// error. A missing API key is not an error either; see Validate.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if err := decode(path, data, config); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Proxy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	normalized, err := normalizeConfigJSON(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	return dec.Decode(config)
}

func applyEnv(config *Config) error {
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		config.APIKey = val
	} else if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		config.APIKey = val
	}
	if val := os.Getenv("OPENAI_API_URL"); val != "" {
		config.APIURL = val
	}
	if val := os.Getenv("TAVILY_API_KEY"); val != "" {
		config.SearchAPIKey = val
	}
	if val := os.Getenv("SHELLAI_SANDBOX_ROOT"); val != "" {
		config.SandboxRoot = val
	}
	if val := os.Getenv("SHELLAI_HOST"); val != "" {
		config.Host = val
	}
	if val := os.Getenv("SHELLAI_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("SHELLAI_PORT must be a number, got %q", val)
		}
		config.Port = port
	}
	if val := os.Getenv("SHELLAI_BROKER_URL"); val != "" {
		config.BrokerURL = val
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SandboxRoot == "" {
		c.SandboxRoot = DefaultSandboxRoot
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

// Address is the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequestTimeout bounds one outbound completion or search call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TestMode reports whether no completion API key is configured.
func (c *Config) TestMode() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes: c.ToolLimits.MaxFileSizeBytes,
		MaxFindResults:   c.ToolLimits.MaxFindResults,
		PreviewMembers:   c.ToolLimits.PreviewMembers,
	}
}

func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

func (c *Config) ToolOutputFilterConfig() tools.OutputFilter {
	return tools.OutputFilter{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

type ValidationWarning struct {
	Field   string
	Message string
}

// Validate reports settings that are accepted but probably wrong.
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if c.TestMode() {
		warnings = append(warnings, ValidationWarning{
			Field:   "api_key",
			Message: "no API key configured (set api_key, DEEPSEEK_API_KEY or OPENAI_API_KEY); running in test mode",
		})
	}
	if c.SearchAPIKey == "" {
		warnings = append(warnings, ValidationWarning{
			Field:   "search_api_key",
			Message: "no search API key configured (set search_api_key or TAVILY_API_KEY); web_search is disabled",
		})
	}

	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
		if tokens > 128000 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d exceeds typical model limits", tokens),
			})
		}
	}

	if registry != nil {
		registered := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registered[name] = true
		}
		names := make([]string, 0, len(c.ToolTimeouts.PerToolSeconds))
		for name := range c.ToolTimeouts.PerToolSeconds {
			names = append(names, name)
		}
		sort.Strings(names)
		defaults := tools.DefaultTimeoutConfig().PerTool
		for _, name := range names {
			// Built-in defaults cover optional tools such as web_search.
			if d, ok := defaults[name]; ok && time.Duration(c.ToolTimeouts.PerToolSeconds[name])*time.Second == d {
				continue
			}
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tool_timeouts.per_tool_seconds",
					Message: fmt.Sprintf("tool %q has a timeout but is not registered", name),
				})
			}
		}
	}

	if host := c.Host; host != "127.0.0.1" && host != "localhost" && host != "::1" {
		warnings = append(warnings, ValidationWarning{
			Field:   "host",
			Message: fmt.Sprintf("listening on %s exposes the sandbox to the network without authentication", host),
		})
	}

	return warnings
}
