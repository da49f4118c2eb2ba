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

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"shellai/internal/chat"
	"shellai/internal/config"
	"shellai/internal/dispatch"
	"shellai/internal/proxy"
	"shellai/internal/sandbox"
	"shellai/internal/search"
	"shellai/internal/server"
	"shellai/internal/tools"
)

func versionString() string {
	return "ShellAI " + server.Version
}

// app is the wired object graph shared by every mode.
type app struct {
	cfg       *config.Config
	box       *sandbox.Sandbox
	registry  *tools.Registry
	assistant *chat.Assistant
	logger    zerolog.Logger
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.SandboxRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	box, err := sandbox.New(cfg.SandboxRoot)
	if err != nil {
		return nil, err
	}

	var searcher tools.Searcher
	if cfg.SearchAPIKey != "" {
		httpClient, err := proxy.NewHTTPClient(cfg.Proxy, search.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		client, err := search.New(search.Options{
			Endpoint:   cfg.SearchAPIURL,
			APIKey:     cfg.SearchAPIKey,
			HTTPClient: httpClient,
			Logger:     logger.With().Str("component", "search").Logger(),
		})
		if err != nil {
			return nil, err
		}
		searcher = client
	}

	registry := tools.NewBuiltinRegistry(tools.NewToolset(box, cfg.ToolLimitsConfig()), searcher)
	registry.SetTimeouts(cfg.ToolTimeoutsConfig())
	registry.SetOutputFilter(cfg.ToolOutputFilterConfig())

	for _, w := range cfg.Validate(registry) {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}

	assistant, err := chat.NewAssistant(cfg, registry, dispatch.New(registry, logger), box.DirLabel(), logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("sandbox", box.Root()).
		Strs("tools", registry.GetToolNames()).
		Bool("test_mode", cfg.TestMode()).
		Msg("assistant ready")

	return &app{cfg: cfg, box: box, registry: registry, assistant: assistant, logger: logger}, nil
}

// setup loads config and builds the app from the global options.
func setup() (*app, func(), error) {
	logger, closer, err := initLogger(opts.Debug, opts.LogFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { closer.Close() }

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}
