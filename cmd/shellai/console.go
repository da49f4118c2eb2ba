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
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shellai/internal/chat"
	"shellai/internal/tools"
)

// Responder answers one prompt.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (chat.Reply, error)
}

// Command represents a slash command
type Command struct {
	Name        string
	Description string
}

func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Description: "Show available commands"},
		{Name: "tools", Description: "List the tools the assistant can call"},
		{Name: "pwd", Description: "Show the sandbox directory"},
		{Name: "quit", Description: "Exit the console"},
		{Name: "exit", Description: "Exit the console"},
	}
}

// console runs prompts and slash commands for the interactive and batch
// modes.
type console struct {
	assistant Responder
	registry  *tools.Registry
	label     string
	root      string
	out       io.Writer
	logger    zerolog.Logger
}

// handleCommand processes a slash command and reports whether to quit.
func (c *console) handleCommand(input string) bool {
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(input, "/")))
	c.logger.Debug().Str("command", name).Msg("Executing command")

	switch name {
	case "help":
		fmt.Fprintln(c.out, "Available commands:")
		for _, cmd := range getAvailableCommands() {
			fmt.Fprintf(c.out, "  /%-8s %s\n", cmd.Name, cmd.Description)
		}
		fmt.Fprintln(c.out, "Anything else is sent to the assistant.")
	case "tools":
		fmt.Fprint(c.out, c.registry.Describe())
	case "pwd":
		fmt.Fprintf(c.out, "%s (%s)\n", c.label, c.root)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: /%s (type /help for available commands)\n", name)
	}
	return false
}

// prompt sends one message and prints the reply.
func (c *console) prompt(ctx context.Context, line string) error {
	start := time.Now()
	reply, err := c.assistant.Respond(ctx, chat.Request{Message: line})
	duration := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Dur("duration_ms", duration).Msg("Error getting response")
		return err
	}
	c.logger.Info().
		Str("tool", reply.Tool).
		Str("tool_code", string(reply.ToolCode)).
		Dur("duration_ms", duration).
		Msg("Response received")
	fmt.Fprintln(c.out, reply.Text)
	return nil
}

func (a *app) console(out io.Writer) *console {
	return &console{
		assistant: a.assistant,
		registry:  a.registry,
		label:     a.box.DirLabel(),
		root:      a.box.Root(),
		out:       out,
		logger:    a.logger,
	}
}
