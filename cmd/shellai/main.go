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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options holds the global flags. Sub-commands read them after parsing.
type Options struct {
	ConfigPath string `short:"f" long:"config" description:"config file (JSON or YAML)" default:"config.json"`
	Debug      bool   `short:"d" long:"debug" description:"enable debug logging"`
	LogFile    string `long:"log-file" description:"write logs to this file instead of stderr"`
	Version    bool   `short:"v" long:"version" description:"print the version and exit"`

	Serve  *ServeCmd  `command:"serve" description:"Start the HTTP and websocket server (default)"`
	Repl   *ReplCmd   `command:"repl" description:"Chat with the assistant in an interactive console"`
	Batch  *BatchCmd  `command:"batch" description:"Answer one prompt per stdin line"`
	Config *ConfigCmd `command:"config" description:"Print an example config or its JSON schema"`
}

var opts Options

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	args = normalizeArgs(args)
	opts = Options{}
	parser := newParser(&opts)
	_, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Version {
		fmt.Println(versionString())
		return 0
	}
	if parser.Active == nil {
		if err := (&ServeCmd{}).Execute(nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func newParser(o *Options) *flags.Parser {
	parser := flags.NewParser(o, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true
	return parser
}

// normalizeArgs maps a lone "-" argument to the batch command, the way
// the console tools have always been driven from pipes.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	batch := false
	for _, a := range args {
		if a == "-" {
			batch = true
			continue
		}
		out = append(out, a)
	}
	if batch {
		out = append(out, "batch")
	}
	return out
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer
	var closer io.Closer = io.NopCloser(nil)
	switch {
	case logFilePath != "":
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		output, closer = file, file
	case term.IsTerminal(int(os.Stderr.Fd())):
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	default:
		output = os.Stderr
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}
