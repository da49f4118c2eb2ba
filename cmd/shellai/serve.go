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
	"os"
	"os/signal"
	"syscall"

	"shellai/internal/broker"
	"shellai/internal/server"
)

type ServeCmd struct {
	Addr   string `short:"a" long:"addr" description:"listen address, overrides host and port from the config"`
	Broker string `long:"broker" description:"broker URL (memory:// or redis://), overrides the config"`
}

func (s *ServeCmd) Execute(_ []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	brokerURL := a.cfg.BrokerURL
	if s.Broker != "" {
		brokerURL = s.Broker
	}
	b, err := broker.Open(ctx, brokerURL, a.logger)
	if err != nil {
		return err
	}
	if b != nil {
		defer b.Close()
	}

	addr := a.cfg.Address()
	if s.Addr != "" {
		addr = s.Addr
	}

	srv := server.New(server.Options{
		Assistant:      a.assistant,
		Broker:         b,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.logger,
	})
	return srv.Run(ctx, addr)
}
