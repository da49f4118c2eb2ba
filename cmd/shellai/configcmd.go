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
	"io"
	"os"

	"shellai/internal/config"
)

type ConfigCmd struct {
	Schema bool `long:"schema" description:"print the JSON schema instead of an example"`
}

func (c *ConfigCmd) Execute(_ []string) error {
	return c.write(os.Stdout)
}

func (c *ConfigCmd) write(w io.Writer) error {
	text := config.ExampleConfigJSON()
	if c.Schema {
		text = config.SchemaJSON()
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
