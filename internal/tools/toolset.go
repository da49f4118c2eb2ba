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
	"time"

	"shellai/internal/sandbox"
)

// Toolset implements the file primitives on top of one Sandbox. Every path
// argument passes through Sandbox.Validate before any I/O. Methods return a
// payload or a coded *errors.Error; rendering to text happens in the caller.
//
// Toolset holds no mutable state and is safe for concurrent use; concurrent
// operations on the same path are not serialized.
type Toolset struct {
	box    *sandbox.Sandbox
	limits Limits
	now    func() time.Time
}

// NewToolset binds the primitives to box.
func NewToolset(box *sandbox.Sandbox, limits Limits) *Toolset {
	return &Toolset{
		box:    box,
		limits: normalizeLimits(limits),
		now:    time.Now,
	}
}

// Sandbox returns the confinement root the toolset operates in.
func (t *Toolset) Sandbox() *sandbox.Sandbox {
	return t.box
}

func (t *Toolset) validate(path string, opts sandbox.Options) (string, error) {
	return t.box.Validate(path, opts)
}

func (t *Toolset) mustExistFile(path string) (string, error) {
	return t.box.Validate(path, sandbox.Options{CheckExistence: true, ExpectFile: true})
}

func (t *Toolset) mustExistDir(path string) (string, error) {
	return t.box.Validate(path, sandbox.Options{CheckExistence: true, ExpectDir: true})
}
