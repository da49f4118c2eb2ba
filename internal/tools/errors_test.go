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
	"errors"
	"testing"

	apperrors "shellai/internal/errors"
)

func TestToolExecutionError(t *testing.T) {
	baseErr := errors.New("disk on fire")

	tests := []struct {
		name     string
		err      *apperrors.Error
		expected string
	}{
		{
			name:     "with operation",
			err:      NewToolExecutionError("archive_files", "walk", baseErr),
			expected: "tool archive_files failed during walk: disk on fire",
		},
		{
			name:     "without operation",
			err:      NewToolExecutionError("read_file", "", baseErr),
			expected: "tool read_file failed: disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
			if !errors.Is(tt.err, baseErr) {
				t.Error("errors.Is should unwrap to base error")
			}
			if apperrors.CodeOf(tt.err) != apperrors.CodeIO {
				t.Errorf("expected io code, got %s", apperrors.CodeOf(tt.err))
			}
		})
	}
}

func TestArgumentError(t *testing.T) {
	err := NewArgumentError("tree", errors.New("'depth' must be an integer"))
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatal("argument errors should wrap ErrInvalidArguments")
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid_argument, got %s", apperrors.CodeOf(err))
	}
}

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrToolNotFound", ErrToolNotFound, "tool not found"},
		{"ErrInvalidArguments", ErrInvalidArguments, "invalid tool arguments"},
		{"ErrDuplicateTool", ErrDuplicateTool, "tool already registered"},
		{"ErrIncompatibleTool", ErrIncompatibleTool, "tool incompatible with host API version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}
