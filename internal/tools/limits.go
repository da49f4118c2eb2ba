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

// Limits configures size bounds for tool operations.
type Limits struct {
	MaxFileSizeBytes int64
	MaxFindResults   int
	// PreviewMembers is how many extracted names are echoed back.
	PreviewMembers int
}

const (
	defaultMaxFileSizeBytes int64 = 10 * 1024 * 1024
	defaultMaxFindResults         = 1000
	defaultPreviewMembers         = 10
)

// DefaultLimits returns the default resource limits for tool operations.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes: defaultMaxFileSizeBytes,
		MaxFindResults:   defaultMaxFindResults,
		PreviewMembers:   defaultPreviewMembers,
	}
}

func normalizeLimits(l Limits) Limits {
	if l.MaxFileSizeBytes <= 0 {
		l.MaxFileSizeBytes = defaultMaxFileSizeBytes
	}
	if l.MaxFindResults <= 0 {
		l.MaxFindResults = defaultMaxFindResults
	}
	if l.PreviewMembers <= 0 {
		l.PreviewMembers = defaultPreviewMembers
	}
	return l
}
