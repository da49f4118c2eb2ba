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
	"context"
	"encoding/json"
	"math"
	"os"
	"os/user"
	"runtime"
)

// SystemInfo is the host summary returned by get_system_info.
type SystemInfo struct {
	OS            string  `json:"os"`
	Hostname      string  `json:"hostname"`
	CPUCores      int     `json:"cpu_cores"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
	User          string  `json:"user"`
}

// Pwd reports the sandbox directory label. The host path is never exposed.
func (t *Toolset) Pwd(ctx context.Context) string {
	return t.box.DirLabel()
}

// SystemInfo collects host details. Fields that cannot be determined are
// left empty rather than failing the call.
func (t *Toolset) SystemInfo(ctx context.Context) (string, error) {
	info := SystemInfo{
		OS:       osRelease(),
		CPUCores: runtime.NumCPU(),
	}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}
	if total, err := totalMemoryBytes(); err == nil {
		info.TotalMemoryGB = math.Round(float64(total)/(1<<30)*100) / 100
	}
	if u, err := user.Current(); err == nil {
		info.User = u.Username
	} else if name := os.Getenv("USER"); name != "" {
		info.User = name
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", ioError("failed to encode system information", err)
	}
	return string(data), nil
}
