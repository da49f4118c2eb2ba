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

package server

import (
	"encoding/json"
	"time"
)

// Envelope types exchanged on the websocket channel.
const (
	TypeChat       = "chat"
	TypePing       = "ping"
	TypeConnection = "connection"
	TypeStatus     = "status"
	TypeResult     = "result"
	TypeError      = "error"
	TypePong       = "pong"
)

// Envelope is one websocket message. Inbound envelopes carry only Type and
// Data; outbound ones are always timestamped.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// ConnectionData is sent once when a channel opens.
type ConnectionData struct {
	Status    string `json:"status"`
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

// StatusData reports progress on a chat.
type StatusData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResultData is the terminal success envelope of a chat.
type ResultData struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	ChannelID string `json:"channel_id"`
}

// ErrorData is the terminal failure envelope, also used for protocol errors.
type ErrorData struct {
	Message string `json:"message"`
}

// PongData answers a ping.
type PongData struct {
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}

// newEnvelope builds a timestamped outbound envelope.
func newEnvelope(typ string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw, Timestamp: now()}, nil
}

func mustEnvelope(typ string, data interface{}) Envelope {
	env, err := newEnvelope(typ, data)
	if err != nil {
		panic(err)
	}
	return env
}

// Terminal reports whether the envelope ends a chat exchange.
func (e Envelope) Terminal() bool {
	return e.Type == TypeResult || e.Type == TypeError
}
