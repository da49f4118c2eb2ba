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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Conn is one websocket client. Writes are serialized so chat workers and
// broadcasts can share it.
type Conn struct {
	ID string

	ws *websocket.Conn
	mu sync.Mutex
}

// Send writes env as JSON.
func (c *Conn) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

func (c *Conn) sendRaw(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// ConnectionManager tracks open channels by id. The map only changes on
// connect and disconnect.
type ConnectionManager struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	logger zerolog.Logger
}

func NewConnectionManager(logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{conns: make(map[string]*Conn), logger: logger}
}

// Add registers ws under a fresh channel id.
func (m *ConnectionManager) Add(ws *websocket.Conn) *Conn {
	c := &Conn{ID: "conn_" + uuid.NewString(), ws: ws}
	m.mu.Lock()
	m.conns[c.ID] = c
	count := len(m.conns)
	m.mu.Unlock()
	m.logger.Info().Str("channel_id", c.ID).Int("connections", count).Msg("websocket connected")
	return c
}

// Remove forgets the channel and closes its socket.
func (m *ConnectionManager) Remove(c *Conn) {
	m.mu.Lock()
	_, ok := m.conns[c.ID]
	delete(m.conns, c.ID)
	count := len(m.conns)
	m.mu.Unlock()
	if !ok {
		return
	}
	c.ws.Close()
	m.logger.Info().Str("channel_id", c.ID).Int("connections", count).Msg("websocket disconnected")
}

func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Broadcast writes payload to every open channel and returns how many
// writes succeeded.
func (m *ConnectionManager) Broadcast(payload []byte) int {
	m.mu.RLock()
	targets := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.sendRaw(payload); err != nil {
			m.logger.Debug().Err(err).Str("channel_id", c.ID).Msg("broadcast write failed")
			continue
		}
		sent++
	}
	return sent
}

// CloseAll closes every open channel.
func (m *ConnectionManager) CloseAll() {
	m.mu.RLock()
	targets := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		targets = append(targets, c)
	}
	m.mu.RUnlock()
	for _, c := range targets {
		c.mu.Lock()
		c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		c.mu.Unlock()
		m.Remove(c)
	}
}
