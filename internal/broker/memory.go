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

package broker

import (
	"context"
	"path"
	"sync"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

type subscriber struct {
	pattern string
	ch      chan Message
}

// Memory is an in-process broker. Slow subscribers drop messages instead
// of blocking publishers.
type Memory struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	log    zerolog.Logger
}

// NewMemory returns an empty in-process broker.
func NewMemory(log zerolog.Logger) *Memory {
	return &Memory{subs: make(map[*subscriber]struct{}), log: log}
}

func (m *Memory) Kind() string { return "memory" }

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return topicError("publish", topic, errClosed)
	}
	for s := range m.subs {
		if ok, _ := path.Match(s.pattern, topic); !ok {
			continue
		}
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case s.ch <- msg:
		default:
			m.log.Warn().Str("topic", topic).Str("pattern", s.pattern).Msg("subscriber full, message dropped")
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, topicError("subscribe", pattern, err)
	}
	s := &subscriber{pattern: pattern, ch: make(chan Message, subscriberBuffer)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, topicError("subscribe", pattern, errClosed)
	}
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.remove(s)
	}()
	return s.ch, nil
}

func (m *Memory) remove(s *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s]; ok {
		delete(m.subs, s)
		close(s.ch)
	}
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for s := range m.subs {
		delete(m.subs, s)
		close(s.ch)
	}
	return nil
}
