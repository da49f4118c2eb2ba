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

// Package broker is the optional real-time fan-out channel between request
// handlers and anything that wants their results. Delivery is best effort
// and at most once.
package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "shellai/internal/errors"
)

// Message is one published payload.
type Message struct {
	Topic   string
	Payload []byte
}

// Broker publishes payloads to topics and delivers them to pattern
// subscribers. Patterns use glob syntax, e.g. "result:*".
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers matching messages until ctx ends, then closes the
	// returned channel.
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
	Kind() string
	Close() error
}

// ResultTopic is the topic terminal replies for a connection are relayed on.
func ResultTopic(channelID string) string {
	return "result:" + channelID
}

// BroadcastTopic carries payloads fanned out to every connection.
const BroadcastTopic = "broadcast"

// Open builds a broker from url. An empty url means no broker and returns
// nil; "memory://" selects the in-process broker and "redis://" or
// "rediss://" a Redis server.
func Open(ctx context.Context, url string, log zerolog.Logger) (Broker, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return nil, nil
	case strings.HasPrefix(url, "memory://"):
		return NewMemory(log), nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return NewRedis(ctx, url, log)
	}
	return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unsupported broker url '%s', use memory:// or redis://", url)
}

// KindOf names b for health reports.
func KindOf(b Broker) string {
	if b == nil {
		return "disabled"
	}
	return b.Kind()
}

func topicError(op, topic string, err error) error {
	return apperrors.Wrap(apperrors.CodeTransientNetwork, fmt.Sprintf("broker %s on '%s' failed", op, topic), err)
}
