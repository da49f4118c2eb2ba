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
	"context"
	"encoding/json"
	"time"

	"shellai/internal/broker"
)

const publishTimeout = 5 * time.Second

// publishResult copies a terminal envelope to the channel's result topic.
// Failures are logged and never affect the direct reply.
func (s *Server) publishResult(channelID string, env Envelope) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode result for broker")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.broker.Publish(ctx, broker.ResultTopic(channelID), payload); err != nil {
		s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("publish result failed")
	}
}

// Relay subscribes to the broadcast topic and fans every well-formed
// envelope out to all connections until ctx ends. It is a no-op without a
// broker.
func (s *Server) Relay(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	msgs, err := s.broker.Subscribe(ctx, broker.BroadcastTopic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil || env.Type == "" {
				s.logger.Warn().Str("topic", msg.Topic).Msg("dropping malformed broadcast")
				continue
			}
			if env.Timestamp == "" {
				env.Timestamp = now()
			}
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			sent := s.conns.Broadcast(payload)
			s.logger.Debug().Str("type", env.Type).Int("delivered", sent).Msg("broadcast relayed")
		}
	}()
	return nil
}
