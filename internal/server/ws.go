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
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	apperrors "shellai/internal/errors"
)

const maxMessageBytes = 1 << 20

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxMessageBytes)

	// Chats outlive the socket; their results still reach the broker.
	var workers sync.WaitGroup
	defer workers.Wait()
	conn := s.conns.Add(ws)
	defer s.conns.Remove(conn)

	s.send(conn, mustEnvelope(TypeConnection, ConnectionData{
		Status:    "connected",
		ChannelID: conn.ID,
		Message:   "WebSocket connection established",
	}))

	ctx := context.WithoutCancel(r.Context())

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug().Err(err).Str("channel_id", conn.ID).Msg("websocket read failed")
			}
			return
		}
		s.handleEnvelope(ctx, conn, raw, &workers)
	}
}

func (s *Server) handleEnvelope(ctx context.Context, conn *Conn, raw []byte, workers *sync.WaitGroup) {
	var in Envelope
	if err := json.Unmarshal(raw, &in); err != nil {
		s.send(conn, errorEnvelope(fmt.Sprintf("invalid message: %v", err)))
		return
	}
	switch in.Type {
	case TypePing:
		s.send(conn, mustEnvelope(TypePong, PongData{Timestamp: now()}))
	case TypeChat:
		// Every chat gets a status before its terminal envelope.
		s.send(conn, mustEnvelope(TypeStatus, StatusData{Status: "processing", Message: "Processing your request..."}))
		var req ChatRequest
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &req); err != nil {
				s.finish(conn, errorEnvelope(fmt.Sprintf("invalid chat data: %v", err)))
				return
			}
		}
		if strings.TrimSpace(req.Message) == "" {
			s.finish(conn, errorEnvelope("message cannot be empty"))
			return
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.finish(conn, s.runChat(ctx, conn, req))
		}()
	case "":
		s.send(conn, errorEnvelope("message type is required"))
	default:
		s.send(conn, errorEnvelope(fmt.Sprintf("unsupported message type '%s'", in.Type)))
	}
}

// runChat always yields exactly one terminal envelope.
func (s *Server) runChat(ctx context.Context, conn *Conn, req ChatRequest) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("channel_id", conn.ID).Msg("chat worker panicked")
			env = errorEnvelope("internal error while processing the request")
		}
	}()

	s.logger.Info().Str("channel_id", conn.ID).Int("length", len(req.Message)).Msg("chat request")
	reply, err := s.assistant.Respond(ctx, req.toRequest())
	if err != nil {
		msg := fmt.Sprintf("assistant failed to process the request: %v", err)
		if apperrors.Is(err, apperrors.CodeInvalidArgument) {
			msg = err.Error()
		} else {
			s.logger.Error().Err(err).Str("channel_id", conn.ID).Msg("chat failed")
		}
		return errorEnvelope(msg)
	}
	return mustEnvelope(TypeResult, ResultData{Success: true, Response: reply.Text, ChannelID: conn.ID})
}

// finish delivers a terminal envelope to the client and relays it to the
// broker.
func (s *Server) finish(conn *Conn, env Envelope) {
	s.send(conn, env)
	s.publishResult(conn.ID, env)
}

func (s *Server) send(conn *Conn, env Envelope) {
	if err := conn.Send(env); err != nil {
		s.logger.Debug().Err(err).Str("channel_id", conn.ID).Str("type", env.Type).Msg("websocket write failed")
	}
}

func errorEnvelope(message string) Envelope {
	return mustEnvelope(TypeError, ErrorData{Message: message})
}
