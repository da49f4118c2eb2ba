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

// Package server exposes the assistant over HTTP and a websocket channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"shellai/internal/broker"
	"shellai/internal/chat"
	apperrors "shellai/internal/errors"
	"shellai/internal/proxy"
)

// Version is reported by /health.
var Version = "2.0.0"

const (
	maxBodyBytes        = 1 << 20
	defaultProbeTimeout = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Responder answers one chat message. *chat.Assistant implements it.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (chat.Reply, error)
}

type Options struct {
	Assistant      Responder
	Broker         broker.Broker
	AllowedOrigins []string
	// ProbeURL is requested through the proxy by /test-proxy.
	ProbeURL     string
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

type Server struct {
	assistant    Responder
	broker       broker.Broker
	conns        *ConnectionManager
	origins      []string
	probeURL     string
	probeTimeout time.Duration
	upgrader     websocket.Upgrader
	router       chi.Router
	logger       zerolog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger.With().Str("component", "server").Logger()
	s := &Server{
		assistant:    opts.Assistant,
		broker:       opts.Broker,
		conns:        NewConnectionManager(logger),
		origins:      opts.AllowedOrigins,
		probeURL:     opts.ProbeURL,
		probeTimeout: opts.ProbeTimeout,
		logger:       logger,
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = defaultProbeTimeout
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/test-proxy", s.handleTestProxy)
	r.Get("/ws", s.handleWebSocket)

	s.router = r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Connections exposes the websocket registry.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Run serves on addr until ctx ends, then shuts down gracefully. The broker
// relay runs for the lifetime of the server.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.Relay(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("broker", broker.KindOf(s.broker)).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.conns.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// checkOrigin applies the CORS origin list to websocket upgrades. Requests
// without an Origin header come from non-browser clients and are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(s.origins, origin)
}

func originAllowed(patterns []string, origin string) bool {
	origin = strings.ToLower(origin)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if p == "*" || p == origin {
			return true
		}
		if prefix, suffix, ok := strings.Cut(p, "*"); ok {
			if len(origin) >= len(prefix)+len(suffix) && strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}

// ChatRequest is the body of POST /chat and the data of a "chat" envelope.
type ChatRequest struct {
	Message     string            `json:"message"`
	ProxyConfig *proxy.Config     `json:"proxyConfig,omitempty"`
	APIConfig   *chat.APIOverride `json:"apiConfig,omitempty"`
}

// UnmarshalJSON also accepts the snake_case keys the extension's websocket
// client sends.
func (c *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message        string            `json:"message"`
		ProxyConfig    *proxy.Config     `json:"proxyConfig"`
		ProxyConfigAlt *proxy.Config     `json:"proxy_config"`
		APIConfig      *chat.APIOverride `json:"apiConfig"`
		APIConfigAlt   *chat.APIOverride `json:"api_config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Message = raw.Message
	c.ProxyConfig = raw.ProxyConfig
	if c.ProxyConfig == nil {
		c.ProxyConfig = raw.ProxyConfigAlt
	}
	c.APIConfig = raw.APIConfig
	if c.APIConfig == nil {
		c.APIConfig = raw.APIConfigAlt
	}
	return nil
}

func (c ChatRequest) toRequest() chat.Request {
	return chat.Request{Message: c.Message, Proxy: c.ProxyConfig, API: c.APIConfig}
}

type ChatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status               string `json:"status"`
	Version              string `json:"version"`
	WebsocketConnections int    `json:"websocket_connections"`
	Broker               string `json:"broker"`
	Timestamp            string `json:"timestamp"`
}

// TestProxyRequest is the body of POST /test-proxy.
type TestProxyRequest struct {
	ProxyConfig *proxy.Config `json:"proxyConfig"`
	TestURL     string        `json:"testUrl,omitempty"`
}

type TestProxyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug().Err(err).Msg("response write failed")
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, detail string) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Int("status", status).Str("detail", detail).Msg("request failed")
	}
	s.jsonResponse(w, status, errorResponse{Detail: detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid JSON body", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"name":    "ShellAI",
		"version": Version,
		"endpoints": map[string]string{
			"chat":       "/chat",
			"health":     "/health",
			"websocket":  "/ws",
			"test_proxy": "/test-proxy",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:               "healthy",
		Version:              Version,
		WebsocketConnections: s.conns.Count(),
		Broker:               broker.KindOf(s.broker),
		Timestamp:            now(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message cannot be empty")
		return
	}
	s.logger.Info().Int("length", len(req.Message)).Msg("chat request")

	// The file operation completes even if the client goes away.
	reply, err := s.assistant.Respond(context.WithoutCancel(r.Context()), req.toRequest())
	if err != nil {
		if apperrors.Is(err, apperrors.CodeInvalidArgument) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("assistant failed to process the request: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, ChatResponse{Response: reply.Text})
}

func (s *Server) handleTestProxy(w http.ResponseWriter, r *http.Request) {
	var req TestProxyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.ProxyConfig.Active() {
		s.jsonResponse(w, http.StatusOK, TestProxyResponse{Success: false, Message: "proxy is not enabled"})
		return
	}
	if err := req.ProxyConfig.Validate(); err != nil {
		s.jsonResponse(w, http.StatusOK, TestProxyResponse{Success: false, Message: err.Error()})
		return
	}

	target := req.TestURL
	if target == "" {
		target = s.probeURL
	}
	status, err := proxy.Probe(r.Context(), req.ProxyConfig, target, s.probeTimeout)
	if err != nil {
		s.logger.Info().Err(err).Str("proxy", req.ProxyConfig.Redacted()).Msg("proxy probe failed")
		s.jsonResponse(w, http.StatusOK, TestProxyResponse{Success: false, Message: fmt.Sprintf("proxy connection failed: %v", err)})
		return
	}
	if status >= http.StatusBadRequest {
		s.jsonResponse(w, http.StatusOK, TestProxyResponse{Success: false, Message: fmt.Sprintf("proxy connection returned HTTP %d", status)})
		return
	}
	s.jsonResponse(w, http.StatusOK, TestProxyResponse{Success: true, Message: fmt.Sprintf("proxy connection succeeded (HTTP %d)", status)})
}
