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

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"shellai/internal/config"
	"shellai/internal/dispatch"
	apperrors "shellai/internal/errors"
	"shellai/internal/proxy"
	"shellai/internal/retry"
	"shellai/internal/tools"
	systemprompt "shellai/system_prompt"
)

// APIOverride lets a single request use another OpenAI-compatible endpoint.
// It only applies when both Endpoint and APIKey are set.
type APIOverride struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model,omitempty"`
}

// UnmarshalJSON accepts both "api_key" and the extension's "apiKey".
func (o *APIOverride) UnmarshalJSON(data []byte) error {
	var raw struct {
		Endpoint  string `json:"endpoint"`
		APIKey    string `json:"api_key"`
		APIKeyAlt string `json:"apiKey"`
		Model     string `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Endpoint = raw.Endpoint
	o.APIKey = raw.APIKey
	if o.APIKey == "" {
		o.APIKey = raw.APIKeyAlt
	}
	o.Model = raw.Model
	return nil
}

func (o *APIOverride) usable() bool {
	return o != nil && strings.TrimSpace(o.Endpoint) != "" && strings.TrimSpace(o.APIKey) != ""
}

// NormalizeEndpoint turns a user supplied endpoint into a client base URL
// ending in /v1.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimRight(endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/chat/completions")
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}
	return endpoint
}

// Request is one user message plus optional per-request settings.
type Request struct {
	Message string
	Proxy   *proxy.Config
	API     *APIOverride
}

// Reply is the assistant's answer.
type Reply struct {
	Text string
	// Tool names the tool the model invoked, if any.
	Tool     string
	ToolCode apperrors.Code
	TestMode bool
}

// Assistant sends a message to the model and dispatches the reply. Each
// request starts from a fresh conversation.
type Assistant struct {
	Config     *config.Config
	Registry   *tools.Registry
	Dispatcher *dispatch.Dispatcher

	newClient ClientFactory
	client    ChatClient
	prompt    string
	policy    retry.Policy
	logger    zerolog.Logger
}

// NewAssistant builds an assistant that talks to cfg's API through the
// configured proxy.
func NewAssistant(cfg *config.Config, registry *tools.Registry, dispatcher *dispatch.Dispatcher, sandboxLabel string, logger zerolog.Logger) (*Assistant, error) {
	return NewAssistantWithFactory(cfg, registry, dispatcher, sandboxLabel, NewOpenAIClient, logger)
}

// NewAssistantWithFactory is NewAssistant with a custom client factory.
func NewAssistantWithFactory(cfg *config.Config, registry *tools.Registry, dispatcher *dispatch.Dispatcher, sandboxLabel string, factory ClientFactory, logger zerolog.Logger) (*Assistant, error) {
	prompt, err := systemprompt.Render(sandboxLabel, registry.Describe())
	if err != nil {
		return nil, err
	}
	a := &Assistant{
		Config:     cfg,
		Registry:   registry,
		Dispatcher: dispatcher,
		newClient:  factory,
		prompt:     prompt,
		policy:     retry.DefaultPolicy(),
		logger:     logger.With().Str("component", "assistant").Logger(),
	}
	if !cfg.TestMode() {
		httpClient, err := proxy.NewHTTPClient(cfg.Proxy, cfg.RequestTimeout())
		if err != nil {
			return nil, err
		}
		a.client = factory(cfg.APIKey, cfg.APIURL, httpClient)
	}
	return a, nil
}

// SetRetryPolicy replaces the default retry policy for completion calls.
func (a *Assistant) SetRetryPolicy(p retry.Policy) {
	a.policy = p
}

// SystemPrompt returns the rendered instructions sent with every request.
func (a *Assistant) SystemPrompt() string {
	return a.prompt
}

// TestModeReply is the canned answer given when no API key is configured.
func TestModeReply(message string) string {
	return fmt.Sprintf("Test mode: you said '%s'. Configure DEEPSEEK_API_KEY to enable the assistant.", message)
}

// Respond answers req. Tool failures are part of the reply text; only
// completion API failures are returned as errors, wrapped in *APIError.
func (a *Assistant) Respond(ctx context.Context, req Request) (Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{}, apperrors.New(apperrors.CodeInvalidArgument, "message cannot be empty")
	}

	client, model, err := a.clientFor(req)
	if err != nil {
		return Reply{}, err
	}
	if client == nil {
		a.logger.Debug().Int("length", len(message)).Msg("test mode reply")
		return Reply{Text: TestModeReply(message), TestMode: true}, nil
	}

	completion := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.prompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	}
	if a.Config.Temperature != nil {
		completion.Temperature = *a.Config.Temperature
	}
	if a.Config.MaxTokens != nil {
		completion.MaxTokens = *a.Config.MaxTokens
	}

	var resp openai.ChatCompletionResponse
	attempt := 0
	err = retry.Do(ctx, a.policy, func(ctx context.Context) error {
		attempt++
		var callErr error
		resp, callErr = client.CreateChatCompletion(ctx, completion)
		if callErr != nil {
			callErr = classifyCompletionError(callErr)
			a.logger.Debug().Err(callErr).Int("attempt", attempt).Msg("completion failed")
		}
		return callErr
	})
	if err != nil {
		return Reply{}, &APIError{Operation: "create_completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return Reply{}, &APIError{Operation: "create_completion", Err: errNoChoices}
	}

	outcome := a.Dispatcher.Dispatch(ctx, resp.Choices[0].Message.Content)
	reply := Reply{Text: outcome.Text}
	if outcome.Invoked() {
		reply.Tool = outcome.Result.Function
		reply.ToolCode = outcome.Result.Code()
	}
	return reply, nil
}

// clientFor picks the client for req. A nil client with no error means
// test mode.
func (a *Assistant) clientFor(req Request) (ChatClient, string, error) {
	model := a.Config.Model
	if req.API.usable() {
		if m := strings.TrimSpace(req.API.Model); m != "" {
			model = m
		}
		httpClient, err := a.httpClient(req.Proxy)
		if err != nil {
			return nil, "", err
		}
		return a.newClient(strings.TrimSpace(req.API.APIKey), NormalizeEndpoint(req.API.Endpoint), httpClient), model, nil
	}
	if a.client == nil {
		return nil, model, nil
	}
	if req.Proxy.Active() {
		httpClient, err := a.httpClient(req.Proxy)
		if err != nil {
			return nil, "", err
		}
		return a.newClient(a.Config.APIKey, a.Config.APIURL, httpClient), model, nil
	}
	return a.client, model, nil
}

func (a *Assistant) httpClient(p *proxy.Config) (*http.Client, error) {
	if !p.Active() {
		p = a.Config.Proxy
	}
	return proxy.NewHTTPClient(p, a.Config.RequestTimeout())
}
