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

// Package search queries the Tavily web search API and renders the answer
// and top results as plain text for the assistant.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apperrors "shellai/internal/errors"
	"shellai/internal/retry"
)

const (
	DefaultEndpoint   = "https://api.tavily.com"
	DefaultMaxResults = 5
	DefaultTimeout    = 30 * time.Second

	maxSnippetRunes = 200
	maxErrorBody    = 512
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Retry      retry.Policy
	CacheSize  int
	CacheTTL   time.Duration
	Logger     zerolog.Logger
}

// Client is a Tavily search client. Rendered results are cached per query.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	policy   retry.Policy
	cache    *expirable.LRU[string, string]
	log      zerolog.Logger
}

type searchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
}

// New builds a client. An empty API key is rejected.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "search API key is not configured")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	policy := opts.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		http:     client,
		policy:   policy,
		cache:    expirable.NewLRU[string, string](size, nil, ttl),
		log:      opts.Logger,
	}, nil
}

// Search runs query and returns the rendered answer and results.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "search query cannot be empty")
	}
	if cached, ok := c.cache.Get(query); ok {
		c.log.Debug().Str("query", query).Msg("search cache hit")
		return cached, nil
	}

	payload, err := json.Marshal(searchRequest{
		Query:          query,
		SearchDepth:    "basic",
		IncludeAnswer:  true,
		MaxResults:     DefaultMaxResults,
		IncludeDomains: []string{},
		ExcludeDomains: []string{},
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, "failed to encode search request", err)
	}

	var body []byte
	attempt := 0
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		attempt++
		body, err = c.post(ctx, payload)
		if err != nil {
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("search request failed")
		}
		return err
	})
	if err != nil {
		return "", err
	}

	text, err := Render(query, body)
	if err != nil {
		return "", err
	}
	c.cache.Add(query, text)
	return text, nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid search endpoint", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if retry.IsTransient(err) {
			return nil, apperrors.Wrap(apperrors.CodeTransientNetwork, "search request failed", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeIO, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.Newf(apperrors.CodeHTTPStatus, "search API call failed: HTTP %d - %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransientNetwork, "failed to read search response", err)
	}
	return body, nil
}

// Render formats a Tavily response body. Snippets longer than 200
// characters are cut and marked with "...".
func Render(query string, body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", apperrors.New(apperrors.CodeIO, "search API returned malformed JSON")
	}
	doc := gjson.ParseBytes(body)
	results := doc.Get("results").Array()
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for '%s'.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n\n", query)
	if answer := strings.TrimSpace(doc.Get("answer").String()); answer != "" {
		fmt.Fprintf(&b, "Answer:\n%s\n\n", answer)
	}
	b.WriteString("Results:\n")
	for i, item := range results {
		if i >= DefaultMaxResults {
			break
		}
		title := item.Get("title").String()
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		if u := item.Get("url").String(); u != "" {
			fmt.Fprintf(&b, "   %s\n", u)
		}
		if content := snippet(item.Get("content").String()); content != "" {
			fmt.Fprintf(&b, "   %s\n", content)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= maxSnippetRunes {
		return content
	}
	return string(runes[:maxSnippetRunes]) + "..."
}
