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

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shellai/internal/errors"
	"shellai/internal/retry"
)

const sampleResponse = `{
  "answer": "Go 1.24 was released in February 2025.",
  "results": [
    {"title": "Go 1.24 Release Notes", "url": "https://go.dev/doc/go1.24", "content": "The latest Go release."},
    {"title": "", "url": "https://example.com", "content": ""}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		Endpoint:   srv.URL + "/",
		APIKey:     "tvly-test",
		HTTPClient: srv.Client(),
		Retry:      retry.Policy{Attempts: 3, MinInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestSearchSendsRequestAndRenders(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "go release", req["query"])
		assert.Equal(t, "basic", req["search_depth"])
		assert.Equal(t, true, req["include_answer"])
		assert.EqualValues(t, 5, req["max_results"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	})

	text, err := c.Search(context.Background(), "  go release ")
	require.NoError(t, err)
	assert.Contains(t, text, "Search query: go release")
	assert.Contains(t, text, "Answer:\nGo 1.24 was released in February 2025.")
	assert.Contains(t, text, "1. Go 1.24 Release Notes\n   https://go.dev/doc/go1.24\n   The latest Go release.")
	assert.Contains(t, text, "2. (untitled)\n   https://example.com")

	again, err := c.Search(context.Background(), "go release")
	require.NoError(t, err)
	assert.Equal(t, text, again)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})
	text, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, "No search results found for 'nothing'.", text)
}

func TestSearchStatusErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})
	_, err := c.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeHTTPStatus, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "HTTP 401 - invalid api key")
	assert.EqualValues(t, 1, hits.Load())
}

func TestSearchRetriesDroppedConnections(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	})
	text, err := c.Search(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Contains(t, text, "Go 1.24 Release Notes")
	assert.EqualValues(t, 3, hits.Load())
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Search(context.Background(), "   ")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Options{})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestRenderTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("é", 250)
	body := `{"results":[{"title":"t","url":"u","content":"` + long + `"}]}`
	text, err := Render("q", []byte(body))
	require.NoError(t, err)
	assert.Contains(t, text, strings.Repeat("é", 200)+"...")
	assert.NotContains(t, text, strings.Repeat("é", 201))

	_, err = Render("q", []byte("not json"))
	assert.Equal(t, apperrors.CodeIO, apperrors.CodeOf(err))
}
