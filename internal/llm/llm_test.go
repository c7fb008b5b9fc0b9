// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"title\": \"X\"}\n```", `{"title": "X"}`},
		{"markdown fence", "```markdown\n# Title\n\nBody\n```", "# Title\n\nBody"},
		{"bare fence", "```\nplain\n```", "plain"},
		{"no fence", "  # Title  ", "# Title"},
		{"leading only", "```json\n{}", "{}"},
		{"inner fences kept", "```markdown\n# T\n\n```go\nx := 1\n```\n\nend\n```", "# T\n\n```go\nx := 1\n```\n\nend"},
		{"crlf", "```json\r\n{}\r\n```", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestClaudeBackend_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "be terse", req.System)
		assert.Equal(t, defaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{
			{Type: "text", Text: "part one, "},
			{Type: "tool_use"},
			{Type: "text", Text: "part two"},
		}})
	}))
	defer ts.Close()

	orig := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = orig }()

	c := &ClaudeBackend{APIKey: "test-key", Model: "claude-test", Client: ts.Client()}
	got, err := c.Generate(context.Background(), "be terse", "hello")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", got)
}

func TestClaudeBackend_ErrorStatusNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate"}`))
	}))
	defer ts.Close()

	orig := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = orig }()

	c := &ClaudeBackend{APIKey: "k", Model: "m", Client: ts.Client()}
	_, err := c.Generate(context.Background(), "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAPIError(t *testing.T) {
	err := apiError(400, []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	assert.EqualError(t, err, "Claude API returned 400 (invalid_request_error): max_tokens too large")

	err = apiError(502, []byte("bad gateway\n"))
	assert.EqualError(t, err, "Claude API returned 502: bad gateway")
}

func TestClaudeBackend_Empty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	orig := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = orig }()

	c := &ClaudeBackend{APIKey: "k", Model: "m", Client: ts.Client()}
	_, err := c.Generate(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIBackend_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		msgs, _ := body["messages"].([]any)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"generated"}}]}`))
	}))
	defer ts.Close()

	b := NewOpenAIBackend(types.AIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: ts.URL}, ts.Client())
	got, err := b.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "generated", got)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, types.AIConfig{Provider: types.ProviderAnthropic}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	g, err := New(ctx, types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "k", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeBackend{}, g)

	g, err = New(ctx, types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIBackend{}, g)

	_, err = New(ctx, types.AIConfig{Provider: "mystery", APIKey: "k"}, nil)
	assert.Error(t, err)
}
