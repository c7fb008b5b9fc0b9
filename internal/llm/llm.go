// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the structured-generation services the pipeline calls.
// Every backend satisfies Generator so stages can be tested with a mock.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Generator sends one system+user prompt pair and returns the text reply.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// ErrEmptyResponse is returned when a backend replies without text.
var ErrEmptyResponse = errors.New("generation service returned no text")

// ErrMissingAPIKey is returned when a backend is configured without a key.
var ErrMissingAPIKey = errors.New("generation API key not configured")

const defaultMaxTokens = 8192

// New builds the backend selected by cfg.Provider. The HTTP client is used
// by backends that speak HTTP directly.
func New(ctx context.Context, cfg types.AIConfig, client *http.Client) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return &ClaudeBackend{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Client:    client,
		}, nil
	case types.ProviderGemini:
		return NewGeminiBackend(ctx, cfg.APIKey, cfg.Model)
	case types.ProviderOpenAI:
		return NewOpenAIBackend(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?```[ \t]*$")
)

// StripFences removes a leading ```lang line and a trailing ``` from a
// reply. Text without fences is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
