// Package llm wraps the chat-completion provider used for moderation and
// recommendation calls. When no credential is configured the constructor
// returns a mock client so the service degrades to demo mode instead of
// failing at startup.
package llm

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/config"
)

// Client is a minimal chat-completion interface: one system turn, one user
// turn, a temperature, and the assistant's text back.
type Client interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
	Configured() bool
}

func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == "mock" {
		return &mockClient{}
	}

	return newOpenAI(cfg, logger)
}

type mockClient struct{}

func (c *mockClient) Configured() bool {
	return false
}

func (c *mockClient) Chat(_ context.Context, _, _ string, _ float32) (string, error) {
	// Permissive canned verdict; callers short-circuit to demo mode before
	// relying on this.
	return `{"allow": true, "flags": [], "reason": "mock", "items": []}`, nil
}
