// Package ai is a thin client over chat-completion HTTP APIs. The
// engine uses it through a single call: a list of role-tagged messages
// in, one generated text out.
package ai

import (
	"fmt"
	"net/http"
	"os"

	"github.com/watzon/relay/internal/config"
)

// Role tags a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProviderError reports a failure from the completion API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Client talks to one configured provider. The API key is resolved
// from the environment per call, so a daemon started without a key
// still serves hooks that never touch AI.
type Client struct {
	provider  string
	baseURL   string
	keyEnv    string
	model     string
	maxTokens int
	http      *http.Client
}

func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		provider:  cfg.Provider,
		baseURL:   cfg.BaseURL,
		keyEnv:    cfg.APIKeyEnv,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) apiKey() (string, error) {
	key := os.Getenv(c.keyEnv)
	if key == "" {
		return "", &ProviderError{
			Provider: c.provider,
			Message:  fmt.Sprintf("API key not set (%s)", c.keyEnv),
		}
	}
	return key, nil
}
