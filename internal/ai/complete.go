package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Complete sends the conversation to the configured provider and
// returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("complete: no messages")
	}

	key, err := c.apiKey()
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", c.provider).
		Str("model", c.model).
		Int("messages", len(messages)).
		Msg("Requesting completion")

	switch c.provider {
	case "openai":
		return c.completeOpenAI(ctx, key, messages)
	default:
		return c.completeAnthropic(ctx, key, messages)
	}
}
