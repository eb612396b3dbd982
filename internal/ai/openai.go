package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type openaiRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Messages  []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completeOpenAI(ctx context.Context, key string, messages []Message) (string, error) {
	req := openaiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openaiMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.baseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: "openai", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out openaiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &ProviderError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Message:    "unparseable response",
		}
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", &ProviderError{Provider: "openai", StatusCode: resp.StatusCode, Message: msg}
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: "openai", Message: "empty completion"}
	}
	return out.Choices[0].Message.Content, nil
}
