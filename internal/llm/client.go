// Package llm holds the chat-completion backed adapters: receipt extraction
// from an image and short spending insights from a transaction list.
//
// Both adapters absorb upstream failures. Callers get a result with Degraded
// set instead of an error.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel           = "gpt-4o"
	DefaultMaxTransactions = 20
)

var ErrEmptyCompletion = errors.New("completion returned no content")

type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxTransactions int
}

type Client struct {
	api             *openai.Client
	model           string
	timeout         time.Duration
	maxTransactions int
	logger          *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTx := cfg.MaxTransactions
	if maxTx <= 0 {
		maxTx = DefaultMaxTransactions
	}

	return &Client{
		api:             openai.NewClientWithConfig(oc),
		model:           model,
		timeout:         timeout,
		maxTransactions: maxTx,
		logger:          logger,
	}
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req.Model = c.model
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.logger.Debug("chat completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject trims code fences and surrounding prose from a model reply.
func extractJSONObject(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if m := jsonObjectPattern.FindString(content); m != "" {
		return m
	}
	return strings.TrimSpace(content)
}
