// Package ai wraps the Anthropic API for scanners that want model-backed
// judgment. The daemon core never talks to the API; scanners that use it
// degrade to heuristics when no client is available.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when the caller does not pick one.
const DefaultModel = "claude-3-5-haiku-20241022"

// requestTimeout bounds a single API call.
const requestTimeout = 60 * time.Second

// Client is a thin wrapper around the Anthropic messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// NewFromEnv builds a client from ANTHROPIC_API_KEY. Returns nil (not an
// error) when the key is unset, so callers can degrade gracefully.
func NewFromEnv() *Client {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
	}
}

// Complete sends one user prompt and returns the concatenated text blocks
// of the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
