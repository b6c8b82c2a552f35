// Package claude backs the advisory text generator with the Anthropic API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

// Client produces advisory text via the Anthropic messages API. It
// implements analysis.TextGenerator.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a new Client with the given API key and model name.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Generate sends a single-turn prompt and returns the text of the response.
// Cancellation and deadlines come from ctx; the caller owns the timeout.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude message: %w", err)
	}
	return extractText(msg), nil
}

// extractText concatenates the text blocks of a response, skipping any
// other content kinds.
func extractText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
