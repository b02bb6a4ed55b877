// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5"
	// DefaultAIMaxTokens bounds a single reply.
	DefaultAIMaxTokens = 1024

	aiSystemPrompt = "You are a helpful assistant living inside a retro terminal. " +
		"Answer in plain text without markdown, in at most a few short paragraphs."
)

// ErrEmptyReply is returned when the model answered with no text.
var ErrEmptyReply = errors.New("model returned no text")

type (
	// Turn is one message of a conversation.
	Turn struct {
		// Role is "user" or "assistant".
		Role string
		Text string
	}

	// Chatter produces the next assistant reply for a conversation.
	Chatter interface {
		Reply(ctx context.Context, history []Turn) (string, error)
	}

	// AnthropicChat implements Chatter with the Anthropic Messages API.
	AnthropicChat struct {
		client    *anthropic.Client
		model     string
		maxTokens int64
	}
)

// NewAnthropicChat creates a Chatter. Requests go through c's HTTP client so
// they share its timeout. Without an API key the returned Chatter fails every
// call with ErrMissingAPIKey.
func NewAnthropicChat(c *Client, baseURL, apiKey, model string, maxTokens int64) Chatter {
	if apiKey == "" {
		return unconfiguredChat{}
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultAIMaxTokens
	}
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(1),
	)
	return &AnthropicChat{client: &client, model: model, maxTokens: maxTokens}
}

// Reply sends the conversation and returns the concatenated text blocks.
func (a *AnthropicChat) Reply(ctx context.Context, history []Turn) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: aiSystemPrompt}},
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("ai chat: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyReply
	}
	return sb.String(), nil
}

type unconfiguredChat struct{}

func (unconfiguredChat) Reply(context.Context, []Turn) (string, error) {
	return "", fmt.Errorf("ai chat: %w", ErrMissingAPIKey)
}
