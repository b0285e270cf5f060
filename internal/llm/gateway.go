// Package llm provides the model gateway and response extraction utilities
// for plan generation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Gateway issues a single prompt/response exchange with a language model.
type Gateway interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// MessagesClient captures the subset of the Anthropic SDK used by the
// gateway. It is satisfied by *sdk.MessageService so tests can pass a stub.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicGateway implements Gateway on top of the Anthropic Messages API.
// It is stateless: every call sends one system prompt and one user message
// with a fixed output token cap, and returns the raw text. Retry policy is
// the caller's concern.
type AnthropicGateway struct {
	msg       MessagesClient
	model     string
	maxTokens int
}

// NewAnthropicGateway builds a gateway from an API key and model settings.
func NewAnthropicGateway(apiKey, model string, maxTokens int) (*AnthropicGateway, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicGatewayWithClient(&client.Messages, model, maxTokens)
}

// NewAnthropicGatewayWithClient builds a gateway around an existing Messages
// client.
func NewAnthropicGatewayWithClient(msg MessagesClient, model string, maxTokens int) (*AnthropicGateway, error) {
	if msg == nil {
		return nil, errors.New("messages client is required")
	}
	if model == "" {
		return nil, errors.New("model identifier is required")
	}
	if maxTokens <= 0 {
		return nil, errors.New("max_tokens must be positive")
	}
	return &AnthropicGateway{msg: msg, model: model, maxTokens: maxTokens}, nil
}

// Complete issues one Messages.New request and returns the concatenated text
// blocks of the response. Provider failures map to ErrModelUnavailable.
func (g *AnthropicGateway) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := g.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty response", ErrModelUnavailable)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
