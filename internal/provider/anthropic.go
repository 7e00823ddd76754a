package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

const (
	// AnthropicModel is the pinned remote model for the anthropic vendor.
	AnthropicModel = "claude-haiku-4-5-20251001"

	anthropicMaxTokens = 1024
)

// AnthropicClient implements RemoteClient using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	system string
	logger zerolog.Logger
}

// NewAnthropic creates an AnthropicClient bound to the pinned model and
// systemInstruction. baseURL may be empty.
func NewAnthropic(baseURL, apiKey, systemInstruction string, logger zerolog.Logger) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required (set AMPHY_API_KEY)")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  AnthropicModel,
		system: systemInstruction,
		logger: logger,
	}, nil
}

func (a *AnthropicClient) Name() string  { return "anthropic" }
func (a *AnthropicClient) Model() string { return a.model }

func (a *AnthropicClient) CountTokens(ctx context.Context, text string) (int, error) {
	count, err := a.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(a.model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("anthropic count tokens: %w", err)
	}
	return int(count.InputTokens), nil
}

func (a *AnthropicClient) Generate(ctx context.Context, text string, opts GenerateOptions) (string, error) {
	reqCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}
	if a.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.system}}
	}

	message, err := a.client.Messages.New(reqCtx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	result := b.String()
	if strings.TrimSpace(result) == "" {
		return "", fmt.Errorf("empty response from model")
	}

	a.logger.Debug().
		Str("model", string(message.Model)).
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Str("stop_reason", string(message.StopReason)).
		Msg("anthropic generate completed")

	return result, nil
}
