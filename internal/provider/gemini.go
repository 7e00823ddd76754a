package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

const (
	// GeminiModel is the pinned remote model for the gemini vendor.
	GeminiModel = "gemini-2.0-flash-001"

	// DefaultGeminiBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// GeminiClient implements RemoteClient against Gemini's OpenAI-compatible
// chat API. Token counting uses the native countTokens endpoint, which the
// compatibility layer does not expose.
type GeminiClient struct {
	client     openai.Client
	apiKey     string
	nativeBase string
	model      string
	system     string
	logger     zerolog.Logger
}

// NewGemini creates a GeminiClient bound to the pinned model and systemInstruction.
// The key is not validated until the first request.
func NewGemini(baseURL, apiKey, systemInstruction string, logger zerolog.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required (set AMPHY_API_KEY)")
	}
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	cli := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	)
	return &GeminiClient{
		client:     cli,
		apiKey:     apiKey,
		nativeBase: strings.TrimSuffix(base, "openai/"),
		model:      GeminiModel,
		system:     systemInstruction,
		logger:     logger,
	}, nil
}

func (g *GeminiClient) Name() string  { return "gemini" }
func (g *GeminiClient) Model() string { return g.model }

type geminiCountRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiCountResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// CountTokens calls models/{model}:countTokens.
func (g *GeminiClient) CountTokens(ctx context.Context, text string) (int, error) {
	body := geminiCountRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}},
	}
	var resp geminiCountResponse
	err := g.client.Post(ctx, "models/"+g.model+":countTokens", body, &resp,
		option.WithBaseURL(g.nativeBase),
		option.WithHeaderDel("authorization"),
		option.WithHeader("x-goog-api-key", g.apiKey),
	)
	if err != nil {
		return 0, fmt.Errorf("gemini count tokens: %w", err)
	}
	return resp.TotalTokens, nil
}

// Generate sends text as a user turn after the bound system instruction.
func (g *GeminiClient) Generate(ctx context.Context, text string, opts GenerateOptions) (string, error) {
	reqCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: buildMessages(g.system, text),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	result := resp.Choices[0].Message.Content
	if strings.TrimSpace(result) == "" {
		return "", fmt.Errorf("empty response from model")
	}

	g.logger.Debug().
		Str("model", g.model).
		Int64("input_tokens", resp.Usage.PromptTokens).
		Int64("output_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("gemini generate completed")

	return result, nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(user),
			},
		},
	})
	return messages
}
