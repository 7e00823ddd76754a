package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// charsPerToken is the rough English-text ratio used to estimate prompt size.
// Ollama does not expose a tokenizer endpoint.
const charsPerToken = 4

// OllamaEngine implements LocalEngine using a local Ollama daemon.
type OllamaEngine struct {
	client          *api.Client
	model           string
	summarizerModel string
	logger          zerolog.Logger

	mu      sync.Mutex
	pulling map[string]bool
}

// NewOllama creates an OllamaEngine connected to host. summarizerModel may be
// empty, in which case model also serves summaries.
func NewOllama(host, model, summarizerModel string, logger zerolog.Logger) (*OllamaEngine, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host URL: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	return &OllamaEngine{
		client:          api.NewClient(base, httpClient),
		model:           model,
		summarizerModel: resolveModel(summarizerModel, model),
		logger:          logger,
		pulling:         make(map[string]bool),
	}, nil
}

func (o *OllamaEngine) Name() string { return "ollama" }

// Model returns the configured chat model.
func (o *OllamaEngine) Model() string { return o.model }

// Availability reports whether the configured model is installed.
func (o *OllamaEngine) Availability(ctx context.Context) (string, error) {
	return o.availability(ctx, o.model)
}

// SummarizerAvailability reports whether the summarizer model is installed.
func (o *OllamaEngine) SummarizerAvailability(ctx context.Context) (string, error) {
	return o.availability(ctx, o.summarizerModel)
}

func (o *OllamaEngine) availability(ctx context.Context, model string) (string, error) {
	if err := o.client.Heartbeat(ctx); err != nil {
		return "", fmt.Errorf("cannot reach Ollama at configured host: %w", err)
	}
	if o.isPulling(model) {
		return AvailabilityAfterDownload, nil
	}

	models, err := o.client.List(ctx)
	if err != nil {
		return "", fmt.Errorf("listing ollama models: %w", err)
	}
	for _, m := range models.Models {
		if m.Name == model || m.Model == model {
			return AvailabilityReadily, nil
		}
	}
	return AvailabilityNo, nil
}

// Models lists the names of installed models.
func (o *OllamaEngine) Models(ctx context.Context) ([]string, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ollama models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Pull downloads model. While the pull is in flight the engine reports
// AvailabilityAfterDownload for it. progress may be nil.
func (o *OllamaEngine) Pull(ctx context.Context, model string, progress func(completed, total int64)) error {
	o.setPulling(model, true)
	defer o.setPulling(model, false)

	err := o.client.Pull(ctx, &api.PullRequest{Model: model}, func(resp api.ProgressResponse) error {
		if progress != nil && resp.Total > 0 {
			progress(resp.Completed, resp.Total)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pulling model: %w", err)
	}
	return nil
}

func (o *OllamaEngine) isPulling(model string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pulling[model]
}

func (o *OllamaEngine) setPulling(model string, v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v {
		o.pulling[model] = true
		return
	}
	delete(o.pulling, model)
}

// Create returns a session for the chat model. Ollama loads the model lazily
// on the first prompt, so creation performs no request.
func (o *OllamaEngine) Create(_ context.Context, systemPrompt string) (LocalModel, error) {
	return &ollamaSession{engine: o, model: o.model, system: systemPrompt}, nil
}

// CreateSummarizer returns a summarizer seeded with a prompt derived from opts.
func (o *OllamaEngine) CreateSummarizer(_ context.Context, opts SummarizerOptions) (Summarizer, error) {
	return &ollamaSession{
		engine: o,
		model:  o.summarizerModel,
		system: summarizerSystemPrompt(opts),
	}, nil
}

// ollamaSession serves both LocalModel and Summarizer.
type ollamaSession struct {
	engine *OllamaEngine
	model  string
	system string

	mu     sync.Mutex
	closed bool
}

// CountTokens estimates the token count of text.
func (s *ollamaSession) CountTokens(_ context.Context, text string) (int, error) {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken, nil
}

func (s *ollamaSession) Prompt(ctx context.Context, text string) (string, error) {
	if s.isClosed() {
		return "", fmt.Errorf("ollama session already destroyed")
	}

	stream := false
	req := &api.ChatRequest{
		Model: s.model,
		Messages: []api.Message{
			{Role: "system", Content: s.system},
			{Role: "user", Content: text},
		},
		Stream: &stream,
	}

	var final api.ChatResponse
	err := s.engine.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	result := strings.TrimSpace(final.Message.Content)
	if result == "" {
		return "", fmt.Errorf("empty response from model")
	}

	s.engine.logger.Debug().
		Str("model", s.model).
		Int("input_tokens", final.PromptEvalCount).
		Int("output_tokens", final.EvalCount).
		Str("done_reason", final.DoneReason).
		Msg("ollama prompt completed")

	return result, nil
}

func (s *ollamaSession) Summarize(ctx context.Context, text string) (string, error) {
	return s.Prompt(ctx, text)
}

// Destroy unloads the model from the daemon (keep_alive 0).
func (s *ollamaSession) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	stream := false
	req := &api.GenerateRequest{
		Model:     s.model,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: 0},
	}
	if err := s.engine.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("unloading ollama model: %w", err)
	}
	return nil
}

func (s *ollamaSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
