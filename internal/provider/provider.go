// Package provider implements the language-model backends behind a session.
// Local engines (Ollama, the AFM bridge) run on the user's machine and hold
// scarce resources that must be released explicitly. Remote clients (Gemini,
// Anthropic) are bound to one pinned model and one system instruction.
package provider

import (
	"context"
	"time"
)

// Availability values reported by a local engine. These mirror the vocabulary
// of on-device model runtimes; callers must treat any other value as unknown.
const (
	AvailabilityNo            = "no"
	AvailabilityAfterDownload = "after-download"
	AvailabilityReadily       = "readily"
)

// SummarizerOptions configures a local summarizer sub-session.
type SummarizerOptions struct {
	Type   string `json:"type"`   // e.g. "tl;dr"
	Format string `json:"format"` // e.g. "plain-text"
	Length string `json:"length"` // e.g. "short"
}

// LocalEngine is an on-device inference facility.
type LocalEngine interface {
	// Name returns the engine name (e.g., "ollama").
	Name() string

	// Availability reports whether the model asset is ready to serve.
	// An error means the facility itself could not be reached.
	Availability(ctx context.Context) (string, error)

	// Create starts a model session seeded with systemPrompt.
	Create(ctx context.Context, systemPrompt string) (LocalModel, error)

	// SummarizerAvailability is Availability for the summarizer facility.
	SummarizerAvailability(ctx context.Context) (string, error)

	// CreateSummarizer starts a short-lived summarizer sub-session.
	CreateSummarizer(ctx context.Context, opts SummarizerOptions) (Summarizer, error)
}

// LocalModel is a single local model session. Destroy releases the engine
// resources held by the session; the session is unusable afterwards.
type LocalModel interface {
	CountTokens(ctx context.Context, text string) (int, error)
	Prompt(ctx context.Context, text string) (string, error)
	Destroy(ctx context.Context) error
}

// Summarizer is a local summarizer sub-session with the same lifecycle as LocalModel.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Destroy(ctx context.Context) error
}

// GenerateOptions tunes a single remote generation call.
type GenerateOptions struct {
	// Timeout bounds the call. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// RemoteClient is a remote generative model bound to one model identifier
// and one system instruction at construction.
type RemoteClient interface {
	// Name returns the vendor name (e.g., "gemini").
	Name() string

	// Model returns the pinned model identifier.
	Model() string

	// CountTokens returns the total token count for text.
	CountTokens(ctx context.Context, text string) (int, error)

	// Generate sends text and returns the response text.
	Generate(ctx context.Context, text string, opts GenerateOptions) (string, error)
}

// withTimeout derives a context bounded by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
