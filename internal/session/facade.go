package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hpkotak/amphy/internal/prompt"
	"github.com/hpkotak/amphy/internal/provider"
	"github.com/rs/zerolog"
)

const (
	// MaxLocalPromptTokens is the largest prompt sent to a local model.
	// Longer prompts are returned unchanged instead of being truncated.
	MaxLocalPromptTokens = 1024

	DefaultRemoteTimeout    = 3 * time.Second
	DefaultSummarizeTimeout = 30 * time.Second
)

// LocalSummarizerOptions configures every local summarizer sub-session.
var LocalSummarizerOptions = provider.SummarizerOptions{
	Type:   "tl;dr",
	Format: "plain-text",
	Length: "short",
}

// Facade runs prompts and summaries against a Session of either kind.
// It never creates sessions and never retries.
type Facade struct {
	RemoteTimeout    time.Duration
	SummarizeTimeout time.Duration

	logger zerolog.Logger
}

// NewFacade returns a Facade with the default timeouts.
func NewFacade(logger zerolog.Logger) *Facade {
	return &Facade{
		RemoteTimeout:    DefaultRemoteTimeout,
		SummarizeTimeout: DefaultSummarizeTimeout,
		logger:           logger,
	}
}

// Prompt sends text to the session's backend and returns the reply.
//
// On a local session the prompt is first counted; over MaxLocalPromptTokens
// the text is returned unchanged and the model is not called. The local
// model is released before Prompt returns, whatever the outcome.
func (f *Facade) Prompt(ctx context.Context, s *Session, text string) (string, error) {
	switch s.kind {
	case KindLocal:
		return f.promptLocal(ctx, s, text)
	case KindRemote:
		return f.promptRemote(ctx, s, text)
	default:
		return "", fmt.Errorf("invalid session kind %d", s.kind)
	}
}

func (f *Facade) promptLocal(ctx context.Context, s *Session, text string) (string, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer func() {
		if err := s.release(ctx); err != nil {
			f.logger.Warn().Err(err).Msg("releasing local session")
		}
	}()

	tokens, err := s.local.CountTokens(ctx, text)
	if err != nil {
		return "", fmt.Errorf("local backend error: counting tokens: %w", err)
	}
	if tokens > MaxLocalPromptTokens {
		f.logger.Error().
			Int("tokens", tokens).
			Int("max_tokens", MaxLocalPromptTokens).
			Msg("prompt too long for local model, returning input unchanged")
		return text, nil
	}
	f.logger.Debug().Int("tokens", tokens).Msg("local prompt within budget")

	reply, err := s.local.Prompt(ctx, text)
	if err != nil {
		return "", fmt.Errorf("local backend error: %w", err)
	}
	return reply, nil
}

func (f *Facade) promptRemote(ctx context.Context, s *Session, text string) (string, error) {
	f.logTokens(ctx, s.remote, text, f.RemoteTimeout)
	return f.generate(ctx, s.remote, text, f.RemoteTimeout)
}

// Summarize returns a short plain-text summary of text.
//
// Remote sessions wrap text in a summarization instruction. Local sessions
// use the engine's separate summarizer facility; when it is not ready the
// result is an advisory and a nil error.
func (f *Facade) Summarize(ctx context.Context, s *Session, text string) (string, *Advisory, error) {
	switch s.kind {
	case KindLocal:
		return f.summarizeLocal(ctx, s, text)
	case KindRemote:
		instruction := prompt.SummarizeInstruction(text)
		f.logTokens(ctx, s.remote, instruction, f.SummarizeTimeout)
		out, err := f.generate(ctx, s.remote, instruction, f.SummarizeTimeout)
		return out, nil, err
	default:
		return "", nil, fmt.Errorf("invalid session kind %d", s.kind)
	}
}

func (f *Facade) summarizeLocal(ctx context.Context, s *Session, text string) (string, *Advisory, error) {
	status := NewProber(s.engine, f.logger).ProbeSummarizer(ctx)
	if status != StatusReady {
		return "", localAdvisory("summarizer", status), nil
	}

	sum, err := s.engine.CreateSummarizer(ctx, LocalSummarizerOptions)
	if err != nil {
		return "", nil, fmt.Errorf("local backend error: creating summarizer: %w", err)
	}
	defer func() {
		if err := sum.Destroy(context.WithoutCancel(ctx)); err != nil {
			f.logger.Warn().Err(err).Msg("releasing local summarizer")
		}
	}()

	out, err := sum.Summarize(ctx, text)
	if err != nil {
		return "", nil, fmt.Errorf("local backend error: %w", err)
	}
	return out, nil, nil
}

// logTokens records the remote token count. Remote backends enforce their
// own limits, so the count never gates the request, and a count that does not
// finish within timeout is abandoned.
func (f *Facade) logTokens(ctx context.Context, c provider.RemoteClient, text string, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.CountTokens(ctx, text)
		done <- result{n, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	if r.err != nil {
		f.logger.Warn().Err(r.err).Str("vendor", c.Name()).Msg("remote token count failed")
		return
	}
	f.logger.Debug().Int("tokens", r.n).Str("vendor", c.Name()).Msg("remote prompt tokens")
}

func (f *Facade) generate(ctx context.Context, c provider.RemoteClient, text string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := c.Generate(ctx, text, provider.GenerateOptions{Timeout: timeout})
		done <- result{out, err}
	}()

	// A client that ignores ctx must not hold the caller past the deadline.
	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("remote backend error: %w", r.err)
		}
		return r.out, nil
	case <-ctx.Done():
		return "", fmt.Errorf("remote backend error: %w", ctx.Err())
	}
}
