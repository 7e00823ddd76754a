package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

const (
	afmStdoutLimitBytes = 1 << 20 // 1 MiB
	afmStderrLimitBytes = 16 << 10
)

// Bridge operations.
const (
	afmOpAvailability           = "availability"
	afmOpSummarizerAvailability = "summarizer_availability"
	afmOpCountTokens            = "count_tokens"
	afmOpPrompt                 = "prompt"
	afmOpSummarize              = "summarize"
)

// AFMEngine implements LocalEngine via an external Apple Foundation Models
// bridge executable. Each call runs the bridge once.
//
// Bridge contract:
//   - stdin:  {"op":"...","model":"...","system":"...","text":"...","summarizer":{...}}
//   - stdout: {"status":"readily","content":"...","tokens":12}
//
// status is set for the availability ops, tokens for count_tokens, and
// content for prompt and summarize.
type AFMEngine struct {
	model   string
	command string
}

// NewAFM creates an AFMEngine that shells out to command for each request.
func NewAFM(model, command string) (*AFMEngine, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("afm command cannot be empty")
	}
	return &AFMEngine{model: model, command: command}, nil
}

func (a *AFMEngine) Name() string { return "afm" }

// Availability asks the bridge for the on-device model status. A missing or
// non-executable bridge is reported as an error.
func (a *AFMEngine) Availability(ctx context.Context) (string, error) {
	return a.availability(ctx, afmOpAvailability)
}

func (a *AFMEngine) SummarizerAvailability(ctx context.Context) (string, error) {
	return a.availability(ctx, afmOpSummarizerAvailability)
}

func (a *AFMEngine) availability(ctx context.Context, op string) (string, error) {
	if err := a.checkCommand(); err != nil {
		return "", err
	}
	resp, err := a.call(ctx, afmRequest{Op: op, Model: a.model})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Status), nil
}

func (a *AFMEngine) checkCommand() error {
	if filepath.IsAbs(a.command) {
		info, err := os.Stat(a.command)
		if err != nil {
			return fmt.Errorf("afm command %q not found: %w", a.command, err)
		}
		if info.IsDir() {
			return fmt.Errorf("afm command %q is a directory", a.command)
		}
		if info.Mode()&0o111 == 0 {
			return fmt.Errorf("afm command %q is not executable", a.command)
		}
		return nil
	}

	if _, err := exec.LookPath(a.command); err != nil {
		return fmt.Errorf("afm command %q not found in PATH: %w", a.command, err)
	}
	return nil
}

func (a *AFMEngine) Create(_ context.Context, systemPrompt string) (LocalModel, error) {
	return &afmSession{engine: a, system: systemPrompt}, nil
}

func (a *AFMEngine) CreateSummarizer(_ context.Context, opts SummarizerOptions) (Summarizer, error) {
	return &afmSession{engine: a, summarizer: &opts}, nil
}

type afmRequest struct {
	Op         string             `json:"op"`
	Model      string             `json:"model"`
	System     string             `json:"system,omitempty"`
	Text       string             `json:"text,omitempty"`
	Summarizer *SummarizerOptions `json:"summarizer,omitempty"`
}

type afmResponse struct {
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
	Tokens  int    `json:"tokens,omitempty"`
}

func (a *AFMEngine) call(ctx context.Context, req afmRequest) (afmResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return afmResponse{}, fmt.Errorf("encoding afm request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.command)
	cmd.Stdin = bytes.NewReader(reqBody)

	stdout := newLimitedBuffer(afmStdoutLimitBytes)
	stderr := newLimitedBuffer(afmStderrLimitBytes)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			return afmResponse{}, fmt.Errorf("afm bridge execution failed: %w", err)
		}
		return afmResponse{}, fmt.Errorf("afm bridge execution failed: %w: %s", err, errText)
	}

	if stdout.overflow || stderr.overflow {
		return afmResponse{}, fmt.Errorf("afm bridge output exceeded limit (%d bytes stdout, %d bytes stderr)",
			afmStdoutLimitBytes, afmStderrLimitBytes)
	}

	var decoded afmResponse
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		return afmResponse{}, fmt.Errorf("decoding afm response: %w", err)
	}
	return decoded, nil
}

// afmSession is a handle on the bridge. The bridge process exits after every
// call, so Destroy only invalidates the handle.
type afmSession struct {
	engine     *AFMEngine
	system     string
	summarizer *SummarizerOptions

	mu     sync.Mutex
	closed bool
}

func (s *afmSession) CountTokens(ctx context.Context, text string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	resp, err := s.engine.call(ctx, afmRequest{
		Op:     afmOpCountTokens,
		Model:  s.engine.model,
		System: s.system,
		Text:   text,
	})
	if err != nil {
		return 0, err
	}
	return resp.Tokens, nil
}

func (s *afmSession) Prompt(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, afmRequest{
		Op:     afmOpPrompt,
		Model:  s.engine.model,
		System: s.system,
		Text:   text,
	})
}

func (s *afmSession) Summarize(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, afmRequest{
		Op:         afmOpSummarize,
		Model:      s.engine.model,
		Text:       text,
		Summarizer: s.summarizer,
	})
}

func (s *afmSession) generate(ctx context.Context, req afmRequest) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	resp, err := s.engine.call(ctx, req)
	if err != nil {
		return "", err
	}
	result := strings.TrimSpace(resp.Content)
	if result == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return result, nil
}

func (s *afmSession) Destroy(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *afmSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("afm session already destroyed")
	}
	return nil
}

type limitedBuffer struct {
	max      int
	buf      bytes.Buffer
	overflow bool
}

func newLimitedBuffer(max int) limitedBuffer {
	return limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining <= 0 {
		b.overflow = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.overflow = true
		_, _ = b.buf.Write(p[:remaining])
		return len(p), nil
	}
	n, err := b.buf.Write(p)
	if err != nil {
		return n, err
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

var _ io.Writer = (*limitedBuffer)(nil)
