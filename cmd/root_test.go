package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/config"
	"github.com/hpkotak/amphy/internal/provider"
)

// fakeRemote records what it was sent and returns a canned reply.
type fakeRemote struct {
	reply  string
	err    error
	system string
	texts  []string
}

func (f *fakeRemote) Name() string  { return "fake" }
func (f *fakeRemote) Model() string { return "fake-1" }

func (f *fakeRemote) CountTokens(_ context.Context, text string) (int, error) {
	return len(text) / 4, nil
}

func (f *fakeRemote) Generate(_ context.Context, text string, _ provider.GenerateOptions) (string, error) {
	f.texts = append(f.texts, text)
	return f.reply, f.err
}

// fakeEngine is a local engine whose availability and replies are fixed.
type fakeEngine struct {
	hang      bool // availability waits for ctx to end
	status    string
	reply     string
	summary   string
	prompts   []string
	destroyed int
}

func (e *fakeEngine) Name() string { return "fake-engine" }

func (e *fakeEngine) Availability(ctx context.Context) (string, error) { return e.availability(ctx) }

func (e *fakeEngine) SummarizerAvailability(ctx context.Context) (string, error) {
	return e.availability(ctx)
}

func (e *fakeEngine) availability(ctx context.Context) (string, error) {
	if e.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return e.status, nil
}

func (e *fakeEngine) Create(_ context.Context, _ string) (provider.LocalModel, error) {
	return &fakeModel{engine: e}, nil
}

func (e *fakeEngine) CreateSummarizer(_ context.Context, _ provider.SummarizerOptions) (provider.Summarizer, error) {
	return &fakeSummarizer{engine: e}, nil
}

type fakeModel struct{ engine *fakeEngine }

func (m *fakeModel) CountTokens(_ context.Context, text string) (int, error) {
	return len(text) / 4, nil
}

func (m *fakeModel) Prompt(_ context.Context, text string) (string, error) {
	m.engine.prompts = append(m.engine.prompts, text)
	return m.engine.reply, nil
}

func (m *fakeModel) Destroy(_ context.Context) error {
	m.engine.destroyed++
	return nil
}

type fakeSummarizer struct{ engine *fakeEngine }

func (s *fakeSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	return s.engine.summary, nil
}

func (s *fakeSummarizer) Destroy(_ context.Context) error { return nil }

// syncBuffer is a bytes.Buffer safe for a watcher goroutine to write to.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// saveCmdVars saves the package-level function vars and flags and returns a
// restore function.
func saveCmdVars(t *testing.T) func() {
	t.Helper()
	origNewEngine := newEngine
	origNewRemote := newRemote
	origOpenStore := openStore
	origRunSetup := runSetup
	origStatusTimeout := statusTimeout
	origIoIn, origIoOut, origIoErr := ioIn, ioOut, ioErr
	origTab, origWatch, origYes, origAll := noteTab, noteWatch, noteYes, summarizeAll
	return func() {
		newEngine = origNewEngine
		newRemote = origNewRemote
		openStore = origOpenStore
		runSetup = origRunSetup
		statusTimeout = origStatusTimeout
		ioIn, ioOut, ioErr = origIoIn, origIoOut, origIoErr
		noteTab, noteWatch, noteYes, summarizeAll = origTab, origWatch, origYes, origAll
	}
}

// setupTestConfig points HOME at a temp dir and saves a default config,
// modified by mutate. Notes go to a SQLite file under the temp HOME.
func setupTestConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"AMPHY_API_KEY", "AMPHY_LOG_LEVEL", "AMPHY_REDIS_ADDR", "AMPHY_REDIS_PASSWORD"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg := config.Default()
	cfg.LogLevel = "error"
	if mutate != nil {
		mutate(cfg)
	}
	if err := config.Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

// useFakes routes engine and vendor construction to the given fakes and
// captures command output. A nil engine makes newEngine fail.
func useFakes(t *testing.T, engine *fakeEngine, remote *fakeRemote) *bytes.Buffer {
	t.Helper()
	t.Cleanup(saveCmdVars(t))

	newEngine = func(*config.Config, zerolog.Logger) (provider.LocalEngine, error) {
		if engine == nil {
			return nil, errors.New("engine not configured")
		}
		return engine, nil
	}
	newRemote = func(cfg provider.RemoteBuildConfig, _ zerolog.Logger) (provider.RemoteClient, error) {
		if remote == nil {
			return nil, errors.New("remote not configured")
		}
		remote.system = cfg.SystemInstruction
		return remote, nil
	}

	out := &bytes.Buffer{}
	ioOut = out
	ioErr = io.Discard
	ioIn = strings.NewReader("")
	return out
}

func testCmd() *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func remoteWithKey(cfg *config.Config) {
	cfg.Remote.Enabled = true
	cfg.Remote.APIKey = "test-key-123456"
}

func TestCommandsWithoutConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	useFakes(t, nil, nil)

	runs := map[string]func() error{
		"prompt":    func() error { return runPrompt(testCmd(), []string{"hi"}) },
		"note add":  func() error { return runNoteAdd(testCmd(), []string{"hi"}) },
		"status":    func() error { return runStatus(testCmd(), nil) },
		"chat":      func() error { return runChat(testCmd(), nil) },
		"show":      func() error { return runConfigShow(testCmd(), nil) },
		"summarize": func() error { summarizeAll = true; return runSummarize(testCmd(), nil) },
	}
	for name, run := range runs {
		t.Run(name, func(t *testing.T) {
			err := run()
			if !errors.Is(err, errNoConfig) {
				t.Errorf("error = %v, want errNoConfig", err)
			}
		})
	}
}

func TestLoadAppRejectsInvalidConfig(t *testing.T) {
	setupTestConfig(t, func(cfg *config.Config) { cfg.Storage.Area = "cloud" })
	useFakes(t, nil, nil)

	_, err := loadApp()
	if err == nil || !strings.Contains(err.Error(), "storage.area") {
		t.Fatalf("loadApp() error = %v, want storage.area validation error", err)
	}
}

func TestSessionConfigDefaultsSystemPrompt(t *testing.T) {
	setupTestConfig(t, func(cfg *config.Config) { cfg.SystemPrompt = "  " })
	useFakes(t, nil, nil)

	a, err := loadApp()
	if err != nil {
		t.Fatalf("loadApp() unexpected error: %v", err)
	}
	if got := a.sessionConfig().SystemPrompt; strings.TrimSpace(got) == "" {
		t.Error("sessionConfig().SystemPrompt is empty, want default prompt")
	}
}
