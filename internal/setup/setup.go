// Package setup handles first-run onboarding: choosing a backend and, for the
// local path, detecting, installing, and configuring Ollama. All actions
// require explicit user consent.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpkotak/amphy/internal/config"
	"github.com/hpkotak/amphy/internal/executor"
	"github.com/hpkotak/amphy/internal/platform"
	"github.com/hpkotak/amphy/internal/provider"
)

// Package-level function variables for testability.
var (
	lookPath    = exec.LookPath
	runShell    = executor.Run
	platformOS  = platform.OS
	onDevice    = platform.OnDeviceModels
	startOllama = func() error {
		// Ollama is a persistent service. We start it but don't own its
		// lifecycle; it keeps running after amphy exits.
		return exec.Command("ollama", "serve").Start()
	}
	startupPoll = time.Second
)

var recommendedModels = []string{"llama3.2:3b", "gemma3:1b"}

// Run executes the interactive setup flow and saves the resulting config.
// in and out are injectable for testability.
func Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)

	_, _ = fmt.Fprintln(out, "Amphy Setup")
	_, _ = fmt.Fprintln(out, "===========")
	_, _ = fmt.Fprintf(out, "Platform: %s\n\n", platformOS())

	cfg, err := config.LoadFile()
	if err != nil {
		if !errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	if confirm("Use a remote backend (Gemini or Anthropic) instead of a local model?", false, r, out) {
		err = setupRemote(cfg, r, out)
	} else {
		err = setupLocal(ctx, cfg, r, out)
	}
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	_, _ = fmt.Fprintf(out, "\nConfig saved to %s\n", config.Path())
	_, _ = fmt.Fprintln(out, `Ready! Try: amphy note add "Channels are typed conduits" && amphy chat`)
	return nil
}

func setupRemote(cfg *config.Config, r *bufio.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "\nRemote providers:")
	_, _ = fmt.Fprintf(out, "  1. gemini     (%s)\n", provider.GeminiModel)
	_, _ = fmt.Fprintf(out, "  2. anthropic  (%s)\n", provider.AnthropicModel)
	_, _ = fmt.Fprint(out, "\nSelect [1]: ")

	switch input := readLine(r); input {
	case "", "1":
		cfg.Remote.Provider = "gemini"
	case "2":
		cfg.Remote.Provider = "anthropic"
	default:
		return fmt.Errorf("invalid selection: %s", input)
	}
	cfg.Remote.Enabled = true

	_, _ = fmt.Fprint(out, "API key (leave empty to use AMPHY_API_KEY): ")
	if key := readLine(r); key != "" {
		cfg.Remote.APIKey = key
	}
	if cfg.Remote.APIKey == "" && os.Getenv("AMPHY_API_KEY") == "" {
		_, _ = fmt.Fprintln(out, "[!!] No API key yet. Set one with: amphy config set remote.api_key <key>")
	}
	_, _ = fmt.Fprintf(out, "[ok] Remote backend: %s\n", cfg.Remote.Provider)
	return nil
}

func setupLocal(ctx context.Context, cfg *config.Config, r *bufio.Reader, out io.Writer) error {
	cfg.Remote.Enabled = false

	if onDevice() {
		if _, err := lookPath(cfg.Local.AFM.Command); err == nil {
			if confirm(fmt.Sprintf("Use Apple Foundation Models through %s?", cfg.Local.AFM.Command), true, r, out) {
				cfg.Local.Engine = "afm"
				if cfg.Local.Model == "" || cfg.Local.Model == config.Default().Local.Model {
					cfg.Local.Model = "afm-latest"
				}
				_, _ = fmt.Fprintln(out, "[ok] Local engine: afm")
				return nil
			}
		}
	}

	if err := ensureOllamaInstalled(r, out); err != nil {
		return err
	}
	host := cfg.Local.Ollama.Host
	if err := ensureOllamaRunning(host, r, out); err != nil {
		return err
	}

	engine, err := provider.NewOllama(host, cfg.Local.Model, "", zerolog.Nop())
	if err != nil {
		return err
	}
	model, err := selectModel(ctx, engine, r, out)
	if err != nil {
		return err
	}

	cfg.Local.Engine = "ollama"
	cfg.Local.Model = model
	return nil
}

func ensureOllamaInstalled(r *bufio.Reader, out io.Writer) error {
	if _, err := lookPath("ollama"); err == nil {
		_, _ = fmt.Fprintln(out, "[ok] Ollama is installed")
		return nil
	}

	_, _ = fmt.Fprintln(out, "[!!] Ollama not found")

	var install string
	switch platformOS() {
	case "darwin":
		if !confirm("Install Ollama via Homebrew?", true, r, out) {
			return fmt.Errorf("ollama is required. Install it manually from https://ollama.com")
		}
		install = "brew install ollama"
	case "linux":
		if !confirm("Install Ollama via install script?", true, r, out) {
			return fmt.Errorf("ollama is required. Install it manually from https://ollama.com")
		}
		install = "curl -fsSL https://ollama.com/install.sh | sh"
	default:
		return fmt.Errorf("unsupported platform %s. Install Ollama manually from https://ollama.com", platformOS())
	}

	_, _ = fmt.Fprintf(out, "Running: %s\n", install)
	if err := runShell(install, out, out); err != nil {
		return fmt.Errorf("failed to install ollama: %w", err)
	}
	_, _ = fmt.Fprintln(out, "[ok] Ollama installed")
	return nil
}

func ensureOllamaRunning(host string, r *bufio.Reader, out io.Writer) error {
	if isOllamaReachable(host) {
		_, _ = fmt.Fprintln(out, "[ok] Ollama is running")
		return nil
	}

	_, _ = fmt.Fprintln(out, "[!!] Ollama is not running")
	if !confirm("Start Ollama?", true, r, out) {
		return fmt.Errorf("ollama must be running. Start it with: ollama serve")
	}

	_, _ = fmt.Fprintln(out, "Starting Ollama in background...")
	if err := startOllama(); err != nil {
		return fmt.Errorf("failed to start ollama: %w", err)
	}

	for i := 0; i < 10; i++ {
		time.Sleep(startupPoll)
		if isOllamaReachable(host) {
			_, _ = fmt.Fprintln(out, "[ok] Ollama is running")
			return nil
		}
		_, _ = fmt.Fprint(out, ".")
	}
	return fmt.Errorf("ollama did not start within 10 seconds")
}

func selectModel(ctx context.Context, engine *provider.OllamaEngine, r *bufio.Reader, out io.Writer) (string, error) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := engine.Models(listCtx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return pullRecommendedModel(ctx, engine, r, out)
	}

	_, _ = fmt.Fprintln(out, "\nAvailable models:")
	for i, m := range models {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, m)
	}
	_, _ = fmt.Fprint(out, "\nSelect default model [1]: ")

	input := readLine(r)
	idx := 0
	if input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(models) {
			return "", fmt.Errorf("invalid selection: %s", input)
		}
		idx = n - 1
	}

	selected := models[idx]
	_, _ = fmt.Fprintf(out, "[ok] Selected: %s\n", selected)
	return selected, nil
}

func pullRecommendedModel(ctx context.Context, engine *provider.OllamaEngine, r *bufio.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprintln(out, "\nNo models found. Pull a recommended model?")
	_, _ = fmt.Fprintf(out, "  1. %s  (fast, ~2GB)\n", recommendedModels[0])
	_, _ = fmt.Fprintf(out, "  2. %s    (smallest, ~1GB)\n", recommendedModels[1])
	_, _ = fmt.Fprintln(out, "  3. Skip")
	_, _ = fmt.Fprint(out, "\nSelect [1]: ")

	var model string
	switch input := readLine(r); input {
	case "", "1":
		model = recommendedModels[0]
	case "2":
		model = recommendedModels[1]
	case "3":
		return "", fmt.Errorf("no model selected. Pull a model manually with: ollama pull <model>")
	default:
		return "", fmt.Errorf("invalid selection: %s", input)
	}

	_, _ = fmt.Fprintf(out, "Pulling %s (this may take a few minutes)...\n", model)

	// Model pulls can be large (GBs), so use a generous timeout.
	pullCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	err := engine.Pull(pullCtx, model, func(completed, total int64) {
		pct := float64(completed) / float64(total) * 100
		_, _ = fmt.Fprintf(out, "\r  %.0f%% downloaded", pct)
	})
	if err != nil {
		return "", err
	}
	_, _ = fmt.Fprintf(out, "\n[ok] %s ready\n", model)
	return model, nil
}

func isOllamaReachable(host string) bool {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(host)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func confirm(question string, defaultYes bool, r *bufio.Reader, out io.Writer) bool {
	in := executor.OneLine(func() (string, error) { return r.ReadString('\n') })
	return executor.Confirm(question, defaultYes, in, out)
}

// readLine reads a single line from r, trimming whitespace.
func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
