package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/config"
	"github.com/hpkotak/amphy/internal/logger"
	"github.com/hpkotak/amphy/internal/notes"
	"github.com/hpkotak/amphy/internal/prompt"
	"github.com/hpkotak/amphy/internal/provider"
	"github.com/hpkotak/amphy/internal/session"
	"github.com/hpkotak/amphy/internal/storage"
)

var errNoConfig = errors.New("no config found. Run 'amphy setup' to get started")

// Package-level function variables for testability.
// Tests override these to avoid real engines, vendors, and storage servers.
var (
	newEngine = func(cfg *config.Config, log zerolog.Logger) (provider.LocalEngine, error) {
		return provider.NewLocalEngine(cfg.LocalBuild(), log)
	}
	newRemote = provider.NewRemoteClient
	openStore = func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.Store, error) {
		return storage.Open(ctx, storage.Options{
			Area: cfg.Storage.Area,
			Path: cfg.Storage.Path,
			Redis: storage.RedisOptions{
				Addr:     cfg.Storage.Redis.Addr,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			},
		}, log)
	}
	ioIn  io.Reader = os.Stdin
	ioOut io.Writer = os.Stdout
	ioErr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "amphy",
	Short: "Study assistant over your saved notes",
	Long: `Amphy keeps short notes and answers questions about them with a
language model, running locally (Ollama or an on-device bridge) or through a
remote vendor.

Examples:
  amphy note add "Goroutines are multiplexed onto OS threads"
  amphy prompt explain the difference between a mutex and a channel
  amphy summarize --all
  amphy chat`,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// app holds the collaborators a command works with.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	factory *session.Factory
	facade  *session.Facade
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, errNoConfig
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(ioErr, cfg.LogLevel)

	// A nil engine makes every local session an advisory, which is what the
	// user should see when the engine cannot even be configured.
	var engine provider.LocalEngine
	if e, err := newEngine(cfg, log); err != nil {
		log.Warn().Err(err).Msg("local engine unavailable")
	} else {
		engine = e
	}

	build := func(apiKey, systemPrompt string) (provider.RemoteClient, error) {
		rc := cfg.RemoteBuild()
		rc.APIKey = apiKey
		rc.SystemInstruction = systemPrompt
		return newRemote(rc, log)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		factory: session.NewFactory(engine, build, log),
		facade:  session.NewFacade(log),
	}, nil
}

// sessionConfig returns the session request for this run, falling back to
// the default system prompt when the config leaves it empty.
func (a *app) sessionConfig() session.Config {
	sc := a.cfg.SessionConfig()
	if strings.TrimSpace(sc.SystemPrompt) == "" {
		sc.SystemPrompt = prompt.DefaultSystemPrompt
	}
	return sc
}

// openNotebook opens the configured storage area. Callers must close the
// returned store.
func (a *app) openNotebook(ctx context.Context) (*notes.Notebook, *storage.Store, error) {
	store, err := openStore(ctx, a.cfg, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s storage: %w", a.cfg.Storage.Area, err)
	}
	return notes.New(store), store, nil
}

// createSession creates a session and reports an advisory to the user. It
// returns a nil session (and nil error) when the advisory means there is
// nothing to run against.
func (a *app) createSession(ctx context.Context, sc session.Config) (*session.Session, error) {
	s, adv, err := a.factory.Create(ctx, sc)
	if err != nil {
		var cfgErr *session.ConfigError
		if errors.As(err, &cfgErr) {
			_, _ = fmt.Fprintf(ioOut, "\n  %s\n\n", cfgErr.Advisory.String())
		}
		return nil, err
	}
	if adv != nil {
		printAdvisory(adv)
		return nil, nil
	}
	return s, nil
}

func printAdvisory(adv *session.Advisory) {
	_, _ = fmt.Fprintf(ioOut, "\n  Note: %s\n\n", adv.String())
}
