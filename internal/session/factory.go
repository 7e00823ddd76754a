package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpkotak/amphy/internal/provider"
	"github.com/rs/zerolog"
)

// RemoteBuilder constructs a remote client bound to the vendor's pinned model
// and systemPrompt. It must not contact the network.
type RemoteBuilder func(apiKey, systemPrompt string) (provider.RemoteClient, error)

// Factory creates sessions. It never issues prompts.
type Factory struct {
	engine    provider.LocalEngine
	prober    *Prober
	newRemote RemoteBuilder
	logger    zerolog.Logger
}

// NewFactory returns a Factory. engine may be nil when no local facility is
// configured; local sessions then always yield an advisory.
func NewFactory(engine provider.LocalEngine, newRemote RemoteBuilder, logger zerolog.Logger) *Factory {
	return &Factory{
		engine:    engine,
		prober:    NewProber(engine, logger),
		newRemote: newRemote,
		logger:    logger,
	}
}

// Prober returns the prober used for local session creation.
func (f *Factory) Prober() *Prober { return f.prober }

// Create builds a session for cfg.
//
// Remote intent wins when set: a missing key is a *ConfigError and nothing
// is constructed. On the local path the engine is probed once; anything but
// StatusReady returns a nil session with an advisory and a nil error.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Session, *Advisory, error) {
	if cfg.UseRemote {
		return f.createRemote(cfg)
	}

	status := f.prober.ProbeLocal(ctx)
	if status != StatusReady {
		f.logger.Info().Str("status", status.String()).Msg("local session not created")
		return nil, localAdvisory("language model", status), nil
	}

	model, err := f.engine.Create(ctx, cfg.SystemPrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("local backend error: creating session: %w", err)
	}

	f.logger.Debug().Str("kind", KindLocal.String()).Str("engine", f.engine.Name()).Msg("session created")
	return newLocal(f.engine, model), nil, nil
}

func (f *Factory) createRemote(cfg Config) (*Session, *Advisory, error) {
	if strings.TrimSpace(cfg.RemoteAPIKey) == "" {
		return nil, nil, missingKeyError()
	}
	if f.newRemote == nil {
		return nil, nil, fmt.Errorf("remote backend is not configured")
	}

	client, err := f.newRemote(cfg.RemoteAPIKey, cfg.SystemPrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("creating remote client: %w", err)
	}

	f.logger.Debug().
		Str("kind", KindRemote.String()).
		Str("vendor", client.Name()).
		Str("model", client.Model()).
		Msg("session created")
	return newRemote(client), nil, nil
}
