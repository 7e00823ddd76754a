package provider

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LocalBuildConfig contains local-engine settings used by the factory.
type LocalBuildConfig struct {
	Engine          string
	Model           string
	SummarizerModel string
	OllamaHost      string
	AFMCommand      string
}

// RemoteBuildConfig contains remote-client settings used by the factory.
// The model is pinned per vendor and is not configurable.
type RemoteBuildConfig struct {
	Provider          string
	BaseURL           string
	APIKey            string
	SystemInstruction string
}

// NewLocalEngine builds the configured local engine implementation.
func NewLocalEngine(cfg LocalBuildConfig, logger zerolog.Logger) (LocalEngine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "ollama":
		e, err := NewOllama(cfg.OllamaHost, cfg.Model, cfg.SummarizerModel, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "afm":
		e, err := NewAFM(cfg.Model, cfg.AFMCommand)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported local engine %q", cfg.Engine)
	}
}

// NewRemoteClient builds the configured remote client implementation.
func NewRemoteClient(cfg RemoteBuildConfig, logger zerolog.Logger) (RemoteClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		c, err := NewGemini(cfg.BaseURL, cfg.APIKey, cfg.SystemInstruction, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "anthropic":
		c, err := NewAnthropic(cfg.BaseURL, cfg.APIKey, cfg.SystemInstruction, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported remote provider %q", cfg.Provider)
	}
}

// PinnedModel returns the model identifier a remote vendor is bound to.
func PinnedModel(vendor string) string {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case "anthropic":
		return AnthropicModel
	default:
		return GeminiModel
	}
}
