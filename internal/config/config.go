// Package config manages the amphy configuration file at ~/.amphy/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hpkotak/amphy/internal/prompt"
	"github.com/hpkotak/amphy/internal/provider"
	"github.com/hpkotak/amphy/internal/session"
)

var ErrNotFound = errors.New("config file not found")

type Config struct {
	SystemPrompt string  `yaml:"system_prompt"`
	LogLevel     string  `yaml:"log_level" env:"AMPHY_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Remote       Remote  `yaml:"remote"`
	Local        Local   `yaml:"local"`
	Storage      Storage `yaml:"storage"`
}

type Remote struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider" validate:"oneof=gemini anthropic"`
	BaseURL  string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key" env:"AMPHY_API_KEY"`
}

type Local struct {
	Engine          string `yaml:"engine" validate:"oneof=ollama afm"`
	Model           string `yaml:"model" validate:"required"`
	SummarizerModel string `yaml:"summarizer_model,omitempty"`
	Ollama          Ollama `yaml:"ollama"`
	AFM             AFM    `yaml:"afm"`
}

type Ollama struct {
	Host string `yaml:"host" validate:"required,url"`
}

type AFM struct {
	Command string `yaml:"command"`
}

type Storage struct {
	Area  string `yaml:"area" validate:"oneof=local sync managed memory"`
	Path  string `yaml:"path,omitempty"`
	Redis Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"AMPHY_REDIS_ADDR"`
	Password string `yaml:"password,omitempty" env:"AMPHY_REDIS_PASSWORD"`
	DB       int    `yaml:"db" validate:"min=0,max=15"`
}

// Dir returns the config directory path (~/.amphy).
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".amphy")
}

// Path returns the config file path (~/.amphy/config.yaml).
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Exists checks if the config file exists.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads the config file and applies AMPHY_* environment overrides.
// Returns ErrNotFound if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := loadFrom(Path())
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the config file without environment overrides. Use it when
// the config will be written back, so secrets from the environment stay out
// of the file.
func LoadFile() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment. Unset variables leave the
// file values untouched.
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// Save writes the config to disk, creating the directory if needed.
func Save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}

	// The file may hold an API key.
	if err := os.WriteFile(Path(), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func marshalConfig(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// DefaultManagedPath is the YAML file read by the managed storage area.
func DefaultManagedPath() string {
	return filepath.Join(Dir(), "managed.yaml")
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		SystemPrompt: prompt.DefaultSystemPrompt,
		LogLevel:     "warn",
		Remote: Remote{
			Provider: "gemini",
		},
		Local: Local{
			Engine: "ollama",
			Model:  "llama3.2:3b",
			Ollama: Ollama{Host: "http://localhost:11434"},
			AFM:    AFM{Command: "afm-bridge"},
		},
		Storage: Storage{
			Area:  "local",
			Path:  filepath.Join(Dir(), "notes.db"),
			Redis: Redis{Addr: "localhost:6379"},
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config value for %s: %q fails %q", fieldKey(fe.Namespace()), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return fmt.Errorf("validating config: %w", err)
	}

	if c.Local.Engine == "afm" && strings.TrimSpace(c.Local.AFM.Command) == "" {
		return fmt.Errorf("local.afm.command is required when local.engine is afm")
	}
	if c.Storage.Area == "sync" && strings.TrimSpace(c.Storage.Redis.Addr) == "" {
		return fmt.Errorf("storage.redis.addr is required when storage.area is sync")
	}
	if c.Storage.Area == "local" && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required when storage.area is local")
	}
	if c.Storage.Area == "managed" && !isYAMLPath(c.Storage.Path) {
		return fmt.Errorf("storage.path must be a .yaml file when storage.area is managed (e.g. %s)", DefaultManagedPath())
	}
	return nil
}

// fieldKey turns "Config.remote.provider" into "remote.provider".
func fieldKey(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Remote.APIKey != "" {
		out.Remote.APIKey = redact(out.Remote.APIKey)
	}
	if out.Storage.Redis.Password != "" {
		out.Storage.Redis.Password = "****"
	}
	return &out
}

func redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// SessionConfig maps the config to a session request.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		UseRemote:    c.Remote.Enabled,
		RemoteAPIKey: c.Remote.APIKey,
		SystemPrompt: c.SystemPrompt,
	}
}

// LocalBuild maps the config to the local engine factory input.
func (c *Config) LocalBuild() provider.LocalBuildConfig {
	return provider.LocalBuildConfig{
		Engine:          c.Local.Engine,
		Model:           c.Local.Model,
		SummarizerModel: c.Local.SummarizerModel,
		OllamaHost:      c.Local.Ollama.Host,
		AFMCommand:      c.Local.AFM.Command,
	}
}

// RemoteBuild maps the config to the remote client factory input. The key and
// system instruction are filled in per session.
func (c *Config) RemoteBuild() provider.RemoteBuildConfig {
	return provider.RemoteBuildConfig{
		Provider: c.Remote.Provider,
		BaseURL:  c.Remote.BaseURL,
	}
}
