package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/config"
)

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update a configuration value",
	Long: `Update a configuration value. Supported keys:
  system_prompt           Base system prompt for every session
  log_level               debug, info, warn, or error
  remote.enabled          Use the remote backend (true/false)
  remote.provider         gemini or anthropic
  remote.base_url         Override the vendor endpoint
  remote.api_key          Vendor API key
  local.engine            ollama or afm
  local.model             Local chat model (e.g., llama3.2:3b)
  local.summarizer_model  Local summarizer model (defaults to local.model)
  local.ollama.host       Ollama server URL
  local.afm.command       AFM bridge executable path
  storage.area            local, sync, managed, or memory
  storage.path            SQLite file (local) or YAML file (managed)
  storage.redis.addr      Redis address for the sync area
  storage.redis.password  Redis password
  storage.redis.db        Redis database number

Environment variables (AMPHY_API_KEY, AMPHY_LOG_LEVEL, AMPHY_REDIS_ADDR,
AMPHY_REDIS_PASSWORD) override the file at runtime and are never saved.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var secretKeys = map[string]bool{
	"remote.api_key":         true,
	"storage.redis.password": true,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], strings.TrimSpace(args[1])

	// Read the file alone so environment overrides are not written back.
	cfg, err := config.LoadFile()
	if err != nil {
		if !errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	if err := setField(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}

	shown := value
	if secretKeys[key] {
		shown = "****"
	}
	_, _ = fmt.Fprintf(ioOut, "Set %s = %s\n", key, shown)
	return nil
}

func setField(cfg *config.Config, key, value string) error {
	switch key {
	case "system_prompt":
		cfg.SystemPrompt = value
	case "log_level":
		cfg.LogLevel = value
	case "remote.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("remote.enabled must be true or false, got %q", value)
		}
		cfg.Remote.Enabled = b
	case "remote.provider":
		cfg.Remote.Provider = value
	case "remote.base_url":
		cfg.Remote.BaseURL = value
	case "remote.api_key":
		cfg.Remote.APIKey = value
	case "local.engine":
		cfg.Local.Engine = value
		applyEngineDefaults(cfg)
	case "local.model":
		if value == "" {
			return fmt.Errorf("model cannot be empty")
		}
		cfg.Local.Model = value
	case "local.summarizer_model":
		cfg.Local.SummarizerModel = value
	case "local.ollama.host":
		cfg.Local.Ollama.Host = value
	case "local.afm.command":
		if value == "" {
			return fmt.Errorf("afm command cannot be empty")
		}
		cfg.Local.AFM.Command = value
	case "storage.area":
		cfg.Storage.Area = value
		applyStorageDefaults(cfg)
	case "storage.path":
		cfg.Storage.Path = value
	case "storage.redis.addr":
		cfg.Storage.Redis.Addr = value
	case "storage.redis.password":
		cfg.Storage.Redis.Password = value
	case "storage.redis.db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("storage.redis.db must be a number, got %q", value)
		}
		cfg.Storage.Redis.DB = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func applyEngineDefaults(cfg *config.Config) {
	defaults := config.Default()
	switch cfg.Local.Engine {
	case "ollama":
		if strings.TrimSpace(cfg.Local.Ollama.Host) == "" {
			cfg.Local.Ollama.Host = defaults.Local.Ollama.Host
		}
	case "afm":
		if strings.TrimSpace(cfg.Local.AFM.Command) == "" {
			cfg.Local.AFM.Command = defaults.Local.AFM.Command
		}
	}
}

func applyStorageDefaults(cfg *config.Config) {
	defaults := config.Default()
	switch cfg.Storage.Area {
	case "local":
		if strings.TrimSpace(cfg.Storage.Path) == "" || cfg.Storage.Path == config.DefaultManagedPath() {
			cfg.Storage.Path = defaults.Storage.Path
		}
	case "managed":
		if !strings.HasSuffix(cfg.Storage.Path, ".yaml") && !strings.HasSuffix(cfg.Storage.Path, ".yml") {
			cfg.Storage.Path = config.DefaultManagedPath()
		}
	case "sync":
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			cfg.Storage.Redis.Addr = defaults.Storage.Redis.Addr
		}
	}
}
