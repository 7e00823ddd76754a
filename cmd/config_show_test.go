package cmd

import (
	"strings"
	"testing"

	"github.com/hpkotak/amphy/internal/config"
)

func TestRunConfigShow(t *testing.T) {
	setupTestConfig(t, func(cfg *config.Config) {
		cfg.Remote.APIKey = "AIzaSyExampleKey"
		cfg.Storage.Redis.Password = "hunter2"
	})
	out := useFakes(t, nil, nil)

	if err := runConfigShow(testCmd(), nil); err != nil {
		t.Fatalf("runConfigShow() unexpected error: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "Config file: ") {
		t.Errorf("output missing config path:\n%s", output)
	}
	if strings.Contains(output, "AIzaSyExampleKey") || strings.Contains(output, "hunter2") {
		t.Errorf("output leaks secrets:\n%s", output)
	}
	if !strings.Contains(output, "api_key: AIza****") {
		t.Errorf("output missing redacted key:\n%s", output)
	}
	if !strings.Contains(output, "engine: ollama") {
		t.Errorf("output missing local engine:\n%s", output)
	}
}

func TestRunConfigShowAppliesEnv(t *testing.T) {
	setupTestConfig(t, nil)
	out := useFakes(t, nil, nil)
	t.Setenv("AMPHY_LOG_LEVEL", "debug")

	if err := runConfigShow(testCmd(), nil); err != nil {
		t.Fatalf("runConfigShow() unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "log_level: debug") {
		t.Errorf("output should reflect env override:\n%s", out.String())
	}
}
