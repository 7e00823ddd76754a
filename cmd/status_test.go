package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hpkotak/amphy/internal/config"
	"github.com/hpkotak/amphy/internal/provider"
)

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		engine *fakeEngine
		want   []string
	}{
		{
			name:   "local ready",
			engine: &fakeEngine{status: provider.AvailabilityReadily},
			want:   []string{"Backend:          local", "Language model:   ready", "Summarizer:       ready", "Storage area:     local"},
		},
		{
			name:   "local downloading",
			engine: &fakeEngine{status: provider.AvailabilityAfterDownload},
			want:   []string{"Language model:   pending-download"},
		},
		{
			name: "no engine",
			want: []string{"Language model:   unavailable", "Summarizer:       unavailable"},
		},
		{
			name:   "remote without key",
			mutate: func(cfg *config.Config) { cfg.Remote.Enabled = true; cfg.Remote.Provider = "anthropic" },
			engine: &fakeEngine{status: provider.AvailabilityNo},
			want:   []string{"remote (anthropic, " + provider.AnthropicModel + ")", "no API key is set"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, tt.mutate)
			out := useFakes(t, tt.engine, nil)

			if err := runStatus(testCmd(), nil); err != nil {
				t.Fatalf("runStatus() unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestRunStatusProbeDeadline(t *testing.T) {
	setupTestConfig(t, nil)
	out := useFakes(t, &fakeEngine{hang: true}, nil)
	statusTimeout = 50 * time.Millisecond

	start := time.Now()
	err := runStatus(testCmd(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("runStatus() error = %v, want deadline exceeded", err)
	}
	if !strings.Contains(err.Error(), "probing local") {
		t.Errorf("error = %q, want facility context", err.Error())
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("runStatus() took %v, want it bounded by the status timeout", time.Since(start))
	}
	if strings.Contains(out.String(), "Language model:") {
		t.Errorf("output should not report a status after the deadline:\n%s", out.String())
	}
}
