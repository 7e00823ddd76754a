package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hpkotak/amphy/internal/provider"
	"github.com/hpkotak/amphy/internal/session"
)

var statusTimeout = 10 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend readiness",
	Long: `Probe the local language model and summarizer and show which backend
new sessions will use.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	var local, summarizer session.Status
	prober := a.factory.Prober()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = prober.ProbeLocal(gctx)
		return probeErr(gctx, "language model")
	})
	g.Go(func() error {
		summarizer = prober.ProbeSummarizer(gctx)
		return probeErr(gctx, "summarizer")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	backend := "local"
	if a.cfg.Remote.Enabled {
		backend = fmt.Sprintf("remote (%s, %s)", a.cfg.Remote.Provider, provider.PinnedModel(a.cfg.Remote.Provider))
	}

	_, _ = fmt.Fprintf(ioOut, "Backend:          %s\n", backend)
	_, _ = fmt.Fprintf(ioOut, "Local engine:     %s (%s)\n", a.cfg.Local.Engine, a.cfg.Local.Model)
	_, _ = fmt.Fprintf(ioOut, "Language model:   %s\n", local)
	_, _ = fmt.Fprintf(ioOut, "Summarizer:       %s\n", summarizer)
	_, _ = fmt.Fprintf(ioOut, "Storage area:     %s\n", a.cfg.Storage.Area)

	if a.cfg.Remote.Enabled && a.cfg.Remote.APIKey == "" {
		_, _ = fmt.Fprintln(ioOut, "\n  Note: remote is enabled but no API key is set.")
	}
	return nil
}

// probeErr reports a probe that was cut off by the status deadline. The
// prober maps that case to unavailable, which would misreport a slow engine.
func probeErr(ctx context.Context, facility string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("probing local %s: %w", facility, err)
	}
	return nil
}
