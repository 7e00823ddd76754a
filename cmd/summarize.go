package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/notes"
)

var summarizeAll bool

var summarizeCmd = &cobra.Command{
	Use:   "summarize [note number]",
	Short: "Summarize one saved note, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeAll, "all", false, "summarize every saved note together")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !summarizeAll {
		return fmt.Errorf("specify a note number or --all")
	}
	if len(args) == 1 && summarizeAll {
		return fmt.Errorf("a note number and --all cannot be combined")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), promptTimeout)
	defer cancel()

	nb, store, err := a.openNotebook(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	list, err := nb.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(ioOut, "No notes to summarize.")
		return nil
	}

	text := strings.Join(notes.Texts(list), "\n\n")
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(list) {
			return fmt.Errorf("note number must be between 1 and %d", len(list))
		}
		text = list[n-1].Text
	}

	s, err := a.createSession(ctx, a.sessionConfig())
	if err != nil || s == nil {
		return err
	}
	defer func() { _ = s.Close(ctx) }()

	summary, adv, err := a.facade.Summarize(ctx, s, text)
	if err != nil {
		return err
	}
	if adv != nil {
		printAdvisory(adv)
		return nil
	}

	_, _ = fmt.Fprintf(ioOut, "\n%s\n\n", strings.TrimSpace(summary))
	return nil
}
