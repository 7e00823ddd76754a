package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/executor"
	"github.com/hpkotak/amphy/internal/notes"
)

var (
	noteTab   string
	noteWatch bool
	noteYes   bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Save, list, and remove study notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: "Save a note",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNoteAdd,
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved notes grouped by source",
	Args:  cobra.NoArgs,
	RunE:  runNoteList,
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <note number>",
	Short: "Remove a saved note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteRm,
}

func init() {
	noteAddCmd.Flags().StringVar(&noteTab, "tab", "cli", "source label stored with the note")
	noteListCmd.Flags().BoolVar(&noteWatch, "watch", false, "keep running and reprint when notes change")
	noteRmCmd.Flags().BoolVarP(&noteYes, "yes", "y", false, "skip the confirmation prompt")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteRmCmd)
	rootCmd.AddCommand(noteCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	nb, store, err := a.openNotebook(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, pos, err := nb.Add(cmd.Context(), noteTab, strings.Join(args, " "))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ioOut, "Saved note %d from %s.\n", pos, n.Tab)
	return nil
}

func runNoteList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	nb, store, err := a.openNotebook(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if !noteWatch {
		list, err := nb.List(ctx)
		if err != nil {
			return err
		}
		printNotes(list)
		return nil
	}

	stop, err := nb.Watch(ctx, func(list []notes.Note) {
		printNotes(list)
		_, _ = fmt.Fprintln(ioOut, "--- watching for changes (Ctrl+C to stop)")
	})
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	return nil
}

// printNotes prints notes grouped by source. Numbers follow saved order so
// they can be passed to rm and summarize.
func printNotes(list []notes.Note) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(ioOut, "No notes yet. Add one with: amphy note add <text>")
		return
	}

	index := make(map[string]int, len(list))
	for i, n := range list {
		index[n.ID] = i + 1
	}
	for _, g := range notes.GroupByTab(list) {
		_, _ = fmt.Fprintf(ioOut, "%s\n", g.Tab)
		for _, n := range g.Notes {
			_, _ = fmt.Fprintf(ioOut, "  %d. %s\n", index[n.ID], n.Text)
		}
	}
}

func runNoteRm(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid note number %q", args[0])
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	nb, store, err := a.openNotebook(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if !noteYes && !executor.Confirm(fmt.Sprintf("Delete note %d?", n), false, ioIn, ioOut) {
		_, _ = fmt.Fprintln(ioOut, "Cancelled.")
		return nil
	}

	removed, err := nb.Delete(cmd.Context(), n-1)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ioOut, "Deleted: %s\n", removed.Text)
	return nil
}
