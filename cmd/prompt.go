package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const promptTimeout = 2 * time.Minute

var promptCmd = &cobra.Command{
	Use:   "prompt <text...>",
	Short: "Send one prompt to the configured backend",
	Long: `Send one prompt and print the reply. Local sessions have a prompt budget;
text over the budget is printed back unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), promptTimeout)
	defer cancel()

	s, err := a.createSession(ctx, a.sessionConfig())
	if err != nil || s == nil {
		return err
	}
	defer func() { _ = s.Close(ctx) }()

	reply, err := a.facade.Prompt(ctx, s, strings.Join(args, " "))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(ioOut, "\n%s\n\n", strings.TrimSpace(reply))
	return nil
}
