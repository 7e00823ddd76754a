package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/repl"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive study session over your notes",
	Long: `Start an interactive chat with Amphy. Each question is answered from
your saved notes, with cited note numbers listed under the reply.

Commands inside the chat:
  :notes        list saved notes
  :summarize    summarize all notes
  :rm <n>       remove a note

Type 'exit' or 'quit' to end the session. Ctrl+D also works.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	nb, store, err := a.openNotebook(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return repl.Run(cmd.Context(), repl.Deps{
		Sessions: a.factory,
		Prompter: a.facade,
		Notes:    nb,
		Config:   a.sessionConfig(),
	}, ioIn, ioOut)
}
