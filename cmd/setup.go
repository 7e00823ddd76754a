package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hpkotak/amphy/internal/setup"
)

var runSetup = setup.Run

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure amphy (first-time or reconfigure)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd.Context(), ioIn, ioOut)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
