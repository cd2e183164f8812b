package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"goattach/internal/tui"
)

func init() {
	rootCmd.AddCommand(cmdTUI)
	cmdTUI.Flags().StringVar(&socketPath, "socket", "", "Status socket of the running attacher")
}

var cmdTUI = &cobra.Command{
	Use:   "tui",
	Short: "Watch the attach outcomes of a running attacher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tui.Run(controller()); err != nil {
			return fmt.Errorf("tui exited with error: %w", err)
		}
		return nil
	},
}
