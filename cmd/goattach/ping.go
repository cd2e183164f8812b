package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdPing)
}

var pingTimeoutSeconds int

func init() {
	cmdPing.Flags().IntVarP(&pingTimeoutSeconds, "timeout", "t", 2, "Timeout in seconds for the status ping")
	cmdPing.Flags().StringVar(&socketPath, "socket", "", "Status socket of the running attacher")
}

// `goattach ping` checks that a continuous attacher is serving status and
// prints "pong".
var cmdPing = &cobra.Command{
	Use:   "ping",
	Short: "Check that a running attacher answers on the status socket (expects 'pong')",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := controller().Ping(cmd.Context(), time.Duration(pingTimeoutSeconds)*time.Second)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}
