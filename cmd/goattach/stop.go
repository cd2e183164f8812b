package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopForce bool

func init() {
	rootCmd.AddCommand(cmdStop)
	cmdStop.Flags().StringVar(&socketPath, "socket", "", "Status socket of the running attacher")
	cmdStop.Flags().BoolVarP(&stopForce, "force", "f", false, "Send SIGKILL if the attacher ignores SIGTERM")
}

var cmdStop = &cobra.Command{
	Use:   "stop",
	Short: "Stop a continuous attacher started with --serve-status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := controller()
		st, err := ctrl.Status()
		if err != nil {
			return err
		}
		if !st.Running {
			fmt.Fprintln(cmd.OutOrStdout(), "No attacher is running")
			return nil
		}
		if err := ctrl.StopDaemon(stopForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped attacher (pid %d)\n", st.PID)
		return nil
	},
}
