package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"goattach/internal/app"
	"goattach/internal/journal"
)

var (
	statusFilters        app.ListFilters
	statusTimeoutSeconds int
	statusCounts         bool
)

func init() {
	rootCmd.AddCommand(cmdStatus)

	fs := cmdStatus.Flags()
	fs.StringVar(&socketPath, "socket", "", "Status socket of the running attacher")
	fs.StringSliceVar(&statusFilters.Outcomes, "outcome", nil, "Only show these outcomes (repeatable)")
	fs.StringSliceVar(&statusFilters.PIDs, "pid", nil, "Only show these pids (repeatable)")
	fs.StringSliceVar(&statusFilters.Users, "user", nil, "Only show JVMs of these users (repeatable)")
	fs.BoolVar(&statusFilters.FailedOnly, "failed", false, "Only show failed attach attempts")
	fs.StringVar(&statusFilters.TextSearch, "search", "", "Only show JVMs whose main class contains this text")
	fs.IntVarP(&statusFilters.Limit, "limit", "n", 0, "Show at most this many of the newest entries")
	fs.BoolVar(&statusCounts, "counts", false, "Print lifetime outcome counters instead of entries")
	fs.IntVarP(&statusTimeoutSeconds, "timeout", "t", 3, "Timeout in seconds for contacting the attacher")
}

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Show the recent attach outcomes of a running attacher",
	Long:  `Fetches the outcome journal of an attacher started with --serve-status.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := controller()
		timeout := time.Duration(statusTimeoutSeconds) * time.Second
		out := cmd.OutOrStdout()

		st, err := ctrl.Status()
		if err != nil {
			return err
		}
		if !st.Running {
			return fmt.Errorf("no attacher is serving status on %s", st.Socket)
		}

		if statusCounts {
			counts, err := ctrl.Counts(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			for _, o := range journal.Outcomes {
				fmt.Fprintf(out, "%-18s %d\n", o, counts[o])
			}
			return nil
		}

		entries, err := ctrl.Outcomes(cmd.Context(), app.ListParams{Filters: statusFilters, Timeout: timeout})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No outcomes recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIME\tPID\tUSER\tOUTCOME\tMAIN\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.At.Local().Format(time.TimeOnly), e.PID, dash(e.User), e.Outcome, dash(e.Main), dash(e.Detail))
		}
		return tw.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
