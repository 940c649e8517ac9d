package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending queue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(nil, func(eng *engine) error {
				if !eng.monitor.Online() {
					return fmt.Errorf("device is offline; queued work will sync when connectivity returns")
				}
				summary, err := eng.facade.Drain(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if summary.Analyses == 0 && summary.Expenses == 0 {
					fmt.Fprintln(out, "Nothing to sync")
					return nil
				}
				fmt.Fprintf(out, "Processed %d analysis request(s) and %d expense save(s): %d completed, %d applied, %d failed\n",
					summary.Analyses, summary.Expenses, summary.Completed, summary.Applied, summary.Failed)
				if summary.Requeued > 0 {
					fmt.Fprintf(out, "Requeued %d previously failed row(s)\n", summary.Requeued)
				}
				return nil
			})
		},
	}
}
