package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(nil, func(eng *engine) error {
				health, err := eng.store.Health(cmd.Context(), eng.cfg.Sync.UserID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				networkKind := statusError
				networkMsg := "offline, new work will be queued"
				if eng.monitor.Online() {
					networkKind = statusOK
					networkMsg = "online"
				}
				pendingKind := statusOK
				if health.Pending > 0 {
					pendingKind = statusWarn
				}
				failedKind := statusOK
				if health.Failed > 0 {
					failedKind = statusWarn
				}

				fmt.Fprintln(out, renderStatusLine("Network", networkKind, networkMsg, colorize))
				fmt.Fprintln(out, renderStatusLine("Pending", pendingKind, fmt.Sprintf("%d row(s)", health.Pending), colorize))
				fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d row(s)", health.Failed), colorize))
				fmt.Fprintln(out, renderStatusLine("Queue DB", statusInfo, eng.store.Path(), colorize))
				return nil
			})
		},
	}
}
