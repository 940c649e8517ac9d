package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pennysync/internal/config"
	"pennysync/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued analysis requests and expense saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				statuses, err := parseStatuses(listStatuses)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				analyses, err := store.AnalysisRequestsByUserAndStatus(cmd.Context(), cfg.Sync.UserID, statuses...)
				if err != nil {
					return err
				}
				saves, err := store.ExpenseSavesByUserAndStatus(cmd.Context(), cfg.Sync.UserID, statuses...)
				if err != nil {
					return err
				}
				if len(analyses) == 0 && len(saves) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				if len(analyses) > 0 {
					fmt.Fprintln(out, "Analysis requests")
					table := renderTable(
						[]string{"ID", "Input", "Status", "Retries", "Queued", "Error"},
						buildAnalysisRows(analyses),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
					)
					fmt.Fprintln(out, table)
				}
				if len(saves) > 0 {
					fmt.Fprintln(out, "Expense saves")
					table := renderTable(
						[]string{"ID", "Vendor", "Amount", "Date", "Category", "Status", "Retries", "Error"},
						buildExpenseRows(saves),
						[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					)
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, processing, completed, failed)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				rows := make([][]string, 0, 8)
				for _, table := range []queue.Table{queue.TableAnalysisRequests, queue.TableExpenseSaves} {
					stats, err := store.Stats(cmd.Context(), cfg.Sync.UserID, table)
					if err != nil {
						return err
					}
					for _, status := range queue.AllStatuses() {
						if count, ok := stats[status]; ok {
							rows = append(rows, []string{string(table), string(status), strconv.Itoa(count)})
						}
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Table", "Status", "Count"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var tableFlag string

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed rows back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				table, err := parseTableFlag(tableFlag)
				if err != nil {
					return err
				}
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}

				var total int64
				if table == "" {
					if len(ids) > 0 {
						return fmt.Errorf("specify --table when retrying individual ids")
					}
					for _, t := range []queue.Table{queue.TableAnalysisRequests, queue.TableExpenseSaves} {
						affected, err := store.RetryFailed(cmd.Context(), cfg.Sync.UserID, t)
						if err != nil {
							return err
						}
						total += affected
					}
				} else {
					total, err = store.RetryFailed(cmd.Context(), cfg.Sync.UserID, table, ids...)
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed row(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tableFlag, "table", "", "Restrict to one table (analysis or expenses)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed analysis rows (or failed rows with --failed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var removed int64
				var err error
				if clearFailed {
					removed, err = store.ClearFailed(cmd.Context(), cfg.Sync.UserID)
				} else {
					removed, err = store.ClearCompleted(cmd.Context(), cfg.Sync.UserID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d row(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed rows from both tables instead")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregated queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context(), cfg.Sync.UserID)
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(health.Total)},
					{"Pending", strconv.Itoa(health.Pending)},
					{"Processing", strconv.Itoa(health.Processing)},
					{"Completed", strconv.Itoa(health.Completed)},
					{"Failed", strconv.Itoa(health.Failed)},
				}
				table := renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseTableFlag(value string) (queue.Table, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return "", nil
	case "analysis", "analysis_requests":
		return queue.TableAnalysisRequests, nil
	case "expenses", "expense_saves":
		return queue.TableExpenseSaves, nil
	default:
		return "", fmt.Errorf("unknown table %q (use analysis or expenses)", value)
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
