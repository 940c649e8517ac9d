package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pennysync/internal/queue"
	"pennysync/internal/syncer"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Extract expense details from text or a receipt image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) > 0 {
				text = strings.TrimSpace(args[0])
			}
			imageBase64 := ""
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read receipt image: %w", err)
				}
				imageBase64 = base64.StdEncoding.EncodeToString(data)
			}
			if text == "" && imageBase64 == "" {
				return fmt.Errorf("provide expense text or --image")
			}

			return ctx.withEngine(nil, func(eng *engine) error {
				outcome := eng.facade.AnalyzeExpense(cmd.Context(), eng.cfg.Sync.UserID, text, imageBase64)
				out := cmd.OutOrStdout()

				if outcome.Queued {
					fmt.Fprintf(out, "Queued analysis request #%d (%v)\n", outcome.QueuedID, queuedReason(outcome.Err))
					return nil
				}
				if !outcome.Success {
					return outcome.Err
				}

				rows := make([][]string, 0, len(outcome.Data))
				for _, expense := range outcome.Data {
					rows = append(rows, []string{
						expense.Vendor,
						formatAmount(expense.Amount),
						expense.Date,
						expense.Category,
						truncate(expense.Description, 40),
					})
				}
				table := renderTable(
					[]string{"Vendor", "Amount", "Date", "Category", "Description"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				if outcome.MultiExpense {
					fmt.Fprintln(out, "Multiple expenses detected")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a receipt image")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		vendor      string
		amount      string
		date        string
		category    string
		description string
		groupID     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save an expense, queueing it if the save cannot complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedAmount, err := decimal.NewFromString(strings.TrimSpace(amount))
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}

			return ctx.withEngine(nil, func(eng *engine) error {
				outcome := eng.facade.SaveExpense(cmd.Context(), queue.NewExpenseSave{
					UserID:      eng.cfg.Sync.UserID,
					Vendor:      vendor,
					Amount:      parsedAmount,
					Date:        date,
					Category:    category,
					Description: description,
					GroupID:     groupID,
				})
				out := cmd.OutOrStdout()

				if outcome.Success {
					fmt.Fprintf(out, "Saved expense (remote id %s)\n", outcome.RemoteID)
					return nil
				}
				if outcome.Queued {
					fmt.Fprintf(out, "Queued expense save #%d (%v)\n", outcome.QueuedID, queuedReason(outcome.Err))
					return nil
				}
				return outcome.Err
			})
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "Merchant or payee")
	cmd.Flags().StringVar(&amount, "amount", "", "Expense amount")
	cmd.Flags().StringVar(&date, "date", "", "Expense date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "Expense category")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&groupID, "group", "", "Optional shared-group id")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func queuedReason(err error) string {
	switch {
	case errors.Is(err, syncer.ErrOffline):
		return "offline, will process later"
	case errors.Is(err, syncer.ErrQueuedForSync):
		return "remote call failed, queued for sync"
	case err != nil:
		return err.Error()
	default:
		return "queued"
	}
}
