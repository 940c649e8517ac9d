package main

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"pennysync/internal/queue"
)

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(amount decimal.Decimal) string {
	return amountPrinter.Sprintf("$%.2f", amount.InexactFloat64())
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func analysisInputSummary(item *queue.AnalysisRequest) string {
	if item.Text != "" {
		return truncate(item.Text, 40)
	}
	if item.ImageBase64 != "" {
		return "(image)"
	}
	return ""
}

func buildAnalysisRows(items []*queue.AnalysisRequest) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			analysisInputSummary(item),
			string(item.Status),
			strconv.Itoa(item.RetryCount),
			formatTimestamp(item.Timestamp),
			truncate(item.ErrorMessage, 48),
		})
	}
	return rows
}

func buildExpenseRows(items []*queue.ExpenseSave) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			truncate(item.Vendor, 24),
			formatAmount(item.Amount),
			item.Date,
			item.Category,
			string(item.Status),
			strconv.Itoa(item.RetryCount),
			truncate(item.ErrorMessage, 48),
		})
	}
	return rows
}
