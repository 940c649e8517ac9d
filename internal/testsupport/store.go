package testsupport

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"pennysync/internal/config"
	"pennysync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddAnalysisRequest enqueues an analysis request for tests.
func AddAnalysisRequest(t testing.TB, store *queue.Store, userID, text string) *queue.AnalysisRequest {
	t.Helper()

	item, err := store.AddAnalysisRequest(context.Background(), queue.NewAnalysisRequest{
		UserID: userID,
		Text:   text,
	})
	if err != nil {
		t.Fatalf("store.AddAnalysisRequest: %v", err)
	}
	return item
}

// AddExpenseSave enqueues an expense-save intent for tests.
func AddExpenseSave(t testing.TB, store *queue.Store, userID, vendor string, amount float64) *queue.ExpenseSave {
	t.Helper()

	item, err := store.AddExpenseSave(context.Background(), queue.NewExpenseSave{
		UserID:   userID,
		Vendor:   vendor,
		Amount:   decimal.NewFromFloat(amount),
		Date:     "2024-11-01",
		Category: "Other",
	})
	if err != nil {
		t.Fatalf("store.AddExpenseSave: %v", err)
	}
	return item
}
