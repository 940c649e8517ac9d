package syncer_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"pennysync/internal/config"
	"pennysync/internal/queue"
	"pennysync/internal/syncer"
)

func sampleSave(userID string) queue.NewExpenseSave {
	return queue.NewExpenseSave{
		UserID:   userID,
		Vendor:   "Shell",
		Amount:   decimal.NewFromInt(52),
		Date:     "2024-11-01",
		Category: "Transportation",
	}
}

func TestQueueExpenseAnalysisReturnsIncreasingIDs(t *testing.T) {
	h := newHarness(t, false)

	ctx := context.Background()
	var last int64
	for i := 0; i < 3; i++ {
		id, err := h.facade.QueueExpenseAnalysis(ctx, h.cfg.Sync.UserID, "coffee", "")
		if err != nil {
			t.Fatalf("QueueExpenseAnalysis failed: %v", err)
		}
		if id <= last {
			t.Fatalf("expected strictly increasing ids, got %d after %d", id, last)
		}
		last = id
	}
}

func TestOfflineAnalyzeEnqueuesImmediately(t *testing.T) {
	h := newHarness(t, false)

	before := h.pendingCount(t)
	outcome := h.facade.AnalyzeExpense(context.Background(), h.cfg.Sync.UserID, "coffee $5", "")
	if outcome.Success {
		t.Fatal("offline analyze must not report success")
	}
	if !outcome.Queued || outcome.QueuedID == 0 {
		t.Fatalf("expected queued outcome, got %+v", outcome)
	}
	if !errors.Is(outcome.Err, syncer.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", outcome.Err)
	}
	if got := h.pendingCount(t); got != before+1 {
		t.Fatalf("expected pending count %d, got %d", before+1, got)
	}
	if h.stub.analysisHits.Load() != 0 {
		t.Fatal("offline analyze must not touch the network")
	}
}

func TestOfflineSaveEnqueuesImmediately(t *testing.T) {
	h := newHarness(t, false)

	outcome := h.facade.SaveExpense(context.Background(), sampleSave(h.cfg.Sync.UserID))
	if outcome.Success || !outcome.Queued {
		t.Fatalf("expected queued outcome, got %+v", outcome)
	}
	if !errors.Is(outcome.Err, syncer.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", outcome.Err)
	}
	if got := h.pendingCount(t); got != 1 {
		t.Fatalf("expected pending count 1, got %d", got)
	}
}

func TestOnlineAnalyzeReturnsData(t *testing.T) {
	h := newHarness(t, true)

	outcome := h.facade.AnalyzeExpense(context.Background(), h.cfg.Sync.UserID, "coffee $5", "")
	if !outcome.Success || outcome.Err != nil {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(outcome.Data) != 1 || outcome.Data[0].Vendor != "Cafe" {
		t.Fatalf("unexpected data: %+v", outcome.Data)
	}
	if got := h.pendingCount(t); got != 0 {
		t.Fatalf("successful direct call must not enqueue, pending=%d", got)
	}
}

func TestOnlineAnalyzeFailureDropsByDefault(t *testing.T) {
	h := newHarness(t, true)
	h.stub.analysisStatus.Store(http.StatusInternalServerError)

	outcome := h.facade.AnalyzeExpense(context.Background(), h.cfg.Sync.UserID, "coffee", "")
	if outcome.Success || outcome.Queued {
		t.Fatalf("expected dropped failure, got %+v", outcome)
	}
	if outcome.Err == nil {
		t.Fatal("expected error on dropped failure")
	}
	if got := h.pendingCount(t); got != 0 {
		t.Fatalf("default analysis policy must not enqueue, pending=%d", got)
	}
}

func TestOnlineSaveFailureQueuesByDefault(t *testing.T) {
	h := newHarness(t, true)
	h.stub.expenseStatus.Store(http.StatusInternalServerError)

	outcome := h.facade.SaveExpense(context.Background(), sampleSave("u1"))
	if outcome.Success {
		t.Fatal("expected failure outcome")
	}
	if !outcome.Queued || !errors.Is(outcome.Err, syncer.ErrQueuedForSync) {
		t.Fatalf("expected queued-for-sync outcome, got %+v", outcome)
	}

	rows, err := h.store.ExpenseSavesByUserAndStatus(context.Background(), "u1", queue.StatusPending)
	if err != nil {
		t.Fatalf("ExpenseSavesByUserAndStatus failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Vendor != "Shell" {
		t.Fatalf("expected pending expense row for u1, got %#v", rows)
	}
}

func TestAnalysisQueuePolicyOverride(t *testing.T) {
	h := newHarness(t, true)
	h.cfg.Sync.AnalysisFailurePolicy = config.PolicyQueue
	h.stub.analysisStatus.Store(http.StatusInternalServerError)

	outcome := h.facade.AnalyzeExpense(context.Background(), h.cfg.Sync.UserID, "coffee", "")
	if !outcome.Queued || !errors.Is(outcome.Err, syncer.ErrQueuedForSync) {
		t.Fatalf("expected queued outcome under queue policy, got %+v", outcome)
	}
	if got := h.pendingCount(t); got != 1 {
		t.Fatalf("expected pending count 1, got %d", got)
	}
}

func TestSaveDropPolicyOverride(t *testing.T) {
	h := newHarness(t, true)
	h.cfg.Sync.SaveFailurePolicy = config.PolicyDrop
	h.stub.expenseStatus.Store(http.StatusInternalServerError)

	outcome := h.facade.SaveExpense(context.Background(), sampleSave(h.cfg.Sync.UserID))
	if outcome.Queued {
		t.Fatalf("drop policy must not enqueue, got %+v", outcome)
	}
	if got := h.pendingCount(t); got != 0 {
		t.Fatalf("expected pending count 0, got %d", got)
	}
}

func TestFacadeDrainClearsOfflineBacklog(t *testing.T) {
	h := newHarness(t, false)

	h.facade.SaveExpense(context.Background(), sampleSave(h.cfg.Sync.UserID))
	h.facade.AnalyzeExpense(context.Background(), h.cfg.Sync.UserID, "coffee", "")

	h.source.Set(true)
	summary, err := h.facade.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if summary.Completed != 1 || summary.Applied != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := h.pendingCount(t); got != 0 {
		t.Fatalf("expected empty backlog, got %d", got)
	}
}
