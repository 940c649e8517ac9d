package syncer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pennysync/internal/config"
	"pennysync/internal/logging"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
)

// AnalysisService is the remote analysis contract the orchestrator drains
// into.
type AnalysisService interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// ExpenseService is the remote expense-creation contract.
type ExpenseService interface {
	Create(ctx context.Context, expense expenses.Expense) (string, error)
}

// Orchestrator drains one user's pending rows into the remote system.
// Drains are mutually exclusive per user; rows are processed sequentially
// so a reconnect after a long offline period never bursts the remote
// endpoint.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	analysis AnalysisService
	expenses ExpenseService
	logger   *slog.Logger
	locks    *userLocks
	active   atomic.Int32
}

// NewOrchestrator constructs a drain orchestrator.
func NewOrchestrator(cfg *config.Config, store *queue.Store, analysisSvc AnalysisService, expenseSvc ExpenseService, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		analysis: analysisSvc,
		expenses: expenseSvc,
		logger:   logging.NewComponentLogger(logger, "sync-orchestrator"),
		locks:    newUserLocks(),
	}
}

// DrainSummary reports what one drain pass did.
type DrainSummary struct {
	DrainID   string
	Requeued  int64
	Analyses  int
	Expenses  int
	Completed int
	Applied   int
	Failed    int
}

// IsSyncing reports whether any drain is currently processing rows. A drain
// that finds nothing pending never flips this flag.
func (o *Orchestrator) IsSyncing() bool {
	return o.active.Load() > 0
}

// LockHolder exposes the drain currently holding a user's lock for
// diagnostics.
func (o *Orchestrator) LockHolder(userID string) (LockHolder, bool) {
	return o.locks.Holder(userID)
}

// Drain runs one pass over the user's pending rows. Each analysis request
// moves pending → processing → completed/failed; each expense save is
// applied remotely and deleted on success or marked failed. A row failure
// never aborts the pass.
func (o *Orchestrator) Drain(ctx context.Context, userID string) (DrainSummary, error) {
	drainID := uuid.NewString()
	summary := DrainSummary{DrainID: drainID}
	logger := o.logger.With(
		logging.String(logging.FieldDrainID, drainID),
		logging.String(logging.FieldUserID, userID),
	)

	release, err := o.locks.acquire(ctx, userID, drainID, o.lockTimeout())
	if err != nil {
		return summary, err
	}
	defer release()

	if o.cfg.Sync.RetryFailed {
		requeued, err := o.store.RequeueFailedBelowRetries(ctx, userID, o.cfg.Sync.MaxRetries)
		if err != nil {
			return summary, err
		}
		summary.Requeued = requeued
	}

	analyses, err := o.store.AnalysisRequestsByUserAndStatus(ctx, userID, queue.StatusPending)
	if err != nil {
		return summary, err
	}
	saves, err := o.store.ExpenseSavesByUserAndStatus(ctx, userID, queue.StatusPending)
	if err != nil {
		return summary, err
	}
	summary.Analyses = len(analyses)
	summary.Expenses = len(saves)

	if len(analyses) == 0 && len(saves) == 0 {
		return summary, nil
	}

	o.active.Add(1)
	defer o.active.Add(-1)

	logger.Info("drain started",
		logging.String(logging.FieldEventType, "drain_started"),
		logging.Int("analysis_requests", len(analyses)),
		logging.Int("expense_saves", len(saves)),
	)

	for _, item := range analyses {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if o.drainAnalysisRequest(ctx, logger, item) {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	for _, item := range saves {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if o.drainExpenseSave(ctx, logger, item) {
			summary.Applied++
		} else {
			summary.Failed++
		}
	}

	logger.Info("drain finished",
		logging.String(logging.FieldEventType, "drain_finished"),
		logging.Int("completed", summary.Completed),
		logging.Int("applied", summary.Applied),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

// drainAnalysisRequest marks the row processing before the remote call so a
// crash mid-call leaves it visibly stuck rather than silently re-pending.
func (o *Orchestrator) drainAnalysisRequest(ctx context.Context, logger *slog.Logger, item *queue.AnalysisRequest) bool {
	processing := queue.StatusProcessing
	if err := o.store.UpdateAnalysisStatus(ctx, item.ID, queue.StatusUpdate{Status: &processing}); err != nil {
		logger.Error("mark processing failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mark_processing_failed"),
			logging.Int64(logging.FieldItemID, item.ID),
		)
		return false
	}

	callCtx, cancel := o.callContext(ctx)
	_, err := o.analysis.Analyze(callCtx, analysis.Request{
		Text:        item.Text,
		ImageBase64: item.ImageBase64,
	})
	cancel()

	if err != nil {
		o.markAnalysisFailed(ctx, logger, item, err)
		return false
	}

	completed := queue.StatusCompleted
	if updateErr := o.store.UpdateAnalysisStatus(ctx, item.ID, queue.StatusUpdate{Status: &completed}); updateErr != nil {
		logger.Error("mark completed failed",
			logging.Error(updateErr),
			logging.String(logging.FieldEventType, "mark_completed_failed"),
			logging.Int64(logging.FieldItemID, item.ID),
		)
		return false
	}
	logger.Info("analysis request completed",
		logging.String(logging.FieldEventType, "analysis_completed"),
		logging.Int64(logging.FieldItemID, item.ID),
	)
	return true
}

func (o *Orchestrator) markAnalysisFailed(ctx context.Context, logger *slog.Logger, item *queue.AnalysisRequest, cause error) {
	failed := queue.StatusFailed
	retries := item.RetryCount + 1
	msg := cause.Error()
	if err := o.store.UpdateAnalysisStatus(ctx, item.ID, queue.StatusUpdate{
		Status:     &failed,
		RetryCount: &retries,
		Error:      &msg,
	}); err != nil {
		logger.Error("mark failed failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mark_failed_failed"),
			logging.Int64(logging.FieldItemID, item.ID),
		)
		return
	}
	logger.Warn("analysis request failed",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "analysis_failed"),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("retry_count", retries),
	)
}

func (o *Orchestrator) drainExpenseSave(ctx context.Context, logger *slog.Logger, item *queue.ExpenseSave) bool {
	callCtx, cancel := o.callContext(ctx)
	_, err := o.expenses.Create(callCtx, expenses.Expense{
		Vendor:      item.Vendor,
		Amount:      item.Amount,
		Date:        item.Date,
		Category:    item.Category,
		Description: item.Description,
		UserID:      item.UserID,
		GroupID:     item.GroupID,
		ReceiptURL:  item.ReceiptURL,
		ReceiptPath: item.ReceiptPath,
	})
	cancel()

	if err != nil {
		failed := queue.StatusFailed
		retries := item.RetryCount + 1
		msg := err.Error()
		if updateErr := o.store.UpdateExpenseStatus(ctx, item.ID, queue.StatusUpdate{
			Status:     &failed,
			RetryCount: &retries,
			Error:      &msg,
		}); updateErr != nil {
			logger.Error("mark failed failed",
				logging.Error(updateErr),
				logging.String(logging.FieldEventType, "mark_failed_failed"),
				logging.Int64(logging.FieldItemID, item.ID),
			)
			return false
		}
		logger.Warn("expense save failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "expense_save_failed"),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int("retry_count", retries),
		)
		return false
	}

	if _, err := o.store.DeleteExpenseSave(ctx, item.ID); err != nil {
		logger.Error("delete applied expense failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "delete_applied_failed"),
			logging.Int64(logging.FieldItemID, item.ID),
		)
		return false
	}
	logger.Info("expense save applied",
		logging.String(logging.FieldEventType, "expense_applied"),
		logging.Int64(logging.FieldItemID, item.ID),
	)
	return true
}

func (o *Orchestrator) lockTimeout() time.Duration {
	return time.Duration(o.cfg.Sync.DrainLockTimeout) * time.Second
}

// callContext bounds a single remote call. A zero request_timeout keeps the
// parent context untouched.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Endpoints.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(o.cfg.Endpoints.RequestTimeout)*time.Second)
}
