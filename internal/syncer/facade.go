package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pennysync/internal/config"
	"pennysync/internal/logging"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
)

// ErrOffline is returned by the direct entry points when the device is
// offline and the intent was queued instead.
var ErrOffline = errors.New("offline, will process later")

// ErrQueuedForSync is returned by SaveExpense when the direct call failed
// and the intent was queued for the next drain.
var ErrQueuedForSync = errors.New("queued for sync")

// Facade is the public surface of the sync engine: two direct "try now,
// fall back" entry points, two explicit enqueue primitives, and the live
// counters the UI renders.
type Facade struct {
	cfg      *config.Config
	store    *queue.Store
	monitor  *network.Monitor
	orch     *Orchestrator
	analysis AnalysisService
	expenses ExpenseService
	logger   *slog.Logger
	counters *Counters
}

// NewFacade wires the facade over an already constructed store, monitor,
// orchestrator, and remote clients.
func NewFacade(cfg *config.Config, store *queue.Store, monitor *network.Monitor, orch *Orchestrator, analysisSvc AnalysisService, expenseSvc ExpenseService, logger *slog.Logger) *Facade {
	f := &Facade{
		cfg:      cfg,
		store:    store,
		monitor:  monitor,
		orch:     orch,
		analysis: analysisSvc,
		expenses: expenseSvc,
		logger:   logging.NewComponentLogger(logger, "sync-facade"),
	}
	f.counters = newCounters(store, monitor, orch, cfg.Sync.UserID)
	return f
}

// Start launches the reactive counters.
func (f *Facade) Start(ctx context.Context) error {
	return f.counters.Start(ctx)
}

// Stop tears the counters down.
func (f *Facade) Stop() {
	f.counters.Stop()
}

// Counters exposes the live pending-count / syncing / online signals.
func (f *Facade) Counters() *Counters {
	return f.counters
}

// QueueExpenseAnalysis enqueues an analysis intent without touching the
// network and returns the assigned id.
func (f *Facade) QueueExpenseAnalysis(ctx context.Context, userID, text, imageBase64 string) (int64, error) {
	item, err := f.store.AddAnalysisRequest(ctx, queue.NewAnalysisRequest{
		UserID:      userID,
		Text:        text,
		ImageBase64: imageBase64,
	})
	if err != nil {
		return 0, fmt.Errorf("queue expense analysis: %w", err)
	}
	return item.ID, nil
}

// QueueExpenseSave enqueues an expense-save intent without touching the
// network and returns the assigned id.
func (f *Facade) QueueExpenseSave(ctx context.Context, expense queue.NewExpenseSave) (int64, error) {
	item, err := f.store.AddExpenseSave(ctx, expense)
	if err != nil {
		return 0, fmt.Errorf("queue expense save: %w", err)
	}
	return item.ID, nil
}

// AnalyzeOutcome is the result of a direct analysis attempt.
type AnalyzeOutcome struct {
	Success      bool
	Data         []analysis.ExtractedExpense
	MultiExpense bool
	// Queued reports that the intent was enqueued instead of (or after)
	// the direct attempt; QueuedID is the assigned row id.
	Queued   bool
	QueuedID int64
	Err      error
}

// AnalyzeExpense tries the remote analysis endpoint directly when online.
// On online failure the configured policy decides between dropping (the
// default: the caller retries or discards) and queueing. Offline, the
// intent is queued immediately.
func (f *Facade) AnalyzeExpense(ctx context.Context, userID, text, imageBase64 string) AnalyzeOutcome {
	if !f.monitor.Online() {
		return f.queueAnalysisOutcome(ctx, userID, text, imageBase64)
	}

	result, err := f.analysis.Analyze(ctx, analysis.Request{Text: text, ImageBase64: imageBase64})
	if err == nil {
		return AnalyzeOutcome{Success: true, Data: result.Data, MultiExpense: result.MultiExpense}
	}

	if f.cfg.Sync.AnalysisFailurePolicy == config.PolicyQueue {
		outcome := f.queueAnalysisOutcome(ctx, userID, text, imageBase64)
		if outcome.Err == nil || errors.Is(outcome.Err, ErrOffline) {
			outcome.Err = fmt.Errorf("%w: %w", ErrQueuedForSync, err)
		}
		return outcome
	}

	f.logger.Warn("direct analysis failed, not queued",
		logging.Error(err),
		logging.String(logging.FieldEventType, "direct_analysis_dropped"),
		logging.String(logging.FieldUserID, userID),
	)
	return AnalyzeOutcome{Err: err}
}

func (f *Facade) queueAnalysisOutcome(ctx context.Context, userID, text, imageBase64 string) AnalyzeOutcome {
	id, err := f.QueueExpenseAnalysis(ctx, userID, text, imageBase64)
	if err != nil {
		return AnalyzeOutcome{Err: err}
	}
	return AnalyzeOutcome{Queued: true, QueuedID: id, Err: ErrOffline}
}

// SaveOutcome is the result of a direct expense-save attempt.
type SaveOutcome struct {
	Success  bool
	RemoteID string
	Queued   bool
	QueuedID int64
	Err      error
}

// SaveExpense tries the remote expense-creation endpoint directly when
// online. Unlike analysis, the default online-failure policy queues the
// intent before returning, so a save is never silently dropped. Offline,
// the intent is queued immediately.
func (f *Facade) SaveExpense(ctx context.Context, expense queue.NewExpenseSave) SaveOutcome {
	if !f.monitor.Online() {
		return f.queueSaveOutcome(ctx, expense, ErrOffline)
	}

	remoteID, err := f.expenses.Create(ctx, expenses.Expense{
		Vendor:      expense.Vendor,
		Amount:      expense.Amount,
		Date:        expense.Date,
		Category:    expense.Category,
		Description: expense.Description,
		UserID:      expense.UserID,
		GroupID:     expense.GroupID,
		ReceiptURL:  expense.ReceiptURL,
		ReceiptPath: expense.ReceiptPath,
	})
	if err == nil {
		return SaveOutcome{Success: true, RemoteID: remoteID}
	}

	if f.cfg.Sync.SaveFailurePolicy == config.PolicyDrop {
		f.logger.Warn("direct expense save failed, not queued",
			logging.Error(err),
			logging.String(logging.FieldEventType, "direct_save_dropped"),
			logging.String(logging.FieldUserID, expense.UserID),
		)
		return SaveOutcome{Err: err}
	}

	return f.queueSaveOutcome(ctx, expense, fmt.Errorf("%w: %w", ErrQueuedForSync, err))
}

func (f *Facade) queueSaveOutcome(ctx context.Context, expense queue.NewExpenseSave, cause error) SaveOutcome {
	id, err := f.QueueExpenseSave(ctx, expense)
	if err != nil {
		return SaveOutcome{Err: err}
	}
	return SaveOutcome{Queued: true, QueuedID: id, Err: cause}
}

// Drain runs one drain pass for the facade's configured user.
func (f *Facade) Drain(ctx context.Context) (DrainSummary, error) {
	return f.orch.Drain(ctx, f.cfg.Sync.UserID)
}
