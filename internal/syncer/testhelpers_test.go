package syncer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"pennysync/internal/config"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
	"pennysync/internal/syncer"
	"pennysync/internal/testsupport"
)

// remoteStub fakes the two remote endpoints and counts hits.
type remoteStub struct {
	analysisServer *httptest.Server
	expensesServer *httptest.Server

	analysisHits atomic.Int64
	expenseHits  atomic.Int64

	analysisStatus atomic.Int64
	expenseStatus  atomic.Int64

	// gate, when set, blocks every handler until released.
	gate chan struct{}
}

func newRemoteStub(t *testing.T) *remoteStub {
	t.Helper()

	stub := &remoteStub{}
	stub.analysisStatus.Store(http.StatusOK)
	stub.expenseStatus.Store(http.StatusOK)

	stub.analysisServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.analysisHits.Add(1)
		stub.waitGate()
		status := int(stub.analysisStatus.Load())
		if status != http.StatusOK {
			http.Error(w, "analysis unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"vendor":"Cafe","amount":5,"date":"2024-11-01","category":"Dining"}}`))
	}))
	t.Cleanup(stub.analysisServer.Close)

	stub.expensesServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.expenseHits.Add(1)
		stub.waitGate()
		status := int(stub.expenseStatus.Load())
		if status != http.StatusOK {
			http.Error(w, "write failed", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1"}`))
	}))
	t.Cleanup(stub.expensesServer.Close)

	return stub
}

func (s *remoteStub) waitGate() {
	if s.gate != nil {
		<-s.gate
	}
}

// harness bundles a fully wired sync engine over stubbed endpoints.
type harness struct {
	cfg     *config.Config
	store   *queue.Store
	source  *network.ManualSource
	monitor *network.Monitor
	orch    *syncer.Orchestrator
	facade  *syncer.Facade
	stub    *remoteStub
}

func newHarness(t *testing.T, online bool, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	stub := newRemoteStub(t)
	opts = append([]testsupport.ConfigOption{
		testsupport.WithEndpoints(stub.analysisServer.URL, stub.expensesServer.URL),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	source := network.NewManualSource(online)
	monitor := network.NewMonitor(nil, source)
	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("monitor.Start: %v", err)
	}
	t.Cleanup(monitor.Stop)

	analysisClient := analysis.NewClient(cfg.Endpoints.AnalysisURL)
	expensesClient := expenses.NewClient(cfg.Endpoints.ExpensesURL)
	orch := syncer.NewOrchestrator(cfg, store, analysisClient, expensesClient, nil)
	facade := syncer.NewFacade(cfg, store, monitor, orch, analysisClient, expensesClient, nil)

	return &harness{
		cfg:     cfg,
		store:   store,
		source:  source,
		monitor: monitor,
		orch:    orch,
		facade:  facade,
		stub:    stub,
	}
}

func (h *harness) pendingCount(t *testing.T) int {
	t.Helper()
	count, err := h.store.PendingCount(context.Background(), h.cfg.Sync.UserID)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	return count
}
