package daemon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pennysync/internal/config"
	"pennysync/internal/daemon"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/services/analysis"
	"pennysync/internal/services/expenses"
	"pennysync/internal/syncer"
	"pennysync/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	store  *queue.Store
	source *network.ManualSource
	daemon *daemon.Daemon
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()

	analysisServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"vendor":"Cafe","amount":5,"date":"2024-11-01","category":"Dining"}}`))
	}))
	t.Cleanup(analysisServer.Close)
	expensesServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1"}`))
	}))
	t.Cleanup(expensesServer.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoints(analysisServer.URL, expensesServer.URL))
	store := testsupport.MustOpenStore(t, cfg)

	source := network.NewManualSource(online)
	monitor := network.NewMonitor(nil, source)

	analysisClient := analysis.NewClient(cfg.Endpoints.AnalysisURL)
	expensesClient := expenses.NewClient(cfg.Endpoints.ExpensesURL)
	orch := syncer.NewOrchestrator(cfg, store, analysisClient, expensesClient, nil)
	facade := syncer.NewFacade(cfg, store, monitor, orch, analysisClient, expensesClient, nil)

	d, err := daemon.New(cfg, store, monitor, facade, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	return &fixture{cfg: cfg, store: store, source: source, daemon: d}
}

func (f *fixture) waitPendingZero(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		count, err := f.store.PendingCount(context.Background(), f.cfg.Sync.UserID)
		if err != nil {
			t.Fatalf("PendingCount: %v", err)
		}
		if count == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the queue to drain")
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := f.daemon.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}

	// Second start should fail
	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.daemon.Stop()
	if f.daemon.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonDrainsBacklogAtStartup(t *testing.T) {
	f := newFixture(t, true)
	testsupport.AddAnalysisRequest(t, f.store, f.cfg.Sync.UserID, "coffee")
	testsupport.AddExpenseSave(t, f.store, f.cfg.Sync.UserID, "Shell", 52)

	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.waitPendingZero(t)
}

func TestDaemonDrainsOnReconnect(t *testing.T) {
	f := newFixture(t, false)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	testsupport.AddAnalysisRequest(t, f.store, f.cfg.Sync.UserID, "coffee")

	f.source.Set(true)
	f.waitPendingZero(t)
}

func TestDaemonDrainsFreshRowsWhileOnline(t *testing.T) {
	f := newFixture(t, true)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	testsupport.AddExpenseSave(t, f.store, f.cfg.Sync.UserID, "Shell", 52)
	f.waitPendingZero(t)
}

func TestDaemonLockBlocksSecondInstance(t *testing.T) {
	first := newFixture(t, false)
	if err := first.daemon.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	store2 := testsupport.MustOpenStore(t, first.cfg)
	source2 := network.NewManualSource(false)
	monitor2 := network.NewMonitor(nil, source2)
	analysisClient := analysis.NewClient(first.cfg.Endpoints.AnalysisURL)
	expensesClient := expenses.NewClient(first.cfg.Endpoints.ExpensesURL)
	orch2 := syncer.NewOrchestrator(first.cfg, store2, analysisClient, expensesClient, nil)
	facade2 := syncer.NewFacade(first.cfg, store2, monitor2, orch2, analysisClient, expensesClient, nil)

	second, err := daemon.New(first.cfg, store2, monitor2, facade2, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail to acquire the lock")
	}
}
