package queue_test

import (
	"context"
	"testing"
	"time"

	"pennysync/internal/queue"
	"pennysync/internal/testsupport"
)

func waitForChange(t *testing.T, ch <-chan queue.Change) queue.Change {
	t.Helper()
	select {
	case change, ok := <-ch:
		if !ok {
			t.Fatal("change channel closed unexpectedly")
		}
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return queue.Change{}
}

func TestStorePublishesMutations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ch, cancel := store.Changes().Subscribe()
	defer cancel()

	ctx := context.Background()
	item := testsupport.AddExpenseSave(t, store, "u1", "Cafe", 5)

	change := waitForChange(t, ch)
	if change.Op != queue.OpInsert || change.Table != queue.TableExpenseSaves || change.ID != item.ID {
		t.Fatalf("unexpected insert event: %+v", change)
	}
	if change.UserID != "u1" || change.Status != queue.StatusPending {
		t.Fatalf("unexpected insert event payload: %+v", change)
	}

	failed := queue.StatusFailed
	if err := store.UpdateExpenseStatus(ctx, item.ID, queue.StatusUpdate{Status: &failed}); err != nil {
		t.Fatalf("UpdateExpenseStatus failed: %v", err)
	}
	change = waitForChange(t, ch)
	if change.Op != queue.OpUpdate || change.Status != queue.StatusFailed {
		t.Fatalf("unexpected update event: %+v", change)
	}

	if _, err := store.DeleteExpenseSave(ctx, item.ID); err != nil {
		t.Fatalf("DeleteExpenseSave failed: %v", err)
	}
	change = waitForChange(t, ch)
	if change.Op != queue.OpDelete || change.ID != item.ID {
		t.Fatalf("unexpected delete event: %+v", change)
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ch, cancel := store.Changes().Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	testsupport.AddAnalysisRequest(t, store, "u1", "after cancel")
}

func TestSlowSubscriberDoesNotBlockWrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, cancel := store.Changes().Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			testsupport.AddAnalysisRequest(t, store, "u1", "burst")
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("writes blocked behind a slow subscriber")
	}
}
