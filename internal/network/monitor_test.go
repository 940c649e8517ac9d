package network_test

import (
	"context"
	"testing"
	"time"

	"pennysync/internal/network"
)

func waitForState(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		if got != want {
			t.Fatalf("expected transition to %v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transition to %v", want)
	}
}

func TestMonitorReportsInitialState(t *testing.T) {
	source := network.NewManualSource(true)
	monitor := network.NewMonitor(nil, source)

	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer monitor.Stop()

	if !monitor.Online() {
		t.Fatal("expected monitor to start online")
	}
}

func TestMonitorFansOutTransitions(t *testing.T) {
	source := network.NewManualSource(false)
	monitor := network.NewMonitor(nil, source)

	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer monitor.Stop()

	ch, cancel := monitor.Subscribe()
	defer cancel()

	source.Set(true)
	waitForState(t, ch, true)
	if !monitor.Online() {
		t.Fatal("expected Online() to be true after transition")
	}

	source.Set(false)
	waitForState(t, ch, false)
}

func TestMonitorSuppressesSameStateEvents(t *testing.T) {
	source := network.NewManualSource(true)
	monitor := network.NewMonitor(nil, source)

	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer monitor.Stop()

	ch, cancel := monitor.Subscribe()
	defer cancel()

	source.Set(true)
	source.Set(true)

	select {
	case state := <-ch:
		t.Fatalf("expected no event for same-state signal, got %v", state)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopClosesSubscribers(t *testing.T) {
	source := network.NewManualSource(true)
	monitor := network.NewMonitor(nil, source)

	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ch, _ := monitor.Subscribe()

	monitor.Stop()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed without a value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber channel to close")
	}
}
