package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"pennysync/internal/config"
	"pennysync/internal/logging"
	"pennysync/internal/network"
	"pennysync/internal/queue"
	"pennysync/internal/syncer"
)

// Daemon runs the background sync engine and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	monitor *network.Monitor
	facade  *syncer.Facade

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	QueueDBPath  string
	LockFilePath string
	Counters     syncer.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, monitor *network.Monitor, facade *syncer.Facade, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || monitor == nil || facade == nil {
		return nil, errors.New("daemon requires config, store, monitor, and facade")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "pennysyncd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		monitor:  monitor,
		facade:   facade,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, launches the network monitor and the
// reactive counters, and begins draining the queue whenever the device is
// online.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pennysync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start network monitor: %w", err)
	}
	if err := d.facade.Start(runCtx); err != nil {
		d.monitor.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start sync counters: %w", err)
	}

	transitions, cancelTransitions := d.monitor.Subscribe()
	changes, cancelChanges := d.store.Changes().Subscribe()

	d.cancel = func() {
		cancelTransitions()
		cancelChanges()
		cancel()
	}
	d.done = make(chan struct{})
	d.running.Store(true)

	go d.run(runCtx, transitions, changes)

	d.logger.Info("pennysync daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("online", d.monitor.Online()),
	)
	return nil
}

// Stop ends background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.facade.Stop()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pennysync daemon stopped")
}

// Close releases resources held by the daemon, including the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the status command.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Counters:     d.facade.Counters().Snapshot(),
	}
}

// run drains the queue on startup (when online), after every offline to
// online transition, and after every freshly queued row while online.
func (d *Daemon) run(ctx context.Context, transitions <-chan bool, changes <-chan queue.Change) {
	defer close(d.done)

	if d.monitor.Online() {
		d.drain(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-transitions:
			if !ok {
				return
			}
			if online {
				d.drain(ctx, "reconnect")
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Op == queue.OpInsert && change.Status == queue.StatusPending && d.monitor.Online() {
				d.drain(ctx, "enqueue")
			}
		}
	}
}

func (d *Daemon) drain(ctx context.Context, trigger string) {
	summary, err := d.facade.Drain(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrDrainInProgress) || errors.Is(err, context.Canceled) {
			return
		}
		d.logger.Error("drain failed",
			logging.Error(err),
			logging.String("trigger", trigger),
		)
		return
	}
	if summary.Analyses == 0 && summary.Expenses == 0 {
		return
	}
	d.logger.Info("drain finished",
		logging.String("trigger", trigger),
		logging.String(logging.FieldDrainID, summary.DrainID),
		logging.Int("completed", summary.Completed),
		logging.Int("applied", summary.Applied),
		logging.Int("failed", summary.Failed),
	)
}
