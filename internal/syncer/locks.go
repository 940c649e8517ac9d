package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDrainInProgress is returned when the per-user drain lock cannot be
// acquired within the configured timeout.
var ErrDrainInProgress = errors.New("drain already in progress")

// LockHolder describes the drain currently holding a user's lock. Exposed
// for diagnostics so a hung drain is visible rather than silent.
type LockHolder struct {
	DrainID    string
	AcquiredAt time.Time
}

type userLock struct {
	sem    chan struct{}
	mu     sync.Mutex
	holder *LockHolder
}

// userLocks serializes drains per user. Unlike an advisory boolean, the
// acquire has a bounded wait, so a stuck drain delays later drains instead
// of silently skipping them forever.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lockFor(userID string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{sem: make(chan struct{}, 1)}
		l.locks[userID] = lock
	}
	return lock
}

// acquire takes the user's lock, waiting up to timeout. On success it
// returns a release function. On timeout it returns ErrDrainInProgress
// annotated with the current holder.
func (l *userLocks) acquire(ctx context.Context, userID, drainID string, timeout time.Duration) (func(), error) {
	lock := l.lockFor(userID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		if holder, ok := l.Holder(userID); ok {
			return nil, fmt.Errorf("%w: held by drain %s since %s",
				ErrDrainInProgress, holder.DrainID, holder.AcquiredAt.Format(time.RFC3339))
		}
		return nil, ErrDrainInProgress
	}

	lock.mu.Lock()
	lock.holder = &LockHolder{DrainID: drainID, AcquiredAt: time.Now().UTC()}
	lock.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			lock.mu.Lock()
			lock.holder = nil
			lock.mu.Unlock()
			<-lock.sem
		})
	}
	return release, nil
}

// Holder reports the drain currently holding a user's lock, if any.
func (l *userLocks) Holder(userID string) (LockHolder, bool) {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	l.mu.Unlock()
	if !ok {
		return LockHolder{}, false
	}
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.holder == nil {
		return LockHolder{}, false
	}
	return *lock.holder, true
}
