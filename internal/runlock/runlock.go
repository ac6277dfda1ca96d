// Package runlock guarantees at most one in-flight run per report.
package runlock

import (
	"context"
	"errors"
	"sync"
)

// ErrRunInProgress is returned by Acquire when the report is already locked.
var ErrRunInProgress = errors.New("a run of this report is already in progress")

// ErrLockLost is returned by Release when the lock expired or was taken over
// while the run was still in progress.
var ErrLockLost = errors.New("run lock was lost before release")

// Release frees a lock obtained from Acquire. Calling it more than once is a no-op.
type Release func(ctx context.Context) error

// Locker hands out per-report run locks. Acquire never blocks waiting for
// another holder; it fails fast with ErrRunInProgress.
type Locker interface {
	Acquire(ctx context.Context, report string) (Release, error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire locks report for this process.
func (l *LocalLocker) Acquire(_ context.Context, report string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[report]; busy {
		return nil, ErrRunInProgress
	}
	l.held[report] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, report)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// Held reports whether report is currently locked.
func (l *LocalLocker) Held(report string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[report]
	return busy
}

var _ Locker = (*LocalLocker)(nil)
