package runlock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAdvisoryLocker locks reports with session-scoped Postgres advisory locks.
// Each held lock pins one pooled connection; the lock disappears with the session.
type PGAdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewPGAdvisoryLocker creates a PGAdvisoryLocker.
func NewPGAdvisoryLocker(pool *pgxpool.Pool) *PGAdvisoryLocker {
	return &PGAdvisoryLocker{pool: pool}
}

// Acquire tries pg_try_advisory_lock for the report's key.
func (l *PGAdvisoryLocker) Acquire(ctx context.Context, report string) (Release, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for lock: %w", err)
	}

	key := advisoryKey(report)
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock for %s: %w", report, err)
	}
	if !acquired {
		conn.Release()
		return nil, ErrRunInProgress
	}

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			defer conn.Release()
			if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
				releaseErr = fmt.Errorf("advisory unlock for %s: %w", report, err)
			}
		})
		return releaseErr
	}, nil
}

// advisoryKey derives a stable lock id from the report name.
func advisoryKey(report string) int64 {
	h := fnv.New64a()
	h.Write([]byte("report-run:" + report))
	return int64(h.Sum64())
}

var _ Locker = (*PGAdvisoryLocker)(nil)
