package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"report-assembler/internal/logging"
)

// RedisLocker locks reports across processes with a Redis key per report.
// The key carries a TTL so a crashed holder cannot block a report forever;
// while held, the lock is refreshed every TTL/2.
type RedisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

// NewRedisLocker creates a RedisLocker. A zero ttl defaults to 30 seconds.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		prefix: "lock:report-run:",
		logger: logging.Discard(),
	}
}

// WithLogger sets the logger for refresh failures.
func (l *RedisLocker) WithLogger(logger logrus.FieldLogger) *RedisLocker {
	l.logger = logging.OrDiscard(logger)
	return l
}

// Acquire obtains the report's Redis lock. If the key expires or is taken
// over before Release, Release returns an error wrapping ErrLockLost.
func (l *RedisLocker) Acquire(ctx context.Context, report string) (Release, error) {
	lock, err := l.locker.Obtain(ctx, l.prefix+report, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock for %s: %w", report, err)
	}

	h := &redisHold{lock: lock, stop: make(chan struct{}), done: make(chan struct{})}
	go l.keepAlive(h, report)

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			close(h.stop)
			<-h.done
			releaseErr = h.release(ctx, report)
		})
		return releaseErr
	}, nil
}

type redisHold struct {
	lock *redislock.Lock
	stop chan struct{}
	done chan struct{}
}

func (h *redisHold) release(ctx context.Context, report string) error {
	err := h.lock.Release(ctx)
	switch {
	case errors.Is(err, redislock.ErrLockNotHeld):
		return fmt.Errorf("redis lock for %s: %w: %w", report, ErrLockLost, err)
	case err != nil:
		return fmt.Errorf("release redis lock for %s: %w", report, err)
	}
	return nil
}

func (l *RedisLocker) keepAlive(h *redisHold, report string) {
	defer close(h.done)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	log := l.logger.WithFields(logrus.Fields{"report": report, "key": h.lock.Key()})
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			err := h.lock.Refresh(context.Background(), l.ttl, nil)
			switch {
			case err == nil:
			case errors.Is(err, redislock.ErrNotObtained):
				log.Warn("run lock lost; another process may run this report")
				return
			default:
				log.WithError(err).Warn("refresh run lock")
			}
		}
	}
}

var _ Locker = (*RedisLocker)(nil)
