package runlock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_OnePerReport(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "Q_TEST")
	require.NoError(t, err)
	assert.True(t, l.Held("Q_TEST"))

	_, err = l.Acquire(ctx, "Q_TEST")
	assert.True(t, errors.Is(err, ErrRunInProgress))

	other, err := l.Acquire(ctx, "OTHER")
	require.NoError(t, err, "different reports must not block each other")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "double release is a no-op")
	assert.False(t, l.Held("Q_TEST"))

	again, err := l.Acquire(ctx, "Q_TEST")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocalLocker_Concurrent(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.Acquire(ctx, "Q_TEST"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
