package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_RunsSubmittedJobs(t *testing.T) {
	p := NewPool(2, 8, discardLogger())
	p.Start(context.Background())

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	p.Stop()

	assert.Equal(t, int64(5), count.Load())
}

func TestPool_SubmitRejectsWhenFull(t *testing.T) {
	p := NewPool(1, 1, discardLogger())
	// Not started, so nothing drains the queue.

	require.NoError(t, p.Submit(func(ctx context.Context) {}))
	err := p.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p := NewPool(1, 4, discardLogger())
	p.Start(context.Background())
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, p.Submit(func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	}))
	require.NoError(t, p.Submit(func(ctx context.Context) {
		defer wg.Done()
	}))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not survive a panicking job")
	}
}

func TestPool_StopWaitsForWorkers(t *testing.T) {
	p := NewPool(2, 4, discardLogger())
	p.Start(context.Background())

	var ran atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		ran.Store(true)
	}))

	time.Sleep(50 * time.Millisecond)
	p.Stop()
	assert.True(t, ran.Load())
}
