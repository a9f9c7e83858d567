package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsQueuedWork(t *testing.T) {
	p := New(2)
	defer p.Shutdown(context.Background())

	var wg sync.WaitGroup
	var ran atomic.Int32
	const n = 20
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, p.Queue(func() {
			ran.Add(1)
			wg.Done()
		}))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool never ran all queued work")
	}
	assert.Equal(t, int32(n), ran.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const capacity = 2
	p := New(capacity)
	defer p.Shutdown(context.Background())

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	release := make(chan struct{})

	const n = 8
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, p.Queue(func() {
			defer wg.Done()
			cur := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if cur <= m || maxInFlight.CompareAndSwap(m, cur) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
		}))
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(capacity))
	close(release)
	wg.Wait()
}

func TestPoolQueueAfterShutdownFails(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Shutdown(context.Background()))
	err := p.Queue(func() {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolOnOverloadCalledOnRejection(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Shutdown(context.Background()))

	var captured error
	p.OnOverload = func(err error) { captured = err }
	err := p.Queue(func() {})
	assert.ErrorIs(t, captured, err)
}

func TestPoolShutdownWaitsForInFlightWork(t *testing.T) {
	p := New(1)
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Queue(func() {
		close(started)
		<-release
	}))
	<-started

	done := make(chan error, 1)
	go func() { done <- p.Shutdown(context.Background()) }()

	select {
	case <-done:
		t.Fatal("shutdown returned before in-flight work finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestPoolShutdownRespectsContextDeadline(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, p.Queue(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolTryDequeue(t *testing.T) {
	p := New(1)
	defer p.Shutdown(context.Background())

	_, ok := p.TryDequeue()
	assert.False(t, ok)
}

func TestPoolCapacityClampedToOne(t *testing.T) {
	p := New(0)
	defer p.Shutdown(context.Background())
	assert.Equal(t, int64(1), p.capacity)
}
