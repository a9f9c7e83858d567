// Package scheduler provides a task.Scheduler implementation (install it
// with task.SetDefaultScheduler or task.WithScheduler): a bounded worker pool
// with a FIFO admission queue. Queue never blocks the caller; a single
// dispatcher goroutine pulls queued work and hands it to whichever worker
// goroutine next acquires a semaphore slot, bounding actual concurrent
// execution to Capacity regardless of how much work is queued at once.
//
// Lifecycle is an atomic state machine tracking
// Awake/Running/Terminating/Terminated, with an in-flight drain on
// shutdown coordinated by an errgroup.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Queue once Shutdown has been called.
var ErrClosed = errors.New("scheduler: pool is shut down")

// Pool is a bounded worker pool implementing task.Scheduler and
// task.Schedulable (TryDequeue), plus task.RequiresAtomicStartTransition,
// always answering true: worker goroutines invoke a task's start path
// concurrently, not from one dedicated thread.
type Pool struct {
	capacity int64
	sem      *semaphore.Weighted
	state    *fastState
	group    *errgroup.Group

	mu     sync.Mutex
	queue  []func()
	notify chan struct{}

	// OnOverload, if set, is called whenever Queue is invoked while the
	// pool is shut down.
	OnOverload func(error)
}

// New creates a running Pool bounding concurrent task execution to
// capacity. A capacity of 0 or less is treated as 1.
func New(capacity int64) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	p := &Pool{
		capacity: capacity,
		sem:      semaphore.NewWeighted(capacity),
		state:    newFastState(),
		group:    &errgroup.Group{},
		notify:   make(chan struct{}, 1),
	}
	p.group.Go(p.dispatch)
	return p
}

// Queue appends fn to the FIFO admission queue, honoring
// task.OptPreferFairness by construction: dispatch always pulls in
// submission order.
func (p *Pool) Queue(fn func()) error {
	if !p.state.CanAcceptWork() {
		err := ErrClosed
		if p.OnOverload != nil {
			p.OnOverload(err)
		}
		return err
	}

	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryDequeue removes and returns the oldest queued unit of work, for a
// caller that wants to help drain the pool rather than block waiting on
// it (see task.Schedulable).
func (p *Pool) TryDequeue() (fn func(), ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	fn = p.queue[0]
	p.queue = p.queue[1:]
	return fn, true
}

// TryInline always reports false: Pool has no notion of "the caller is
// already a pool worker", so it never offers synchronous execution.
func (p *Pool) TryInline() bool { return false }

// RequiresAtomicStartTransition reports true: fn may run on any of many
// concurrent worker goroutines, so task execution entry must use its
// CAS-gated path.
func (p *Pool) RequiresAtomicStartTransition() bool { return true }

// dispatch pulls queued work and, once a semaphore slot is free, spawns a
// worker goroutine to run it. Returns once the pool is Terminating and the
// queue has been fully drained.
func (p *Pool) dispatch() error {
	for {
		fn, ok := p.TryDequeue()
		if !ok {
			if p.state.Load() == stateTerminating {
				return nil
			}
			<-p.notify
			continue
		}

		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return err
		}
		p.group.Go(func() error {
			defer p.sem.Release(1)
			fn()
			return nil
		})
	}
}

// Shutdown transitions the pool out of service, rejecting further Queue
// calls, and blocks until every already-accepted unit of work has finished
// or ctx ends first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.state.TryTransition(stateAwake, stateTerminating)
	p.state.TryTransition(stateRunning, stateTerminating)

	// Wake the dispatcher in case it's parked waiting for notify with an
	// empty queue, so it can observe stateTerminating and return.
	select {
	case p.notify <- struct{}{}:
	default:
	}

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.state.Store(stateTerminated)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
