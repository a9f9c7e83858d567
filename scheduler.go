package task

import "sync"

// Scheduler is the boundary contract between the task runtime and whatever
// executes task bodies and continuations. The package default is the
// built-in inline scheduler (see SetDefaultScheduler); package
// task/scheduler provides a bounded worker pool, and callers may supply
// their own, e.g. to pin work onto a UI thread or an existing event loop.
type Scheduler interface {
	// Queue submits fn for execution. Queue does not block the caller
	// waiting for fn to run unless the scheduler documents that it does (the
	// built-in inline scheduler runs fn inside Queue); it returns an error
	// only if the work could not
	// be accepted (e.g. the scheduler is shut down), in which case the
	// caller transitions the task to Faulted with a *SchedulerException.
	Queue(fn func()) error

	// TryInline reports whether fn may run synchronously on the calling
	// goroutine right now, instead of being queued. A scheduler that always
	// queues (never inlines) returns false unconditionally. Used by
	// ContinuationExecuteSynchronously and by RunSynchronously.
	TryInline() bool
}

// Schedulable is implemented by schedulers that support pulling work back
// off the queue, used by RunSynchronously to let the calling goroutine help
// drain a task's own scheduler while it blocks waiting on that task.
type Schedulable interface {
	Scheduler
	// TryDequeue removes and returns one pending unit of work queued via
	// Queue, or (nil, false) if the queue is empty. Implementations that
	// cannot support this (e.g. an unbounded goroutine-per-task scheduler)
	// should implement only Scheduler.
	TryDequeue() (fn func(), ok bool)
}

// RequiresAtomicStartTransition reports whether the runtime must guard a
// task's execution entry point with a CAS rather than a plain store, because
// the scheduler may invoke the queued fn from more than one goroutine for
// the same task. Schedulers that guarantee single-threaded delivery (e.g. a
// single-goroutine event loop) may return false to skip the extra CAS; the
// default worker pool returns true. The Created -> WaitingToRun Start
// transition itself is always CAS-gated regardless of this flag, since a
// double Start must be rejected no matter which scheduler is involved.
type RequiresAtomicStartTransition interface {
	RequiresAtomicStartTransition() bool
}

// defaultScheduler holds the process-wide fallback used when a task is
// created without an explicit Scheduler and no ambient current-task
// scheduler applies.
var defaultScheduler struct {
	sync.RWMutex
	sched Scheduler
}

// SetDefaultScheduler installs the process-wide fallback Scheduler. Passing
// nil restores the built-in inline scheduler, which runs every task body
// synchronously on whatever goroutine starts it — suitable for tests and
// simple programs, but not for any workload that wants real concurrency.
func SetDefaultScheduler(s Scheduler) {
	if s == nil {
		s = inlineScheduler{}
	}
	defaultScheduler.Lock()
	defer defaultScheduler.Unlock()
	defaultScheduler.sched = s
}

func getDefaultScheduler() Scheduler {
	defaultScheduler.RLock()
	defer defaultScheduler.RUnlock()
	return defaultScheduler.sched
}

func init() { defaultScheduler.sched = inlineScheduler{} }

// inlineScheduler runs every unit of work synchronously in Queue. It never
// inlines via TryInline in the RunSynchronously/ContinueWith sense (it has
// no concept of "the scheduler's own goroutine" to distinguish), so it
// reports false there and relies on Queue's synchronous execution to get
// the same effect.
type inlineScheduler struct{}

func (inlineScheduler) Queue(fn func()) error {
	fn()
	return nil
}

func (inlineScheduler) TryInline() bool { return false }
