package task

import (
	"context"
	"runtime/debug"
	"sync/atomic"
)

// nextTaskID is the package-wide task id allocator. Ids are diagnostic only
// (logging, CurrentId) and carry no ordering guarantee.
var nextTaskID atomic.Uint32

// coreTask is the unexported, non-generic engine behind every Task[T]: the
// state word, continuation slot, and lazily-allocated contingent
// properties. Task[T] is a thin generic wrapper adding a typed result slot;
// composition stands in for a result-bearing subclass since Go has no
// subclassing.
type coreTask struct {
	id    uint32
	state atomic.Uint32

	continuations atomic.Pointer[contState]
	contingent    atomic.Pointer[contingentProperties]

	scheduler Scheduler
	parent    *coreTask

	// exec is the task's body, set once at construction. nil for promise
	// tasks (completed only via TrySet*) and for continuation tasks, whose
	// body ContinueWith runs directly when the antecedent fires.
	exec func() (any, error)

	// result holds the type-erased success value once RanToCompletion.
	// Task[T] unwraps it with a type assertion on read.
	result any
}

func newCoreTask(exec func() (any, error), cfg creationConfig, internal uint32, parent *coreTask) *coreTask {
	t := &coreTask{
		id:     nextTaskID.Add(1),
		exec:   exec,
		parent: parent,
	}
	t.state.Store(cfg.bits&creationOptsMask | internal)

	if cfg.token.CanBeCanceled() {
		cp := t.ensureContingent()
		cp.cancelToken = cfg.token
		if cfg.token.IsCancellationRequested() {
			t.markCanceled(CancellationToken{})
		} else {
			cp.cancelUnregist = cfg.token.Register(func() { t.requestCancellation(cfg.token) })
		}
	}

	if CreationOptions(cfg.bits).Has(OptAttachedToParent) && parent != nil {
		if !parent.creationOptions().Has(OptDenyChildAttach) {
			if parent.ensureContingent().addChild() {
				t.parent = parent
			} else {
				t.parent = nil
			}
		} else {
			t.parent = nil
		}
	} else {
		t.parent = nil
	}

	return t
}

// Task is a handle to an asynchronous operation that eventually produces a
// value of type T, or fails, or is canceled. The zero value is not usable;
// construct one with New, Run, FromResult, FromException, FromCanceled, or
// ContinueWith.
type Task[T any] struct {
	core *coreTask
}

// Void is the result type for tasks that produce no value, the analogue of
// the non-generic Task base type.
type Void = struct{}

// New constructs a task running fn, in the Created state: it does not begin
// executing until Start is called. Most callers want Run instead, which
// also starts it.
func New[T any](fn func(ctx context.Context) (T, error), opts ...CreationOption) Task[T] {
	cfg := resolveCreationOptions(opts)
	var parent *coreTask
	if CreationOptions(cfg.bits).Has(OptAttachedToParent) {
		parent = currentCoreTask()
	}
	ctx := contextFromToken(cfg.token)
	exec := func() (any, error) { return fn(ctx) }
	return Task[T]{core: newCoreTask(exec, cfg, 0, parent)}
}

// Run constructs a task running fn and immediately schedules it.
func Run[T any](fn func(ctx context.Context) (T, error), opts ...CreationOption) Task[T] {
	t := New(fn, opts...)
	t.core.scheduleSelf()
	return t
}

// FromResult returns a task that is already RanToCompletion with value v.
func FromResult[T any](v T) Task[T] {
	core := newCoreTask(nil, creationConfig{}, internalPromiseTask, nil)
	core.result = v
	core.state.Store(core.state.Load() | stateStarted | stateDelegateInvoked | stateRanToCompletion)
	return Task[T]{core: core}
}

// FromException returns a task that is already Faulted with err.
func FromException[T any](err error) Task[T] {
	core := newCoreTask(nil, creationConfig{}, internalPromiseTask, nil)
	core.ensureContingent().exception.add(err)
	core.state.Store(core.state.Load() | stateStarted | stateDelegateInvoked | stateFaulted)
	return Task[T]{core: core}
}

// FromCanceled returns a task that is already Canceled, carrying tok.
func FromCanceled[T any](tok CancellationToken) Task[T] {
	core := newCoreTask(nil, creationConfig{}, internalPromiseTask, nil)
	core.ensureContingent().exception.markCancellation()
	core.ensureContingent().exception.add(&CanceledError{Token: tok})
	core.state.Store(core.state.Load() | stateStarted | stateDelegateInvoked | stateCanceled)
	return Task[T]{core: core}
}

// CompletedTask is a Task[Void] that is already RanToCompletion.
func CompletedTask() Task[Void] { return FromResult(Void{}) }

// NewPromise returns a Task that completes only when one of the returned
// setter functions is called: TrySetResult, TrySetException, or
// TrySetCanceled. This is the supported way to bridge callback-based APIs
// into the task model.
func NewPromise[T any](opts ...CreationOption) (Task[T], func(T) bool, func(error) bool, func(CancellationToken) bool) {
	cfg := resolveCreationOptions(opts)
	var parent *coreTask
	if CreationOptions(cfg.bits).Has(OptAttachedToParent) {
		parent = currentCoreTask()
	}
	core := newCoreTask(nil, cfg, internalPromiseTask, parent)
	core.state.Store(core.state.Load() | stateWaitingForActivation)
	tk := Task[T]{core: core}
	return tk, tk.trySetResult, tk.core.trySetException, tk.core.trySetCanceled
}

func (t Task[T]) trySetResult(v T) bool {
	if !t.core.beginFinish() {
		return false
	}
	t.core.result = v
	t.core.finish(stateRanToCompletion)
	return true
}

func (t *coreTask) trySetException(err error) bool {
	if !t.beginFinish() {
		return false
	}
	t.ensureContingent().exception.add(err)
	t.finish(stateFaulted)
	return true
}

func (t *coreTask) trySetCanceled(tok CancellationToken) bool {
	if !t.beginFinish() {
		return false
	}
	cp := t.ensureContingent()
	cp.exception.markCancellation()
	cp.exception.add(&CanceledError{Token: tok})
	t.finish(stateCanceled)
	return true
}

// beginFinish reserves the right to complete the task exactly once,
// guarding every TrySet*/finish entry point against a concurrent duplicate
// completion (an "exactly one winner" requirement).
func (t *coreTask) beginFinish() bool {
	return t.atomicStateUpdate(stateCompletionReserved, stateCompletionReserved|completedMask)
}

// Id returns the task's diagnostic identifier.
func (t Task[T]) Id() uint32 { return t.core.id }

// Status returns the task's current lifecycle status.
func (t Task[T]) Status() Status { return t.core.status() }

// CreationOptions returns the options the task was constructed with.
func (t Task[T]) CreationOptions() CreationOptions { return t.core.creationOptions() }

// IsCompleted reports whether the task has reached a terminal state.
func (t Task[T]) IsCompleted() bool { return t.core.isCompleted() }

// IsFaulted reports whether the task completed with an unhandled exception.
func (t Task[T]) IsFaulted() bool { return t.core.isFaulted() }

// IsCanceled reports whether the task completed via cancellation.
func (t Task[T]) IsCanceled() bool { return t.core.isCanceled() }

// IsCompletedSuccessfully reports whether the task RanToCompletion.
func (t Task[T]) IsCompletedSuccessfully() bool { return t.core.isRanToCompletion() }

// Start transitions the task from Created to WaitingToRun and schedules it.
// Returns ErrAlreadyStarted if the task was already started, is a promise,
// or is a continuation (those schedule themselves or are driven externally
// and never accept an explicit Start call).
func (t Task[T]) Start(opts ...StartOption) error {
	if t.core.isPromise() || t.core.isContinuationTask() {
		return ErrAlreadyStarted
	}
	cfg := resolveStartOptions(opts)
	sched := cfg.scheduler
	if sched == nil {
		sched = t.core.resolveScheduler()
	}
	return t.core.start(sched)
}

// RunSynchronously asks the resolved scheduler to run the task body on the
// calling goroutine via TryInline. If the scheduler declines, the task is
// queued normally and the calling goroutine blocks until it completes,
// helping drain the scheduler's own queue in the meantime if it implements
// Schedulable. Valid only from Created; returns ErrAlreadyStarted otherwise.
func (t Task[T]) RunSynchronously(opts ...StartOption) error {
	if t.core.isPromise() || t.core.isContinuationTask() {
		return ErrAlreadyStarted
	}
	cfg := resolveStartOptions(opts)
	sched := cfg.scheduler
	if sched == nil {
		sched = t.core.resolveScheduler()
	}
	if !t.core.markStarted() {
		return ErrAlreadyStarted
	}
	t.core.scheduler = sched

	if sched.TryInline() {
		t.core.execute()
		return nil
	}

	if err := sched.Queue(func() { t.core.execute() }); err != nil {
		logSchedulerFailure(t.core.id, err)
		if t.core.beginFinish() {
			t.core.ensureContingent().exception.add(&SchedulerException{Cause: err})
			t.core.finish(stateFaulted)
		}
		return err
	}

	t.core.blockHelpingDrain(sched)
	return nil
}

// blockHelpingDrain blocks the calling goroutine until t completes. If sched
// implements Schedulable, the calling goroutine pulls and runs other queued
// work off it while it waits instead of sitting idle; once the queue is
// empty it falls back to a plain block on t's completion.
func (t *coreTask) blockHelpingDrain(sched Scheduler) {
	cp := t.ensureContingent()
	// As in block: a block allocated after completion is never closed.
	if t.isCompleted() {
		return
	}
	drain, ok := sched.(Schedulable)
	if !ok {
		<-cp.completion
		return
	}
	for {
		select {
		case <-cp.completion:
			return
		default:
		}
		fn, ok := drain.TryDequeue()
		if !ok {
			<-cp.completion
			return
		}
		fn()
	}
}

func (t *coreTask) scheduleSelf() {
	sched := t.resolveScheduler()
	if err := t.start(sched); err != nil {
		// start fails either with ErrAlreadyStarted (the task was already
		// canceled by its token before it could start) or because the
		// scheduler rejected Queue, already turned into a Faulted completion
		// by start itself; either way the task's own state reports it, and
		// Run has no error return (fire-and-forget construction).
		_ = err
	}
}

func (t *coreTask) resolveScheduler() Scheduler {
	if t.scheduler != nil {
		return t.scheduler
	}
	if parent := t.parent; parent != nil && !parent.creationOptions().Has(OptHideScheduler) && parent.scheduler != nil {
		return parent.scheduler
	}
	if cur := currentCoreTask(); cur != nil && !cur.creationOptions().Has(OptHideScheduler) && cur.scheduler != nil {
		return cur.scheduler
	}
	return getDefaultScheduler()
}

// start performs the Created -> WaitingToRun transition and hands the task
// to sched. The started bit and the scheduler slot are always claimed by an
// exclusive CAS (markStarted), regardless of what sched reports via
// RequiresAtomicStartTransition: that flag governs execute's own entry
// guard, not this transition, since a double Start must be rejected no
// matter which scheduler is involved. If the scheduler's Queue rejects the
// work, the task transitions directly to Faulted carrying a
// *SchedulerException.
func (t *coreTask) start(sched Scheduler) error {
	if !t.markStarted() {
		return ErrAlreadyStarted
	}
	t.scheduler = sched

	if t.creationOptions().Has(OptLongRunning) {
		// LongRunning bypasses the scheduler's own concurrency bound
		// entirely, per its doc comment: a dedicated goroutine rather than
		// a pool slot.
		go t.execute()
		return nil
	}

	if err := sched.Queue(func() { t.execute() }); err != nil {
		logSchedulerFailure(t.id, err)
		if t.beginFinish() {
			t.ensureContingent().exception.add(&SchedulerException{Cause: err})
			t.finish(stateFaulted)
		}
		return err
	}
	return nil
}

// execute runs the task body with panic recovery: recover, wrap as
// *PanicError, and treat it exactly like any other returned error.
func (t *coreTask) execute() {
	if t.requiresAtomicEntryGuard() {
		if !t.atomicStateUpdate(stateDelegateInvoked, stateCanceled|stateDelegateInvoked|completedMask) {
			return
		}
	} else {
		// sched has declared (via RequiresAtomicStartTransition) that it
		// never invokes execute more than once concurrently for this task;
		// skip the CAS and just check the illegal bits.
		cur := t.state.Load()
		if cur&(stateCanceled|stateDelegateInvoked|completedMask) != 0 {
			return
		}
		t.state.Store(cur | stateDelegateInvoked)
	}

	prev := pushCurrentTask(t)
	defer popCurrentTask(prev)

	if t.exec == nil {
		return
	}

	var (
		res any
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		res, err = t.exec()
	}()

	if !t.beginFinish() {
		return
	}

	if err != nil {
		if tok := t.cancelTokenIfRequested(); tok != (CancellationToken{}) || t.state.Load()&stateCancellationAcknowledged != 0 {
			cp := t.ensureContingent()
			cp.exception.markCancellation()
			cp.exception.add(&CanceledError{Token: tok})
			t.finishWithChildren(stateCanceled)
			return
		}
		t.ensureContingent().exception.add(err)
		t.finishWithChildren(stateFaulted)
		return
	}

	t.result = res
	t.finishWithChildren(stateRanToCompletion)
}

// requiresAtomicEntryGuard reports whether execute must CAS its way past
// stateDelegateInvoked rather than a plain load-then-store, per whatever
// sched reports via RequiresAtomicStartTransition. Defaults to true for
// schedulers that don't implement the interface at all.
func (t *coreTask) requiresAtomicEntryGuard() bool {
	if ra, ok := t.scheduler.(RequiresAtomicStartTransition); ok {
		return ra.RequiresAtomicStartTransition()
	}
	return true
}

// cancelTokenIfRequested returns the task's own cancellation token if it has
// fired, the zero token otherwise.
func (t *coreTask) cancelTokenIfRequested() CancellationToken {
	cp := t.contingentOrNil()
	if cp == nil {
		return CancellationToken{}
	}
	if cp.cancellationRequested.Load() {
		return cp.cancelToken
	}
	return CancellationToken{}
}

// requestCancellation is the callback registered against the task's own
// cancellation token. It only latches a flag and, if the task hasn't
// started running yet, attempts the Created/WaitingToRun -> Canceled
// transition directly; a task already running must observe cancellation
// cooperatively via its ctx and return a *CanceledError itself.
func (t *coreTask) requestCancellation(tok CancellationToken) {
	cp := t.ensureContingent()
	cp.cancellationRequested.Store(true)
	t.markCanceled(tok)
	logCancellationAcknowledged(t.id)
}

// markCanceled attempts to complete the task as Canceled directly, used for
// the pre-start and not-yet-running cases. No-op if the task has already
// started running its body or has already completed. A task canceled
// before its body ever ran cannot have attached children, so this skips
// finishWithChildren's bookkeeping and completes immediately. The same CAS
// that sets stateCanceled also claims the completion reservation, since a
// later beginFinish would be refused once stateCanceled is set.
func (t *coreTask) markCanceled(tok CancellationToken) {
	if !t.atomicStateUpdate(stateCanceled|stateCancellationAcknowledged|stateCompletionReserved, stateDelegateInvoked|stateCompletionReserved|completedMask) {
		return
	}
	cp := t.ensureContingent()
	cp.exception.markCancellation()
	cp.exception.add(&CanceledError{Token: tok})
	t.finish(stateCanceled)
}

// finishWithChildren defers the terminal transition until every child
// attached via OptAttachedToParent has itself completed. selfTerminal
// is the task's own outcome (absent any child influence); a Faulted child
// promotes the parent to Faulted regardless of selfTerminal, aggregating
// the child's exception alongside the parent's own, matching the upstream
// model's attached-child propagation.
//
// The caller must already hold the single completion reservation
// (beginFinish) before calling this; it is never acquired again here, since
// the eventual finish may happen asynchronously on a child's goroutine.
func (t *coreTask) finishWithChildren(selfTerminal uint32) {
	cp := t.contingentOrNil()
	if cp == nil {
		t.finish(selfTerminal)
		return
	}
	if cp.closeAccounting(selfTerminal) {
		t.completeAfterChildren(cp, selfTerminal)
		return
	}
	// stateWaitingOnChildren is set for Status()/introspection only; the
	// actual "am I last" decision lives in cp.removeChild, resolved under
	// cp.mu rather than raced against this state word.
	t.state.Store(t.state.Load()&^completedMask | stateWaitingOnChildren)
	// The last child to complete calls completeAfterChildren via
	// notifyChildCompleted; nothing further to do on this goroutine.
}

func (t *coreTask) completeAfterChildren(cp *contingentProperties, selfTerminal uint32) {
	exceptional := cp.snapshotExceptionalChildren()
	faulted := false
	for _, child := range exceptional {
		if !child.isFaulted() {
			continue
		}
		faulted = true
		if agg, ok := child.ensureContingent().exception.toAggregate().(*AggregateError); ok {
			for _, e := range agg.Errors {
				cp.exception.add(e)
			}
		}
	}
	if faulted {
		t.finish(stateFaulted)
		return
	}
	t.finish(selfTerminal)
}

// finish performs the final terminal-state publish and fires continuations
// and waiters. terminalBit is exactly one of stateFaulted, stateCanceled,
// stateRanToCompletion.
func (t *coreTask) finish(terminalBit uint32) {
	t.state.Store(t.state.Load()&^stateWaitingOnChildren | terminalBit)
	t.signalCompletion()

	status := t.status()
	// Sampled before the drain, which leaves the slot fired (and so empty).
	hadContinuations := t.hasContinuations()
	t.finishContinuations(status)

	if t.parent != nil {
		t.parent.notifyChildCompleted(t)
	}

	// An exception that nobody will ever observe (no continuation, no
	// Wait/Result call, no attaching parent) is reported best-effort,
	// either now or at GC time via exceptionholder.go's cleanup.
	if status == StatusFaulted && !hadContinuations && t.parent == nil {
		if cp := t.contingentOrNil(); cp != nil {
			cp.exception.warnIfUnobserved()
		}
	}
}

// notifyChildCompleted is called by a child on its parent when the child
// reaches a terminal state, decrementing the parent's outstanding-child
// count and, if the parent's own body already finished and this was the
// last child, completing the parent.
func (t *coreTask) notifyChildCompleted(child *coreTask) {
	cp := t.ensureContingent()
	if child.isFaulted() || child.isCanceled() {
		cp.addExceptionalChild(child)
	}
	ready, terminal := cp.removeChild()
	if !ready {
		return
	}
	// The completion reservation was already claimed by whichever call to
	// finishWithChildren found this task's own body finished; this
	// goroutine is just the last child waking the parent back up, not
	// racing to win completion itself.
	t.completeAfterChildren(cp, terminal)
}

// Dispose releases resources held by a completed task (its cancellation
// registration, and flushes any still-unobserved exception to the logging
// sink). Returns ErrDisposeNotCompleted if the task has not reached a
// terminal state.
func (t Task[T]) Dispose() error {
	if !t.core.isCompleted() {
		return ErrDisposeNotCompleted
	}
	cp := t.core.contingentOrNil()
	if cp == nil {
		t.core.state.Store(t.core.state.Load() | stateDisposed)
		return nil
	}
	if cp.cancelUnregist != nil {
		cp.cancelUnregist()
	}
	cp.exception.warnIfUnobserved()
	t.core.state.Store(t.core.state.Load() | stateDisposed)
	return nil
}
