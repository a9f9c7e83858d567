// Package task is a Go port of the .NET Task Parallel Library's core
// runtime: a state machine for asynchronous operations, cooperative
// cancellation, continuations, and structured parent/child composition.
//
// # Lifecycle
//
// A [Task] progresses through [Status] values from Created through Running
// to exactly one terminal state: RanToCompletion, Faulted, or Canceled.
// [New] builds a task without starting it; [Run] builds and schedules it in
// one call. [NewPromise] builds a task with no body at all, completed
// externally via the returned TrySetResult/TrySetException/TrySetCanceled
// functions — the supported bridge from callback-based APIs into the task
// model.
//
// # Cancellation
//
// Cancellation is cooperative: a [CancellationTokenSource] fans out to
// registered callbacks exactly once, on Cancel. A task body observes
// cancellation by checking its [CancellationToken] and returning a
// *[CanceledError]; a task that hasn't started running yet is canceled
// directly without ever invoking its body.
//
// # Continuations
//
// [ContinueWith] schedules a follow-up task gated on the antecedent's
// terminal status, with independent control over synchronous-vs-queued
// dispatch ([ContinuationExecuteSynchronously]) and its own lazy or eager
// cancellation ([ContinuationLazyCancellation]).
//
// # Composition
//
// [WhenAll], [WhenAllResults], [WhenAny], [Delay], and [Unwrap] compose
// existing tasks into new ones without ever blocking the calling goroutine.
// Attaching a task to
// its parent via [OptAttachedToParent] holds the parent in
// WaitingForChildrenToComplete until every attached child has itself
// completed, promoting the parent to Faulted if any child faulted.
//
// # Scheduling
//
// [Scheduler] is the boundary between this package and whatever actually
// runs task bodies. The zero-value default runs everything inline on
// whichever goroutine starts it; package task/scheduler provides a bounded
// worker pool suitable for real concurrent workloads. [SetDefaultScheduler]
// installs a process-wide fallback; [WithScheduler] and
// [WithContinuationScheduler] override it per task.
//
// # Unobserved exceptions
//
// A Faulted task that nobody ever waits on, attaches a continuation to, or
// attaches as a child leaks its exception silently unless something notices.
// This package makes a best-effort attempt to surface that case to the
// configured logger ([SetLogger]), either as soon as it's detected (no
// continuation and no parent at completion time) or, failing that, at
// garbage-collection time via a [runtime.AddCleanup] callback on the
// exception holder. The GC path is inherently best-effort: it fires only if
// and when the holder becomes unreachable, which the garbage collector
// gives no timing guarantee about, and never fires at all for a program
// that exits first. Call [Task.Wait], [Task.Result], or [Task.Dispose] to
// observe a task deterministically instead of relying on it.
//
// # Thread aborts
//
// The runtime this package is modeled on has a notion of a task being torn
// down by a forcibly aborted thread, a legacy runtime-specific failure mode
// with no equivalent in Go. It is not supported: a task body's only
// failure paths are returning an error, returning a *CanceledError, or
// panicking (recovered and wrapped as a [PanicError]). There is no
// mechanism, and none is planned, for a task to observe or report having
// been abandoned mid-execution by anything other than its own goroutine
// unwinding.
//
// # Self-replicating tasks
//
// The runtime this package is modeled on supports a task re-scheduling
// itself as its own replica, primarily to model backend parallel-loop
// constructs. That primitive has no bearing on this package's task model in
// isolation and is not implemented; internalSelfReplicating is reserved in
// the state word for a future parallel-loop package built on top of this
// one, not for anything task itself does today.
package task
