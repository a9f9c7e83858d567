package task

import (
	"sync"
	"sync/atomic"
)

// contingentProperties is the lazily-allocated block backing everything a
// task only sometimes needs: a completion event for blocking waiters, an
// exception holder, cancellation wiring, and parent/child accounting. Most
// tasks complete without ever being waited on or canceled, so the block is
// allocated on first need rather than embedded in coreTask, keeping the hot
// struct small and pushing cold state behind a pointer.
type contingentProperties struct {
	// completion is closed exactly once, when the task reaches a terminal
	// state, if this block exists by then. A block allocated after
	// completion is never closed, so waiters re-check the state word after
	// allocating it before blocking on the channel.
	completion chan struct{}

	exception *exceptionHolder

	cancelToken    CancellationToken
	cancelUnregist func()

	// cancellationRequested latches true the moment a registered
	// cancellation callback fires, independent of whatever state the task's
	// body or scheduler observes, so markCanceled's caller can distinguish
	// "canceled because the token fired" from other abandonment paths.
	cancellationRequested atomic.Bool

	mu                  sync.Mutex
	childCount          int32 // children attached via OptAttachedToParent, still outstanding
	childrenClosed      bool  // true once this task's own body has finished
	exceptionalChildren []*coreTask

	// pendingTerminal is the outcome finishWithChildren parked here when it
	// found outstanding children; the last child to complete reads it back
	// via notifyChildCompleted instead of re-deriving it.
	pendingTerminal uint32
}

func newContingentProperties(taskID uint32) *contingentProperties {
	return &contingentProperties{
		completion: make(chan struct{}),
		exception:  newExceptionHolder(taskID),
	}
}

// ensureContingent returns t's contingent block, allocating it on first use.
// Concurrent callers race to build one; the loser's allocation is discarded
// in favor of whichever publish won the CAS.
func (t *coreTask) ensureContingent() *contingentProperties {
	if cp := t.contingent.Load(); cp != nil {
		return cp
	}
	candidate := newContingentProperties(t.id)
	if t.contingent.CompareAndSwap(nil, candidate) {
		return candidate
	}
	return t.contingent.Load()
}

// contingentOrNil returns the contingent block without allocating one.
func (t *coreTask) contingentOrNil() *contingentProperties { return t.contingent.Load() }

// signalCompletion closes the completion channel if a contingent block
// exists, waking any blocked waiters. Safe to call even if nothing ever
// asked for the contingent block — in that case there's nothing to wake.
func (t *coreTask) signalCompletion() {
	if cp := t.contingentOrNil(); cp != nil {
		close(cp.completion)
	}
}

// addExceptionalChild records a child that completed Faulted or Canceled.
// Only the Faulted children's failures are later propagated into the
// parent's own AggregateError (see completeAfterChildren); Canceled children
// are recorded but neither change the parent's outcome nor appear in it.
func (cp *contingentProperties) addExceptionalChild(child *coreTask) {
	cp.mu.Lock()
	cp.exceptionalChildren = append(cp.exceptionalChildren, child)
	cp.mu.Unlock()
}

func (cp *contingentProperties) snapshotExceptionalChildren() []*coreTask {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if len(cp.exceptionalChildren) == 0 {
		return nil
	}
	out := make([]*coreTask, len(cp.exceptionalChildren))
	copy(out, cp.exceptionalChildren)
	return out
}

// addChild increments the outstanding-child count. Returns false if the
// parent has already begun its own completion countdown and can no longer
// accept attachments (racing attach-vs-complete) — the caller must then
// treat the attempted child as unattached.
func (cp *contingentProperties) addChild() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.childrenClosed {
		return false
	}
	cp.childCount++
	return true
}

// removeChild decrements the outstanding-child count and reports whether
// this was the decrement that made the parent ready to complete: the parent
// body must have already finished (childrenClosed) AND no children remain
// outstanding. Both conditions are read under the same lock that
// closeAccounting writes them under, so the parent's own "last child"
// decision and a concurrently-finishing child's decrement can never each
// conclude the other is responsible for waking the parent.
func (cp *contingentProperties) removeChild() (ready bool, terminal uint32) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.childCount--
	return cp.childrenClosed && cp.childCount <= 0, cp.pendingTerminal
}

// closeAccounting latches out further attachment once the parent body has
// finished, recording selfTerminal as the outcome to use if no attached
// child is found exceptional, and reports whether every child had already
// completed by the time the parent's own body finished.
func (cp *contingentProperties) closeAccounting(selfTerminal uint32) (ready bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.childrenClosed = true
	cp.pendingTerminal = selfTerminal
	return cp.childCount <= 0
}
