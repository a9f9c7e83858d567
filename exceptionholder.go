package task

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// observationFlag is a small heap cell shared between an exceptionHolder
// and its best-effort GC cleanup, kept deliberately separate from the
// holder itself: runtime.AddCleanup requires the cleanup's argument not
// reference the target, or the target would never become unreachable.
type observationFlag struct {
	observed     atomic.Bool
	warned       atomic.Bool
	cancellation atomic.Bool
	failed       atomic.Bool // set once any error has been captured
}

// exceptionHolder aggregates one or many captured failures for a single
// task, tracking whether they've been observed by any consumer (Wait,
// Result, or an attached parent), so the unobserved-failure sink only warns
// about genuinely-ignored errors.
type exceptionHolder struct {
	mu     sync.Mutex
	errs   []error
	taskID uint32
	flag   *observationFlag
}

func newExceptionHolder(taskID uint32) *exceptionHolder {
	flag := &observationFlag{}
	h := &exceptionHolder{taskID: taskID, flag: flag}
	// Best-effort unobserved-failure surfacing: if this holder is
	// dropped while still unobserved, warn on the sink. Deterministic
	// disposal (Task.Dispose calling warnIfUnobserved) covers the common
	// case; this cleanup only fires for holders nobody ever disposed.
	runtime.AddCleanup(h, warnIfStillUnobserved, cleanupArgs{taskID: taskID, flag: flag})
	return h
}

type cleanupArgs struct {
	taskID uint32
	flag   *observationFlag
}

func warnIfStillUnobserved(a cleanupArgs) {
	if !a.flag.failed.Load() || a.flag.cancellation.Load() || a.flag.observed.Load() {
		return
	}
	if a.flag.warned.CompareAndSwap(false, true) {
		logUnobservedException(a.taskID, "")
	}
}

func (h *exceptionHolder) add(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
	h.flag.failed.Store(true)
	if _, ok := err.(*CanceledError); ok {
		h.flag.cancellation.Store(true)
	}
}

func (h *exceptionHolder) markCancellation() {
	h.flag.cancellation.Store(true)
}

// markObserved flags the holder as observed, returning true iff this call
// was the one that transitioned it (first observer wins).
func (h *exceptionHolder) markObserved() bool { return h.flag.observed.CompareAndSwap(false, true) }

func (h *exceptionHolder) isObserved() bool { return h.flag.observed.Load() }

// toAggregate builds the error surfaced by Wait/Result. Returns nil if there
// are no captured errors, the bare *CanceledError if that's the only error
// captured (a canceled task never carries anything else alongside it), or an
// *AggregateError otherwise.
func (h *exceptionHolder) toAggregate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errs) == 0 {
		return nil
	}
	if len(h.errs) == 1 {
		if ce, ok := h.errs[0].(*CanceledError); ok {
			return ce
		}
	}
	cp := make([]error, len(h.errs))
	copy(cp, h.errs)
	return &AggregateError{Errors: cp}
}

func (h *exceptionHolder) summary() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errs) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", h.errs)
}

// warnIfUnobserved emits the unobserved-failure warning immediately, if the
// holder captured an error, nobody has observed it, and it doesn't represent
// a cancellation.
// Called from Task.Dispose, giving deterministic surfacing in the common
// case rather than waiting on the best-effort GC cleanup above.
func (h *exceptionHolder) warnIfUnobserved() {
	if h == nil || !h.flag.failed.Load() || h.flag.cancellation.Load() {
		return
	}
	if h.flag.observed.Load() {
		return
	}
	if h.flag.warned.CompareAndSwap(false, true) {
		logUnobservedException(h.taskID, h.summary())
	}
}
