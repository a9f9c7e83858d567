package task

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/deferredwork/task/internal/timerqueue"
)

// WhenAll returns a task that completes once every task in ts has
// completed. Classification, in order of precedence: any fault resolves
// Faulted with a flattened AggregateError of every faulted constituent's own
// failures; else any canceled resolves Canceled, carrying the token of the
// first canceled constituent by position in ts (not by completion order);
// else RanToCompletion. Use WhenAllResults for the result-bearing overload.
func WhenAll(ts ...coreWaitable) Task[Void] {
	result, setResult, setException, setCanceled := NewPromise[Void]()
	if len(ts) == 0 {
		setResult(Void{})
		return result
	}

	var remaining atomic.Int32
	remaining.Store(int32(len(ts)))

	var mu sync.Mutex
	var errs []error
	canceled := make([]bool, len(ts))
	canceledTokens := make([]CancellationToken, len(ts))

	for i, t := range ts {
		i := i
		core := t.coreImpl()
		attach := func() {
			switch {
			case core.isFaulted():
				if agg, ok := core.ensureContingent().exception.toAggregate().(*AggregateError); ok {
					mu.Lock()
					errs = append(errs, agg.Errors...)
					mu.Unlock()
				}
			case core.isCanceled():
				if ce, ok := core.ensureContingent().exception.toAggregate().(*CanceledError); ok {
					mu.Lock()
					canceled[i] = true
					canceledTokens[i] = ce.Token
					mu.Unlock()
				}
			}
			core.ensureContingent().exception.markObserved()
			if remaining.Add(-1) == 0 {
				mu.Lock()
				collected := errs
				mu.Unlock()
				if len(collected) > 0 {
					setException((&AggregateError{Errors: collected}).Flatten())
					return
				}
				for idx, c := range canceled {
					if c {
						setCanceled(canceledTokens[idx])
						return
					}
				}
				setResult(Void{})
			}
		}
		if !core.addContinuation(&continuation{run: func(Status) { attach() }, async: true}) {
			attach()
		}
	}

	return result
}

// WhenAllResults returns a task that completes once every task in ts has
// completed, carrying the per-task results in the same order as ts if every
// one RanToCompletion. Classification follows the same fault-then-canceled
// precedence as WhenAll, using the first canceled constituent's token by
// position in ts.
func WhenAllResults[T any](ts ...Task[T]) Task[[]T] {
	result, setResult, setException, setCanceled := NewPromise[[]T]()
	if len(ts) == 0 {
		setResult(nil)
		return result
	}

	var remaining atomic.Int32
	remaining.Store(int32(len(ts)))

	var mu sync.Mutex
	var errs []error
	values := make([]T, len(ts))
	canceled := make([]bool, len(ts))
	canceledTokens := make([]CancellationToken, len(ts))

	for i, t := range ts {
		i := i
		core := t.core
		attach := func() {
			switch {
			case core.isFaulted():
				if agg, ok := core.ensureContingent().exception.toAggregate().(*AggregateError); ok {
					mu.Lock()
					errs = append(errs, agg.Errors...)
					mu.Unlock()
				}
			case core.isCanceled():
				if ce, ok := core.ensureContingent().exception.toAggregate().(*CanceledError); ok {
					mu.Lock()
					canceled[i] = true
					canceledTokens[i] = ce.Token
					mu.Unlock()
				}
			default:
				if v, ok := core.result.(T); ok {
					values[i] = v
				}
			}
			core.ensureContingent().exception.markObserved()
			if remaining.Add(-1) == 0 {
				mu.Lock()
				collected := errs
				mu.Unlock()
				if len(collected) > 0 {
					setException((&AggregateError{Errors: collected}).Flatten())
					return
				}
				for idx, c := range canceled {
					if c {
						setCanceled(canceledTokens[idx])
						return
					}
				}
				setResult(values)
			}
		}
		if !core.addContinuation(&continuation{run: func(Status) { attach() }, async: true}) {
			attach()
		}
	}

	return result
}

// WhenAny returns a task that completes with the index of the first task in
// ts to complete (in any terminal state). It never itself faults or
// cancels: the returned index lets the caller inspect that constituent's
// own outcome. Returns a task already Faulted with ErrEmptyWhenAny if ts is
// empty.
func WhenAny(ts ...coreWaitable) Task[int] {
	result, setResult, setException, _ := NewPromise[int]()
	if len(ts) == 0 {
		setException(ErrEmptyWhenAny)
		return result
	}

	for i, t := range ts {
		i := i
		core := t.coreImpl()
		fire := func() { setResult(i) }
		if !core.addContinuation(&continuation{run: func(Status) { fire() }, async: true}) {
			fire()
		}
	}

	return result
}

// defaultTimerQueue is the process-wide timer service backing Delay,
// factored into its own package since several combinators (Delay, and a
// timed WaitAny in principle) could share it.
var defaultTimerQueue = timerqueue.New()

// Delay returns a task that RansToCompletion after d, or Cancels early if
// opts arms it with a token that fires first.
func Delay(d time.Duration, opts ...CreationOption) Task[Void] {
	cfg := resolveCreationOptions(opts)
	result, setResult, _, setCanceled := NewPromise[Void]()

	cancelTimer := defaultTimerQueue.Schedule(d, func() { setResult(Void{}) })

	if cfg.token.CanBeCanceled() {
		cfg.token.Register(func() {
			cancelTimer()
			setCanceled(cfg.token)
		})
	}

	return result
}

// Unwrap flattens a task of a task into a single task that completes when
// the inner task does. If the outer task faults or is canceled before
// producing an inner task, the returned task carries that same outcome.
func Unwrap[T any](outer Task[Task[T]]) Task[T] {
	result, setResult, setException, setCanceled := NewPromise[T]()

	settleFromInner := func(inner Task[T]) {
		innerAttach := func() {
			switch inner.core.status() {
			case StatusRanToCompletion:
				v, _ := inner.core.result.(T)
				setResult(v)
			case StatusCanceled:
				setCanceled(CancellationToken{})
			default:
				setException(inner.core.ensureContingent().exception.toAggregate())
			}
		}
		if !inner.core.addContinuation(&continuation{run: func(Status) { innerAttach() }, async: true}) {
			innerAttach()
		}
	}

	attach := func() {
		switch outer.core.status() {
		case StatusRanToCompletion:
			inner, _ := outer.core.result.(Task[T])
			settleFromInner(inner)
		case StatusCanceled:
			setCanceled(CancellationToken{})
		default:
			setException(outer.core.ensureContingent().exception.toAggregate())
		}
	}

	if !outer.core.addContinuation(&continuation{run: func(Status) { attach() }, async: true}) {
		attach()
	}

	return result
}
