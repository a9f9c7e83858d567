package task

import "context"

// Wait blocks until t completes, or ctx is done, whichever comes first.
// Returns ctx.Err() if ctx ends first; otherwise returns the task's own
// terminal error (nil for RanToCompletion), and marks the exception (if
// any) observed so the unobserved-failure sink never fires for it.
func (t Task[T]) Wait(ctx context.Context) error {
	if err := t.core.block(ctx); err != nil {
		return err
	}
	return t.core.observedError()
}

// Result blocks until t completes, then returns its value and error. If t
// faults or is canceled, the zero value of T is returned alongside the
// error. A context cancellation ends the wait early without canceling t
// itself (cancellation is cooperative and belongs to the task's own token).
func (t Task[T]) Result(ctx context.Context) (T, error) {
	var zero T
	if err := t.core.block(ctx); err != nil {
		return zero, err
	}
	if err := t.core.observedError(); err != nil {
		return zero, err
	}
	v, _ := t.core.result.(T)
	return v, nil
}

// block waits for t's contingent completion channel, allocating one if
// necessary, racing it against ctx.
func (t *coreTask) block(ctx context.Context) error {
	if t.isCompleted() {
		return nil
	}
	cp := t.ensureContingent()
	// Re-check after ensuring the contingent block exists: the task may
	// have completed between the isCompleted check above and this point,
	// before the block existed, in which case signalCompletion found nothing
	// to close and cp.completion never will be. A completion after this
	// re-check finds the block and closes it — no lost wakeup.
	if t.isCompleted() {
		return nil
	}
	select {
	case <-cp.completion:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// observedError marks the task's exception holder observed and returns the
// terminal error, if any: the AggregateError for Faulted, a *CanceledError
// for Canceled, nil for RanToCompletion.
func (t *coreTask) observedError() error {
	cp := t.contingentOrNil()
	if cp == nil {
		return nil
	}
	cp.exception.markObserved()
	if t.status() == StatusRanToCompletion {
		return nil
	}
	return cp.exception.toAggregate()
}

// WaitAll blocks until every task in ts has completed, or ctx ends. Returns
// a *AggregateError flattening every constituent's own failures, or nil if
// all ran to completion.
func WaitAll(ctx context.Context, ts ...coreWaitable) error {
	var errs []error
	for _, t := range ts {
		if err := t.coreImpl().block(ctx); err != nil {
			return err
		}
	}
	for _, t := range ts {
		if err := t.coreImpl().observedError(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return (&AggregateError{Errors: errs}).Flatten()
}

// coreWaitable is implemented by Task[T] for every T, letting WaitAll and
// WaitAny accept a heterogeneous slice of tasks despite Go generics not
// supporting existential "any Task[_]" directly.
type coreWaitable interface {
	coreImpl() *coreTask
}

func (t Task[T]) coreImpl() *coreTask { return t.core }

// WaitAny blocks until at least one task in ts has completed, or ctx ends,
// returning the index of a completed task. If several have already
// completed, the lowest index wins; among tasks that complete while
// WaitAny is blocked, whichever completion is noticed first wins.
func WaitAny(ctx context.Context, ts ...coreWaitable) (int, error) {
	if len(ts) == 0 {
		return -1, ErrEmptyWhenAny
	}
	for i, t := range ts {
		if t.coreImpl().isCompleted() {
			return i, nil
		}
	}

	cases := make([]*contingentProperties, len(ts))
	for i, t := range ts {
		cases[i] = t.coreImpl().ensureContingent()
	}
	// A task that completed before its block was allocated never closes it;
	// re-check now that every block exists (see block).
	for i, t := range ts {
		if t.coreImpl().isCompleted() {
			return i, nil
		}
	}

	// select requires a fixed-arity statement; with an arbitrary task count
	// we fall back to a merge goroutine per task: many producers, one
	// consumer channel, the first send wins.
	done := make(chan int, len(ts))
	for i, cp := range cases {
		i, cp := i, cp
		go func() {
			select {
			case <-cp.completion:
				done <- i
			case <-ctx.Done():
			}
		}()
	}

	select {
	case i := <-done:
		return i, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
