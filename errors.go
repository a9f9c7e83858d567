package task

import (
	"errors"
	"fmt"
	"strings"
)

// AggregateError collects one or more failures captured from a task's body,
// its attached children, or the constituents of a combinator. It supports
// [errors.Is] and [errors.As] against any constituent via Unwrap.
type AggregateError struct {
	Errors []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "task: one or more errors occurred (no errors recorded)"
	case 1:
		return fmt.Sprintf("task: one or more errors occurred (%s)", e.Errors[0])
	default:
		msgs := make([]string, len(e.Errors))
		for i, err := range e.Errors {
			msgs[i] = err.Error()
		}
		return fmt.Sprintf("task: %d errors occurred:\n\t%s", len(e.Errors), strings.Join(msgs, "\n\t"))
	}
}

// Unwrap returns the constituent errors, enabling errors.Is/errors.As to
// walk into any of them.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// Is reports true for any *AggregateError target, regardless of contents,
// matching the way the constituents themselves are matched via Unwrap.
func (e *AggregateError) Is(target error) bool {
	var agg *AggregateError
	return errors.As(target, &agg)
}

// Flatten returns a new AggregateError with any nested AggregateError
// constituents replaced by their own constituents.
func (e *AggregateError) Flatten() *AggregateError {
	var out []error
	var walk func(errs []error)
	walk = func(errs []error) {
		for _, err := range errs {
			var agg *AggregateError
			if errors.As(err, &agg) {
				walk(agg.Errors)
			} else {
				out = append(out, err)
			}
		}
	}
	walk(e.Errors)
	return &AggregateError{Errors: out}
}

// CanceledError is the failure surfaced by a canceled task. It carries the
// token that triggered the cancellation, when known.
type CanceledError struct {
	Token CancellationToken
}

func (e *CanceledError) Error() string { return "task: operation was canceled" }

// PanicError wraps a recovered panic value from a task body or continuation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string { return fmt.Sprintf("task: panic: %v", e.Value) }

// Unwrap returns the panic value if it is itself an error, so errors.Is/As
// can match through it.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// SchedulerException wraps a failure returned by a Scheduler's Queue method.
// A task that fails to queue transitions directly to Faulted carrying this.
type SchedulerException struct {
	Cause error
}

func (e *SchedulerException) Error() string { return fmt.Sprintf("task: scheduler failed to queue task: %v", e.Cause) }

func (e *SchedulerException) Unwrap() error { return e.Cause }

// Sentinel errors for argument/state misuse, raised synchronously to the
// caller without mutating task state.
var (
	// ErrAlreadyStarted is returned by Start when called more than once, or
	// on a task that was constructed as a promise or continuation.
	ErrAlreadyStarted = errors.New("task: already started, is a promise, or is a continuation")
	// ErrDisposeNotCompleted is returned by Dispose on a task that has not
	// reached a terminal state.
	ErrDisposeNotCompleted = errors.New("task: cannot dispose a task that has not completed")
	// ErrNoScheduler is returned when an operation requires a scheduler and
	// none was supplied and no default is configured.
	ErrNoScheduler = errors.New("task: no scheduler available")
	// ErrEmptyWhenAny is returned by WhenAny when called with zero tasks.
	ErrEmptyWhenAny = errors.New("task: WhenAny requires at least one task")
	// ErrSchedulerClosed is available for Scheduler implementations to
	// return from Queue once shut down. The bundled scheduler.Pool returns
	// its own scheduler.ErrClosed instead.
	ErrSchedulerClosed = errors.New("task: scheduler is shut down")
)
