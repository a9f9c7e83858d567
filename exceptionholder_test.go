package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionHolderAddAndAggregate(t *testing.T) {
	h := newExceptionHolder(1)
	assert.Nil(t, h.toAggregate())

	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	h.add(boom1)
	h.add(boom2)

	agg := h.toAggregate()
	require.Error(t, agg)
	assert.ErrorIs(t, agg, boom1)
	assert.ErrorIs(t, agg, boom2)
}

func TestExceptionHolderAddNilIsNoop(t *testing.T) {
	h := newExceptionHolder(1)
	h.add(nil)
	assert.Nil(t, h.toAggregate())
}

func TestExceptionHolderMarkObservedIsOneShot(t *testing.T) {
	h := newExceptionHolder(1)
	assert.True(t, h.markObserved())
	assert.False(t, h.markObserved())
	assert.True(t, h.isObserved())
}

func TestExceptionHolderWarnIfUnobservedSkipsCancellation(t *testing.T) {
	h := newExceptionHolder(1)
	h.markCancellation()
	h.add(&CanceledError{})
	h.warnIfUnobserved() // must not panic or misbehave; nothing to assert on the no-op logger
	assert.False(t, h.isObserved())
}

func TestExceptionHolderWarnIfUnobservedNilReceiverIsSafe(t *testing.T) {
	var h *exceptionHolder
	h.warnIfUnobserved()
}

func TestAggregateErrorFlatten(t *testing.T) {
	inner := &AggregateError{Errors: []error{errors.New("a"), errors.New("b")}}
	outer := &AggregateError{Errors: []error{inner, errors.New("c")}}
	flat := outer.Flatten()
	assert.Len(t, flat.Errors, 3)
}

func TestAggregateErrorIs(t *testing.T) {
	agg := &AggregateError{Errors: []error{errors.New("a")}}
	assert.True(t, errors.Is(error(agg), &AggregateError{}))
}

func TestPanicErrorUnwrapsErrorValue(t *testing.T) {
	boom := errors.New("boom")
	pe := PanicError{Value: boom}
	assert.ErrorIs(t, error(pe), boom)
}

func TestPanicErrorUnwrapsNonErrorValue(t *testing.T) {
	pe := PanicError{Value: "not an error"}
	assert.Nil(t, pe.Unwrap())
}

func TestSchedulerExceptionUnwrap(t *testing.T) {
	cause := errors.New("cause")
	se := &SchedulerException{Cause: cause}
	assert.ErrorIs(t, error(se), cause)
}
