package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitAllSuccess(t *testing.T) {
	a := FromResult(1)
	b := FromResult(2)
	err := WaitAll(context.Background(), a, b)
	assert.NoError(t, err)
}

func TestWaitAllAggregatesFailures(t *testing.T) {
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	a := FromException[int](boom1)
	b := FromException[int](boom2)
	err := WaitAll(context.Background(), a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom1)
	assert.ErrorIs(t, err, boom2)
}

func TestWaitAllRespectsContext(t *testing.T) {
	tk, _, _, _ := NewPromise[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := WaitAll(ctx, tk)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAnyReturnsFirstCompleted(t *testing.T) {
	slow, setSlow, _, _ := NewPromise[int]()
	fast := FromResult(1)
	idx, err := WaitAny(context.Background(), slow, fast)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	setSlow(0)
}

func TestWaitAnyEmptyReturnsError(t *testing.T) {
	_, err := WaitAny(context.Background())
	assert.ErrorIs(t, err, ErrEmptyWhenAny)
}

func TestWaitAnyWakesOnLateCompletion(t *testing.T) {
	tk, setResult, _, _ := NewPromise[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		setResult(9)
	}()
	idx, err := WaitAny(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestObservedErrorMarksHolderObserved(t *testing.T) {
	tk := FromException[int](errors.New("boom"))
	_, err := tk.Result(context.Background())
	require.Error(t, err)
	cp := tk.core.contingentOrNil()
	require.NotNil(t, cp)
	assert.True(t, cp.exception.isObserved())
}
