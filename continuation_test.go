package task

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoreTask() *coreTask { return newCoreTask(nil, creationConfig{}, internalPromiseTask, nil) }

func TestAddContinuationSingleThenList(t *testing.T) {
	core := newTestCoreTask()

	var order []int
	mk := func(i int) *continuation {
		return &continuation{run: func(Status) { order = append(order, i) }}
	}

	c1, c2, c3 := mk(1), mk(2), mk(3)
	require.True(t, core.addContinuation(c1))
	require.True(t, core.addContinuation(c2))
	require.True(t, core.addContinuation(c3))

	core.finishContinuations(StatusRanToCompletion)
	assert.ElementsMatch(t, []int{1, 2, 3}, order)
}

func TestAddContinuationAfterFiredRunsImmediately(t *testing.T) {
	core := newTestCoreTask()
	core.finishContinuations(StatusRanToCompletion)

	var ran bool
	c := &continuation{run: func(Status) { ran = true }}
	require.False(t, core.addContinuation(c))
	assert.False(t, ran) // caller, not addContinuation, is responsible for running it
}

func TestRemoveContinuationSingle(t *testing.T) {
	core := newTestCoreTask()
	ran := false
	c := &continuation{run: func(Status) { ran = true }}
	require.True(t, core.addContinuation(c))
	core.removeContinuation(c)
	core.finishContinuations(StatusRanToCompletion)
	assert.False(t, ran)
}

func TestRemoveContinuationFromList(t *testing.T) {
	core := newTestCoreTask()
	var fired atomic.Int32
	c1 := &continuation{run: func(Status) { fired.Add(1) }}
	c2 := &continuation{run: func(Status) { fired.Add(1) }}
	c3 := &continuation{run: func(Status) { fired.Add(1) }}
	require.True(t, core.addContinuation(c1))
	require.True(t, core.addContinuation(c2))
	require.True(t, core.addContinuation(c3))

	core.removeContinuation(c2)
	core.finishContinuations(StatusRanToCompletion)
	assert.Equal(t, int32(2), fired.Load())
}

func TestFinishContinuationsIsIdempotent(t *testing.T) {
	core := newTestCoreTask()
	var fired atomic.Int32
	c := &continuation{run: func(Status) { fired.Add(1) }}
	require.True(t, core.addContinuation(c))

	core.finishContinuations(StatusRanToCompletion)
	core.finishContinuations(StatusRanToCompletion)
	assert.Equal(t, int32(1), fired.Load())
}

func TestFinishContinuationsOrdersAsyncBeforeSync(t *testing.T) {
	core := newTestCoreTask()
	var order []string
	async := &continuation{run: func(Status) { order = append(order, "async") }, async: true}
	sync := &continuation{run: func(Status) { order = append(order, "sync") }, async: false}

	require.True(t, core.addContinuation(sync))
	require.True(t, core.addContinuation(async))

	core.finishContinuations(StatusRanToCompletion)
	require.Equal(t, []string{"async", "sync"}, order)
}

func TestHasContinuations(t *testing.T) {
	core := newTestCoreTask()
	assert.False(t, core.hasContinuations())
	require.True(t, core.addContinuation(&continuation{run: func(Status) {}}))
	assert.True(t, core.hasContinuations())
	core.finishContinuations(StatusRanToCompletion)
	assert.False(t, core.hasContinuations())
}
