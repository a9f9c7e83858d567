package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusCreated, "Created"},
		{StatusWaitingForActivation, "WaitingForActivation"},
		{StatusWaitingToRun, "WaitingToRun"},
		{StatusRunning, "Running"},
		{StatusWaitingForChildrenToComplete, "WaitingForChildrenToComplete"},
		{StatusRanToCompletion, "RanToCompletion"},
		{StatusCanceled, "Canceled"},
		{StatusFaulted, "Faulted"},
		{Status(99), "Unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.status.String())
	}
}

func TestCoreTaskStatusProgression(t *testing.T) {
	core := newCoreTask(func() (any, error) { return 1, nil }, creationConfig{}, 0, nil)
	require.Equal(t, StatusCreated, core.status())

	require.True(t, core.markStarted())
	require.Equal(t, StatusWaitingToRun, core.status())

	core.execute()
	require.Equal(t, StatusRanToCompletion, core.status())
	require.True(t, core.isCompleted())
	require.True(t, core.isRanToCompletion())
	require.False(t, core.isFaulted())
	require.False(t, core.isCanceled())
}

func TestAtomicStateUpdateRejectsIllegalBits(t *testing.T) {
	core := newCoreTask(nil, creationConfig{}, 0, nil)
	require.True(t, core.atomicStateUpdate(stateStarted, stateCanceled))
	require.False(t, core.atomicStateUpdate(stateCanceled, stateStarted))
}

func TestMarkStartedRejectsDoubleStart(t *testing.T) {
	core := newCoreTask(nil, creationConfig{}, 0, nil)
	require.True(t, core.markStarted())
	require.False(t, core.markStarted())
}

func TestCreationOptionsHas(t *testing.T) {
	opts := OptLongRunning | OptPreferFairness
	assert.True(t, opts.Has(OptLongRunning))
	assert.True(t, opts.Has(OptPreferFairness))
	assert.False(t, opts.Has(OptAttachedToParent))
	assert.True(t, opts.Has(OptLongRunning|OptPreferFairness))
}
