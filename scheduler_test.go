package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineSchedulerRunsSynchronously(t *testing.T) {
	ran := false
	s := inlineScheduler{}
	require.NoError(t, s.Queue(func() { ran = true }))
	assert.True(t, ran)
	assert.False(t, s.TryInline())
}

func TestSetDefaultSchedulerNilRestoresInline(t *testing.T) {
	defer SetDefaultScheduler(nil)
	SetDefaultScheduler(nil)
	_, ok := getDefaultScheduler().(inlineScheduler)
	assert.True(t, ok)
}

type fakeFailingScheduler struct{ err error }

func (f fakeFailingScheduler) Queue(func()) error { return f.err }
func (f fakeFailingScheduler) TryInline() bool     { return false }

func TestStartFaultsOnSchedulerRejection(t *testing.T) {
	boom := errors.New("rejected")
	tk := New(func(ctx context.Context) (int, error) { return 1, nil })
	err := tk.Start(WithScheduler(fakeFailingScheduler{err: boom}))
	require.ErrorIs(t, err, boom)
	assert.True(t, tk.IsFaulted())
	_, resultErr := tk.Result(context.Background())
	var se *SchedulerException
	require.ErrorAs(t, resultErr, &se)
	assert.ErrorIs(t, se, boom)
}

func TestWithSchedulerOverridesResolution(t *testing.T) {
	s := fakeFailingScheduler{err: nil}
	tk := New(func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, tk.Start(WithScheduler(s)))
}
