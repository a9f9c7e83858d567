package scheduler

import "sync/atomic"

// poolState represents the lifecycle of a Pool. Terminated sorts before
// Running purely because there's no reason to renumber it.
type poolState uint64

const (
	stateAwake       poolState = 0
	stateTerminated  poolState = 1
	stateRunning     poolState = 3
	stateTerminating poolState = 4
)

func (s poolState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateTerminating:
		return "Terminating"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine over a single atomic word. A
// pool's state is touched far less often than a per-tick hot path, so this
// skips cache-line padding that a busier state word might warrant.
type fastState struct {
	v atomic.Uint64
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(stateAwake))
	return s
}

func (s *fastState) Load() poolState { return poolState(s.v.Load()) }

func (s *fastState) Store(state poolState) { s.v.Store(uint64(state)) }

func (s *fastState) TryTransition(from, to poolState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) CanAcceptWork() bool {
	state := s.Load()
	return state == stateAwake || state == stateRunning
}
