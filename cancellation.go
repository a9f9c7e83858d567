package task

import (
	"context"
	"sync"
)

// CancellationTokenSource is a one-shot signal plus callback registration.
// Its shape — a mutex-guarded state flag with a fan-out list of subscribers,
// drained exactly once on signal — mirrors a promise type's fanOut pattern,
// the closest thing to a single-fire broadcast primitive.
type CancellationTokenSource struct {
	mu        sync.Mutex
	requested bool
	callbacks []*cancelCallback
	nextID    uint64
}

type cancelCallback struct {
	id      uint64
	fn      func()
	removed bool
}

// NewCancellationTokenSource creates an armed, not-yet-requested source.
func NewCancellationTokenSource() *CancellationTokenSource {
	return &CancellationTokenSource{}
}

// Token returns the CancellationToken view of this source.
func (s *CancellationTokenSource) Token() CancellationToken { return CancellationToken{src: s} }

// IsCancellationRequested reports whether Cancel has been called.
func (s *CancellationTokenSource) IsCancellationRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Cancel signals the token. Idempotent: only the first call fans out to
// registered callbacks; later calls are no-ops. Callbacks run synchronously
// on the calling goroutine, in registration order.
func (s *CancellationTokenSource) Cancel() {
	s.mu.Lock()
	if s.requested {
		s.mu.Unlock()
		return
	}
	s.requested = true
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		if !cb.removed {
			cb.fn()
		}
	}
}

// CancellationToken is a read-only capability over a CancellationTokenSource.
// Its zero value is CancellationToken{}, aka "None": CanBeCanceled reports
// false and the token will never fire.
type CancellationToken struct {
	src *CancellationTokenSource
}

// CanBeCanceled reports whether this token is backed by a source at all.
func (t CancellationToken) CanBeCanceled() bool { return t.src != nil }

// IsCancellationRequested reports whether the backing source has fired.
func (t CancellationToken) IsCancellationRequested() bool {
	return t.src != nil && t.src.IsCancellationRequested()
}

// Register arranges for fn to run when the token fires. If the token has
// already fired, fn runs synchronously before Register returns. The
// returned func removes the registration; it is safe to call multiple
// times and after the token has already fired.
func (t CancellationToken) Register(fn func()) (unregister func()) {
	if t.src == nil || fn == nil {
		return func() {}
	}
	s := t.src

	s.mu.Lock()
	if s.requested {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	s.nextID++
	cb := &cancelCallback{id: s.nextID, fn: fn}
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		cb.removed = true
		s.mu.Unlock()
	}
}

// Equal reports whether two tokens are backed by the same source (or are
// both None).
func (t CancellationToken) Equal(other CancellationToken) bool { return t.src == other.src }

// contextFromToken adapts tok to the context.Context a task body receives,
// so that code can select on ctx.Done() instead of polling the token
// directly. A token that can never fire yields context.Background() with no
// extra bookkeeping.
func contextFromToken(tok CancellationToken) context.Context {
	if !tok.CanBeCanceled() {
		return context.Background()
	}
	ctx, cancel := context.WithCancel(context.Background())
	tok.Register(cancel)
	return ctx
}
