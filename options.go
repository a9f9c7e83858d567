package task

// creationConfig accumulates the result of applying CreationOption values.
type creationConfig struct {
	bits  uint32
	token CancellationToken
}

// CreationOption configures a task at construction time.
type CreationOption interface {
	applyCreation(*creationConfig)
}

type creationOptionFunc func(*creationConfig)

func (f creationOptionFunc) applyCreation(c *creationConfig) { f(c) }

// WithPreferFairness sets OptPreferFairness.
func WithPreferFairness() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptPreferFairness) })
}

// WithLongRunning sets OptLongRunning.
func WithLongRunning() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptLongRunning) })
}

// WithAttachedToParent sets OptAttachedToParent.
func WithAttachedToParent() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptAttachedToParent) })
}

// WithDenyChildAttach sets OptDenyChildAttach.
func WithDenyChildAttach() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptDenyChildAttach) })
}

// WithHideScheduler sets OptHideScheduler.
func WithHideScheduler() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptHideScheduler) })
}

// WithRunContinuationsAsynchronously sets OptRunContinuationsAsynchronously.
func WithRunContinuationsAsynchronously() CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.bits |= uint32(OptRunContinuationsAsynchronously) })
}

// WithCancellation arms the task with a CancellationToken, checked at
// construction: if already requested, the task is built directly into the
// Canceled state and never scheduled.
func WithCancellation(tok CancellationToken) CreationOption {
	return creationOptionFunc(func(c *creationConfig) { c.token = tok })
}

func resolveCreationOptions(opts []CreationOption) creationConfig {
	var c creationConfig
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyCreation(&c)
	}
	return c
}

// ContinuationOptions is the superset of CreationOptions honored by
// ContinueWith: in addition to the bits above, a continuation carries an
// execution-mode bit and gating predicates over the antecedent's terminal
// status.
type ContinuationOptions uint32

const (
	ContinuationNone ContinuationOptions = 0

	// ContinuationExecuteSynchronously permits the continuation to run on
	// the thread that completes the antecedent, rather than always being
	// queued to a scheduler.
	ContinuationExecuteSynchronously ContinuationOptions = 1 << 8
	// ContinuationLazyCancellation defers observing the continuation's own
	// token until the antecedent has completed, rather than canceling the
	// continuation the instant the token fires.
	ContinuationLazyCancellation ContinuationOptions = 1 << 9

	ContinuationNotOnRanToCompletion ContinuationOptions = 1 << 10
	ContinuationNotOnFaulted         ContinuationOptions = 1 << 11
	ContinuationNotOnCanceled        ContinuationOptions = 1 << 12

	ContinuationOnlyOnRanToCompletion ContinuationOptions = ContinuationNotOnFaulted | ContinuationNotOnCanceled
	ContinuationOnlyOnFaulted         ContinuationOptions = ContinuationNotOnRanToCompletion | ContinuationNotOnCanceled
	ContinuationOnlyOnCanceled        ContinuationOptions = ContinuationNotOnRanToCompletion | ContinuationNotOnFaulted
)

// gate reports whether a continuation with these options should run given
// the antecedent's terminal status, as a single bitmask-checked predicate
// replacing four bespoke code paths.
func (o ContinuationOptions) gate(s Status) bool {
	switch s {
	case StatusRanToCompletion:
		return o&ContinuationNotOnRanToCompletion == 0
	case StatusFaulted:
		return o&ContinuationNotOnFaulted == 0
	case StatusCanceled:
		return o&ContinuationNotOnCanceled == 0
	default:
		return true
	}
}

// continuationConfig accumulates ContinuationOption application.
type continuationConfig struct {
	creation  creationConfig
	contOpts  ContinuationOptions
	scheduler Scheduler
}

// ContinuationOption configures a call to ContinueWith.
type ContinuationOption interface {
	applyContinuation(*continuationConfig)
}

type continuationOptionFunc func(*continuationConfig)

func (f continuationOptionFunc) applyContinuation(c *continuationConfig) { f(c) }

// WithContinuationOptions sets the gating/execution-mode bits.
func WithContinuationOptions(opts ContinuationOptions) ContinuationOption {
	return continuationOptionFunc(func(c *continuationConfig) { c.contOpts |= opts })
}

// WithContinuationCancellation arms the continuation with its own token.
func WithContinuationCancellation(tok CancellationToken) ContinuationOption {
	return continuationOptionFunc(func(c *continuationConfig) { c.creation.token = tok })
}

// WithContinuationScheduler pins the continuation to a specific scheduler,
// overriding the antecedent's.
func WithContinuationScheduler(s Scheduler) ContinuationOption {
	return continuationOptionFunc(func(c *continuationConfig) { c.scheduler = s })
}

func resolveContinuationOptions(opts []ContinuationOption) continuationConfig {
	var c continuationConfig
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyContinuation(&c)
	}
	return c
}

// startConfig accumulates the result of applying StartOption values.
type startConfig struct {
	scheduler Scheduler
}

// StartOption configures a call to Task.Start.
type StartOption interface {
	applyStart(*startConfig)
}

type startOptionFunc func(*startConfig)

func (f startOptionFunc) applyStart(c *startConfig) { f(c) }

// WithScheduler pins Start to a specific Scheduler, overriding whatever
// Start would otherwise infer from the ambient current task or the package
// default.
func WithScheduler(s Scheduler) StartOption {
	return startOptionFunc(func(c *startConfig) { c.scheduler = s })
}

func resolveStartOptions(opts []StartOption) startConfig {
	var c startConfig
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyStart(&c)
	}
	return c
}
