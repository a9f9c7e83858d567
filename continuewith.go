package task

import "runtime/debug"

// ContinueWith schedules fn to run once t completes, per the gating rules
// in opts, producing a new task for the continuation's own result. The
// continuation task starts in WaitingForActivation and is driven entirely
// by t's completion, never by an explicit Start call.
func ContinueWith[T, R any](t Task[T], fn func(Task[T]) (R, error), opts ...ContinuationOption) Task[R] {
	cfg := resolveContinuationOptions(opts)

	var parent *coreTask
	if CreationOptions(cfg.creation.bits).Has(OptAttachedToParent) {
		parent = currentCoreTask()
	}
	// The continuation's own token is wired up explicitly below, since
	// whether it applies eagerly or only after the antecedent completes
	// depends on ContinuationLazyCancellation — newCoreTask's built-in
	// wiring only knows the eager case.
	eagerCreation := cfg.creation
	eagerCreation.token = CancellationToken{}
	contCore := newCoreTask(nil, eagerCreation, internalContinuationTask, parent)
	contCore.state.Store(contCore.state.Load() | stateWaitingForActivation)
	contTask := Task[R]{core: contCore}

	runAsync := t.core.creationOptions().Has(OptRunContinuationsAsynchronously)

	run := func(antecedentStatus Status) {
		if cfg.contOpts&ContinuationLazyCancellation != 0 && cfg.creation.token.IsCancellationRequested() {
			contCore.markCanceled(cfg.creation.token)
			return
		}
		if !cfg.contOpts.gate(antecedentStatus) {
			// Gated out: the continuation never runs and never completes
			// RanToCompletion/Faulted — it completes Canceled, matching the
			// .NET behavior of a continuation whose predicate excludes the
			// antecedent's outcome.
			contCore.markCanceled(CancellationToken{})
			return
		}

		sched := cfg.scheduler
		if sched == nil {
			sched = contCore.resolveScheduler()
		}

		body := func() {
			contCore.state.Store(contCore.state.Load() | stateDelegateInvoked)
			prev := pushCurrentTask(contCore)
			var (
				res R
				err error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = PanicError{Value: r, Stack: debug.Stack()}
					}
				}()
				res, err = fn(t)
			}()
			popCurrentTask(prev)

			if !contCore.beginFinish() {
				return
			}
			if err != nil {
				if _, isCanceled := err.(*CanceledError); isCanceled {
					contCore.ensureContingent().exception.markCancellation()
					contCore.ensureContingent().exception.add(err)
					contCore.finish(stateCanceled)
					return
				}
				contCore.ensureContingent().exception.add(err)
				contCore.finish(stateFaulted)
				return
			}
			contCore.result = res
			contCore.finishWithChildren(stateRanToCompletion)
		}

		canInline := cfg.contOpts&ContinuationExecuteSynchronously != 0 && !runAsync && sched.TryInline()
		if canInline {
			body()
			return
		}
		if err := sched.Queue(body); err != nil {
			logSchedulerFailure(contCore.id, err)
			if contCore.beginFinish() {
				contCore.ensureContingent().exception.add(&SchedulerException{Cause: err})
				contCore.finish(stateFaulted)
			}
		}
	}

	c := &continuation{run: run, async: runAsync || cfg.contOpts&ContinuationExecuteSynchronously == 0}

	if !t.core.addContinuation(c) {
		// t had already finished by the time we registered; run is
		// expected to be invoked exactly once, synchronously, right here.
		run(t.core.status())
	}

	if cfg.creation.token.CanBeCanceled() && cfg.contOpts&ContinuationLazyCancellation == 0 {
		unregister := cfg.creation.token.Register(func() {
			t.core.removeContinuation(c)
			contCore.markCanceled(cfg.creation.token)
		})
		contCore.ensureContingent().cancelUnregist = unregister
	}

	return contTask
}
