package task

// continuation is one registered callback, fired once with the antecedent's
// terminal Status.
type continuation struct {
	run func(Status)
	// async marks a continuation for the first dispatch pass below. The
	// engine still calls run on the completer's goroutine; a continuation
	// that must not do its real work there (ContinueWith's, under
	// OptRunContinuationsAsynchronously or without
	// ContinuationExecuteSynchronously) hands that work to a scheduler from
	// inside run.
	async bool
}

// contSlotKind tags which of the four inhabitants a contState holds.
type contSlotKind int

const (
	contEmpty contSlotKind = iota
	contSingle
	contList
	contFired // sentinel: FinishContinuations has already drained this slot
)

// contState is the single value published into coreTask.continuations. Only
// ever replaced wholesale via CompareAndSwap/Swap on the enclosing
// atomic.Pointer, so every reader sees a fully-formed snapshot: a tagged
// union over a slice of subscribers, so the zero-continuation case
// allocates nothing.
type contState struct {
	kind   contSlotKind
	single *continuation
	list   []*continuation
}

// addContinuation registers c, returning false if the antecedent has already
// completed (including tasks built pre-completed, whose slot never fires) or
// the slot has already fired — the caller must then run c itself,
// synchronously, exactly once.
func (t *coreTask) addContinuation(c *continuation) bool {
	if t.isCompleted() {
		return false
	}
	for {
		cur := t.continuations.Load()
		var next *contState
		switch {
		case cur == nil:
			next = &contState{kind: contSingle, single: c}
		case cur.kind == contFired:
			return false
		case cur.kind == contSingle:
			next = &contState{kind: contList, list: []*continuation{cur.single, c}}
		case cur.kind == contList:
			grown := make([]*continuation, len(cur.list)+1)
			copy(grown, cur.list)
			grown[len(cur.list)] = c
			next = &contState{kind: contList, list: grown}
		default:
			next = &contState{kind: contSingle, single: c}
		}
		if t.continuations.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// removeContinuation unregisters c if still present, used by ContinueWith's
// own cancellation-token registration to detach a continuation whose token
// fired before the antecedent completed. The list form is nulled in place
// (never shrunk) so a concurrent drain can't observe a shorter slice than
// it started iterating.
func (t *coreTask) removeContinuation(c *continuation) {
	for {
		cur := t.continuations.Load()
		if cur == nil || cur.kind == contFired {
			return
		}
		switch cur.kind {
		case contSingle:
			if cur.single != c {
				return
			}
			if t.continuations.CompareAndSwap(cur, &contState{kind: contEmpty}) {
				return
			}
		case contList:
			found := false
			next := make([]*continuation, len(cur.list))
			for i, existing := range cur.list {
				if existing == c {
					found = true
					next[i] = nil
				} else {
					next[i] = existing
				}
			}
			if !found {
				return
			}
			if t.continuations.CompareAndSwap(cur, &contState{kind: contList, list: next}) {
				return
			}
		default:
			return
		}
	}
}

// finishContinuations fires every registered continuation exactly once,
// gated on the task's final Status, then marks the slot fired so any
// further addContinuation call is told to run its callback immediately.
//
// Dispatch is two-pass: continuations flagged async run first, then
// synchronous-eligible ones. Both passes call run inline on the completer's
// goroutine; an async-flagged run is expected to return quickly (ContinueWith
// queues its body to a scheduler from there). The two
// passes exist because OptRunContinuationsAsynchronously distinguishes "must
// not block the completer" continuations from ones that may.
func (t *coreTask) finishContinuations(status Status) {
	var fired *contState
	for {
		cur := t.continuations.Load()
		if cur != nil && cur.kind == contFired {
			return
		}
		if t.continuations.CompareAndSwap(cur, &contState{kind: contFired}) {
			fired = cur
			break
		}
	}
	if fired == nil {
		return
	}

	var list []*continuation
	switch fired.kind {
	case contSingle:
		list = []*continuation{fired.single}
	case contList:
		for _, c := range fired.list {
			if c != nil {
				list = append(list, c)
			}
		}
	}

	var sync []*continuation
	for _, c := range list {
		if c.async {
			c.run(status)
		} else {
			sync = append(sync, c)
		}
	}
	for _, c := range sync {
		c.run(status)
	}
}

// hasContinuations reports whether any continuation is currently registered
// (used by finish to decide whether a fault is reported as unobserved;
// never load-bearing for correctness).
func (t *coreTask) hasContinuations() bool {
	cur := t.continuations.Load()
	return cur != nil && (cur.kind == contSingle || cur.kind == contList)
}
