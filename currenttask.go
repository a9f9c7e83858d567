package task

import (
	"sync"

	"github.com/joeycumines/goroutineid"
)

// currentTaskRegistry emulates a thread-local "currently executing task"
// slot. Go has no goroutine-locals, so this keys a map by goroutine
// identity instead, using the same sibling module the eventloop package
// depends on elsewhere in this workspace for goroutine bookkeeping.
var currentTaskRegistry sync.Map // goroutine id (uint64) -> *coreTask

// pushCurrentTask records t as the task owning the calling goroutine,
// returning the previous occupant (if any) so it can be restored. Tasks
// nest: a task that schedules and synchronously runs another on the same
// goroutine (e.g. TryInline, or a promise constructor) must restore its
// own occupancy afterward.
func pushCurrentTask(t *coreTask) (prev *coreTask) {
	id := goroutineid.Get()
	if v, ok := currentTaskRegistry.Load(id); ok {
		prev = v.(*coreTask)
	}
	currentTaskRegistry.Store(id, t)
	return prev
}

// popCurrentTask restores prev as the goroutine's current task, removing
// the entry entirely if prev is nil.
func popCurrentTask(prev *coreTask) {
	id := goroutineid.Get()
	if prev == nil {
		currentTaskRegistry.Delete(id)
		return
	}
	currentTaskRegistry.Store(id, prev)
}

// currentCoreTask returns the task currently executing on the calling
// goroutine, or nil if none.
func currentCoreTask() *coreTask {
	v, ok := currentTaskRegistry.Load(goroutineid.Get())
	if !ok {
		return nil
	}
	return v.(*coreTask)
}

// CurrentId returns the Id of the task currently executing on the calling
// goroutine, and true, or (0, false) if the calling goroutine is not
// executing a task body.
func CurrentId() (id uint32, ok bool) {
	t := currentCoreTask()
	if t == nil {
		return 0, false
	}
	return t.id, true
}
