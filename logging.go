// logging.go - structured logging sink for the task package.
//
// The runtime never forces a logging backend on a consumer: by default the
// package-level logger is a disabled logiface.Logger (Build calls are no-ops
// until a Writer is configured), matching the package's zero-configuration
// contract. Wire a real backend with SetLogger, using any of the pack's
// logiface adapters (slog, zerolog, logrus).
package task

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

func init() {
	globalLogger.logger = logiface.L.New()
}

// SetLogger installs the structured logger used for the runtime's own
// diagnostic events: scheduler queue failures, unobserved exception-holder
// finalization, cancellation acknowledgement, and scheduler overload.
// Passing nil restores the disabled default.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	if logger == nil {
		logger = logiface.L.New()
	}
	globalLogger.logger = logger
}

func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

func logSchedulerFailure(id uint32, err error) {
	getLogger().Build(logiface.LevelError).
		Int("task_id", int(id)).
		Err(err).
		Log("task: scheduler failed to queue task")
}

func logUnobservedException(id uint32, summary string) {
	getLogger().Build(logiface.LevelWarning).
		Int("task_id", int(id)).
		Str("exception", summary).
		Log("task: unobserved task exception")
}

func logCancellationAcknowledged(id uint32) {
	getLogger().Build(logiface.LevelDebug).
		Int("task_id", int(id)).
		Log("task: cancellation acknowledged")
}

func logSchedulerOverload(err error) {
	getLogger().Build(logiface.LevelWarning).
		Err(err).
		Log("task: scheduler overloaded")
}

// LogSchedulerOverload is suitable for assignment to a task/scheduler.Pool's
// OnOverload field, routing that pool's rejected-submission notifications
// through this package's own configured logger rather than requiring a
// second, independently-wired sink.
func LogSchedulerOverload(err error) { logSchedulerOverload(err) }
