// Package dispatch decides where and when a delivery runs. The bus hands a
// Task to the Dispatcher registered for a route; the dispatcher runs it on
// the UI loop or on a dedicated worker goroutine.
package dispatch

import (
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Task is a single deferred handler invocation.
type Task func()

// Dispatcher runs tasks in some execution context. Dispatch must not block
// on the task itself; Stop releases whatever the dispatcher owns.
type Dispatcher interface {
	Dispatch(task Task)
	Stop()
}

// Poster schedules a function to run later on a cooperative event loop.
// Implementations must be safe to call from any goroutine.
type Poster interface {
	Post(fn func())
}

// runTask executes task and turns a panic into a log entry so one bad
// handler cannot take its execution context down.
func runTask(logger zerolog.Logger, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Task panicked")
		}
	}()
	task()
}
