package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running queue.
	ErrAlreadyRunning = errors.New("executor is already running")

	// ErrNotRunning is returned when tasks are submitted to a stopped queue.
	ErrNotRunning = errors.New("executor is not running")

	// ErrQueueFull is returned when the queue is at capacity and cannot accept more tasks.
	ErrQueueFull = errors.New("task queue is full")

	// ErrDuplicateExecutor is returned when an executor name is registered twice.
	ErrDuplicateExecutor = errors.New("executor already registered")

	// ErrUnknownExecutor is returned when a named executor does not exist.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrTaskPanic is matched by PanicError.
	ErrTaskPanic = errors.New("task panicked")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	// Executor is the name of the executor running the task.
	Executor string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic on executor %s: %v", e.Executor, e.Value)
}

// Is allows errors.Is to match PanicError with ErrTaskPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrTaskPanic
}
