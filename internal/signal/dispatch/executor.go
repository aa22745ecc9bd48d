package dispatch

// Executor runs tasks. Implementations decide where and when: inline on the
// caller's goroutine, or later on a background worker.
type Executor interface {
	// Name identifies the executor in logs and metrics.
	Name() string

	// Submit hands a task to the executor. It must not block on the task's
	// execution unless the executor is inline by definition.
	Submit(task func()) error
}

// ImmediateName is the registry name of the Immediate executor.
const ImmediateName = "immediate"

// Immediate runs every task synchronously on the submitting goroutine.
// It is the default "caller's context" executor.
var Immediate Executor = immediate{}

type immediate struct{}

func (immediate) Name() string { return ImmediateName }

// Submit runs task before returning. Panics propagate to the caller.
func (immediate) Submit(task func()) error {
	task()
	return nil
}

// Func adapts a plain function into an Executor. It is mostly useful in
// tests, where the function can record or reorder submitted tasks.
type Func struct {
	ExecutorName string
	SubmitFunc   func(task func()) error
}

// Name returns the configured name.
func (f Func) Name() string { return f.ExecutorName }

// Submit calls SubmitFunc.
func (f Func) Submit(task func()) error { return f.SubmitFunc(task) }
