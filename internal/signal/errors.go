package signal

import "errors"

// Sentinel errors for programmer mistakes. They are raised as panics
// (wrapped with detail) because they indicate a bug in the caller, not a
// runtime condition.
var (
	// ErrNilCallback is raised when Listen is given a nil callback.
	ErrNilCallback = errors.New("listener callback cannot be nil")

	// ErrNilExecutor is raised when a nil executor is configured.
	ErrNilExecutor = errors.New("executor cannot be nil")

	// ErrNegativeDelay is raised when QueueAndDelayBy is given a negative delay.
	ErrNegativeDelay = errors.New("delay cannot be negative")

	// ErrKindTypeMismatch is raised when an emitter kind is requested with a
	// payload type other than the one it was created with.
	ErrKindTypeMismatch = errors.New("event kind registered with a different payload type")
)
