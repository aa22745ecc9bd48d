package signal

import (
	"fmt"

	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/rs/zerolog"
)

// Option configures a Signal or an Emitter.
type Option func(*settings)

type settings struct {
	// name identifies the signal in logs and metrics.
	name string

	// executor runs immediate-policy callbacks. It stands for the caller's
	// context and defaults to dispatch.Immediate.
	executor dispatch.Executor

	// scheduler arms the timers of delayed listeners.
	scheduler dispatch.Scheduler

	logger   zerolog.Logger
	observer Observer

	// retainLast keeps the most recent fired value for ListenPast.
	retainLast bool
}

func defaultSettings() settings {
	return settings{
		name:      "signal",
		executor:  dispatch.Immediate,
		scheduler: dispatch.TimerScheduler{},
		logger:    zerolog.Nop(),
		observer:  NopObserver{},
	}
}

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithDefaultExecutor sets where listeners without an explicit executor
// run their callbacks. The default is dispatch.Immediate.
func WithDefaultExecutor(e dispatch.Executor) Option {
	if e == nil {
		panic(fmt.Errorf("WithDefaultExecutor: %w", ErrNilExecutor))
	}
	return func(s *settings) {
		s.executor = e
	}
}

// WithScheduler sets the scheduler for delayed listeners.
func WithScheduler(sch dispatch.Scheduler) Option {
	return func(s *settings) {
		if sch != nil {
			s.scheduler = sch
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithObserver sets the delivery observer.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o == nil {
			o = NopObserver{}
		}
		s.observer = o
	}
}

// WithRetainLast makes the signal keep the last fired value so that
// ListenPast can replay it.
func WithRetainLast() Option {
	return func(s *settings) {
		s.retainLast = true
	}
}
