package signal

import "time"

// DropReason says why a value was not handed to a callback.
type DropReason int

const (
	// DropFiltered means the listener's filter rejected the value.
	DropFiltered DropReason = iota

	// DropCancelled means the listener was cancelled, or its owner died,
	// between fan-out and invocation.
	DropCancelled

	// DropRejected means the target executor refused the task.
	DropRejected
)

// String returns a human-readable reason.
func (r DropReason) String() string {
	switch r {
	case DropFiltered:
		return "filtered"
	case DropCancelled:
		return "cancelled"
	case DropRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Observer receives delivery events from signals. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	// Fired is called once per Fire with the number of live listeners.
	Fired(signal string, live int)

	// Delivered is called after a callback returns.
	Delivered(signal string, mode DispatchMode, start time.Time, elapsed time.Duration)

	// Dropped is called when a value does not reach a callback.
	Dropped(signal string, mode DispatchMode, reason DropReason)

	// Coalesced is called when a delayed listener overwrites a pending value.
	Coalesced(signal string)

	// Pruned is called when dead listeners are removed.
	Pruned(signal string, n int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Fired(string, int)                                        {}
func (NopObserver) Delivered(string, DispatchMode, time.Time, time.Duration) {}
func (NopObserver) Dropped(string, DispatchMode, DropReason)                 {}
func (NopObserver) Coalesced(string)                                         {}
func (NopObserver) Pruned(string, int)                                       {}

// Observers fans events out to several observers in order.
func Observers(obs ...Observer) Observer {
	list := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) Fired(signal string, live int) {
	for _, o := range m {
		o.Fired(signal, live)
	}
}

func (m multiObserver) Delivered(signal string, mode DispatchMode, start time.Time, elapsed time.Duration) {
	for _, o := range m {
		o.Delivered(signal, mode, start, elapsed)
	}
}

func (m multiObserver) Dropped(signal string, mode DispatchMode, reason DropReason) {
	for _, o := range m {
		o.Dropped(signal, mode, reason)
	}
}

func (m multiObserver) Coalesced(signal string) {
	for _, o := range m {
		o.Coalesced(signal)
	}
}

func (m multiObserver) Pruned(signal string, n int) {
	for _, o := range m {
		o.Pruned(signal, n)
	}
}
