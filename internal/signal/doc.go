// Package signal provides typed, in-process publish/subscribe signals whose
// listeners are tied to the lifetime of an owner.
//
// A Signal[T] holds listeners for one payload type. Each listener is bound
// to an Owner; once the owner is gone the listener stops receiving values
// and is pruned, so subscribers never have to unsubscribe explicitly:
//
//	type Panel struct{ title string }
//
//	p := &Panel{title: "status"}
//	sig := signal.New[string]()
//	signal.Listen(sig, p, func(msg string) { fmt.Println(msg) })
//	sig.Fire("ready")
//
// Owners come in three forms. Weak ties a listener to a heap object and
// relies on the garbage collector. Lifetime ends when End is called.
// Forever never ends. A callback must not capture its weak owner, or the
// owner will never be collected.
//
// # Delivery
//
// By default a callback runs synchronously on the goroutine calling Fire
// (or on the executor set with WithDefaultExecutor). DispatchOn moves
// delivery onto a dispatch.Executor such as a serial or concurrent
// dispatch.Queue. QueueAndDelayBy coalesces: values fired while a
// delivery is pending replace each other, and the callback receives only
// the most recent one when the delay expires. Filter drops values the
// predicate rejects without affecting the subscription.
//
// # Ordering
//
// Immediate listeners of a single Fire run in registration order. Listeners
// on the same serial queue receive values in fire order. No order is
// promised between listeners on different executors, or between Fire calls
// made concurrently from different goroutines.
//
// # Cancellation
//
// Cancel is idempotent and may be called from any goroutine, including the
// listener's own callback. Cancellation is checked right before each
// callback runs, but the check is not atomic with the callback: a delivery
// that passed the check on another goroutine may still complete after
// Cancel returns. After that, no further values are delivered.
//
// # Panics
//
// Misuse such as a nil callback, a nil executor, a negative delay or a
// kind requested with the wrong payload type panics with an error wrapping
// one of the package sentinels. Panics raised by immediate callbacks
// propagate to the caller of Fire; no internal lock is held at that point.
package signal
