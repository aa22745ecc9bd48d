// Package dispatch provides the executors signals deliver on.
//
// An Executor decides where a callback runs:
//
//   - Immediate runs the task inline on the submitting goroutine. It is the
//     default for listeners and stands for "the caller's context".
//   - Queue runs tasks on background workers fed by a bounded buffer. A
//     serial queue (one worker) preserves submission order; a concurrent
//     queue does not.
//
// A Scheduler decides when: TimerScheduler wraps time.AfterFunc, and
// ManualScheduler lets tests move time forward explicitly.
//
// # Usage
//
//	q := dispatch.NewSerialQueue("ui")
//	if err := q.Start(); err != nil {
//	    return err
//	}
//	defer q.Stop(context.Background())
//
//	reg := dispatch.NewRegistry()
//	_ = reg.Register(q)
//	target := reg.MustGet("ui")
//
// # Panic Recovery
//
// Queue workers recover from panicking tasks so a bad callback cannot kill
// the process. Recovered panics are passed to the PanicHandler, or logged
// when none is set. Immediate does not recover: panics propagate to the
// submitter.
package dispatch
