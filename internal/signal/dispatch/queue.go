package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PanicHandler is called when a task panics on a queue worker.
type PanicHandler func(err *PanicError)

// Queue executes tasks asynchronously on a fixed pool of workers reading
// from a bounded buffer. A queue with one worker is serial: tasks run in
// submission order. With more workers no ordering is guaranteed.
type Queue struct {
	// Configuration
	name        string
	queueSize   int
	workerCount int

	// State
	mu      sync.RWMutex // protects tasks creation/destruction
	tasks   chan func()
	running atomic.Bool
	group   *errgroup.Group

	// Handlers
	panicHandler PanicHandler
	logger       zerolog.Logger

	// Stats
	submitted   atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueSize sets the task buffer size.
func WithQueueSize(size int) QueueOption {
	return func(q *Queue) {
		if size > 0 {
			q.queueSize = size
		}
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) QueueOption {
	return func(q *Queue) {
		if count > 0 {
			q.workerCount = count
		}
	}
}

// WithPanicHandler sets the handler for panicking tasks.
func WithPanicHandler(h PanicHandler) QueueOption {
	return func(q *Queue) {
		q.panicHandler = h
	}
}

// WithQueueLogger sets the queue logger.
func WithQueueLogger(l zerolog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// NewQueue creates a stopped queue. Call Start before submitting tasks.
func NewQueue(name string, opts ...QueueOption) *Queue {
	q := &Queue{
		name:        name,
		queueSize:   10000,
		workerCount: 1,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewSerialQueue creates a single-worker queue.
func NewSerialQueue(name string, opts ...QueueOption) *Queue {
	opts = append(opts, WithWorkers(1))
	return NewQueue(name, opts...)
}

// NewConcurrentQueue creates a queue served by the given number of workers.
func NewConcurrentQueue(name string, workers int, opts ...QueueOption) *Queue {
	opts = append(opts, WithWorkers(workers))
	return NewQueue(name, opts...)
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Workers returns the number of worker goroutines.
func (q *Queue) Workers() int {
	return q.workerCount
}

// Serial reports whether tasks run one at a time in submission order.
func (q *Queue) Serial() bool {
	return q.workerCount == 1
}

// Start starts the worker pool.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running.Load() {
		return ErrAlreadyRunning
	}

	tasks := make(chan func(), q.queueSize)
	group := new(errgroup.Group)
	for i := 0; i < q.workerCount; i++ {
		group.Go(func() error {
			for task := range tasks {
				q.run(task)
			}
			return nil
		})
	}

	q.tasks = tasks
	q.group = group
	q.running.Store(true)

	q.logger.Debug().
		Str("executor", q.name).
		Int("workers", q.workerCount).
		Int("queue_size", q.queueSize).
		Msg("queue started")
	return nil
}

// Stop stops accepting tasks and waits for the queued ones to finish, or
// until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running.Store(false)
	close(q.tasks)
	group := q.group
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Debug().Str("executor", q.name).Msg("queue stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a task. It never blocks: a full buffer returns ErrQueueFull.
func (q *Queue) Submit(task func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running.Load() {
		return ErrNotRunning
	}

	select {
	case q.tasks <- task:
		q.submitted.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// run executes a single task with panic recovery and timing.
func (q *Queue) run(task func()) {
	start := time.Now()
	defer func() {
		q.totalTimeNs.Add(time.Since(start).Nanoseconds())
		q.processed.Add(1)
		if r := recover(); r != nil {
			q.panicked.Add(1)
			q.reportPanic(&PanicError{Executor: q.name, Value: r, Stack: debug.Stack()})
		}
	}()
	task()
}

func (q *Queue) reportPanic(err *PanicError) {
	if q.panicHandler == nil {
		q.logger.Error().
			Str("executor", err.Executor).
			Interface("panic", err.Value).
			Bytes("stack", err.Stack).
			Msg("task panicked")
		return
	}
	// A panicking handler must not take the worker down with it.
	defer func() { _ = recover() }()
	q.panicHandler(err)
}

// QueueDepth returns the number of tasks waiting in the buffer.
func (q *Queue) QueueDepth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running.Load() {
		return 0
	}
	return len(q.tasks)
}

// IsRunning returns true if the queue accepts tasks.
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

// Stats returns queue statistics.
func (q *Queue) Stats() QueueStats {
	processed := q.processed.Load()
	totalNs := q.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return QueueStats{
		Submitted:     q.submitted.Load(),
		Processed:     processed,
		Panicked:      q.panicked.Load(),
		Dropped:       q.dropped.Load(),
		QueueDepth:    q.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// QueueStats contains statistics for a queue.
type QueueStats struct {
	// Submitted is the number of tasks accepted into the buffer.
	Submitted uint64

	// Processed is the number of tasks that have run.
	Processed uint64

	// Panicked is the number of tasks that panicked.
	Panicked uint64

	// Dropped is the number of tasks rejected because the buffer was full.
	Dropped uint64

	// QueueDepth is the number of tasks waiting.
	QueueDepth int

	// TotalDuration is the cumulative time spent running tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task run time.
	AvgDuration time.Duration
}
