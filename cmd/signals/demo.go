package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func demoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the delivery scenarios and print what each listener received",
		Long: `Run a fixed set of scenarios against real timers and queues:

  delayed     one value delivered after 100ms
  coalesced   three quick fires delivered as the last value
  filtered    only even values pass the filter
  cancelled   a listener cancelled before its delayed delivery
  owners      one of two owners ends its lifetime
  weak        a listener whose owner is garbage collected
  queue       deliveries on a serial background queue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), g.logger)
		},
	}
}

// scenario is a named demonstration returning a one-line result.
type scenario struct {
	name string
	run  func(ctx context.Context, logger zerolog.Logger) (string, error)
}

func scenarios() []scenario {
	return []scenario{
		{"delayed", demoDelayed},
		{"coalesced", demoCoalesced},
		{"filtered", demoFiltered},
		{"cancelled", demoCancelled},
		{"owners", demoOwners},
		{"weak", demoWeak},
		{"queue", demoQueue},
	}
}

func runDemo(ctx context.Context, w io.Writer, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, s := range scenarios() {
		result, err := s.run(ctx, logger.With().Str("scenario", s.name).Logger())
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		fmt.Fprintf(w, "%-10s %s\n", s.name, result)
	}
	return nil
}

func await[T any](ctx context.Context, ch chan T, timeout time.Duration) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-time.After(timeout):
		return zero, fmt.Errorf("no delivery within %v", timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func demoDelayed(ctx context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[int](signal.WithName("delayed"), signal.WithLogger(logger))
	got := make(chan int, 1)

	sig.Listen(signal.Forever, func(v int) { got <- v }).QueueAndDelayBy(100 * time.Millisecond)
	sig.Fire(42)

	v, err := await(ctx, got, time.Second)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("received %d", v), nil
}

func demoCoalesced(ctx context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[int](signal.WithName("coalesced"), signal.WithLogger(logger))
	got := make(chan int, 3)

	sig.Listen(signal.Forever, func(v int) { got <- v }).QueueAndDelayBy(100 * time.Millisecond)
	sig.Fire(1)
	sig.Fire(2)
	sig.Fire(3)

	v, err := await(ctx, got, time.Second)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("fired [1 2 3], received %d", v), nil
}

func demoFiltered(_ context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[int](signal.WithName("filtered"), signal.WithLogger(logger))

	var got []int
	sig.Listen(signal.Forever, func(v int) { got = append(got, v) }).
		Filter(func(v int) bool { return v%2 == 0 })
	for i := 1; i <= 6; i++ {
		sig.Fire(i)
	}
	return fmt.Sprintf("fired 1..6, received %v", got), nil
}

func demoCancelled(ctx context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[int](signal.WithName("cancelled"), signal.WithLogger(logger))
	got := make(chan int, 1)

	l := sig.Listen(signal.Forever, func(v int) { got <- v }).QueueAndDelayBy(10 * time.Millisecond)
	sig.Fire(1)
	sig.Fire(2)
	l.Cancel()

	if _, err := await(ctx, got, 50*time.Millisecond); err == nil {
		return "", fmt.Errorf("cancelled listener was called")
	}
	return "received nothing", nil
}

func demoOwners(_ context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[string](signal.WithName("owners"), signal.WithLogger(logger))
	a, b := signal.NewLifetime(), signal.NewLifetime()

	var gotA, gotB []string
	sig.Listen(a, func(s string) { gotA = append(gotA, s) })
	sig.Listen(b, func(s string) { gotB = append(gotB, s) })

	sig.Fire("first")
	a.End()
	sig.Fire("second")

	return fmt.Sprintf("A received %v, B received %v", gotA, gotB), nil
}

type panel struct {
	title string
}

func demoWeak(_ context.Context, logger zerolog.Logger) (string, error) {
	sig := signal.New[string](signal.WithName("weak"), signal.WithLogger(logger))

	func() {
		p := &panel{title: "status"}
		signal.Listen(sig, p, func(string) {})
	}()
	before := sig.ListenerCount()

	for i := 0; i < 10 && sig.ListenerCount() > 0; i++ {
		runtime.GC()
	}
	return fmt.Sprintf("listeners before GC %d, after GC %d", before, sig.ListenerCount()), nil
}

func demoQueue(ctx context.Context, logger zerolog.Logger) (string, error) {
	q := dispatch.NewSerialQueue("demo", dispatch.WithQueueLogger(logger))
	if err := q.Start(); err != nil {
		return "", err
	}
	defer q.Stop(context.Background())

	sig := signal.New[int](signal.WithName("queue"), signal.WithLogger(logger))

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	sig.Listen(signal.Forever, func(v int) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
		if len(got) == 5 {
			close(done)
		}
	}).DispatchOn(q)

	for i := 1; i <= 5; i++ {
		sig.Fire(i)
	}
	if _, err := await(ctx, done, time.Second); err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	return fmt.Sprintf("received %v in order: %t", got, slices.IsSorted(got)), nil
}
