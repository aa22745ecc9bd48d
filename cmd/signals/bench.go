package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Bench modes.
const (
	benchImmediate  = "immediate"
	benchSerial     = "serial"
	benchConcurrent = "concurrent"
	benchDelayed    = "delayed"
)

type benchOptions struct {
	listeners int
	fires     int
	mode      string
	workers   int
	delay     time.Duration
}

type benchResult struct {
	Fires      int
	Deliveries int64
	Elapsed    time.Duration
}

func (r benchResult) String() string {
	perFire := time.Duration(0)
	if r.Fires > 0 {
		perFire = r.Elapsed / time.Duration(r.Fires)
	}
	return fmt.Sprintf("%d fires, %d deliveries in %v (%v/fire)", r.Fires, r.Deliveries, r.Elapsed, perFire)
}

func benchCmd(g *globals) *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure fan-out cost for a dispatch mode",
		Long: `Fire values at a signal with many listeners and report the time taken
until every delivery has run.

Examples:
  signals bench
  signals bench --listeners 1000 --fires 10000 --mode serial
  signals bench --mode delayed --delay 5ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runBench(cmd.Context(), opts, g.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", opts.mode, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.listeners, "listeners", "l", 100, "Number of listeners")
	cmd.Flags().IntVarP(&opts.fires, "fires", "n", 10000, "Number of fires")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", benchImmediate, "Dispatch mode: immediate, serial, concurrent, delayed")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Workers for the concurrent mode")
	cmd.Flags().DurationVar(&opts.delay, "delay", time.Millisecond, "Delay for the delayed mode")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, logger zerolog.Logger) (benchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.listeners < 1 || opts.fires < 1 {
		return benchResult{}, fmt.Errorf("listeners and fires must be positive")
	}

	var q *dispatch.Queue
	switch opts.mode {
	case benchImmediate, benchDelayed:
	case benchSerial:
		q = dispatch.NewSerialQueue("bench", dispatch.WithQueueSize(opts.listeners*opts.fires), dispatch.WithQueueLogger(logger))
	case benchConcurrent:
		q = dispatch.NewConcurrentQueue("bench", opts.workers, dispatch.WithQueueSize(opts.listeners*opts.fires), dispatch.WithQueueLogger(logger))
	default:
		return benchResult{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
	if q != nil {
		if err := q.Start(); err != nil {
			return benchResult{}, err
		}
		defer q.Stop(context.Background())
	}

	sig := signal.New[int](signal.WithName("bench"), signal.WithLogger(logger))
	life := signal.NewLifetime()
	defer life.End()

	var deliveries atomic.Int64
	var wg sync.WaitGroup
	last := opts.fires - 1

	for i := 0; i < opts.listeners; i++ {
		switch opts.mode {
		case benchDelayed:
			// Each listener finishes once the final value has reached it.
			wg.Add(1)
			sig.Listen(life, func(v int) {
				deliveries.Add(1)
				if v == last {
					wg.Done()
				}
			}).QueueAndDelayBy(opts.delay)
		case benchImmediate:
			sig.Listen(life, func(int) { deliveries.Add(1) })
		default:
			sig.Listen(life, func(int) {
				deliveries.Add(1)
				wg.Done()
			}).DispatchOn(q)
		}
	}
	if q != nil {
		wg.Add(opts.listeners * opts.fires)
	}

	start := time.Now()
	for i := 0; i < opts.fires; i++ {
		sig.Fire(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return benchResult{}, ctx.Err()
	}

	return benchResult{
		Fires:      opts.fires,
		Deliveries: deliveries.Load(),
		Elapsed:    time.Since(start),
	}, nil
}
