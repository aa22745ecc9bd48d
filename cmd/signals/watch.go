package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/config/watcher"
	"github.com/dshills/signals/internal/logging"
	"github.com/dshills/signals/internal/metrics"
	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/dshills/signals/internal/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func watchCmd(g *globals) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the configuration file and reload it on change",
		Long: `Watch the configuration file and apply each change live.

Reloads are debounced through a delayed signal listener and handled on
the first configured executor. With --metrics-addr (or metrics.enabled
in the config file) Prometheus metrics are served on /metrics.

Examples:
  signals watch --config signals.toml
  signals watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, g, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runWatch(ctx context.Context, g *globals, metricsAddr string) error {
	cfg, logger := g.cfg, g.logger
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}

	reg := prometheus.NewRegistry()
	obs := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))
	observers := []signal.Observer{obs}
	if cfg.Tracing.Enabled {
		observers = append(observers, tracing.New(tracing.WithTracerName(cfg.Tracing.Tracer)))
	}
	observer := signal.Observers(observers...)

	executors, err := config.BuildExecutors(cfg, logger)
	if err != nil {
		return err
	}
	if err := obs.RegisterQueues(executors); err != nil {
		return err
	}
	if err := executors.StartAll(); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := executors.StopAll(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("stopping executors")
		}
	}()

	debounce, err := cfg.Watch.DebounceDuration()
	if err != nil {
		return err
	}
	w, err := watcher.New(g.configPath,
		watcher.WithDebounce(debounce),
		watcher.WithLogger(logger),
		watcher.WithSignalOptions(signal.WithObserver(observer)),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	session := signal.NewLifetime()
	defer session.End()

	w.Changes().Listen(session, func(c *config.Config) {
		if g.logLevel == "" {
			applyLogLevel(logger, g.level, c.Log.Level)
		}
		logger.Info().
			Str("level", c.Log.Level).
			Int("executors", len(c.Executors)).
			Msg("configuration applied")
	}).DispatchOn(reloadExecutor(executors, cfg))

	w.Errors().Listen(session, func(err error) {
		logger.Warn().Err(err).Msg("configuration rejected")
	})

	var srv *http.Server
	if metricsAddr != "" {
		srv = &http.Server{
			Addr:              metricsAddr,
			Handler:           newRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server failed")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
	}

	logger.Info().Str("path", w.Path()).Dur("debounce", debounce).Msg("watching configuration")
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
	}
	return nil
}

// reloadExecutor picks the first configured executor, falling back to
// Immediate.
func reloadExecutor(executors *dispatch.Registry, cfg *config.Config) dispatch.Executor {
	for _, e := range cfg.Executors {
		if exec, ok := executors.Get(e.Name); ok {
			return exec
		}
	}
	return dispatch.Immediate
}

// applyLogLevel moves the logger's threshold to the reloaded level. The
// --log-level flag takes precedence over the file, so callers skip this
// when it is set.
func applyLogLevel(logger zerolog.Logger, lvl *logging.Level, level string) {
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		logger.Warn().Err(err).Str("level", level).Msg("ignoring log level")
		return
	}
	if parsed == lvl.Get() {
		return
	}
	lvl.Set(parsed)
	logger.Info().Stringer("level", parsed).Msg("log level changed")
}

func newRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}
