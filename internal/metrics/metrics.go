// Package metrics exports signal delivery and executor statistics to
// Prometheus.
package metrics

import (
	"time"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the metrics observer.
type Config struct {
	// Namespace is the metrics namespace (default: "signals").
	Namespace string

	// Buckets are the histogram buckets for callback duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the metrics observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		if namespace != "" {
			c.Namespace = namespace
		}
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "signals",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Observer is a signal.Observer that records Prometheus metrics.
type Observer struct {
	config Config

	fires     *prometheus.CounterVec
	listeners *prometheus.GaugeVec
	delivered *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	dropped   *prometheus.CounterVec
	coalesced *prometheus.CounterVec
	pruned    *prometheus.CounterVec
}

var _ signal.Observer = (*Observer)(nil)

// New creates and registers the signal metrics. It panics if they are
// already registered with the registry.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)
	ns := config.Namespace

	return &Observer{
		config: config,
		fires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fires_total",
			Help:      "Total number of values fired per signal",
		}, []string{"signal"}),

		listeners: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "listeners",
			Help:      "Live listeners seen by the most recent fire",
		}, []string{"signal"}),

		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deliveries_total",
			Help:      "Total number of callback invocations",
		}, []string{"signal", "mode"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "callback_duration_seconds",
			Help:      "Callback execution time in seconds",
			Buckets:   config.Buckets,
		}, []string{"signal", "mode"}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "drops_total",
			Help:      "Total number of values that did not reach a callback",
		}, []string{"signal", "mode", "reason"}),

		coalesced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "coalesced_total",
			Help:      "Total number of pending values replaced by a newer one",
		}, []string{"signal"}),

		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "pruned_total",
			Help:      "Total number of listeners removed because their owner died",
		}, []string{"signal"}),
	}
}

// Fired implements signal.Observer.
func (o *Observer) Fired(name string, live int) {
	o.fires.WithLabelValues(name).Inc()
	o.listeners.WithLabelValues(name).Set(float64(live))
}

// Delivered implements signal.Observer.
func (o *Observer) Delivered(name string, mode signal.DispatchMode, _ time.Time, elapsed time.Duration) {
	m := mode.String()
	o.delivered.WithLabelValues(name, m).Inc()
	o.duration.WithLabelValues(name, m).Observe(elapsed.Seconds())
}

// Dropped implements signal.Observer.
func (o *Observer) Dropped(name string, mode signal.DispatchMode, reason signal.DropReason) {
	o.dropped.WithLabelValues(name, mode.String(), reason.String()).Inc()
}

// Coalesced implements signal.Observer.
func (o *Observer) Coalesced(name string) {
	o.coalesced.WithLabelValues(name).Inc()
}

// Pruned implements signal.Observer.
func (o *Observer) Pruned(name string, n int) {
	o.pruned.WithLabelValues(name).Add(float64(n))
}

// RegisterQueue exports the statistics of q as gauges labelled with the
// executor name.
func (o *Observer) RegisterQueue(q *dispatch.Queue) error {
	labels := prometheus.Labels{"executor": q.Name()}
	gauge := func(name, help string, value func(dispatch.QueueStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   o.config.Namespace,
			Subsystem:   "executor",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return value(q.Stats()) })
	}

	collectors := []prometheus.Collector{
		gauge("queue_depth", "Tasks waiting in the executor buffer",
			func(s dispatch.QueueStats) float64 { return float64(s.QueueDepth) }),
		gauge("processed", "Tasks run by the executor",
			func(s dispatch.QueueStats) float64 { return float64(s.Processed) }),
		gauge("dropped", "Tasks rejected because the buffer was full",
			func(s dispatch.QueueStats) float64 { return float64(s.Dropped) }),
		gauge("panicked", "Tasks that panicked",
			func(s dispatch.QueueStats) float64 { return float64(s.Panicked) }),
	}
	for _, c := range collectors {
		if err := o.config.Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterQueues exports every queue in reg.
func (o *Observer) RegisterQueues(reg *dispatch.Registry) error {
	for _, q := range reg.Queues() {
		if err := o.RegisterQueue(q); err != nil {
			return err
		}
	}
	return nil
}
