// Package tracing records signal deliveries as OpenTelemetry spans.
package tracing

import (
	"context"
	"time"

	"github.com/dshills/signals/internal/signal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name.
const defaultTracerName = "github.com/dshills/signals"

// Span names.
const (
	SpanDeliver = "signal.deliver"
	SpanDrop    = "signal.drop"
)

// Config configures the tracing observer.
type Config struct {
	// TracerName is the name of the tracer (default: the module path).
	TracerName string

	// Provider supplies the tracer. Default: otel.GetTracerProvider().
	Provider trace.TracerProvider

	// TraceDrops records a span for every dropped value.
	TraceDrops bool
}

// Option configures the tracing observer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.TracerName = name
		}
	}
}

// WithProvider sets the tracer provider.
func WithProvider(p trace.TracerProvider) Option {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithDrops enables spans for dropped values.
func WithDrops(enabled bool) Option {
	return func(c *Config) {
		c.TraceDrops = enabled
	}
}

// Observer is a signal.Observer that emits spans. Fire, coalesce and prune
// events carry no duration and are not traced.
type Observer struct {
	signal.NopObserver

	tracer trace.Tracer
	drops  bool
}

var _ signal.Observer = (*Observer)(nil)

// New creates a tracing observer.
func New(opts ...Option) *Observer {
	config := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	return &Observer{
		tracer: config.Provider.Tracer(config.TracerName),
		drops:  config.TraceDrops,
	}
}

// Delivered records a span covering the callback.
func (o *Observer) Delivered(name string, mode signal.DispatchMode, start time.Time, elapsed time.Duration) {
	_, span := o.tracer.Start(context.Background(), SpanDeliver,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("signal.name", name),
			attribute.String("signal.mode", mode.String()),
		),
	)
	span.End(trace.WithTimestamp(start.Add(elapsed)))
}

// Dropped records an instantaneous span when drop tracing is enabled.
func (o *Observer) Dropped(name string, mode signal.DispatchMode, reason signal.DropReason) {
	if !o.drops {
		return
	}
	_, span := o.tracer.Start(context.Background(), SpanDrop,
		trace.WithAttributes(
			attribute.String("signal.name", name),
			attribute.String("signal.mode", mode.String()),
			attribute.String("signal.drop_reason", reason.String()),
		),
	)
	span.End()
}
