package tracing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/signals/internal/signal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordedSpan struct {
	name  string
	attrs map[attribute.Key]string
	start time.Time
	end   time.Time
}

type recorder struct {
	noop.TracerProvider

	mu    sync.Mutex
	spans []*recordedSpan
}

func (r *recorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{r: r}
}

func (r *recorder) recorded() []*recordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*recordedSpan(nil), r.spans...)
}

type recordingTracer struct {
	noop.Tracer
	r *recorder
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	rs := &recordedSpan{
		name:  name,
		attrs: make(map[attribute.Key]string),
		start: cfg.Timestamp(),
	}
	for _, kv := range cfg.Attributes() {
		rs.attrs[kv.Key] = kv.Value.Emit()
	}

	t.r.mu.Lock()
	t.r.spans = append(t.r.spans, rs)
	t.r.mu.Unlock()
	return ctx, &recordingSpan{rs: rs}
}

type recordingSpan struct {
	noop.Span
	rs *recordedSpan
}

func (s *recordingSpan) End(opts ...trace.SpanEndOption) {
	cfg := trace.NewSpanEndConfig(opts...)
	s.rs.end = cfg.Timestamp()
}

func TestObserver_Delivered(t *testing.T) {
	rec := &recorder{}
	obs := New(WithProvider(rec))

	sig := signal.New[string](signal.WithName("save"), signal.WithObserver(obs))
	sig.Listen(signal.Forever, func(string) { time.Sleep(5 * time.Millisecond) })
	sig.Fire("main.go")

	spans := rec.recorded()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.name != SpanDeliver {
		t.Errorf("span name = %q", s.name)
	}
	if s.attrs["signal.name"] != "save" || s.attrs["signal.mode"] != "immediate" {
		t.Errorf("attributes = %v", s.attrs)
	}
	if s.start.IsZero() || s.end.Sub(s.start) < 5*time.Millisecond {
		t.Errorf("span covers %v, want at least 5ms", s.end.Sub(s.start))
	}
}

func TestObserver_Drops(t *testing.T) {
	tests := []struct {
		name  string
		drops bool
		want  int
	}{
		{"disabled", false, 0},
		{"enabled", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			obs := New(WithProvider(rec), WithDrops(tt.drops))

			sig := signal.New[int](signal.WithObserver(obs))
			sig.Listen(signal.Forever, func(int) {}).Filter(func(int) bool { return false })
			sig.Fire(1)

			spans := rec.recorded()
			if len(spans) != tt.want {
				t.Fatalf("recorded %d spans, want %d", len(spans), tt.want)
			}
			if tt.want == 1 && spans[0].attrs["signal.drop_reason"] != "filtered" {
				t.Errorf("drop reason = %q", spans[0].attrs["signal.drop_reason"])
			}
		})
	}
}

func TestNew_DefaultProvider(t *testing.T) {
	obs := New()
	obs.Delivered("s", signal.DispatchImmediate, time.Now(), time.Millisecond)
	obs.Dropped("s", signal.DispatchDelayed, signal.DropCancelled)
}
