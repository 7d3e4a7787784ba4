package atom

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetricsRecordStoreActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	s := NewStore(WithMetrics(m))

	count := NewValue(1)
	doubled := NewComputed(func(get Getter) (int, error) {
		n, err := Get(get, count)
		return n * 2, err
	})

	unsubscribe := s.Subscribe(doubled, func() {})
	_ = Set(s, count, 2)
	_ = Set(s, count, 3)

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"writes", m.writes, 2},
		{"recomputes", m.recomputes.WithLabelValues("computed"), 3},
		{"propagations", m.propagations, 2},
		{"notifications", m.notifications, 2},
		{"mounted", m.mounted, 2},
		{"listeners", m.listeners, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	unsubscribe()
	if got := testutil.ToFloat64(m.mounted); got != 0 {
		t.Errorf("expected mounted gauge 0 after unsubscribe, got %v", got)
	}
	if got := testutil.ToFloat64(m.listeners); got != 0 {
		t.Errorf("expected listeners gauge 0 after unsubscribe, got %v", got)
	}

	readOnly := NewWritable[int, int](func(Getter) (int, error) { return 0, nil }, nil)
	_ = Write(s, readOnly, 1)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("invalid_write")); got != 1 {
		t.Errorf("expected 1 invalid write error, got %v", got)
	}

	if n, err := testutil.GatherAndCount(reg, "test_writes_total"); err != nil || n != 1 {
		t.Errorf("expected test_writes_total registered, got %d, %v", n, err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.recordWrite()
	m.recordRecompute("value")
	m.recordDiscard()
	m.recordError("x")
	m.addMounted(1)
	m.addListeners(1)
	m.observePropagation(0, 1, 1)
	m.observeLoad(0)
}

func TestTracingSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := NewStore(WithTracer(tp.Tracer("atom-test")))
	count := NewValue(0).Named("count")
	unsubscribe := s.Subscribe(count, func() {})
	defer unsubscribe()

	_ = Set(s, count, 1)

	var write, propagate sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "atom.write":
			write = span
		case "atom.propagate":
			propagate = span
		}
	}
	if write == nil || propagate == nil {
		t.Fatalf("expected write and propagate spans, got %d spans", len(sr.Ended()))
	}
	if propagate.Parent().SpanID() != write.SpanContext().SpanID() {
		t.Error("expected propagation to be a child of the write")
	}

	attrs := map[string]string{}
	for _, kv := range write.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["atom.name"] != "count" || attrs["atom.store"] != s.ID() {
		t.Errorf("unexpected write attributes %v", attrs)
	}
}

func TestTracingRecordsWriteError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := NewStore(WithTracer(tp.Tracer("atom-test")))
	boom := errors.New("boom")
	w := NewWritable(
		func(Getter) (int, error) { return 0, nil },
		func(Getter, Setter, int) error { return boom },
	)
	_ = Write(s, w, 1)

	spans := sr.Ended()
	if len(spans) == 0 {
		t.Fatal("expected a span")
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded on the write span")
	}
}
