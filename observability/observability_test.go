package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/streamkit/component"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Tracing.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.Tracing.SampleRate)
	}
	if cfg.Metrics.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Metrics.Interval)
	}
	if cfg.Tracing.Enabled || cfg.Metrics.Enabled {
		t.Error("exporters should be disabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing service", func(c *Config) { c.ServiceName = "" }, true},
		{"sample rate too high", func(c *Config) { c.Tracing.SampleRate = 1.5 }, true},
		{"negative sample rate", func(c *Config) { c.Tracing.SampleRate = -0.1 }, true},
		{"negative interval", func(c *Config) { c.Metrics.Interval = -time.Second }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig("svc")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewMetricsNoop(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordFrame(ctx, "decode", StatusForwarded, 10*time.Millisecond)
	metrics.RecordEvent(ctx, "error", false)
	metrics.RecordEvent(ctx, "error", true)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordFrame(context.Background(), "x", StatusFailed, time.Millisecond)
	m.RecordEvent(context.Background(), "eos", true)
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordFrame(ctx, "decode", StatusForwarded, time.Millisecond)
	metrics.RecordFrame(ctx, "decode", StatusForwarded, time.Millisecond)
	metrics.RecordFrame(ctx, "decode", StatusFailed, time.Millisecond)
	metrics.RecordEvent(ctx, "error", false)
	metrics.RecordEvent(ctx, "warning", true)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if got := sumFor(t, rm, "frames.processed", attribute.String("status", StatusForwarded)); got != 2 {
		t.Errorf("expected 2 forwarded frames, got %d", got)
	}
	if got := sumFor(t, rm, "frames.processed", attribute.String("status", StatusFailed)); got != 1 {
		t.Errorf("expected 1 failed frame, got %d", got)
	}
	if got := sumFor(t, rm, "events.posted", attribute.String("type", "error")); got != 1 {
		t.Errorf("expected 1 posted event, got %d", got)
	}
	if got := sumFor(t, rm, "events.dropped", attribute.String("type", "warning")); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}
}

func TestStartSpanRecordsStageSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), StageSpanName("decode"))
	SetSpanAttribute(ctx, AttrStreamID, "cam-1")
	SetSpanAttribute(ctx, AttrFrameSeq, uint64(7))
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "stage.decode" {
		t.Errorf("expected span stage.decode, got %s", spans[0].Name)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected the recorded error event, got %d events", len(spans[0].Events))
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil span (noop)")
	}
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := samplerFor(tc.rate).Description(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestProviderDisabled(t *testing.T) {
	p, err := NewProvider(DefaultConfig("svc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Metrics() == nil {
		t.Fatal("expected instruments")
	}
	if p.Name() != "observability" {
		t.Errorf("unexpected name %q", p.Name())
	}
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h := p.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestProviderInvalidConfig(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestProviderWithExporters(t *testing.T) {
	cfg := DefaultConfig("svc")
	cfg.Tracing.Enabled = true
	cfg.Metrics.Enabled = true
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Skipf("exporter setup failed: %v", err)
	}
	if !p.TracingEnabled() {
		t.Error("expected tracing enabled")
	}
	// Nothing listens on the endpoint; shutdown may report a flush error.
	_ = p.Stop(ctx)
}
