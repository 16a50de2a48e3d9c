package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/streamkit/logger"
)

// Frame outcome labels for RecordFrame.
const (
	StatusForwarded = "forwarded"
	StatusConsumed  = "consumed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg *Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Metrics.Endpoint),
	}
	if cfg.Metrics.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Metrics.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Metrics.Endpoint,
		"interval", cfg.Metrics.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the pipeline's metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	framesProcessed metric.Int64Counter
	frameDuration   metric.Float64Histogram
	eventsPosted    metric.Int64Counter
	eventsDropped   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	framesProcessed, err := meter.Int64Counter("frames.processed",
		metric.WithDescription("Frames handled by a stage, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames.processed counter: %w", err)
	}

	frameDuration, err := meter.Float64Histogram("frame.process.duration",
		metric.WithDescription("Time a stage spent processing one frame"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame.process.duration histogram: %w", err)
	}

	eventsPosted, err := meter.Int64Counter("events.posted",
		metric.WithDescription("Events accepted by the event bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.posted counter: %w", err)
	}

	eventsDropped, err := meter.Int64Counter("events.dropped",
		metric.WithDescription("Events dropped because the bus was full or stopped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.dropped counter: %w", err)
	}

	return &Metrics{
		framesProcessed: framesProcessed,
		frameDuration:   frameDuration,
		eventsPosted:    eventsPosted,
		eventsDropped:   eventsDropped,
	}, nil
}

// RecordFrame records one Process call of stage.
func (m *Metrics) RecordFrame(ctx context.Context, stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
	m.frameDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordEvent records an event post attempt.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string, dropped bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", eventType))
	if dropped {
		m.eventsDropped.Add(ctx, 1, attrs)
		return
	}
	m.eventsPosted.Add(ctx, 1, attrs)
}
