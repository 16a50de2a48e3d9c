package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/logger"
)

// Provider owns the tracer and meter providers for the process lifetime.
type Provider struct {
	cfg     Config
	metrics *Metrics

	mu      sync.Mutex
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	started bool
}

var _ component.Component = (*Provider)(nil)

// NewProvider creates the provider and the pipeline instruments. The
// instruments come from the global meter, so they start exporting once
// Start installs the real provider.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(Meter(defaultTracerName))
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg, metrics: metrics}, nil
}

// Metrics returns the pipeline instruments.
func (p *Provider) Metrics() *Metrics { return p.metrics }

// TracingEnabled reports whether spans are exported.
func (p *Provider) TracingEnabled() bool { return p.cfg.Tracing.Enabled }

func (p *Provider) Name() string { return "observability" }

// Start initializes the enabled exporters.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	if p.cfg.Tracing.Enabled {
		tp, err := InitTracer(ctx, &p.cfg)
		if err != nil {
			return err
		}
		p.tp = tp
	}
	if p.cfg.Metrics.Enabled {
		mp, err := InitMeter(ctx, &p.cfg)
		if err != nil {
			if p.tp != nil {
				_ = p.tp.Shutdown(ctx)
				p.tp = nil
			}
			return err
		}
		p.mp = mp
	}
	p.started = true
	return nil
}

// Stop flushes and shuts down the exporters.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false

	var errs []error
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		p.mp = nil
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		p.tp = nil
	}
	if len(errs) > 0 {
		logger.WithComponent(p.Name()).Warn("shutdown incomplete", logger.Fields("error", stderrors.Join(errs...).Error()))
	}
	return stderrors.Join(errs...)
}

// Health is always healthy; export failures surface in the exporter logs.
func (p *Provider) Health(ctx context.Context) component.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := "exporters idle"
	if p.started {
		msg = fmt.Sprintf("tracing=%t metrics=%t", p.tp != nil, p.mp != nil)
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy, Message: msg}
}
