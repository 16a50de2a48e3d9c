package pipeline

import (
	"github.com/kbukum/streamkit/connector"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics records per-frame and event metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracing overrides Config.Tracing.
func WithTracing(enabled bool) Option {
	return func(p *Pipeline) { p.tracing = &enabled }
}

// WithRouter overrides the router chosen by Config.Routing.
func WithRouter(r connector.Router) Option {
	return func(p *Pipeline) { p.router = r }
}
