package observability

import (
	"fmt"
	"time"
)

// Config configures tracing and metrics export.
type Config struct {
	ServiceName    string        `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string        `mapstructure:"service_version" yaml:"service_version"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
	Tracing        TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig configures the OTLP metric exporter.
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool          `mapstructure:"insecure" yaml:"insecure"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultConfig returns sensible defaults for development. Exporters are
// disabled until an endpoint is configured.
func DefaultConfig(serviceName string) Config {
	cfg := Config{ServiceName: serviceName}
	cfg.ApplyDefaults()
	cfg.Tracing.Insecure = true
	cfg.Metrics.Insecure = true
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "localhost:4318"
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("observability: service_name is required")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("observability: tracing.sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate)
	}
	if c.Metrics.Interval < 0 {
		return fmt.Errorf("observability: metrics.interval must not be negative")
	}
	return nil
}
