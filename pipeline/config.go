package pipeline

import (
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/validation"
)

// Defaults applied to stages that never had SetModuleAttribute called.
const (
	DefaultQueueCapacity = 20
	DefaultParallelism   = 1
	DefaultMaxStreams    = 128
	// MaxStages is the number of stages a passed-stage mask can track.
	MaxStages = 64
)

// Config holds pipeline-wide defaults.
type Config struct {
	// QueueCapacity is the default capacity of every conveyor and transmit queue.
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity" validate:"gte=0"`
	// Parallelism is the default number of conveyors (and workers) per stage.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism" validate:"gte=0"`
	// MaxStreams bounds the stream indexes handed out to live streams.
	MaxStreams int `mapstructure:"max_streams" yaml:"max_streams" validate:"gte=0"`
	// Routing picks the conveyor router: "index" (default) or "hash".
	Routing string `mapstructure:"routing" yaml:"routing" validate:"omitempty,oneof=index hash"`
	// Tracing opens a span per processed frame.
	Tracing  bool            `mapstructure:"tracing" yaml:"tracing"`
	EventBus eventbus.Config `mapstructure:"event_bus" yaml:"event_bus"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.MaxStreams <= 0 {
		c.MaxStreams = DefaultMaxStreams
	}
	if c.Routing == "" {
		c.Routing = "index"
	}
	c.EventBus.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	return c.EventBus.Validate()
}
