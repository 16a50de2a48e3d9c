package eventbus

import (
	"fmt"
	"time"
)

// Config controls queue size and the bounded retry of PostEvent.
type Config struct {
	Capacity      int           `yaml:"capacity" mapstructure:"capacity"`
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 256
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Millisecond
	}
}

// Validate rejects negative settings.
func (c *Config) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("eventbus.capacity must be non-negative (got: %d)", c.Capacity)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("eventbus.retry_attempts must be non-negative (got: %d)", c.RetryAttempts)
	}
	return nil
}
