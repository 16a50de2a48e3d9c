package server

import (
	"time"

	"github.com/kbukum/streamkit/server/middleware"
	"github.com/kbukum/streamkit/validation"
)

// Config is the `server` section of the daemon config. Timeouts are in
// seconds; the write timeout does not apply to /pipeline/events.
type Config struct {
	Enabled      bool                  `yaml:"enabled" mapstructure:"enabled"`
	Host         string                `yaml:"host" mapstructure:"host"`
	Port         int                   `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  int                   `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout int                   `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout  int                   `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	CORS         middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "Accept", "Last-Event-ID"}
	}
}

func (c *Config) Validate() error {
	return validation.Struct(c)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
