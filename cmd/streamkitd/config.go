package main

import (
	"fmt"

	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/pipeline"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/validation"
)

// Config is the daemon configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Pipeline             PipelineConfig       `yaml:"pipeline" mapstructure:"pipeline"`
	Server               server.Config        `yaml:"server" mapstructure:"server"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
}

// PipelineConfig adds the graph location to the engine settings.
type PipelineConfig struct {
	pipeline.Config `yaml:",inline" mapstructure:",squash"`
	GraphFile       string `yaml:"graph_file" mapstructure:"graph_file" validate:"required"`
	// ExitOnEOS stops the daemon once every stream has ended.
	ExitOnEOS bool `yaml:"exit_on_eos" mapstructure:"exit_on_eos"`
}

func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Server.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Struct(&c.Pipeline); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

func eventStop(reason string) eventbus.Event {
	return eventbus.NewEvent(eventbus.Stop, "streamkitd", reason)
}
