package kafka

import (
	"fmt"
	"time"

	"github.com/kbukum/streamkit/validation"
)

// Config holds the connection and client settings of a Writer or Reader.
// Durations are strings ("250ms") so they can come straight from stage
// parameters.
type Config struct {
	Brokers []string `mapstructure:"brokers" validate:"required,dive,required"`
	Topic   string   `mapstructure:"topic" validate:"required"`

	// GroupID is the consumer group; empty reads the topic without a group.
	GroupID string `mapstructure:"group_id"`
	// StartOffset applies to readers without a committed offset.
	StartOffset string `mapstructure:"start_offset" validate:"oneof=first last"`

	EnableTLS     bool   `mapstructure:"enable_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`
	TLSCertFile   string `mapstructure:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file"`

	EnableSASL    bool   `mapstructure:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism" validate:"required_if=EnableSASL true,omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	Username      string `mapstructure:"username" validate:"required_if=EnableSASL true"`
	Password      string `mapstructure:"password"`

	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression  string `mapstructure:"compression"`
	Retries      int    `mapstructure:"retries" validate:"gt=0"`
	RetryBackoff string `mapstructure:"retry_backoff"`
	BatchSize    int    `mapstructure:"batch_size" validate:"gt=0"`
	BatchTimeout string `mapstructure:"batch_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	// RequiredAcks is -1 (all replicas), 0 or 1.
	RequiredAcks int `mapstructure:"required_acks" validate:"gte=-1,lte=1"`

	ReadTimeout       string `mapstructure:"read_timeout"`
	SessionTimeout    string `mapstructure:"session_timeout"`
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`

	DialTimeout string `mapstructure:"dial_timeout"`
	IdleTimeout string `mapstructure:"idle_timeout"`
	MetadataTTL string `mapstructure:"metadata_ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.StartOffset == "" {
		c.StartOffset = "first"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = "100ms"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == "" {
		c.BatchTimeout = "10ms"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "10s"
	}
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "3s"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "10s"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "30s"
	}
	if c.MetadataTTL == "" {
		c.MetadataTTL = "6s"
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks the struct rules and that every duration parses.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	for name, val := range map[string]string{
		"retry_backoff":      c.RetryBackoff,
		"batch_timeout":      c.BatchTimeout,
		"write_timeout":      c.WriteTimeout,
		"read_timeout":       c.ReadTimeout,
		"session_timeout":    c.SessionTimeout,
		"heartbeat_interval": c.HeartbeatInterval,
		"dial_timeout":       c.DialTimeout,
		"idle_timeout":       c.IdleTimeout,
		"metadata_ttl":       c.MetadataTTL,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, val, err)
		}
	}
	return nil
}

// ParseDuration parses a duration string, returning zero on bad input.
func ParseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
