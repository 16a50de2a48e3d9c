package kafka

import (
	"strings"
	"testing"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{Topic: "frames"}
	cfg.ApplyDefaults()

	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Errorf("Brokers = %v, want [localhost:9092]", cfg.Brokers)
	}
	if cfg.StartOffset != "first" {
		t.Errorf("StartOffset = %q, want first", cfg.StartOffset)
	}
	if cfg.Compression != "snappy" {
		t.Errorf("Compression = %q, want snappy", cfg.Compression)
	}
	if cfg.Retries != 3 || cfg.RetryBackoff != "100ms" {
		t.Errorf("Retries = %d RetryBackoff = %q", cfg.Retries, cfg.RetryBackoff)
	}
	if cfg.BatchSize != 100 || cfg.BatchTimeout != "10ms" {
		t.Errorf("BatchSize = %d BatchTimeout = %q", cfg.BatchSize, cfg.BatchTimeout)
	}
	if cfg.RequiredAcks != -1 {
		t.Errorf("RequiredAcks = %d, want -1", cfg.RequiredAcks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigApplyDefaultsKeepsValues(t *testing.T) {
	cfg := Config{
		Brokers:      []string{"b1:9092", "b2:9092"},
		Compression:  "gzip",
		Retries:      5,
		BatchSize:    200,
		RequiredAcks: 1,
	}
	cfg.ApplyDefaults()
	if len(cfg.Brokers) != 2 || cfg.Compression != "gzip" || cfg.Retries != 5 || cfg.BatchSize != 200 || cfg.RequiredAcks != 1 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestConfigSASLDefaultMechanism(t *testing.T) {
	cfg := Config{EnableSASL: true}
	cfg.ApplyDefaults()
	if cfg.SASLMechanism != "PLAIN" {
		t.Errorf("SASLMechanism = %q, want PLAIN", cfg.SASLMechanism)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no brokers", func(c *Config) { c.Brokers = nil }, "brokers"},
		{"no topic", func(c *Config) { c.Topic = "" }, "topic"},
		{"bad offset", func(c *Config) { c.StartOffset = "middle" }, "start_offset"},
		{"bad duration", func(c *Config) { c.WriteTimeout = "soon" }, "write_timeout"},
		{"bad sasl", func(c *Config) { c.EnableSASL = true; c.SASLMechanism = "GSSAPI"; c.Username = "u" }, "sasl_mechanism"},
		{"sasl without user", func(c *Config) { c.EnableSASL = true; c.SASLMechanism = "PLAIN" }, "username"},
		{"zero retries", func(c *Config) { c.Retries = 0 }, "retries"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"bad acks", func(c *Config) { c.RequiredAcks = 2 }, "required_acks"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Topic: "frames"}
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if d := ParseDuration("250ms"); d.Milliseconds() != 250 {
		t.Errorf("ParseDuration(250ms) = %v", d)
	}
	if d := ParseDuration(""); d != 0 {
		t.Errorf("ParseDuration(\"\") = %v, want 0", d)
	}
}
