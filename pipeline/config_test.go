package pipeline

import (
	"testing"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/stages"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.QueueCapacity != DefaultQueueCapacity || cfg.Parallelism != DefaultParallelism || cfg.MaxStreams != DefaultMaxStreams {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Routing != "index" {
		t.Errorf("expected index routing, got %q", cfg.Routing)
	}
	if cfg.EventBus.Capacity == 0 || cfg.EventBus.RetryInterval == 0 {
		t.Errorf("event bus defaults not applied: %+v", cfg.EventBus)
	}

	kept := Config{QueueCapacity: 4, Routing: "hash"}
	kept.ApplyDefaults()
	if kept.QueueCapacity != 4 || kept.Routing != "hash" {
		t.Errorf("explicit values overwritten: %+v", kept)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"hash routing", Config{Routing: "hash"}, false},
		{"unknown routing", Config{Routing: "random"}, true},
		{"negative capacity", Config{QueueCapacity: -1}, true},
		{"negative bus capacity", Config{EventBus: eventbus.Config{Capacity: -1, RetryInterval: time.Millisecond}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	p := New("bad", WithConfig(Config{Routing: "random"}), WithLogger(logger.Nop()))
	chain(t, p, named("src", stages.NewFeeder()), named("sink", stages.NewCollector()))
	if err := p.Start(); !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
	if p.IsRunning() {
		t.Error("pipeline started with an invalid config")
	}
}
