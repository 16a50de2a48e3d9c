package stages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/redis"
	"github.com/kbukum/streamkit/resilience"
)

// Parameters understood by RedisSink, besides write_timeout and password.
const (
	ParamAddr      = "addr"
	ParamDB        = "db"
	ParamKeyPrefix = "key_prefix"
	ParamMaxLen    = "max_len"
)

const defaultKeyPrefix = "streamkit:"

// RedisSink appends every frame to a Redis stream named after its stream
// id, under key_prefix. The stream's EOS is appended as a final entry.
// Appends go through the same write breaker as KafkaSink.
type RedisSink struct {
	module.Base

	client       *redis.Client
	breaker      *resilience.Breaker
	prefix       string
	maxLen       int64
	writeTimeout time.Duration
}

func NewRedisSink() *RedisSink { return &RedisSink{} }

func (s *RedisSink) CheckParamSet(params module.ParamSet) error {
	_, err := redisConfig(params)
	if err != nil {
		return err
	}
	maxLen, err := params.Int(ParamMaxLen, 0)
	if err != nil {
		return err
	}
	if maxLen < 0 {
		return fmt.Errorf("%s must not be negative", ParamMaxLen)
	}
	if err := checkBreakerParams(params); err != nil {
		return err
	}
	_, err = params.Duration(ParamWriteTimeout, defaultSinkWriteTimeout)
	return err
}

func (s *RedisSink) Open(params module.ParamSet) error {
	if err := s.CheckParamSet(params); err != nil {
		return err
	}
	cfg, _ := redisConfig(params)
	maxLen, _ := params.Int(ParamMaxLen, 0)
	s.maxLen = int64(maxLen)
	s.prefix = params.String(ParamKeyPrefix, defaultKeyPrefix)
	s.writeTimeout, _ = params.Duration(ParamWriteTimeout, defaultSinkWriteTimeout)
	s.breaker, _ = newSinkBreaker(&s.Base, params)

	client, err := redis.New(cfg, s.Logger())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	s.client = client
	return nil
}

func (s *RedisSink) Close() {
	if err := s.client.Close(); err != nil {
		s.Logger().Warn("redis close failed", logger.Fields(logger.FieldError, err.Error()))
	}
	s.client = nil
}

// Key returns the Redis stream key used for streamID.
func (s *RedisSink) Key(streamID string) string {
	return s.prefix + streamID
}

func (s *RedisSink) Process(ctx context.Context, f *frame.Frame) int {
	ctx, cancel := sinkContext(ctx, s.writeTimeout)
	defer cancel()
	err := guarded(s.breaker, func() error {
		_, err := s.client.AppendFrame(ctx, s.Key(f.StreamID), f, s.maxLen)
		return err
	})
	if errors.Is(err, resilience.ErrOpen) {
		return module.Failed
	}
	if err != nil {
		s.Logger().Error("redis append failed", logger.Fields(
			logger.FieldStreamID, f.StreamID,
			logger.FieldFrameID, f.ID.String(),
			logger.FieldError, err.Error(),
		))
		return module.Failed
	}
	return module.Forward
}

func (s *RedisSink) OnEOS(streamID string) {
	ctx, cancel := sinkContext(context.Background(), s.writeTimeout)
	defer cancel()
	err := guarded(s.breaker, func() error {
		_, err := s.client.AppendFrame(ctx, s.Key(streamID), frame.NewEOS(streamID), s.maxLen)
		return err
	})
	if err != nil {
		s.Logger().Error("redis EOS append failed", logger.Fields(
			logger.FieldStreamID, streamID,
			logger.FieldError, err.Error(),
		))
		s.PostStreamEvent(eventbus.StreamError, streamID, fmt.Sprintf("redis EOS append failed: %v", err))
	}
}

func redisConfig(params module.ParamSet) (redis.Config, error) {
	if err := params.Require(ParamAddr); err != nil {
		return redis.Config{}, err
	}
	cfg := redis.Config{
		Addr:     params.String(ParamAddr, ""),
		Password: params.String(ParamPassword, ""),
	}
	var err error
	if cfg.DB, err = params.Int(ParamDB, 0); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}
