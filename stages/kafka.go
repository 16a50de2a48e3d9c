package stages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/kafka"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/resilience"
)

// Parameters understood by KafkaSink and KafkaSource.
const (
	ParamBrokers       = "brokers"
	ParamTopic         = "topic"
	ParamGroupID       = "group_id"
	ParamStartOffset   = "start_offset"
	ParamCompression   = "compression"
	ParamBatchSize     = "batch_size"
	ParamBatchTimeout  = "batch_timeout"
	ParamRetries       = "retries"
	ParamRequiredAcks  = "required_acks"
	ParamEnableTLS     = "enable_tls"
	ParamTLSSkipVerify = "tls_skip_verify"
	ParamSASLMechanism = "sasl_mechanism"
	ParamUsername      = "username"
	ParamPassword      = "password"
	ParamWriteTimeout  = "write_timeout"
)

const defaultSinkWriteTimeout = 10 * time.Second

type frameWriter interface {
	WriteFrames(ctx context.Context, frames ...*frame.Frame) error
	Close() error
}

type frameReader interface {
	Consume(ctx context.Context, handler kafka.FrameHandler) error
	Close() error
}

var (
	newKafkaWriter = func(cfg kafka.Config, log *logger.Logger) (frameWriter, error) {
		w, err := kafka.NewWriter(cfg, log)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	newKafkaReader = func(cfg kafka.Config, log *logger.Logger) (frameReader, error) {
		r, err := kafka.NewReader(cfg, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
)

func kafkaConfig(params module.ParamSet) (kafka.Config, error) {
	if err := params.Require(ParamBrokers, ParamTopic); err != nil {
		return kafka.Config{}, err
	}
	cfg := kafka.Config{
		Brokers:       params.Strings(ParamBrokers),
		Topic:         params.String(ParamTopic, ""),
		GroupID:       params.String(ParamGroupID, ""),
		StartOffset:   params.String(ParamStartOffset, ""),
		Compression:   params.String(ParamCompression, ""),
		BatchTimeout:  params.String(ParamBatchTimeout, ""),
		SASLMechanism: params.String(ParamSASLMechanism, ""),
		Username:      params.String(ParamUsername, ""),
		Password:      params.String(ParamPassword, ""),
	}
	var err error
	if cfg.BatchSize, err = params.Int(ParamBatchSize, 0); err != nil {
		return cfg, err
	}
	if cfg.Retries, err = params.Int(ParamRetries, 0); err != nil {
		return cfg, err
	}
	if cfg.RequiredAcks, err = params.Int(ParamRequiredAcks, 0); err != nil {
		return cfg, err
	}
	if cfg.EnableTLS, err = params.Bool(ParamEnableTLS, false); err != nil {
		return cfg, err
	}
	if cfg.TLSSkipVerify, err = params.Bool(ParamTLSSkipVerify, false); err != nil {
		return cfg, err
	}
	cfg.EnableSASL = cfg.SASLMechanism != ""
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// sinkContext detaches ctx from pipeline cancellation so frames drained
// during Stop are still written, bounded by timeout.
func sinkContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// KafkaSink publishes every frame, EOS included, to a Kafka topic. After
// breaker_failures consecutive failed writes it fails frames without
// writing until breaker_cooldown has passed.
type KafkaSink struct {
	module.Base
	writer       frameWriter
	breaker      *resilience.Breaker
	writeTimeout time.Duration
}

func NewKafkaSink() *KafkaSink { return &KafkaSink{} }

func (s *KafkaSink) CheckParamSet(params module.ParamSet) error {
	if _, err := kafkaConfig(params); err != nil {
		return err
	}
	if err := checkBreakerParams(params); err != nil {
		return err
	}
	_, err := params.Duration(ParamWriteTimeout, defaultSinkWriteTimeout)
	return err
}

func (s *KafkaSink) Open(params module.ParamSet) error {
	cfg, err := kafkaConfig(params)
	if err != nil {
		return err
	}
	if s.writeTimeout, err = params.Duration(ParamWriteTimeout, defaultSinkWriteTimeout); err != nil {
		return err
	}
	if s.breaker, err = newSinkBreaker(&s.Base, params); err != nil {
		return err
	}
	w, err := newKafkaWriter(cfg, s.Logger())
	if err != nil {
		return err
	}
	s.writer = w
	return nil
}

func (s *KafkaSink) Close() {
	if s.writer == nil {
		return
	}
	if err := s.writer.Close(); err != nil {
		s.Logger().Warn("kafka writer close failed", logger.Fields(logger.FieldError, err.Error()))
	}
	s.writer = nil
}

func (s *KafkaSink) Process(ctx context.Context, f *frame.Frame) int {
	ctx, cancel := sinkContext(ctx, s.writeTimeout)
	defer cancel()
	err := guarded(s.breaker, func() error { return s.writer.WriteFrames(ctx, f) })
	if errors.Is(err, resilience.ErrOpen) {
		return module.Failed
	}
	if err != nil {
		s.Logger().Error("kafka write failed", logger.Fields(
			logger.FieldStreamID, f.StreamID,
			logger.FieldFrameID, f.ID.String(),
			logger.FieldError, err.Error(),
		))
		return module.Failed
	}
	return module.Forward
}

func (s *KafkaSink) OnEOS(streamID string) {
	ctx, cancel := sinkContext(context.Background(), s.writeTimeout)
	defer cancel()
	eos := frame.NewEOS(streamID)
	if err := guarded(s.breaker, func() error { return s.writer.WriteFrames(ctx, eos) }); err != nil {
		s.Logger().Error("kafka EOS write failed", logger.Fields(
			logger.FieldStreamID, streamID,
			logger.FieldError, err.Error(),
		))
		s.PostStreamEvent(eventbus.StreamError, streamID, fmt.Sprintf("kafka EOS write failed: %v", err))
	}
}

// KafkaSource consumes a Kafka topic and emits the decoded frames. The
// stream id of each frame comes from the record, so one topic can carry
// many streams.
type KafkaSource struct {
	module.BaseEx

	reader frameReader
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaSource() *KafkaSource { return &KafkaSource{} }

func (s *KafkaSource) CheckParamSet(params module.ParamSet) error {
	_, err := kafkaConfig(params)
	return err
}

func (s *KafkaSource) Open(params module.ParamSet) error {
	cfg, err := kafkaConfig(params)
	if err != nil {
		return err
	}
	r, err := newKafkaReader(cfg, s.Logger())
	if err != nil {
		return err
	}
	s.reader = r

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

func (s *KafkaSource) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			s.Logger().Warn("kafka reader close failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	s.cancel = nil
	s.reader = nil
}

// Process relays frames when placed downstream of another stage.
func (s *KafkaSource) Process(_ context.Context, f *frame.Frame) int {
	if !s.TransmitData(f) {
		return module.Consumed
	}
	return module.Forward
}

func (s *KafkaSource) run(ctx context.Context) {
	defer s.wg.Done()
	err := s.reader.Consume(ctx, func(_ context.Context, f *frame.Frame) error {
		if !s.TransmitData(f) {
			s.Logger().Debug("pipeline refused frame", logger.Fields(logger.FieldStreamID, f.StreamID))
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Logger().Error("kafka consume stopped", logger.Fields(logger.FieldError, err.Error()))
		s.PostEvent(eventbus.Error, fmt.Sprintf("kafka consume stopped: %v", err))
	}
}
