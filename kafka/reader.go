package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

const maxReadBackoff = 30 * time.Second

// FrameHandler receives each decoded frame. A returned error is logged and
// consumption continues.
type FrameHandler func(ctx context.Context, f *frame.Frame) error

// messageReader is the subset of kafkago.Reader used by Reader.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Reader consumes frames from one topic.
type Reader struct {
	r   messageReader
	cfg Config
	log *logger.Logger

	readBackoff time.Duration
}

// NewReader validates cfg and creates the underlying kafka-go reader.
func NewReader(cfg Config, log *logger.Logger) (*Reader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka reader config: %w", err)
	}
	dialer, err := CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka reader dialer: %w", err)
	}

	rlog := log.WithComponent("kafka.reader")
	kr := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       resolveStartOffset(cfg.StartOffset),
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           ParseDuration(cfg.ReadTimeout),
		SessionTimeout:    ParseDuration(cfg.SessionTimeout),
		HeartbeatInterval: ParseDuration(cfg.HeartbeatInterval),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			rlog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.Topic, "group_id", cfg.GroupID))
		}),
	})

	rlog.Info("kafka reader created", logger.Fields(
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group_id", cfg.GroupID,
	))
	return newReader(kr, cfg, rlog), nil
}

func newReader(r messageReader, cfg Config, log *logger.Logger) *Reader {
	return &Reader{r: r, cfg: cfg, log: log, readBackoff: time.Second}
}

// Topic returns the topic consumed.
func (r *Reader) Topic() string { return r.cfg.Topic }

// Consume reads records until ctx is cancelled, handing each decoded frame
// to handler. Read failures back off exponentially; malformed records are
// logged and skipped.
func (r *Reader) Consume(ctx context.Context, handler FrameHandler) error {
	r.log.Info("consume loop started", logger.Fields("topic", r.cfg.Topic))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.readBackoff
	b.MaxInterval = maxReadBackoff

	for {
		msg, err := r.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				// reader closed
				return nil
			}
			wait := b.NextBackOff()
			r.log.Warn("kafka read failed", logger.Fields(
				"topic", r.cfg.Topic,
				logger.FieldError, err.Error(),
				"retry_in", wait.String(),
			))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		f, err := DecodeMessage(msg)
		if err != nil {
			r.log.Warn("skipping malformed record", logger.Fields(
				"topic", msg.Topic,
				logger.FieldPartition, msg.Partition,
				"offset", msg.Offset,
				logger.FieldError, err.Error(),
			))
			continue
		}
		if err := handler(ctx, f); err != nil {
			r.log.Error("frame handler failed", logger.Fields(
				logger.FieldStreamID, f.StreamID,
				"offset", msg.Offset,
				logger.FieldError, err.Error(),
			))
		}
	}
}

// Close closes the reader, leaving its consumer group.
func (r *Reader) Close() error {
	r.log.Info("kafka reader closing", logger.Fields("topic", r.cfg.Topic))
	return r.r.Close()
}

// DecodeMessage turns a record back into a frame. The EOS header marks
// the frame as end of stream even when the body does not.
func DecodeMessage(msg kafkago.Message) (*frame.Frame, error) {
	f, err := frame.Unmarshal(msg.Value)
	if err != nil {
		return nil, err
	}
	for _, h := range msg.Headers {
		if h.Key == HeaderEOS && !f.IsEOS() {
			f.SetFlag(frame.FlagEOS)
			f.Payload = nil
		}
	}
	return f, nil
}
