package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

// Header keys set on every record.
const (
	HeaderContentType = "content-type"
	HeaderEOS         = "streamkit-eos"
)

const contentTypeJSON = "application/json"

// messageWriter is the subset of kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes frames to one topic. Records are keyed by stream id and
// balanced by hash, so a stream keeps its order within its partition.
type Writer struct {
	w   messageWriter
	cfg Config
	log *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWriter validates cfg and creates the underlying kafka-go writer. No
// connection is made until the first write.
func NewWriter(cfg Config, log *logger.Logger) (*Writer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka writer config: %w", err)
	}
	transport, err := CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka writer transport: %w", err)
	}

	wlog := log.WithComponent("kafka.writer")
	kw := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: ParseDuration(cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  ResolveCompression(cfg.Compression),
		WriteTimeout: ParseDuration(cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			wlog.Error("writer: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.Topic))
		}),
	}

	wlog.Info("kafka writer created", logger.Fields(
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.Compression,
		"batch_size", cfg.BatchSize,
	))
	return newWriter(kw, cfg, wlog), nil
}

func newWriter(w messageWriter, cfg Config, log *logger.Logger) *Writer {
	return &Writer{w: w, cfg: cfg, log: log}
}

// Topic returns the topic written to.
func (w *Writer) Topic() string { return w.cfg.Topic }

// WriteFrames encodes and publishes frames as one batch. Retryable broker
// errors are retried with exponential backoff up to Config.Retries times.
func (w *Writer) WriteFrames(ctx context.Context, frames ...*frame.Frame) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("kafka writer is closed")
	}

	msgs := make([]kafkago.Message, 0, len(frames))
	for _, f := range frames {
		msg, err := EncodeMessage(f)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ParseDuration(w.cfg.RetryBackoff)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.w.WriteMessages(ctx, msgs...)
		if err != nil && !IsRetryableError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(w.cfg.Retries)),
	)
	if err != nil {
		return fmt.Errorf("kafka write to %s: %w", w.cfg.Topic, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer. Safe to call more
// than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.log.Info("kafka writer closing", logger.Fields("topic", w.cfg.Topic))
	return w.w.Close()
}

// EncodeMessage turns f into a record keyed by its stream id.
func EncodeMessage(f *frame.Frame) (kafkago.Message, error) {
	data, err := frame.Marshal(f)
	if err != nil {
		return kafkago.Message{}, err
	}
	msg := kafkago.Message{
		Key:   []byte(f.StreamID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderContentType, Value: []byte(contentTypeJSON)},
		},
	}
	if f.IsEOS() {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: HeaderEOS, Value: []byte("1")})
	}
	return msg, nil
}
