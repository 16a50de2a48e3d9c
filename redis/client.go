package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

// Entry field names.
const (
	FieldFrame    = "frame"
	FieldStreamID = "stream_id"
	FieldEOS      = "eos"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *goredis.Client
	log *logger.Logger
	cfg Config

	mu     sync.Mutex
	closed bool
}

// New creates a client. No connection is made until the first command.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	dialTimeout, _ := time.ParseDuration(cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	clog := log.WithComponent("redis")
	clog.Info("redis client created", logger.Fields(
		"addr", cfg.Addr,
		"db", cfg.DB,
		"pool_size", cfg.PoolSize,
	))
	return &Client{rdb: rdb, log: clog, cfg: cfg}, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	pong, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// AppendFrame adds f to the Redis stream at key and returns the entry id.
// A positive maxLen trims the stream to that many entries.
func (c *Client) AppendFrame(ctx context.Context, key string, f *frame.Frame, maxLen int64) (string, error) {
	data, err := frame.Marshal(f)
	if err != nil {
		return "", err
	}
	eos := "0"
	if f.IsEOS() {
		eos = "1"
	}
	args := &goredis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{
			FieldStreamID: f.StreamID,
			FieldEOS:      eos,
			FieldFrame:    string(data),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
	}
	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd %s: %w", key, err)
	}
	return id, nil
}

// ReadFrames returns the frames stored at key, oldest first.
func (c *Client) ReadFrames(ctx context.Context, key string) ([]*frame.Frame, error) {
	entries, err := c.rdb.XRange(ctx, key, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrange %s: %w", key, err)
	}
	out := make([]*frame.Frame, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.Values[FieldFrame].(string)
		if !ok {
			return nil, fmt.Errorf("redis entry %s has no %s field", e.ID, FieldFrame)
		}
		f, err := frame.Unmarshal([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("redis entry %s: %w", e.ID, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Len returns the number of entries at key.
func (c *Client) Len(ctx context.Context, key string) (int64, error) {
	return c.rdb.XLen(ctx, key).Result()
}

// Close closes the connection pool. Safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.log.Info("closing redis connection")
	return c.rdb.Close()
}

// Unwrap returns the underlying go-redis client.
func (c *Client) Unwrap() *goredis.Client {
	return c.rdb
}
