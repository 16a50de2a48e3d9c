package eventbus

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/logger"
)

var (
	// ErrNotRunning is returned internally when posting to a stopped bus.
	ErrNotRunning = stderrors.New("eventbus: not running")
	errFull       = stderrors.New("eventbus: queue full")
)

// Recorder receives counts of posted and dropped events.
type Recorder interface {
	RecordEvent(ctx context.Context, eventType string, dropped bool)
}

type watcherEntry struct {
	id int
	fn Watcher
}

// Bus delivers events from many producers to a single consumer goroutine
// that runs the registered watchers.
type Bus struct {
	cfg      Config
	log      *logger.Logger
	recorder Recorder

	mu      sync.RWMutex
	running bool
	queue   chan Event
	done    chan struct{}
	stopReq chan struct{}
	reqOnce *sync.Once

	watchMu  sync.RWMutex
	watchers []watcherEntry
	nextID   int

	posted  atomic.Uint64
	dropped atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for dropped events and watcher panics.
func WithLogger(l *logger.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithRecorder reports posted and dropped events to r.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) { b.recorder = r }
}

// New creates a stopped bus.
func New(cfg Config, opts ...Option) *Bus {
	cfg.ApplyDefaults()
	b := &Bus{
		cfg:     cfg,
		log:     logger.WithComponent("eventbus"),
		stopReq: make(chan struct{}),
		reqOnce: &sync.Once{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the consumer goroutine. Calling Start on a running bus is
// a no-op.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.queue = make(chan Event, b.cfg.Capacity)
	b.done = make(chan struct{})
	b.stopReq = make(chan struct{})
	b.reqOnce = &sync.Once{}
	b.running = true
	go b.loop(b.queue, b.done)
}

// Stop refuses new events, lets the consumer deliver the events already
// accepted, and waits for it to exit. It must not be called from a watcher.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.queue)
	done := b.done
	b.mu.Unlock()
	<-done
}

// IsRunning reports whether the consumer is accepting events.
func (b *Bus) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// PostEvent enqueues e for the consumer. When the queue is full it retries
// a bounded number of times and then drops the event. It returns false if
// the event was dropped or the bus is not running; it never blocks beyond
// the retry window.
func (b *Bus) PostEvent(e Event) bool {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		return struct{}{}, b.tryPost(e)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(b.cfg.RetryInterval)),
		backoff.WithMaxTries(uint(b.cfg.RetryAttempts)),
	)
	switch {
	case err == nil:
		b.posted.Add(1)
		b.record(e.Type, false)
		return true
	case stderrors.Is(err, ErrNotRunning):
		return false
	default:
		b.dropped.Add(1)
		b.record(e.Type, true)
		b.log.Warn("event dropped, bus queue full", logger.Fields(
			logger.FieldEventType, e.Type.String(),
			logger.FieldStage, e.Module,
			"message", e.Message,
		))
		return false
	}
}

func (b *Bus) tryPost(e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return backoff.Permanent(ErrNotRunning)
	}
	select {
	case b.queue <- e:
		return nil
	default:
		return errFull
	}
}

func (b *Bus) record(t EventType, dropped bool) {
	if b.recorder != nil {
		b.recorder.RecordEvent(context.Background(), t.String(), dropped)
	}
}

// AddWatcher registers w and returns its id. The most recently added
// watcher sees each event first.
func (b *Bus) AddWatcher(w Watcher) int {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()
	b.nextID++
	b.watchers = append([]watcherEntry{{id: b.nextID, fn: w}}, b.watchers...)
	return b.nextID
}

// RemoveWatcher unregisters the watcher with the given id.
func (b *Bus) RemoveWatcher(id int) bool {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()
	for i, w := range b.watchers {
		if w.id == id {
			b.watchers = append(b.watchers[:i], b.watchers[i+1:]...)
			return true
		}
	}
	return false
}

// ClearWatchers removes every watcher.
func (b *Bus) ClearWatchers() {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()
	b.watchers = nil
}

// WatcherCount returns the number of registered watchers.
func (b *Bus) WatcherCount() int {
	b.watchMu.RLock()
	defer b.watchMu.RUnlock()
	return len(b.watchers)
}

// StopRequested returns a channel closed when a watcher answers HandleStop
// during the current run. Every Start replaces the channel, so it is only
// valid once the bus has started: take it after Start, and again after each
// restart. A channel taken earlier never closes.
func (b *Bus) StopRequested() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopReq
}

// Posted returns the number of accepted events.
func (b *Bus) Posted() uint64 { return b.posted.Load() }

// Dropped returns the number of events dropped on a full queue.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) loop(queue <-chan Event, done chan<- struct{}) {
	defer close(done)
	for e := range queue {
		b.dispatch(e)
	}
}

func (b *Bus) dispatch(e Event) {
	b.watchMu.RLock()
	watchers := make([]watcherEntry, len(b.watchers))
	copy(watchers, b.watchers)
	b.watchMu.RUnlock()

	for _, w := range watchers {
		switch b.call(w.fn, e) {
		case HandleIntercept:
			return
		case HandleStop:
			b.requestStop()
			return
		}
	}
}

func (b *Bus) call(w Watcher, e Event) (flag HandleFlag) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event watcher panicked", logger.Fields(
				logger.FieldEventType, e.Type.String(),
				logger.FieldError, fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			))
			flag = HandleNull
		}
	}()
	return w(e)
}

func (b *Bus) requestStop() {
	b.mu.RLock()
	ch, once := b.stopReq, b.reqOnce
	b.mu.RUnlock()
	once.Do(func() { close(ch) })
}
