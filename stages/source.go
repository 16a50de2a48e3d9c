package stages

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// ParamMaxSources bounds the handlers a Source runs at once.
const ParamMaxSources = "max_sources"

const defaultMaxSources = 64

// Errors returned by Source.AddSource.
var (
	ErrSourceClosed   = errors.New("source is not open")
	ErrSourceExists   = errors.New("stream already has a source handler")
	ErrTooManySources = errors.New("source handler limit reached")
)

// SourceHandler produces the frames of one stream.
type SourceHandler interface {
	StreamID() string
	// Run emits frames until the stream is exhausted or ctx ends. The Source
	// stamps the stream id and index on every emitted frame and sends the
	// EOS once Run returns. emit must be called from Run's goroutine; it
	// returns false when the pipeline refuses the frame, after which Run
	// should return.
	Run(ctx context.Context, emit func(*frame.Frame) bool) error
}

// SourceHandlerFunc adapts a function to SourceHandler.
func SourceHandlerFunc(streamID string, run func(ctx context.Context, emit func(*frame.Frame) bool) error) SourceHandler {
	return &funcHandler{id: streamID, run: run}
}

type funcHandler struct {
	id  string
	run func(ctx context.Context, emit func(*frame.Frame) bool) error
}

func (h *funcHandler) StreamID() string { return h.id }

func (h *funcHandler) Run(ctx context.Context, emit func(*frame.Frame) bool) error {
	return h.run(ctx, emit)
}

type sourceEntry struct {
	handler SourceHandler
	index   int
	cancel  context.CancelFunc
	done    chan struct{}
}

// Source is a source stage running one SourceHandler per stream. Handlers
// are added and removed while the pipeline runs.
type Source struct {
	module.BaseEx

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	limit   int
	entries map[string]*sourceEntry
}

func NewSource() *Source {
	return &Source{entries: make(map[string]*sourceEntry)}
}

func (s *Source) CheckParamSet(params module.ParamSet) error {
	limit, err := params.Int(ParamMaxSources, defaultMaxSources)
	if err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("%s must be at least 1", ParamMaxSources)
	}
	return nil
}

func (s *Source) Open(params module.ParamSet) error {
	if err := s.CheckParamSet(params); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit, _ = params.Int(ParamMaxSources, defaultMaxSources)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return nil
}

// Close stops every handler and refuses new ones.
func (s *Source) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()
	s.RemoveSources(false)
}

// Process relays frames when placed downstream of another stage.
func (s *Source) Process(_ context.Context, f *frame.Frame) int {
	if !s.TransmitData(f) {
		return module.Consumed
	}
	return module.Forward
}

// AddSource starts h on its own goroutine. The stream's index is reserved
// with the pipeline right away.
func (s *Source) AddSource(h SourceHandler) error {
	if h == nil {
		return errors.New("nil source handler")
	}
	id := h.StreamID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return ErrSourceClosed
	}
	if _, ok := s.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	if len(s.entries) >= s.limit {
		s.Logger().Warn("source handler rejected", logger.Fields(logger.FieldStreamID, id, ParamMaxSources, s.limit))
		return ErrTooManySources
	}

	e := &sourceEntry{handler: h, index: frame.InvalidStreamIndex, done: make(chan struct{})}
	if sc, ok := s.Container().(module.StreamController); ok {
		e.index = sc.AcquireStreamIndex(id)
	}
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(s.ctx)
	s.entries[id] = e
	go s.run(ctx, e)
	return nil
}

// RemoveSource stops the handler of streamID and waits for it to return.
// Without force the frames it already emitted are still delivered; with
// force they are dropped. Either way the stream ends with EOS. Removing an
// unknown stream is a no-op.
func (s *Source) RemoveSource(streamID string, force bool) {
	s.mu.Lock()
	e, ok := s.entries[streamID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.stop(e, force)
}

// RemoveSources stops every handler concurrently.
func (s *Source) RemoveSources(force bool) {
	s.mu.Lock()
	entries := make([]*sourceEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *sourceEntry) {
			defer wg.Done()
			s.stop(e, force)
		}(e)
	}
	wg.Wait()
}

// SourceHandler returns the handler running streamID.
func (s *Source) SourceHandler(streamID string) (SourceHandler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[streamID]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// StreamIndex returns the index reserved for streamID, or
// frame.InvalidStreamIndex when it has no handler or no index was free.
func (s *Source) StreamIndex(streamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[streamID]; ok {
		return e.index
	}
	return frame.InvalidStreamIndex
}

// SourceCount returns the number of running handlers.
func (s *Source) SourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Source) stop(e *sourceEntry, force bool) {
	id := e.handler.StreamID()
	if force {
		if sc, ok := s.Container().(module.StreamController); ok {
			sc.RemoveStream(id)
		}
	}
	e.cancel()
	<-e.done
}

func (s *Source) run(ctx context.Context, e *sourceEntry) {
	id := e.handler.StreamID()
	log := s.Logger()
	defer func() {
		s.mu.Lock()
		if s.entries[id] == e {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		close(e.done)
	}()

	refused := false
	emit := func(f *frame.Frame) bool {
		if refused {
			return false
		}
		f.StreamID = id
		f.SetStreamIndex(e.index)
		if !s.TransmitData(f) {
			refused = true
		}
		return !refused
	}

	err := safeRun(ctx, e.handler, emit)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("source handler failed", logger.Fields(logger.FieldStreamID, id, logger.FieldError, err.Error()))
		s.PostStreamEvent(eventbus.StreamError, id, err.Error())
	}
	if refused {
		log.Debug("pipeline refused frame, handler exiting", logger.Fields(logger.FieldStreamID, id))
		return
	}
	eos := frame.NewEOS(id)
	eos.SetStreamIndex(e.index)
	s.TransmitData(eos)
}

func safeRun(ctx context.Context, h SourceHandler, emit func(*frame.Frame) bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Run(ctx, emit)
}
