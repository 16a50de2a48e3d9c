package pipeline

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

// StreamMsgType classifies a StreamMsg.
type StreamMsgType int

const (
	// MsgEOS: the stream's end-of-stream frame passed every stage.
	MsgEOS StreamMsgType = iota
	// MsgError: a stage failed to process a frame.
	MsgError
	// MsgStreamError: a stage reported the whole stream as broken.
	MsgStreamError
	// MsgFrameError: a frame was flagged invalid and dropped.
	MsgFrameError
)

var streamMsgNames = map[StreamMsgType]string{
	MsgEOS:         "EOS",
	MsgError:       "ERROR",
	MsgStreamError: "STREAM_ERROR",
	MsgFrameError:  "FRAME_ERROR",
}

func (t StreamMsgType) String() string {
	if name, ok := streamMsgNames[t]; ok {
		return name
	}
	return fmt.Sprintf("stream_msg(%d)", int(t))
}

// StreamMsg notifies the application about a stream.
type StreamMsg struct {
	Type     StreamMsgType
	StreamID string
	Module   string
	// Timestamp is the frame timestamp for frame-level messages.
	Timestamp int64
}

// StreamMsgObserver receives stream messages on a single goroutine owned by
// the pipeline. Update must not call Stop on the same pipeline.
type StreamMsgObserver interface {
	Update(msg StreamMsg)
}

// StreamMsgObserverFunc adapts a function to StreamMsgObserver.
type StreamMsgObserverFunc func(StreamMsg)

func (fn StreamMsgObserverFunc) Update(msg StreamMsg) { fn(msg) }

const msgQueueSize = 64

type msgLoop struct {
	log *logger.Logger

	mu   sync.RWMutex
	open bool
	ch   chan StreamMsg
	done chan struct{}

	obsMu    sync.RWMutex
	observer StreamMsgObserver
}

func newMsgLoop(log *logger.Logger) *msgLoop {
	return &msgLoop{log: log}
}

func (l *msgLoop) start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		return
	}
	l.ch = make(chan StreamMsg, msgQueueSize)
	l.done = make(chan struct{})
	l.open = true
	go l.run(l.ch, l.done)
}

// stop delivers what is queued and waits for the loop to exit.
func (l *msgLoop) stop() {
	l.mu.Lock()
	if !l.open {
		l.mu.Unlock()
		return
	}
	l.open = false
	close(l.ch)
	done := l.done
	l.mu.Unlock()
	<-done
}

// send queues msg, waiting while the queue is full. It returns false once
// the loop is stopped.
func (l *msgLoop) send(msg StreamMsg) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.open {
		return false
	}
	l.ch <- msg
	return true
}

func (l *msgLoop) run(ch <-chan StreamMsg, done chan<- struct{}) {
	defer close(done)
	for msg := range ch {
		l.deliver(msg)
	}
}

func (l *msgLoop) deliver(msg StreamMsg) {
	o := l.getObserver()
	if o == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("stream message observer panicked", logger.Fields(
				logger.FieldStreamID, msg.StreamID,
				logger.FieldError, fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			))
		}
	}()
	o.Update(msg)
}

func (l *msgLoop) setObserver(o StreamMsgObserver) {
	l.obsMu.Lock()
	l.observer = o
	l.obsMu.Unlock()
}

func (l *msgLoop) getObserver() StreamMsgObserver {
	l.obsMu.RLock()
	defer l.obsMu.RUnlock()
	return l.observer
}

// streamIndex hands out the lowest free index to each live stream. A stream
// that arrives while every index is taken stays on frame.InvalidStreamIndex
// until its EOS completes, so all of its frames take the same route even
// after other streams free their indexes.
type streamIndex struct {
	mu   sync.Mutex
	used []bool
	ids  map[string]int
}

func newStreamIndex(max int) *streamIndex {
	return &streamIndex{used: make([]bool, max), ids: make(map[string]int)}
}

// acquire returns the stream's index, assigning one on first sight. When
// every index is taken it returns frame.InvalidStreamIndex and keeps
// returning it for that stream until release.
func (s *streamIndex) acquire(streamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.ids[streamID]; ok {
		return idx
	}
	for i, taken := range s.used {
		if !taken {
			s.used[i] = true
			s.ids[streamID] = i
			return i
		}
	}
	s.ids[streamID] = frame.InvalidStreamIndex
	return frame.InvalidStreamIndex
}

func (s *streamIndex) release(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.ids[streamID]
	if !ok {
		return
	}
	if idx >= 0 {
		s.used[idx] = false
	}
	delete(s.ids, streamID)
}

func (s *streamIndex) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.used)
	clear(s.ids)
}

// active counts live streams, including those without an index.
func (s *streamIndex) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// ActiveStreams returns the number of streams that started and have not
// completed their EOS yet.
func (p *Pipeline) ActiveStreams() int {
	return p.streams.active()
}

// AcquireStreamIndex reserves the index streamID will carry, as its first
// frame would. It returns frame.InvalidStreamIndex when every index is
// taken. The index is returned once the stream's EOS has passed every stage.
func (p *Pipeline) AcquireStreamIndex(streamID string) int {
	return p.streams.acquire(streamID)
}

// RemoveStream marks streamID removed: its data frames are skipped and
// dropped, while its EOS still travels so stages can clean up. The mark is
// cleared once that EOS has passed every stage.
func (p *Pipeline) RemoveStream(streamID string) {
	p.removedMu.Lock()
	p.removed[streamID] = true
	p.removedMu.Unlock()
	p.log.Info("stream removed", logger.Fields(logger.FieldStreamID, streamID))
}

// IsStreamRemoved reports whether RemoveStream was called for streamID and
// its EOS has not completed yet.
func (p *Pipeline) IsStreamRemoved(streamID string) bool {
	p.removedMu.RLock()
	defer p.removedMu.RUnlock()
	return p.removed[streamID]
}

func (p *Pipeline) restoreStream(streamID string) {
	p.removedMu.Lock()
	delete(p.removed, streamID)
	p.removedMu.Unlock()
}
