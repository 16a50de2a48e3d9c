package stages

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
)

// Collector is a sink that keeps every data frame it receives, grouped by
// stream in arrival order.
type Collector struct {
	module.Base

	mu      sync.Mutex
	frames  map[string][]*frame.Frame
	eos     map[string]int
	count   int
	changed chan struct{}
}

func NewCollector() *Collector {
	return &Collector{
		frames:  make(map[string][]*frame.Frame),
		eos:     make(map[string]int),
		changed: make(chan struct{}),
	}
}

func (s *Collector) Open(module.ParamSet) error { return nil }

func (s *Collector) Close() {}

func (s *Collector) Process(_ context.Context, f *frame.Frame) int {
	s.mu.Lock()
	s.frames[f.StreamID] = append(s.frames[f.StreamID], f)
	s.count++
	s.notifyLocked()
	s.mu.Unlock()
	return module.Forward
}

func (s *Collector) OnEOS(streamID string) {
	s.mu.Lock()
	s.eos[streamID]++
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Collector) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Frames returns the frames received for streamID.
func (s *Collector) Frames(streamID string) []*frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*frame.Frame(nil), s.frames[streamID]...)
}

// Count returns the number of data frames received.
func (s *Collector) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// EOSCount returns how many EOS frames of streamID reached the collector.
func (s *Collector) EOSCount(streamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eos[streamID]
}

// Reset forgets everything received.
func (s *Collector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[string][]*frame.Frame)
	s.eos = make(map[string]int)
	s.count = 0
}

// Wait blocks until at least n data frames arrived or timeout elapses.
func (s *Collector) Wait(n int, timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool { return s.count >= n })
}

// WaitEOS blocks until the EOS of streamID arrived or timeout elapses.
func (s *Collector) WaitEOS(streamID string, timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool { return s.eos[streamID] > 0 })
}

func (s *Collector) waitFor(timeout time.Duration, done func() bool) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if done() {
			s.mu.Unlock()
			return true
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return false
		}
	}
}
