package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/stages"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// funcStage is a synchronous stage whose behaviour is set per test.
type funcStage struct {
	module.Base
	rec     *recorder
	openErr error
	fn      func(f *frame.Frame) int
}

func newFuncStage(name string, fn func(f *frame.Frame) int) *funcStage {
	s := &funcStage{fn: fn}
	s.SetName(name)
	return s
}

func (s *funcStage) Open(module.ParamSet) error {
	s.rec.add("open:" + s.Name())
	return s.openErr
}

func (s *funcStage) Close() { s.rec.add("close:" + s.Name()) }

func (s *funcStage) Process(_ context.Context, f *frame.Frame) int {
	if s.fn != nil {
		return s.fn(f)
	}
	return module.Forward
}

// sourceStage is a source that records its lifecycle.
type sourceStage struct {
	stages.Feeder
	rec *recorder
}

func newSource(name string, rec *recorder) *sourceStage {
	s := &sourceStage{rec: rec}
	s.SetName(name)
	return s
}

func (s *sourceStage) Open(module.ParamSet) error {
	s.rec.add("open:" + s.Name())
	return nil
}

func (s *sourceStage) Close() { s.rec.add("close:" + s.Name()) }

type msgCollector struct {
	mu   sync.Mutex
	msgs []StreamMsg
}

func (c *msgCollector) Update(msg StreamMsg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *msgCollector) count(t StreamMsgType, streamID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == t && m.StreamID == streamID {
			n++
		}
	}
	return n
}

func newTestPipeline(capacity int, opts ...Option) *Pipeline {
	cfg := Config{QueueCapacity: capacity}
	opts = append([]Option{WithConfig(cfg), WithLogger(logger.Nop())}, opts...)
	return New("test", opts...)
}

func named[T interface{ SetName(string) }](name string, s T) T {
	s.SetName(name)
	return s
}

// chain adds mods and links them in order.
func chain(t *testing.T, p *Pipeline, mods ...module.Module) {
	t.Helper()
	for _, m := range mods {
		if err := p.AddModule(m); err != nil {
			t.Fatalf("add %s: %v", m.Name(), err)
		}
	}
	for i := 1; i < len(mods); i++ {
		if _, err := p.LinkModules(mods[i-1].Name(), mods[i].Name()); err != nil {
			t.Fatalf("link: %v", err)
		}
	}
}

func link(t *testing.T, p *Pipeline, up, down string) {
	t.Helper()
	if _, err := p.LinkModules(up, down); err != nil {
		t.Fatalf("link %s -> %s: %v", up, down, err)
	}
}

func mustStart(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func feed(t *testing.T, src interface{ Feed(*frame.Frame) bool }, streamID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f := frame.New(streamID)
		f.Seq = uint64(i)
		if !src.Feed(f) {
			t.Fatalf("feed %s #%d refused", streamID, i)
		}
	}
}

func assertSeqs(t *testing.T, frames []*frame.Frame, n int) {
	t.Helper()
	if len(frames) != n {
		t.Fatalf("expected %d frames, got %d", n, len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i) {
			t.Fatalf("frame %d has seq %d", i, f.Seq)
		}
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out")
	}
}
