package module

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
)

type syncStage struct{ Base }

func (s *syncStage) Open(ParamSet) error                       { return nil }
func (s *syncStage) Close()                                    {}
func (s *syncStage) Process(context.Context, *frame.Frame) int { return Forward }

type asyncStage struct{ BaseEx }

func (s *asyncStage) Open(ParamSet) error { return nil }
func (s *asyncStage) Close()              {}
func (s *asyncStage) Process(_ context.Context, f *frame.Frame) int {
	s.TransmitData(f)
	return Forward
}

var (
	_ Module = (*syncStage)(nil)
	_ Module = (*asyncStage)(nil)
)

type fakeContainer struct {
	mu          sync.Mutex
	events      []eventbus.Event
	transmitted map[string][]*frame.Frame
	accept      bool
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{transmitted: map[string][]*frame.Frame{}, accept: true}
}

func (c *fakeContainer) PostEvent(e eventbus.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept {
		return false
	}
	c.events = append(c.events, e)
	return true
}

func (c *fakeContainer) TransmitData(stage string, f *frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept {
		return false
	}
	c.transmitted[stage] = append(c.transmitted[stage], f)
	return true
}

func TestHasTransmit(t *testing.T) {
	if (&syncStage{}).HasTransmit() {
		t.Error("Base stages forward synchronously")
	}
	if !(&asyncStage{}).HasTransmit() {
		t.Error("BaseEx stages transmit themselves")
	}
}

func TestName(t *testing.T) {
	s := &syncStage{}
	s.SetName("decode")
	if s.Name() != "decode" {
		t.Errorf("expected decode, got %q", s.Name())
	}
}

func TestPostEventWithoutContainer(t *testing.T) {
	s := &syncStage{}
	s.SetName("orphan")
	if s.PostEvent(eventbus.Warning, "nobody listens") {
		t.Fatal("detached stage must not report a successful post")
	}
	a := &asyncStage{}
	if a.TransmitData(frame.New("s")) {
		t.Fatal("detached stage must not report a successful transmit")
	}
}

func TestPostEventAttributed(t *testing.T) {
	c := newFakeContainer()
	s := &syncStage{}
	s.SetName("infer")
	s.SetContainer(c)

	if !s.PostEvent(eventbus.Warning, "slow") {
		t.Fatal("post failed")
	}
	if !s.PostStreamEvent(eventbus.StreamError, "cam-2", "decoder lost") {
		t.Fatal("post failed")
	}
	if len(c.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(c.events))
	}
	if c.events[0].Module != "infer" || c.events[0].Type != eventbus.Warning {
		t.Errorf("unexpected event %+v", c.events[0])
	}
	if c.events[1].StreamID != "cam-2" || c.events[1].Time.After(time.Now()) {
		t.Errorf("unexpected stream event %+v", c.events[1])
	}
}

func TestPostEventAfterStop(t *testing.T) {
	c := newFakeContainer()
	c.accept = false
	s := &syncStage{}
	s.SetContainer(c)
	if s.PostEvent(eventbus.Info, "late") {
		t.Fatal("post must fail once the container refuses")
	}
}

func TestTransmitData(t *testing.T) {
	c := newFakeContainer()
	a := &asyncStage{}
	a.SetName("relay")
	a.SetContainer(c)

	f := frame.New("s0")
	a.Process(context.Background(), f)
	if got := c.transmitted["relay"]; len(got) != 1 || got[0] != f {
		t.Fatalf("expected frame transmitted under the stage name, got %v", c.transmitted)
	}

	a.SetContainer(nil)
	if a.TransmitData(frame.New("s0")) {
		t.Fatal("transmit after detach must fail")
	}
}

func TestLogger(t *testing.T) {
	s := &syncStage{}
	s.SetName("sink")
	if s.Logger() == nil {
		t.Fatal("expected logger")
	}
}
