package stages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/registry"
)

type fakeContainer struct {
	mu          sync.Mutex
	transmitted []*frame.Frame
	refuse      bool
}

func (c *fakeContainer) PostEvent(eventbus.Event) bool { return true }

func (c *fakeContainer) TransmitData(_ string, f *frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse {
		return false
	}
	c.transmitted = append(c.transmitted, f)
	return true
}

func (c *fakeContainer) frames() []*frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*frame.Frame(nil), c.transmitted...)
}

func TestFeeder(t *testing.T) {
	s := NewFeeder()
	if s.Feed(frame.New("s0")) {
		t.Fatal("feed without a pipeline should fail")
	}

	c := &fakeContainer{}
	s.SetName("src")
	s.SetContainer(c)
	if !s.Feed(frame.New("s0")) || !s.FeedEOS("s0") {
		t.Fatal("feed should succeed")
	}
	got := c.frames()
	if len(got) != 2 || got[0].IsEOS() || !got[1].IsEOS() {
		t.Fatalf("unexpected frames %v", got)
	}
	if !s.HasTransmit() {
		t.Error("feeder must transmit itself")
	}
}

func TestTickerSourceCheckParamSet(t *testing.T) {
	tests := []struct {
		name    string
		params  module.ParamSet
		wantErr bool
	}{
		{"valid", module.ParamSet{"stream_ids": "a,b", "interval": "5ms", "frame_count": "3"}, false},
		{"defaults", module.ParamSet{"stream_ids": "a"}, false},
		{"missing streams", module.ParamSet{}, true},
		{"empty streams", module.ParamSet{"stream_ids": " , "}, true},
		{"bad interval", module.ParamSet{"stream_ids": "a", "interval": "soon"}, true},
		{"zero interval", module.ParamSet{"stream_ids": "a", "interval": "0s"}, true},
		{"negative count", module.ParamSet{"stream_ids": "a", "frame_count": "-1"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewTickerSource().CheckParamSet(tc.params)
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTickerSourceEmitsThenEOS(t *testing.T) {
	c := &fakeContainer{}
	s := NewTickerSource()
	s.SetName("ticker")
	s.SetContainer(c)

	if err := s.Open(module.ParamSet{"stream_ids": "a,b", "interval": "1ms", "frame_count": "3"}); err != nil {
		t.Fatalf("open: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(c.frames()) < 8 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Close()

	got := c.frames()
	if len(got) != 8 {
		t.Fatalf("expected 6 frames and 2 EOS, got %d", len(got))
	}
	seqs := map[string][]uint64{}
	eos := map[string]bool{}
	for _, f := range got {
		if f.IsEOS() {
			eos[f.StreamID] = true
			continue
		}
		if eos[f.StreamID] {
			t.Fatalf("frame after EOS on %s", f.StreamID)
		}
		seqs[f.StreamID] = append(seqs[f.StreamID], f.Seq)
	}
	for _, id := range []string{"a", "b"} {
		if !eos[id] {
			t.Errorf("stream %s never ended", id)
		}
		want := []uint64{0, 1, 2}
		if len(seqs[id]) != len(want) {
			t.Fatalf("stream %s: expected seqs %v, got %v", id, want, seqs[id])
		}
		for i := range want {
			if seqs[id][i] != want[i] {
				t.Errorf("stream %s: expected seqs %v, got %v", id, want, seqs[id])
			}
		}
	}
}

func TestTickerSourceStopsWhenRefused(t *testing.T) {
	c := &fakeContainer{refuse: true}
	s := NewTickerSource()
	s.SetContainer(c)
	if err := s.Open(module.ParamSet{"stream_ids": "a", "interval": "1ms"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
}

func TestPassthrough(t *testing.T) {
	s := NewPassthrough()
	if got := s.Process(context.Background(), frame.New("s")); got != module.Forward {
		t.Errorf("expected Forward, got %d", got)
	}
	if s.HasTransmit() {
		t.Error("passthrough is synchronous")
	}
}

func TestAsyncRelay(t *testing.T) {
	s := NewAsyncRelay()
	if got := s.Process(context.Background(), frame.New("s")); got != module.Consumed {
		t.Errorf("detached relay should consume, got %d", got)
	}
	c := &fakeContainer{}
	s.SetContainer(c)
	if got := s.Process(context.Background(), frame.New("s")); got != module.Forward {
		t.Errorf("expected Forward, got %d", got)
	}
	if len(c.frames()) != 1 {
		t.Error("frame was not transmitted")
	}
}

func TestThrottleParams(t *testing.T) {
	tests := []struct {
		name    string
		params  module.ParamSet
		wantErr bool
	}{
		{"rate only", module.ParamSet{"rate": "50"}, false},
		{"rate and burst", module.ParamSet{"rate": "0.5", "burst": "4"}, false},
		{"missing rate", module.ParamSet{}, true},
		{"zero rate", module.ParamSet{"rate": "0"}, true},
		{"bad rate", module.ParamSet{"rate": "fast"}, true},
		{"zero burst", module.ParamSet{"rate": "5", "burst": "0"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewThrottle().CheckParamSet(tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckParamSet() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThrottlePacesFrames(t *testing.T) {
	s := NewThrottle()
	if err := s.Open(module.ParamSet{"rate": "100", "burst": "1"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if got := s.Process(context.Background(), frame.New("s")); got != module.Forward {
			t.Fatalf("frame %d: got %d", i, got)
		}
	}
	// Three frames beyond the burst at 100/s need about 30ms.
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("four frames passed in %v", elapsed)
	}
}

func TestThrottleForwardsWhenStopping(t *testing.T) {
	s := NewThrottle()
	if err := s.Open(module.ParamSet{"rate": "0.001"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		if got := s.Process(ctx, frame.New("s")); got != module.Forward {
			t.Fatalf("frame %d: got %d", i, got)
		}
	}
}

func TestCollector(t *testing.T) {
	s := NewCollector()
	ctx := context.Background()

	go func() {
		for i := 0; i < 3; i++ {
			f := frame.New("s0")
			f.Seq = uint64(i)
			s.Process(ctx, f)
		}
		s.OnEOS("s0")
	}()

	if !s.Wait(3, 2*time.Second) {
		t.Fatal("timed out waiting for frames")
	}
	if !s.WaitEOS("s0", 2*time.Second) {
		t.Fatal("timed out waiting for eos")
	}
	frames := s.Frames("s0")
	for i, f := range frames {
		if f.Seq != uint64(i) {
			t.Errorf("frame %d has seq %d", i, f.Seq)
		}
	}
	if s.Count() != 3 || s.EOSCount("s0") != 1 {
		t.Errorf("count=%d eos=%d", s.Count(), s.EOSCount("s0"))
	}
	if s.Wait(4, 10*time.Millisecond) {
		t.Error("wait should time out")
	}

	s.Reset()
	if s.Count() != 0 || len(s.Frames("s0")) != 0 {
		t.Error("reset should clear frames")
	}
}

func TestLogSinkParams(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"loud", true},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			s := NewLogSink()
			err := s.Open(module.ParamSet{ParamLevel: tc.level})
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
			if err == nil {
				s.Process(context.Background(), frame.New("s"))
				s.OnEOS("s")
			}
		})
	}
}

func TestRegisteredInDefault(t *testing.T) {
	for _, name := range []string{ClassFeeder, ClassTickerSource, ClassPassthrough, ClassAsyncRelay, ClassCollector, ClassLogSink, ClassKafkaSink, ClassKafkaSource, ClassRedisSink, ClassThrottle, ClassSource} {
		m := registry.CreateObject(name)
		if m == nil {
			t.Errorf("%s not registered", name)
		}
	}
	if err := registry.Require(ClassFeeder, ClassCollector); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegisterKeepsExisting(t *testing.T) {
	reg := registry.New()
	custom := func() module.Module { return NewCollector() }
	reg.Register(registry.ClassInfo{Name: ClassPassthrough, Constructor: custom})
	Register(reg)

	if _, ok := reg.CreateObject(ClassPassthrough).(*Collector); !ok {
		t.Error("existing registration should win")
	}
	if len(reg.List()) != 11 {
		t.Errorf("expected 11 classes, got %v", reg.List())
	}
}
