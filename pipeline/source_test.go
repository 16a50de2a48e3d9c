package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/stages"
)

func countTo(n int) func(ctx context.Context, emit func(*frame.Frame) bool) error {
	return func(_ context.Context, emit func(*frame.Frame) bool) error {
		for i := 0; i < n; i++ {
			f := frame.New("")
			f.Seq = uint64(i)
			if !emit(f) {
				return nil
			}
		}
		return nil
	}
}

func TestSourceHandlersFeedPipeline(t *testing.T) {
	p := newTestPipeline(4)
	msgs := &msgCollector{}
	p.SetStreamMsgObserver(msgs)
	src := named("src", stages.NewSource())
	sink := named("sink", stages.NewCollector())
	chain(t, p, src, named("pass", stages.NewPassthrough()), sink)
	mustStart(t, p)
	defer p.Stop()

	for _, id := range []string{"cam-0", "cam-1"} {
		if err := src.AddSource(stages.SourceHandlerFunc(id, countTo(10))); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	for _, id := range []string{"cam-0", "cam-1"} {
		if !sink.WaitEOS(id, 2*time.Second) {
			t.Fatalf("no EOS for %s", id)
		}
		assertSeqs(t, sink.Frames(id), 10)
	}

	deadline := time.Now().Add(time.Second)
	for msgs.count(MsgEOS, "cam-0")+msgs.count(MsgEOS, "cam-1") != 2 || src.SourceCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("streams did not complete")
		}
		time.Sleep(time.Millisecond)
	}
	if p.ActiveStreams() != 0 {
		t.Errorf("stream indexes not released: %d", p.ActiveStreams())
	}
}

func TestSourceReservesStreamIndex(t *testing.T) {
	p := newTestPipeline(4, WithConfig(Config{QueueCapacity: 4, MaxStreams: 1}))
	src := named("src", stages.NewSource())
	sink := named("sink", stages.NewCollector())
	chain(t, p, src, sink)
	mustStart(t, p)
	defer p.Stop()

	hold := func(ctx context.Context, _ func(*frame.Frame) bool) error {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := src.AddSource(stages.SourceHandlerFunc("a", hold)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.AddSource(stages.SourceHandlerFunc("b", hold)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if src.StreamIndex("a") != 0 {
		t.Errorf("a: expected index 0, got %d", src.StreamIndex("a"))
	}
	if src.StreamIndex("b") != frame.InvalidStreamIndex {
		t.Errorf("b: expected no index, got %d", src.StreamIndex("b"))
	}
	if p.ActiveStreams() != 2 {
		t.Errorf("expected 2 live streams, got %d", p.ActiveStreams())
	}
}

func TestSourceForcedRemovalDropsQueuedFrames(t *testing.T) {
	p := newTestPipeline(2)
	msgs := &msgCollector{}
	p.SetStreamMsgObserver(msgs)
	src := named("src", stages.NewSource())
	parked := make(chan struct{})
	release := make(chan struct{})
	gate := newFuncStage("gate", func(f *frame.Frame) int {
		if f.Seq == 0 {
			close(parked)
			<-release
		}
		return module.Forward
	})
	sink := named("sink", stages.NewCollector())
	chain(t, p, src, gate, sink)
	mustStart(t, p)
	defer p.Stop()

	endless := func(ctx context.Context, emit func(*frame.Frame) bool) error {
		for i := 0; ctx.Err() == nil; i++ {
			f := frame.New("")
			f.Seq = uint64(i)
			if !emit(f) {
				return nil
			}
		}
		return ctx.Err()
	}
	if err := src.AddSource(stages.SourceHandlerFunc("a", endless)); err != nil {
		t.Fatalf("add: %v", err)
	}
	waitClosed(t, parked, time.Second)

	removed := make(chan struct{})
	go func() {
		src.RemoveSource("a", true)
		close(removed)
	}()
	deadline := time.Now().Add(time.Second)
	for !p.IsStreamRemoved("a") {
		if time.Now().After(deadline) {
			t.Fatal("stream never marked removed")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	waitClosed(t, removed, 2*time.Second)

	if !sink.WaitEOS("a", 2*time.Second) {
		t.Fatal("EOS must still reach the sink")
	}
	if n := len(sink.Frames("a")); n != 0 {
		t.Errorf("forced removal delivered %d data frames", n)
	}
	deadline = time.Now().Add(time.Second)
	for msgs.count(MsgEOS, "a") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not complete")
		}
		time.Sleep(time.Millisecond)
	}
	if p.IsStreamRemoved("a") {
		t.Error("removal mark should clear once EOS completes")
	}
}
