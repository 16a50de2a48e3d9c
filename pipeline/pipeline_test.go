package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/stages"
)

func TestEndToEndInOrder(t *testing.T) {
	p := newTestPipeline(4)
	src := named("source", stages.NewFeeder())
	sink := named("sink", stages.NewCollector())
	chain(t, p, src, named("pass", stages.NewPassthrough()), sink)

	mustStart(t, p)
	feed(t, src, "s0", 10)
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	assertSeqs(t, sink.Frames("s0"), 10)
	if p.State() != Idle {
		t.Errorf("expected idle, got %s", p.State())
	}
}

func TestStartStopIdempotent(t *testing.T) {
	p := newTestPipeline(4)
	src := named("source", stages.NewFeeder())
	sink := named("sink", stages.NewCollector())
	chain(t, p, src, sink)

	if err := p.Stop(); err != nil {
		t.Fatalf("stop on idle pipeline: %v", err)
	}
	mustStart(t, p)
	mustStart(t, p)
	if !p.IsRunning() {
		t.Fatal("expected running")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	mustStart(t, p)
	feed(t, src, "s0", 3)
	p.Stop()
	assertSeqs(t, sink.Frames("s0"), 3)
}

func TestOpenFailureUnwinds(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(4)
	bad := newFuncStage("b", nil)
	bad.openErr = fmt.Errorf("no device")
	mods := []module.Module{newSource("src", rec), newFuncStage("a", nil), bad, newFuncStage("c", nil), newFuncStage("d", nil)}
	for _, m := range mods {
		if fs, ok := m.(*funcStage); ok {
			fs.rec = rec
		}
	}
	chain(t, p, mods...)

	err := p.Start()
	if !errors.IsCode(err, errors.ErrCodeOpenFailed) {
		t.Fatalf("expected STAGE_OPEN_FAILED, got %v", err)
	}
	want := []string{"open:d", "open:c", "open:b", "close:c", "close:d"}
	if got := rec.list(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if p.IsRunning() || p.EventBus().IsRunning() {
		t.Error("pipeline and bus should be stopped after a failed start")
	}

	bad.openErr = nil
	mustStart(t, p)
	p.Stop()
}

func TestCloseOrderReversesOpen(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(4)
	a, b := newFuncStage("a", nil), newFuncStage("b", nil)
	a.rec, b.rec = rec, rec
	chain(t, p, newSource("src", rec), a, b)

	mustStart(t, p)
	p.Stop()
	want := "open:b open:a open:src close:src close:a close:b"
	if got := strings.Join(rec.list(), " "); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAddModuleErrors(t *testing.T) {
	p := newTestPipeline(4)
	if err := p.AddModule(nil); !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("nil stage: got %v", err)
	}
	if err := p.AddModule(stages.NewPassthrough()); !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("unnamed stage: got %v", err)
	}
	if err := p.AddModule(named("a", stages.NewPassthrough())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.AddModule(named("a", stages.NewPassthrough())); !errors.IsCode(err, errors.ErrCodeDuplicateStage) {
		t.Errorf("duplicate: got %v", err)
	}
}

func TestAddModuleLimit(t *testing.T) {
	p := newTestPipeline(4)
	for i := 0; i < MaxStages; i++ {
		if err := p.AddModule(named(fmt.Sprintf("s%d", i), stages.NewPassthrough())); err != nil {
			t.Fatalf("stage %d: %v", i, err)
		}
	}
	err := p.AddModule(named("overflow", stages.NewPassthrough()))
	if !errors.IsCode(err, errors.ErrCodeInvalidGraph) {
		t.Fatalf("expected INVALID_GRAPH, got %v", err)
	}
}

func TestEditsRejectedWhileRunning(t *testing.T) {
	p := newTestPipeline(4)
	chain(t, p, named("src", stages.NewFeeder()), named("sink", stages.NewCollector()))
	mustStart(t, p)
	defer p.Stop()

	checks := map[string]error{
		"add":    p.AddModule(named("x", stages.NewPassthrough())),
		"attr":   p.SetModuleAttribute("sink", 2, 4),
		"params": p.SetModuleParams("sink", module.ParamSet{}),
	}
	_, checks["link"] = p.LinkModules("src", "sink")
	for name, err := range checks {
		if !errors.IsCode(err, errors.ErrCodePipelineRunning) {
			t.Errorf("%s: expected PIPELINE_RUNNING, got %v", name, err)
		}
	}
}

func TestLinkModules(t *testing.T) {
	p := newTestPipeline(4)
	for _, n := range []string{"a", "b", "c"} {
		p.AddModule(named(n, stages.NewPassthrough()))
	}

	id, err := p.LinkModules("a", "b")
	if err != nil || id != "a-->b" {
		t.Fatalf("expected a-->b, got %q, %v", id, err)
	}
	again, err := p.LinkModules("a", "b")
	if err != nil || again != id {
		t.Fatalf("relink should return %q, got %q, %v", id, again, err)
	}
	if _, err := p.LinkModules("a", "zz"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown stage: got %v", err)
	}
	if _, err := p.LinkModules("a", "a"); !errors.IsCode(err, errors.ErrCodeInvalidGraph) {
		t.Errorf("self link: got %v", err)
	}
	link(t, p, "b", "c")
	if _, err := p.LinkModules("c", "a"); !errors.IsCode(err, errors.ErrCodeInvalidGraph) {
		t.Errorf("cycle: got %v", err)
	}
	if got := len(p.Links()); got != 2 {
		t.Errorf("rejected links must not be kept, got %d links", got)
	}
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *Pipeline)
	}{
		{"empty", func(*Pipeline) {}},
		{"source without transmit", func(p *Pipeline) {
			p.AddModule(named("a", stages.NewPassthrough()))
			p.AddModule(named("b", stages.NewCollector()))
			p.LinkModules("a", "b")
		}},
		{"zero parallelism downstream", func(p *Pipeline) {
			p.AddModule(named("src", stages.NewFeeder()))
			p.AddModule(named("b", stages.NewCollector()))
			p.LinkModules("src", "b")
			p.SetModuleAttribute("b", 0, 0)
		}},
		{"isolated stage", func(p *Pipeline) {
			p.AddModule(named("src", stages.NewFeeder()))
			p.AddModule(named("b", stages.NewCollector()))
			p.AddModule(named("lonely", stages.NewCollector()))
			p.LinkModules("src", "b")
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(4)
			tc.build(p)
			err := p.Start()
			if !errors.IsCode(err, errors.ErrCodeInvalidGraph) {
				t.Fatalf("expected INVALID_GRAPH, got %v", err)
			}
			if p.IsRunning() {
				t.Fatal("pipeline should stay idle")
			}
		})
	}
}

func TestSingleSourcePipeline(t *testing.T) {
	p := newTestPipeline(4)
	src := named("only", stages.NewFeeder())
	p.AddModule(src)
	done := 0
	p.SetFrameDoneCallback(func(*frame.Frame) { done++ })

	mustStart(t, p)
	feed(t, src, "s0", 5)
	p.Stop()
	if done != 5 {
		t.Errorf("expected 5 finished frames, got %d", done)
	}
}

func TestQueryLinkStatus(t *testing.T) {
	p := newTestPipeline(4)
	chain(t, p, named("src", stages.NewFeeder()), named("sink", stages.NewCollector()))
	if err := p.SetModuleAttribute("sink", 3, 8); err != nil {
		t.Fatalf("set attribute: %v", err)
	}

	st, err := p.QueryLinkStatus("src-->sink")
	if err != nil || !st.Stopped {
		t.Fatalf("idle link should report stopped: %+v, %v", st, err)
	}

	mustStart(t, p)
	st, err = p.QueryLinkStatus("src-->sink")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Stopped || len(st.CacheSize) != 3 {
		t.Errorf("unexpected status %+v", st)
	}
	p.Stop()

	if _, err := p.QueryLinkStatus("src-->nowhere"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestIntrospection(t *testing.T) {
	p := newTestPipeline(4)
	sink := named("sink", stages.NewCollector())
	chain(t, p, named("src", stages.NewFeeder()), named("mid", stages.NewPassthrough()), sink)

	if got := strings.Join(p.ModuleNames(), ","); got != "src,mid,sink" {
		t.Errorf("unexpected names %s", got)
	}
	if p.EndModule() != sink {
		t.Error("sink should be the end stage")
	}
	if p.GetModule("mid") == nil || p.GetModule("nope") != nil {
		t.Error("GetModule lookup mismatch")
	}
	infos := p.Stages()
	if len(infos) != 3 || !infos[0].Transmit || infos[1].Upstream[0] != "src" || infos[1].Downstream[0] != "sink" {
		t.Errorf("unexpected stage info %+v", infos)
	}
	if infos[2].Parallelism != DefaultParallelism || infos[2].Capacity != 4 {
		t.Errorf("unexpected defaults %+v", infos[2])
	}
}

func TestDetach(t *testing.T) {
	p := newTestPipeline(4)
	src := named("src", stages.NewFeeder())
	chain(t, p, src, named("sink", stages.NewCollector()))
	mustStart(t, p)
	defer p.Stop()

	p.Detach()
	if src.Feed(frame.New("s0")) {
		t.Fatal("detached stage should not reach the pipeline")
	}
}

func TestFeedAfterStopRefused(t *testing.T) {
	p := newTestPipeline(4)
	src := named("src", stages.NewFeeder())
	chain(t, p, src, named("sink", stages.NewCollector()))
	mustStart(t, p)
	p.Stop()

	done := make(chan struct{})
	go func() {
		if src.Feed(frame.New("s0")) {
			t.Error("feed after stop should fail")
		}
		close(done)
	}()
	waitClosed(t, done, 2*time.Second)
}
