package pipeline

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/streamkit/frame"
)

// Latency summarises processing times.
type Latency struct {
	Avg time.Duration `json:"avg_ns"`
	Min time.Duration `json:"min_ns"`
	Max time.Duration `json:"max_ns"`
}

// StreamProfile is the share of one stream in a StageProfile.
type StreamProfile struct {
	StreamID  string  `json:"stream_id"`
	Completed uint64  `json:"completed"`
	Dropped   uint64  `json:"dropped"`
	Latency   Latency `json:"latency"`
	FPS       float64 `json:"fps"`
}

// StageProfile summarises the frames a stage handled during the current or
// last run. Completed counts frames the stage processed without failure;
// Dropped counts frames it failed or skipped for a removed stream.
type StageProfile struct {
	Stage     string          `json:"stage"`
	Completed uint64          `json:"completed"`
	Dropped   uint64          `json:"dropped"`
	Ongoing   int64           `json:"ongoing"`
	Latency   Latency         `json:"latency"`
	FPS       float64         `json:"fps"`
	Streams   []StreamProfile `json:"streams"`
}

// Profile is a snapshot of the pipeline's per-stage and per-stream
// throughput. Overall follows data frames end to end: a frame completes
// once every stage passed it, and its latency runs from frame.Created.
type Profile struct {
	Pipeline string         `json:"pipeline"`
	Since    time.Time      `json:"since"`
	Stages   []StageProfile `json:"stages"`
	Overall  StageProfile   `json:"overall"`
}

type latencyStats struct {
	count      uint64
	total      time.Duration
	min, max   time.Duration
	first, end time.Time
}

func (s *latencyStats) add(d time.Duration, at time.Time) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	if s.count == 0 {
		s.first = at
	}
	s.end = at
	s.total += d
	s.count++
}

func (s *latencyStats) latency() Latency {
	if s.count == 0 {
		return Latency{}
	}
	return Latency{Avg: s.total / time.Duration(s.count), Min: s.min, Max: s.max}
}

// fps is the completion rate between the first and last completion.
func (s *latencyStats) fps() float64 {
	elapsed := s.end.Sub(s.first)
	if s.count < 2 || elapsed <= 0 {
		return 0
	}
	return float64(s.count-1) / elapsed.Seconds()
}

type streamStats struct {
	dropped uint64
	latencyStats
}

type stageStats struct {
	ongoing atomic.Int64

	mu      sync.Mutex
	dropped uint64
	latencyStats
	streams map[string]*streamStats
}

func newStageStats() *stageStats {
	return &stageStats{streams: make(map[string]*streamStats)}
}

func (s *stageStats) streamLocked(id string) *streamStats {
	st, ok := s.streams[id]
	if !ok {
		st = &streamStats{}
		s.streams[id] = st
	}
	return st
}

func (s *stageStats) complete(streamID string, d time.Duration) {
	now := time.Now()
	s.mu.Lock()
	s.add(d, now)
	s.streamLocked(streamID).add(d, now)
	s.mu.Unlock()
}

func (s *stageStats) drop(streamID string) {
	s.mu.Lock()
	s.dropped++
	s.streamLocked(streamID).dropped++
	s.mu.Unlock()
}

func (s *stageStats) snapshot(name string) StageProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StageProfile{
		Stage:     name,
		Completed: s.count,
		Dropped:   s.dropped,
		Ongoing:   s.ongoing.Load(),
		Latency:   s.latency(),
		FPS:       s.fps(),
		Streams:   make([]StreamProfile, 0, len(s.streams)),
	}
	for id, st := range s.streams {
		out.Streams = append(out.Streams, StreamProfile{
			StreamID:  id,
			Completed: st.count,
			Dropped:   st.dropped,
			Latency:   st.latency(),
			FPS:       st.fps(),
		})
	}
	slices.SortFunc(out.Streams, func(a, b StreamProfile) int {
		return strings.Compare(a.StreamID, b.StreamID)
	})
	return out
}

// profiler keeps the counters behind Profile. It is reset by every Start.
type profiler struct {
	mu      sync.RWMutex
	since   time.Time
	stages  map[string]*stageStats
	overall *stageStats
}

func newProfiler() *profiler {
	return &profiler{since: time.Now(), stages: make(map[string]*stageStats), overall: newStageStats()}
}

func (p *profiler) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.since = time.Now()
	p.stages = make(map[string]*stageStats)
	p.overall = newStageStats()
}

func (p *profiler) stage(name string) *stageStats {
	p.mu.RLock()
	s, ok := p.stages[name]
	p.mu.RUnlock()
	if ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.stages[name]; !ok {
		s = newStageStats()
		p.stages[name] = s
	}
	return s
}

func (p *profiler) total() *stageStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.overall
}

// record books one Process call of stage.
func (p *profiler) record(stage string, f *frame.Frame, status int, elapsed time.Duration) {
	s := p.stage(stage)
	if status < 0 {
		s.drop(f.StreamID)
		p.total().drop(f.StreamID)
		return
	}
	s.complete(f.StreamID, elapsed)
}

// skip books a data frame a stage did not process because its stream was
// removed.
func (p *profiler) skip(stage string, f *frame.Frame) {
	p.stage(stage).drop(f.StreamID)
	p.total().drop(f.StreamID)
}

// finish books a data frame that passed every stage.
func (p *profiler) finish(f *frame.Frame) {
	p.total().complete(f.StreamID, time.Since(f.Created))
}

// Profile returns per-stage and end-to-end statistics of the current run,
// or of the last one once the pipeline stopped. Stages are listed in the
// order they were added.
func (p *Pipeline) Profile() Profile {
	p.mu.RLock()
	names := slices.Clone(p.order)
	p.mu.RUnlock()

	p.prof.mu.RLock()
	since, overall := p.prof.since, p.prof.overall
	p.prof.mu.RUnlock()

	out := Profile{
		Pipeline: p.name,
		Since:    since,
		Stages:   make([]StageProfile, 0, len(names)),
		Overall:  overall.snapshot(p.name),
	}
	for _, name := range names {
		out.Stages = append(out.Stages, p.prof.stage(name).snapshot(name))
	}
	return out
}
