package module

import (
	"context"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
)

// Process status values. Any positive value means the stage kept the frame.
const (
	// Forward hands the frame to downstream stages.
	Forward = 0
	// Consumed ends the frame's journey without error.
	Consumed = 1
	// Failed reports a per-frame failure; the pipeline posts an error event.
	Failed = -1
)

// Module is a processing stage.
//
// Open runs once before any Process call and Close once after the last.
// Process may be called concurrently for frames of different streams; the
// frames of one stream are always delivered to one worker in order.
type Module interface {
	// Name returns the stage's unique name within its pipeline.
	Name() string
	// SetName assigns the name; the pipeline builder calls it right after
	// creating the stage from the registry.
	SetName(name string)
	// Open prepares the stage with its parameters.
	Open(params ParamSet) error
	// Close releases what Open acquired.
	Close()
	// Process handles one frame and returns Forward, a positive value to
	// keep the frame, or a negative value on failure.
	Process(ctx context.Context, f *frame.Frame) int
	// HasTransmit reports whether the stage forwards frames itself through
	// TransmitData instead of returning Forward.
	HasTransmit() bool
	// SetContainer attaches the owning pipeline, or detaches it with nil.
	SetContainer(c Container)
}

// Container is the pipeline as seen by a stage. Stages hold it without
// owning it; the pipeline detaches itself when torn down.
type Container interface {
	PostEvent(e eventbus.Event) bool
	TransmitData(stage string, f *frame.Frame) bool
}

// StreamController is implemented by containers that let stages manage
// the streams they produce.
type StreamController interface {
	// AcquireStreamIndex reserves the stream's index ahead of its first
	// frame. The index is returned once the stream's EOS completes.
	AcquireStreamIndex(streamID string) int
	// RemoveStream drops the stream's queued data frames while its EOS
	// still travels.
	RemoveStream(streamID string)
}

// EOSHandler is implemented by synchronous stages that want to observe
// end-of-stream before it is forwarded.
type EOSHandler interface {
	OnEOS(streamID string)
}

// ParamChecker is implemented by stages that validate parameters at build
// time, before Open.
type ParamChecker interface {
	CheckParamSet(params ParamSet) error
}
