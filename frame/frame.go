package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Flag marks a frame with out-of-band state.
type Flag uint32

const (
	// FlagEOS marks the end of a stream. EOS frames carry no payload and are
	// forwarded by every stage.
	FlagEOS Flag = 1 << iota
	// FlagInvalid marks a frame whose payload could not be produced.
	FlagInvalid
	// FlagRemoved marks a frame that must not be processed further. Routing
	// metadata stays intact so bookkeeping still completes.
	FlagRemoved
)

// InvalidStreamIndex is the stream index of a frame that has not entered a
// pipeline yet.
const InvalidStreamIndex = -1

// Frame is the unit of work handed from stage to stage. A frame sits in at
// most one conveyor at a time; whoever pops it owns it until it is pushed on.
type Frame struct {
	// ID identifies this frame in logs and traces.
	ID uuid.UUID
	// StreamID names the stream the frame belongs to.
	StreamID string
	// Timestamp is the producer's presentation time.
	Timestamp int64
	// Seq is the producer's sequence number within the stream.
	Seq uint64
	// Created is the wall time the frame was built.
	Created time.Time
	// Payload is the stage-defined primary datum.
	Payload any
	// Collection carries auxiliary data attached by stages.
	Collection *Collection

	flags       atomic.Uint32
	streamIndex atomic.Int64

	maskMu sync.Mutex
	passed uint64
}

// New returns a data frame for streamID.
func New(streamID string) *Frame {
	f := &Frame{
		ID:         uuid.New(),
		StreamID:   streamID,
		Created:    time.Now(),
		Collection: NewCollection(),
	}
	f.streamIndex.Store(InvalidStreamIndex)
	return f
}

// NewEOS returns an end-of-stream frame for streamID.
func NewEOS(streamID string) *Frame {
	f := New(streamID)
	f.SetFlag(FlagEOS)
	return f
}

// SetFlag sets flag on the frame.
func (f *Frame) SetFlag(flag Flag) {
	f.flags.Or(uint32(flag))
}

// HasFlag reports whether flag is set.
func (f *Frame) HasFlag(flag Flag) bool {
	return f.flags.Load()&uint32(flag) != 0
}

func (f *Frame) IsEOS() bool     { return f.HasFlag(FlagEOS) }
func (f *Frame) IsInvalid() bool { return f.HasFlag(FlagInvalid) }
func (f *Frame) IsRemoved() bool { return f.HasFlag(FlagRemoved) }

// MarkInvalid flags the frame invalid; the pipeline drops it after the
// current stage and reports a frame error for its stream.
func (f *Frame) MarkInvalid() { f.SetFlag(FlagInvalid) }

// MarkRemoved flags the frame removed; downstream stages skip it.
func (f *Frame) MarkRemoved() { f.SetFlag(FlagRemoved) }

// StreamIndex returns the index the pipeline assigned to the frame's stream,
// or InvalidStreamIndex.
func (f *Frame) StreamIndex() int {
	return int(f.streamIndex.Load())
}

// SetStreamIndex records the pipeline-assigned stream index.
func (f *Frame) SetStreamIndex(idx int) {
	f.streamIndex.Store(int64(idx))
}

// SetPassedMask resets the set of stages considered done with the frame.
func (f *Frame) SetPassedMask(mask uint64) {
	f.maskMu.Lock()
	f.passed = mask
	f.maskMu.Unlock()
}

// MarkPassed records that the stage with the given bit finished the frame
// and returns the resulting mask. Concurrent branches of a fan-out see
// strictly growing masks, so exactly one of them observes the final value.
func (f *Frame) MarkPassed(bit uint) uint64 {
	f.maskMu.Lock()
	defer f.maskMu.Unlock()
	f.passed |= 1 << bit
	return f.passed
}

// PassedMask returns the current passed-stage mask.
func (f *Frame) PassedMask() uint64 {
	f.maskMu.Lock()
	defer f.maskMu.Unlock()
	return f.passed
}

func (f *Frame) String() string {
	kind := "data"
	if f.IsEOS() {
		kind = "eos"
	}
	return fmt.Sprintf("frame(%s stream=%s seq=%d %s)", f.ID.String()[:8], f.StreamID, f.Seq, kind)
}
