package stages

import (
	"context"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
)

// Feeder is a source driven by application code through Feed.
type Feeder struct {
	module.BaseEx
}

func NewFeeder() *Feeder { return &Feeder{} }

func (s *Feeder) Open(module.ParamSet) error { return nil }

func (s *Feeder) Close() {}

// Process relays frames when a Feeder is placed downstream of another stage.
func (s *Feeder) Process(_ context.Context, f *frame.Frame) int {
	if !s.TransmitData(f) {
		return module.Consumed
	}
	return module.Forward
}

// Feed hands f to the pipeline. It blocks while the stage's transmit queue
// is full and returns false when the pipeline is not running.
func (s *Feeder) Feed(f *frame.Frame) bool {
	return s.TransmitData(f)
}

// FeedEOS ends streamID.
func (s *Feeder) FeedEOS(streamID string) bool {
	return s.TransmitData(frame.NewEOS(streamID))
}
