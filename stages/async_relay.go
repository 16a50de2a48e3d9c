package stages

import (
	"context"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// AsyncRelay forwards frames through its own transmit queue instead of
// letting the worker forward them.
type AsyncRelay struct {
	module.BaseEx
}

func NewAsyncRelay() *AsyncRelay { return &AsyncRelay{} }

func (s *AsyncRelay) Open(module.ParamSet) error { return nil }

func (s *AsyncRelay) Close() {}

func (s *AsyncRelay) Process(_ context.Context, f *frame.Frame) int {
	if !s.TransmitData(f) {
		s.Logger().Debug("transmit refused", logger.Fields(logger.FieldStreamID, f.StreamID))
		return module.Consumed
	}
	return module.Forward
}
