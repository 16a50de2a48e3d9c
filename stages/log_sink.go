package stages

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// ParamLevel selects the LogSink log level.
const ParamLevel = "level"

var logLevels = []string{"debug", "info", "warn", "error"}

// LogSink logs one line per frame.
type LogSink struct {
	module.Base
	level string
}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) CheckParamSet(params module.ParamSet) error {
	level := params.String(ParamLevel, "info")
	if !slices.Contains(logLevels, level) {
		return fmt.Errorf("%s must be one of %v, got %q", ParamLevel, logLevels, level)
	}
	return nil
}

func (s *LogSink) Open(params module.ParamSet) error {
	if err := s.CheckParamSet(params); err != nil {
		return err
	}
	s.level = params.String(ParamLevel, "info")
	return nil
}

func (s *LogSink) Close() {}

func (s *LogSink) Process(_ context.Context, f *frame.Frame) int {
	s.Logger().Log(s.level, "frame", logger.Fields(
		logger.FieldStreamID, f.StreamID,
		logger.FieldFrameID, f.ID.String(),
		"seq", f.Seq,
		"timestamp", f.Timestamp,
	))
	return module.Forward
}

func (s *LogSink) OnEOS(streamID string) {
	s.Logger().Log(s.level, "end of stream", logger.Fields(logger.FieldStreamID, streamID))
}
