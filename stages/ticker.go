package stages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// Parameters understood by TickerSource.
const (
	ParamStreamIDs  = "stream_ids"
	ParamInterval   = "interval"
	ParamFrameCount = "frame_count"
)

const defaultTickInterval = 100 * time.Millisecond

// TickerSource emits one frame per stream on every tick. With a positive
// frame_count it stops after that many frames per stream and ends every
// stream with EOS; otherwise it runs until closed.
type TickerSource struct {
	module.BaseEx

	streams  []string
	interval time.Duration
	count    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTickerSource() *TickerSource { return &TickerSource{} }

func (s *TickerSource) CheckParamSet(params module.ParamSet) error {
	if err := params.Require(ParamStreamIDs); err != nil {
		return err
	}
	if len(params.Strings(ParamStreamIDs)) == 0 {
		return fmt.Errorf("%s lists no streams", ParamStreamIDs)
	}
	interval, err := params.Duration(ParamInterval, defaultTickInterval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("%s must be positive", ParamInterval)
	}
	count, err := params.Int(ParamFrameCount, 0)
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%s must not be negative", ParamFrameCount)
	}
	return nil
}

func (s *TickerSource) Open(params module.ParamSet) error {
	if err := s.CheckParamSet(params); err != nil {
		return err
	}
	s.streams = params.Strings(ParamStreamIDs)
	s.interval, _ = params.Duration(ParamInterval, defaultTickInterval)
	s.count, _ = params.Int(ParamFrameCount, 0)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

func (s *TickerSource) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cancel = nil
}

// Process relays frames when placed downstream of another stage.
func (s *TickerSource) Process(_ context.Context, f *frame.Frame) int {
	if !s.TransmitData(f) {
		return module.Consumed
	}
	return module.Forward
}

func (s *TickerSource) run(ctx context.Context) {
	defer s.wg.Done()
	log := s.Logger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, id := range s.streams {
			f := frame.New(id)
			f.Seq = seq
			f.Timestamp = time.Now().UnixNano()
			f.Payload = seq
			if !s.TransmitData(f) {
				log.Debug("pipeline refused frame, ticker exiting", logger.Fields(logger.FieldStreamID, id))
				return
			}
		}
		seq++

		if s.count > 0 && seq >= uint64(s.count) {
			for _, id := range s.streams {
				if !s.TransmitData(frame.NewEOS(id)) {
					return
				}
			}
			log.Info("ticker finished", logger.Fields("frames", seq, "streams", len(s.streams)))
			return
		}
	}
}
