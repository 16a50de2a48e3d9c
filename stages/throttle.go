package stages

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
)

// Parameters understood by Throttle.
const (
	ParamRate  = "rate"
	ParamBurst = "burst"
)

// Throttle forwards at most rate frames per second, shared by all of its
// workers, allowing bursts of up to burst frames. EOS frames are forwarded
// by the pipeline without reaching Process, so they are never delayed.
// Once the pipeline is stopping, queued frames pass unthrottled.
type Throttle struct {
	module.Base
	limiter *rate.Limiter
}

func NewThrottle() *Throttle { return &Throttle{} }

func (s *Throttle) CheckParamSet(params module.ParamSet) error {
	if err := params.Require(ParamRate); err != nil {
		return err
	}
	perSecond, err := params.Float(ParamRate, 0)
	if err != nil {
		return err
	}
	if perSecond <= 0 {
		return fmt.Errorf("%s must be positive", ParamRate)
	}
	burst, err := params.Int(ParamBurst, 1)
	if err != nil {
		return err
	}
	if burst < 1 {
		return fmt.Errorf("%s must be at least 1", ParamBurst)
	}
	return nil
}

func (s *Throttle) Open(params module.ParamSet) error {
	if err := s.CheckParamSet(params); err != nil {
		return err
	}
	perSecond, _ := params.Float(ParamRate, 0)
	burst, _ := params.Int(ParamBurst, 1)
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return nil
}

func (s *Throttle) Close() {}

func (s *Throttle) Process(ctx context.Context, f *frame.Frame) int {
	// Wait fails only once ctx is cancelled. The run is then ending and the
	// remaining frames drain unpaced.
	_ = s.limiter.Wait(ctx)
	return module.Forward
}
