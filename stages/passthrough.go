package stages

import (
	"context"

	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
)

// Passthrough forwards every frame unchanged.
type Passthrough struct {
	module.Base
}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (s *Passthrough) Open(module.ParamSet) error { return nil }

func (s *Passthrough) Close() {}

func (s *Passthrough) Process(context.Context, *frame.Frame) int { return module.Forward }
