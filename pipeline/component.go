package pipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/streamkit/component"
)

// Component adapts a Pipeline to the component lifecycle.
type Component struct {
	p *Pipeline
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps p.
func NewComponent(p *Pipeline) *Component {
	return &Component{p: p}
}

// Pipeline returns the wrapped pipeline.
func (c *Component) Pipeline() *Pipeline { return c.p }

func (c *Component) Name() string { return "pipeline" }

func (c *Component) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.p.Start()
}

// Stop drains the pipeline, giving up waiting when ctx ends. The drain
// carries on in the background in that case.
func (c *Component) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.p.Stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("pipeline %s: stop: %w", c.p.Name(), ctx.Err())
	}
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name()}
	if !c.p.IsRunning() {
		h.Status = component.StatusUnhealthy
		h.Message = "pipeline is idle"
		return h
	}
	h.Status = component.StatusHealthy
	h.Message = fmt.Sprintf("%d stages, %d active streams", len(c.p.ModuleNames()), c.p.ActiveStreams())
	if dropped := c.p.EventBus().Dropped(); dropped > 0 {
		h.Status = component.StatusDegraded
		h.Message += fmt.Sprintf(", %d events dropped", dropped)
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.p.Name(),
		Type:    "pipeline",
		Details: fmt.Sprintf("stages=%d links=%d routing=%s", len(c.p.ModuleNames()), len(c.p.Links()), c.p.Config().Routing),
	}
}
