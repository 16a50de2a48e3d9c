package connector

import (
	"fmt"

	"github.com/kbukum/streamkit/frame"
)

// DefaultCapacity is the conveyor capacity used when none is configured.
const DefaultCapacity = 20

// Connector is the input side of a stage: one conveyor per worker, with a
// router choosing the conveyor for each frame.
type Connector struct {
	conveyors []*Conveyor
	capacity  int
	router    Router
}

// Option configures a Connector.
type Option func(*Connector)

// WithRouter sets the router used by Route. The default is IndexRouter.
func WithRouter(r Router) Option {
	return func(c *Connector) {
		if r != nil {
			c.router = r
		}
	}
}

// New creates a connector with count conveyors of the given capacity.
// count must be positive; capacity <= 0 selects DefaultCapacity.
func New(count, capacity int, opts ...Option) *Connector {
	if count <= 0 {
		panic(fmt.Sprintf("connector: conveyor count must be positive, got %d", count))
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Connector{
		conveyors: make([]*Conveyor, count),
		capacity:  capacity,
		router:    IndexRouter{},
	}
	for i := range c.conveyors {
		c.conveyors[i] = NewConveyor(capacity)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConveyorCount returns the number of conveyors.
func (c *Connector) ConveyorCount() int { return len(c.conveyors) }

// ConveyorCapacity returns the capacity of each conveyor.
func (c *Connector) ConveyorCapacity() int { return c.capacity }

// Conveyor returns the conveyor at idx. An index outside [0, count) is a
// programming error and panics.
func (c *Connector) Conveyor(idx int) *Conveyor {
	if idx < 0 || idx >= len(c.conveyors) {
		panic(fmt.Sprintf("connector: conveyor index %d out of range [0, %d)", idx, len(c.conveyors)))
	}
	return c.conveyors[idx]
}

// ConveyorSize returns the number of frames queued on conveyor idx.
func (c *Connector) ConveyorSize(idx int) int {
	return c.Conveyor(idx).Size()
}

// Sizes returns the queue length of every conveyor.
func (c *Connector) Sizes() []int {
	sizes := make([]int, len(c.conveyors))
	for i, cv := range c.conveyors {
		sizes[i] = cv.Size()
	}
	return sizes
}

// PushToConveyor pushes f onto conveyor idx, blocking while it is full.
// It returns false if the connector is stopped.
func (c *Connector) PushToConveyor(idx int, f *frame.Frame) bool {
	return c.Conveyor(idx).Push(f)
}

// PopFromConveyor pops from conveyor idx, blocking while it is empty.
func (c *Connector) PopFromConveyor(idx int) (*frame.Frame, bool) {
	return c.Conveyor(idx).Pop()
}

// Route returns the conveyor index for f.
func (c *Connector) Route(f *frame.Frame) int {
	return c.router.Route(f, len(c.conveyors))
}

// Push routes f and pushes it onto the chosen conveyor.
func (c *Connector) Push(f *frame.Frame) bool {
	return c.PushToConveyor(c.Route(f), f)
}

// Start re-enables every conveyor.
func (c *Connector) Start() {
	for _, cv := range c.conveyors {
		cv.Start()
	}
}

// Stop stops every conveyor, waking all blocked producers and consumers.
func (c *Connector) Stop() {
	for _, cv := range c.conveyors {
		cv.Stop()
	}
}

// IsStopped reports whether every conveyor is stopped.
func (c *Connector) IsStopped() bool {
	for _, cv := range c.conveyors {
		if !cv.IsStopped() {
			return false
		}
	}
	return true
}

// Clear drops all queued frames on every conveyor.
func (c *Connector) Clear() {
	for _, cv := range c.conveyors {
		cv.Clear()
	}
}

// FailTime sums refused pushes across conveyors.
func (c *Connector) FailTime() uint64 {
	var total uint64
	for _, cv := range c.conveyors {
		total += cv.FailTime()
	}
	return total
}
