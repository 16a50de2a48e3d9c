package module

import (
	"sync"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

// Base implements the bookkeeping half of Module for synchronous stages.
// Embed it and provide Open, Close and Process.
type Base struct {
	mu        sync.RWMutex
	name      string
	container Container
}

func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

func (b *Base) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

// HasTransmit is false: the pipeline forwards whatever Process returns
// Forward for.
func (b *Base) HasTransmit() bool { return false }

func (b *Base) SetContainer(c Container) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.container = c
}

// Container returns the attached pipeline, or nil.
func (b *Base) Container() Container {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.container
}

// PostEvent posts an event attributed to this stage. It returns false when
// the stage is detached or the pipeline's bus is not consuming.
func (b *Base) PostEvent(t eventbus.EventType, message string) bool {
	return b.post(eventbus.NewEvent(t, b.Name(), message))
}

// PostStreamEvent posts an event attributed to this stage and streamID.
func (b *Base) PostStreamEvent(t eventbus.EventType, streamID, message string) bool {
	return b.post(eventbus.NewEvent(t, b.Name(), message).ForStream(streamID))
}

func (b *Base) post(e eventbus.Event) bool {
	c := b.Container()
	if c == nil {
		return false
	}
	return c.PostEvent(e)
}

// Logger returns a logger tagged with the stage name.
func (b *Base) Logger() *logger.Logger {
	return logger.WithStage(b.Name())
}

// BaseEx is Base for stages that forward frames themselves, possibly from
// their own goroutines. Every frame the stage is handed, EOS included, must
// eventually go through TransmitData or the stream never completes.
type BaseEx struct {
	Base
}

// HasTransmit is true: the pipeline gives this stage a dedicated transmit
// goroutine and never forwards on its behalf.
func (b *BaseEx) HasTransmit() bool { return true }

// TransmitData queues f for downstream delivery. It returns false when the
// stage is detached or the pipeline is stopping.
func (b *BaseEx) TransmitData(f *frame.Frame) bool {
	c := b.Container()
	if c == nil {
		return false
	}
	return c.TransmitData(b.Name(), f)
}
