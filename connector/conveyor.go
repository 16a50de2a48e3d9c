package connector

import (
	"sync"

	"github.com/kbukum/streamkit/frame"
)

// Conveyor is a bounded FIFO of frames. Push blocks while the queue is full
// and Pop blocks while it is empty; Stop releases every waiter.
type Conveyor struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf      []*frame.Frame
	head     int
	size     int
	stopped  bool
	failTime uint64
}

// NewConveyor creates a conveyor holding at most capacity frames. A
// non-positive capacity falls back to DefaultCapacity.
func NewConveyor(capacity int) *Conveyor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Conveyor{buf: make([]*frame.Frame, capacity)}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c
}

// Push appends f, waiting for room while the conveyor is full. It returns
// false without enqueuing once the conveyor is stopped, including when the
// stop happens while Push is waiting.
func (c *Conveyor) Push(f *frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.size == len(c.buf) && !c.stopped {
		c.notFull.Wait()
	}
	if c.stopped {
		c.failTime++
		return false
	}
	c.enqueue(f)
	return true
}

// TryPush appends f only if there is room right now.
func (c *Conveyor) TryPush(f *frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.size == len(c.buf) {
		c.failTime++
		return false
	}
	c.enqueue(f)
	return true
}

func (c *Conveyor) enqueue(f *frame.Frame) {
	c.buf[(c.head+c.size)%len(c.buf)] = f
	c.size++
	c.notEmpty.Signal()
}

// Pop removes the oldest frame, waiting while the conveyor is empty. After
// Stop it keeps returning queued frames until the queue is drained and then
// reports (nil, false).
func (c *Conveyor) Pop() (*frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.size == 0 && !c.stopped {
		c.notEmpty.Wait()
	}
	if c.size == 0 {
		return nil, false
	}
	return c.dequeue(), true
}

func (c *Conveyor) dequeue() *frame.Frame {
	f := c.buf[c.head]
	c.buf[c.head] = nil
	c.head = (c.head + 1) % len(c.buf)
	c.size--
	c.notFull.Signal()
	return f
}

// PopAll removes and returns every queued frame without waiting.
func (c *Conveyor) PopAll() []*frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*frame.Frame, 0, c.size)
	for c.size > 0 {
		out = append(out, c.dequeue())
	}
	c.notFull.Broadcast()
	return out
}

// Size returns the number of queued frames.
func (c *Conveyor) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the maximum number of queued frames.
func (c *Conveyor) Capacity() int {
	return len(c.buf)
}

// FailTime returns how many pushes were refused.
func (c *Conveyor) FailTime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failTime
}

// Start re-enables pushes after a Stop.
func (c *Conveyor) Start() {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
}

// Stop refuses further pushes and wakes every blocked producer and consumer.
func (c *Conveyor) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// IsStopped reports whether Stop was called since the last Start.
func (c *Conveyor) IsStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Clear drops every queued frame.
func (c *Conveyor) Clear() {
	c.PopAll()
}
