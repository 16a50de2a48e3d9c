package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/streamkit/connector"
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/observability"
)

// PostEvent posts e on the pipeline's event bus. It returns false when the
// bus is stopped or stays full for the whole retry window.
func (p *Pipeline) PostEvent(e eventbus.Event) bool {
	return p.bus.PostEvent(e)
}

// TransmitData queues f on the transmit queue of stage, which forwards it
// downstream from a dedicated goroutine. It blocks while the queue is full
// and returns false if the stage is unknown, does not transmit, or the
// pipeline is not running.
func (p *Pipeline) TransmitData(stage string, f *frame.Frame) bool {
	if f == nil {
		return false
	}
	p.mu.RLock()
	var q *connector.Conveyor
	if n, ok := p.nodes[stage]; ok {
		q = n.transmit
	}
	p.mu.RUnlock()
	if q == nil {
		return false
	}
	return q.Push(f)
}

func (p *Pipeline) taskLoop(ctx context.Context, n *node, conveyor *connector.Conveyor) {
	defer n.workers.Done()
	for {
		f, ok := conveyor.Pop()
		if !ok {
			return
		}
		p.process(ctx, n, f)
	}
}

func (p *Pipeline) transmitLoop(n *node, queue *connector.Conveyor) {
	defer n.transmitter.Done()
	for {
		f, ok := queue.Pop()
		if !ok {
			return
		}
		p.forward(n, f)
	}
}

// process hands f to the stage. Synchronous stages are forwarded on their
// behalf; stages that transmit see every frame and forward it themselves.
func (p *Pipeline) process(ctx context.Context, n *node, f *frame.Frame) {
	removed := p.IsStreamRemoved(f.StreamID)

	if n.mod.HasTransmit() {
		if removed {
			f.MarkRemoved()
		}
		p.invoke(ctx, n, f)
		return
	}

	if f.IsEOS() {
		if h, ok := n.mod.(module.EOSHandler); ok {
			h.OnEOS(f.StreamID)
		}
		p.forward(n, f)
		return
	}
	if removed {
		p.metrics.RecordFrame(ctx, n.name, observability.StatusSkipped, 0)
		p.prof.skip(n.name, f)
		return
	}
	if status := p.invoke(ctx, n, f); status == module.Forward {
		p.forward(n, f)
	}
}

// invoke runs Process with panic isolation and instrumentation. A negative
// status, or a panic, posts an Error event for the frame's stream.
func (p *Pipeline) invoke(ctx context.Context, n *node, f *frame.Frame) int {
	var span trace.Span
	if p.tracingEnabled() {
		ctx, span = observability.StartSpan(ctx, observability.StageSpanName(n.name),
			trace.WithAttributes(
				attribute.String(observability.AttrPipeline, p.name),
				attribute.String(observability.AttrStage, n.name),
				attribute.String(observability.AttrStreamID, f.StreamID),
				attribute.Int64(observability.AttrFrameSeq, int64(f.Seq)),
				attribute.Bool(observability.AttrEOS, f.IsEOS()),
			))
	}

	stats := p.prof.stage(n.name)
	stats.ongoing.Add(1)
	start := time.Now()
	status, err := safeProcess(ctx, n.mod, f)
	elapsed := time.Since(start)
	stats.ongoing.Add(-1)
	if err != nil {
		status = module.Failed
	}

	if span != nil {
		span.SetAttributes(attribute.Int(observability.AttrStatus, status))
		if err != nil {
			span.RecordError(err)
		}
		if status < 0 {
			span.SetStatus(codes.Error, "process failed")
		}
		span.End()
	}
	p.metrics.RecordFrame(ctx, n.name, statusLabel(status), elapsed)
	if !f.IsEOS() {
		p.prof.record(n.name, f, status, elapsed)
	}

	if status < 0 {
		msg := fmt.Sprintf("process returned %d for %s", status, f)
		if err != nil {
			msg = err.Error()
		}
		p.PostEvent(eventbus.NewEvent(eventbus.Error, n.name, msg).ForStream(f.StreamID))
	}
	return status
}

// forward marks f as passed by n and pushes it to every downstream stage
// whose upstream stages have all passed it.
func (p *Pipeline) forward(n *node, f *frame.Frame) {
	if n.root {
		if f.StreamIndex() == frame.InvalidStreamIndex {
			f.SetStreamIndex(p.streams.acquire(f.StreamID))
		}
		f.SetPassedMask(n.routeMask)
	}
	mask := f.MarkPassed(n.bit)

	if f.IsEOS() {
		p.PostEvent(eventbus.NewEvent(eventbus.EOS, n.name, "end of stream").ForStream(f.StreamID))
		if mask == p.allMask {
			p.streams.release(f.StreamID)
			p.restoreStream(f.StreamID)
			p.msgs.send(StreamMsg{Type: MsgEOS, StreamID: f.StreamID, Module: n.name, Timestamp: f.Timestamp})
		}
	} else if p.IsStreamRemoved(f.StreamID) {
		return
	}

	if f.IsInvalid() {
		p.log.Warn("dropping invalid frame", logger.Fields(
			logger.FieldStage, n.name,
			logger.FieldStreamID, f.StreamID,
			"timestamp", f.Timestamp,
		))
		p.msgs.send(StreamMsg{Type: MsgFrameError, StreamID: f.StreamID, Module: n.name, Timestamp: f.Timestamp})
		return
	}
	if !f.IsEOS() && mask == p.allMask {
		p.prof.finish(f)
	}

	for _, down := range n.children {
		if mask&down.parentMask != down.parentMask {
			continue
		}
		c := down.connector
		if !c.PushToConveyor(c.Route(f), f) {
			p.log.Debug("downstream stopped, frame dropped", logger.Fields(
				logger.FieldStage, down.name,
				logger.FieldStreamID, f.StreamID,
			))
		}
	}

	if len(n.children) == 0 {
		if fn := p.frameDoneCallback(); fn != nil {
			fn(f)
		}
	}
}

func safeProcess(ctx context.Context, m module.Module, f *frame.Frame) (status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return m.Process(ctx, f), nil
}

func statusLabel(status int) string {
	switch {
	case status == module.Forward:
		return observability.StatusForwarded
	case status > 0:
		return observability.StatusConsumed
	default:
		return observability.StatusFailed
	}
}
