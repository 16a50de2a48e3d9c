package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/kbukum/streamkit/connector"
	"github.com/kbukum/streamkit/dag"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// Start validates the graph, opens every stage and launches the workers.
// Stages are opened downstream first so nothing can push into a stage that
// is not open yet. If a stage fails to open, the stages opened so far are
// closed in reverse order and the pipeline stays idle.
//
// Starting a running pipeline is a no-op.
func (p *Pipeline) Start() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return nil
	}
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	err := p.prepare()
	nodes := p.topological()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.prof.reset()
	p.bus.Start()
	p.msgs.start()
	for _, n := range nodes {
		if !n.root {
			n.connector.Clear()
			n.connector.Start()
		}
	}

	opened := make([]*node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		params := n.params
		if params == nil {
			params = module.ParamSet{}
		}
		if err := safeOpen(n.mod, params); err != nil {
			p.log.Error("stage failed to open", logger.ErrorFields(n.name, err))
			cancel()
			p.haltQueues(nodes)
			p.closeStages(opened)
			p.bus.Stop()
			p.msgs.stop()
			return errors.OpenFailed(n.name, err)
		}
		opened = append(opened, n)
	}

	for _, n := range nodes {
		if !n.root {
			for i := 0; i < n.connector.ConveyorCount(); i++ {
				n.workers.Add(1)
				go p.taskLoop(ctx, n, n.connector.Conveyor(i))
			}
		}
		if n.transmit != nil {
			n.transmitter.Add(1)
			go p.transmitLoop(n, n.transmit)
		}
	}

	p.mu.Lock()
	p.opened = opened
	p.cancel = cancel
	p.mu.Unlock()
	p.state.Store(int32(Running))
	p.log.Info("pipeline started", logger.Fields("stages", len(nodes)))
	return nil
}

// Stop drains and closes the pipeline. Stages are drained from the sources
// downward: a stage's queue is stopped and its workers finish what is
// queued, forwarding it, before the next level is stopped. Then every stage
// is closed in reverse open order and the event bus stops.
//
// Stop is a no-op on an idle pipeline. It must not be called from an event
// watcher or a stream message observer of the same pipeline.
func (p *Pipeline) Stop() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if !p.IsRunning() {
		return nil
	}
	p.log.Info("stopping pipeline")

	p.mu.RLock()
	cancel, opened, levels := p.cancel, p.opened, p.levels
	p.mu.RUnlock()
	cancel()

	for _, level := range levels {
		for _, name := range level {
			p.mu.RLock()
			n := p.nodes[name]
			p.mu.RUnlock()
			if !n.root {
				n.connector.Stop()
				n.workers.Wait()
			}
			if n.transmit != nil {
				n.transmit.Stop()
				n.transmitter.Wait()
			}
		}
	}

	p.closeStages(opened)
	p.bus.Stop()
	p.msgs.stop()
	p.streams.reset()

	p.mu.Lock()
	p.opened = nil
	p.cancel = nil
	p.mu.Unlock()
	p.state.Store(int32(Idle))
	p.log.Info("pipeline stopped")
	return nil
}

// StopRequested is closed when an event watcher asks for the pipeline to
// stop during the current run. The channel is only valid once Start has
// returned, and each Start replaces it. The owner of the pipeline is
// expected to call Stop from its own goroutine.
func (p *Pipeline) StopRequested() <-chan struct{} {
	return p.bus.StopRequested()
}

// prepare validates the graph and lays out the run. mu must be held.
func (p *Pipeline) prepare() error {
	if len(p.order) == 0 {
		return errors.InvalidGraph("pipeline has no stages")
	}
	g := p.graph()
	levels, err := dag.BuildLevels(g)
	if err != nil {
		return errors.InvalidGraph(err.Error()).WithCause(err)
	}
	if len(p.order) > 1 {
		if isolated := dag.Isolated(g); len(isolated) > 0 {
			return errors.InvalidGraph("stages without links: " + strings.Join(isolated, ", "))
		}
	}

	p.allMask = 0
	for _, n := range p.nodes {
		p.allMask |= 1 << n.bit
		n.children = nil
		n.parentMask = 0
		n.routeMask = 0
		n.transmit = nil
	}
	for _, l := range p.sortedLinks() {
		up, down := p.nodes[l.Up], p.nodes[l.Down]
		up.children = append(up.children, down)
		down.parentMask |= 1 << up.bit
	}

	for _, name := range p.order {
		n := p.nodes[name]
		n.root = n.parentMask == 0
		switch {
		case n.root && !n.mod.HasTransmit():
			return errors.InvalidGraph(fmt.Sprintf("source stage %q must transmit its own frames", name))
		case !n.root && (n.parallelism <= 0 || n.connector == nil):
			return errors.InvalidGraph(fmt.Sprintf("stage %q has upstream stages but parallelism 0", name))
		}
		if n.root {
			// Stages this source cannot reach count as passed for its frames.
			n.routeMask = p.allMask
			for reached := range dag.Reachable(g, name) {
				n.routeMask &^= 1 << p.nodes[reached].bit
			}
		}
		if n.mod.HasTransmit() {
			n.transmit = connector.NewConveyor(p.cfg.QueueCapacity)
		}
	}
	p.levels = levels
	return nil
}

// topological returns nodes level by level. mu must be held.
func (p *Pipeline) topological() []*node {
	var out []*node
	for _, level := range p.levels {
		for _, name := range level {
			out = append(out, p.nodes[name])
		}
	}
	return out
}

// haltQueues stops the queues of a run that never launched workers.
func (p *Pipeline) haltQueues(nodes []*node) {
	for _, n := range nodes {
		if !n.root {
			n.connector.Stop()
			n.connector.Clear()
		}
		if n.transmit != nil {
			n.transmit.Stop()
			n.transmit.Clear()
		}
	}
}

// closeStages closes opened in reverse.
func (p *Pipeline) closeStages(opened []*node) {
	for i := len(opened) - 1; i >= 0; i-- {
		n := opened[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("stage panicked on close", logger.Fields(
						logger.FieldStage, n.name,
						logger.FieldError, fmt.Sprintf("%v", r),
						"stack", string(debug.Stack()),
					))
				}
			}()
			n.mod.Close()
		}()
	}
}

func safeOpen(m module.Module, params module.ParamSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Open(params)
}
