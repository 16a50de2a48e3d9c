package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kbukum/streamkit/connector"
	"github.com/kbukum/streamkit/dag"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/observability"
)

// State is the lifecycle state of a Pipeline.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// LinkSeparator joins the upstream and downstream names of a link id.
const LinkSeparator = "-->"

// Link is a directed edge between two stages.
type Link struct {
	ID   string `json:"id"`
	Up   string `json:"up"`
	Down string `json:"down"`
}

// LinkStatus reports the input queues of a link's downstream stage.
type LinkStatus struct {
	Stopped   bool  `json:"stopped"`
	CacheSize []int `json:"cache_size"`
}

// StageInfo describes one stage for status reporting.
type StageInfo struct {
	Name        string   `json:"name"`
	Parallelism int      `json:"parallelism"`
	Capacity    int      `json:"queue_capacity"`
	Transmit    bool     `json:"transmit"`
	Upstream    []string `json:"upstream,omitempty"`
	Downstream  []string `json:"downstream,omitempty"`
	QueueSizes  []int    `json:"queue_sizes,omitempty"`
}

type node struct {
	name        string
	mod         module.Module
	bit         uint
	params      module.ParamSet
	parallelism int
	capacity    int
	connector   *connector.Connector

	// Run layout, rebuilt by every Start.
	root        bool
	children    []*node
	parentMask  uint64
	routeMask   uint64
	transmit    *connector.Conveyor
	workers     sync.WaitGroup
	transmitter sync.WaitGroup
}

// Pipeline runs a graph of stages. Stages are added and linked while the
// pipeline is idle; Start opens them and launches the workers, Stop drains
// and closes them. A Pipeline can be started again after Stop.
type Pipeline struct {
	name    string
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
	tracing *bool
	router  connector.Router
	bus     *eventbus.Bus
	msgs    *msgLoop
	streams *streamIndex
	prof    *profiler

	// lifecycle serialises Start, Stop and graph edits.
	lifecycle sync.Mutex
	state     atomic.Int32

	mu      sync.RWMutex
	nodes   map[string]*node
	order   []string
	links   map[string]Link
	allMask uint64
	levels  [][]string
	opened  []*node
	cancel  func()

	removedMu sync.RWMutex
	removed   map[string]bool

	doneMu    sync.RWMutex
	frameDone func(*frame.Frame)
}

var (
	_ module.Container        = (*Pipeline)(nil)
	_ module.StreamController = (*Pipeline)(nil)
)

// New creates an idle pipeline.
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:    name,
		nodes:   make(map[string]*node),
		links:   make(map[string]Link),
		removed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg.ApplyDefaults()
	if p.log == nil {
		p.log = logger.WithComponent("pipeline").WithPipeline(name)
	}
	if p.router == nil {
		p.router = connector.RouterByName(p.cfg.Routing)
		if p.router == nil {
			p.log.Warn("unknown routing, using index", logger.Fields("routing", p.cfg.Routing))
			p.router = connector.IndexRouter{}
		}
	}

	busOpts := []eventbus.Option{eventbus.WithLogger(p.log.WithComponent("eventbus"))}
	if p.metrics != nil {
		busOpts = append(busOpts, eventbus.WithRecorder(p.metrics))
	}
	p.bus = eventbus.New(p.cfg.EventBus, busOpts...)
	p.bus.AddWatcher(p.defaultWatcher)
	p.msgs = newMsgLoop(p.log)
	p.streams = newStreamIndex(p.cfg.MaxStreams)
	p.prof = newProfiler()
	return p
}

func (p *Pipeline) Name() string { return p.name }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) IsRunning() bool { return p.State() == Running }

// EventBus exposes the bus for attaching watchers.
func (p *Pipeline) EventBus() *eventbus.Bus { return p.bus }

func (p *Pipeline) tracingEnabled() bool {
	if p.tracing != nil {
		return *p.tracing
	}
	return p.cfg.Tracing
}

// AddModule adds m under m.Name() and attaches the pipeline as its
// container.
func (p *Pipeline) AddModule(m module.Module) error {
	if m == nil {
		return errors.InvalidConfig("cannot add a nil stage")
	}
	name := m.Name()
	if name == "" {
		return errors.InvalidConfig("stage has no name")
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return errors.PipelineRunning("add stage")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.nodes[name]; exists {
		return errors.DuplicateStage(name)
	}
	if len(p.order) >= MaxStages {
		return errors.InvalidGraph(fmt.Sprintf("a pipeline holds at most %d stages", MaxStages))
	}

	n := &node{
		name:        name,
		mod:         m,
		bit:         uint(len(p.order)),
		parallelism: p.cfg.Parallelism,
		capacity:    p.cfg.QueueCapacity,
	}
	n.connector = connector.New(n.parallelism, n.capacity, connector.WithRouter(p.router))
	p.nodes[name] = n
	p.order = append(p.order, name)
	m.SetContainer(p)
	return nil
}

// SetModuleAttribute replaces the stage's input connector with parallelism
// conveyors of the given capacity. Capacity 0 selects the configured
// default. Parallelism 0 is only valid for sources.
func (p *Pipeline) SetModuleAttribute(name string, parallelism, capacity int) error {
	if parallelism < 0 || capacity < 0 {
		return errors.InvalidConfig(fmt.Sprintf("stage %q: parallelism and capacity must be non-negative", name))
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return errors.PipelineRunning("change stage attributes")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[name]
	if !ok {
		return errors.NotFound("stage", name)
	}
	if capacity == 0 {
		capacity = p.cfg.QueueCapacity
	}
	n.parallelism = parallelism
	n.capacity = capacity
	n.connector = nil
	if parallelism > 0 {
		n.connector = connector.New(parallelism, capacity, connector.WithRouter(p.router))
	}
	return nil
}

// SetModuleParams sets the parameters passed to the stage's Open.
func (p *Pipeline) SetModuleParams(name string, params module.ParamSet) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return errors.PipelineRunning("change stage parameters")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[name]
	if !ok {
		return errors.NotFound("stage", name)
	}
	n.params = params.Clone()
	return nil
}

// LinkModules routes the output of up into down and returns the link id
// "up-->down". Linking an existing pair returns its id again.
func (p *Pipeline) LinkModules(up, down string) (string, error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return "", errors.PipelineRunning("link stages")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range []string{up, down} {
		if _, ok := p.nodes[name]; !ok {
			return "", errors.NotFound("stage", name)
		}
	}
	id := up + LinkSeparator + down
	if _, exists := p.links[id]; exists {
		return id, nil
	}
	if up == down {
		return "", errors.InvalidGraph(fmt.Sprintf("stage %q cannot link to itself", up))
	}

	p.links[id] = Link{ID: id, Up: up, Down: down}
	if _, err := dag.BuildLevels(p.graph()); err != nil {
		delete(p.links, id)
		return "", errors.InvalidGraph(fmt.Sprintf("linking %s would create a cycle", id)).WithCause(err)
	}
	return id, nil
}

// QueryLinkStatus reports the input queue of the link's downstream stage.
func (p *Pipeline) QueryLinkStatus(linkID string) (LinkStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	l, ok := p.links[linkID]
	if !ok {
		return LinkStatus{}, errors.NotFound("link", linkID)
	}
	c := p.nodes[l.Down].connector
	if c == nil {
		return LinkStatus{Stopped: true}, nil
	}
	return LinkStatus{
		Stopped:   !p.IsRunning() || c.IsStopped(),
		CacheSize: c.Sizes(),
	}, nil
}

// GetModule returns the named stage, or nil.
func (p *Pipeline) GetModule(name string) module.Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n, ok := p.nodes[name]; ok {
		return n.mod
	}
	return nil
}

// ModuleNames returns stage names in the order they were added.
func (p *Pipeline) ModuleNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// EndModule returns the only stage without downstream links, or nil when
// there is none or more than one.
func (p *Pipeline) EndModule() module.Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	leaves := dag.Leaves(p.graph())
	if len(leaves) != 1 {
		return nil
	}
	return p.nodes[leaves[0]].mod
}

// Links returns all links sorted by id.
func (p *Pipeline) Links() []Link {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLinks()
}

// Stages describes every stage in the order they were added.
func (p *Pipeline) Stages() []StageInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g := p.graph()
	out := make([]StageInfo, 0, len(p.order))
	for _, name := range p.order {
		n := p.nodes[name]
		info := StageInfo{
			Name:        name,
			Parallelism: n.parallelism,
			Capacity:    n.capacity,
			Transmit:    n.mod.HasTransmit(),
			Upstream:    dag.Parents(g, name),
			Downstream:  dag.Children(g, name),
		}
		if n.connector != nil && len(info.Upstream) > 0 {
			info.QueueSizes = n.connector.Sizes()
		}
		out = append(out, info)
	}
	return out
}

// Detach clears every stage's reference to the pipeline. Stages posting
// events or transmitting afterwards get false.
func (p *Pipeline) Detach() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, n := range p.nodes {
		n.mod.SetContainer(nil)
	}
}

// SetFrameDoneCallback registers fn to be called for every frame leaving a
// stage without downstream links. fn runs on worker goroutines.
func (p *Pipeline) SetFrameDoneCallback(fn func(*frame.Frame)) {
	p.doneMu.Lock()
	p.frameDone = fn
	p.doneMu.Unlock()
}

func (p *Pipeline) frameDoneCallback() func(*frame.Frame) {
	p.doneMu.RLock()
	defer p.doneMu.RUnlock()
	return p.frameDone
}

// SetStreamMsgObserver registers o for stream messages. Pass nil to remove.
func (p *Pipeline) SetStreamMsgObserver(o StreamMsgObserver) {
	p.msgs.setObserver(o)
}

// StreamMsgObserver returns the registered observer, or nil.
func (p *Pipeline) StreamMsgObserver() StreamMsgObserver {
	return p.msgs.getObserver()
}

// graph must be called with mu held.
func (p *Pipeline) graph() *dag.Graph {
	g := &dag.Graph{Nodes: append([]string(nil), p.order...)}
	for _, l := range p.sortedLinks() {
		g.Edges = append(g.Edges, dag.Edge{From: l.Up, To: l.Down})
	}
	return g
}

func (p *Pipeline) sortedLinks() []Link {
	out := make([]Link, 0, len(p.links))
	for _, l := range p.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
