package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/streamkit/connector"
	"github.com/kbukum/streamkit/dag"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/registry"
	"github.com/kbukum/streamkit/validation"
)

// SubgraphPrefix marks a next_modules entry that links to a subgraph.
const SubgraphPrefix = "subgraph:"

// Definition describes a pipeline declaratively. JSON documents parse as
// well, being a subset of YAML.
type Definition struct {
	Name      string        `yaml:"name" json:"name" validate:"required"`
	Routing   string        `yaml:"routing" json:"routing" validate:"omitempty,oneof=index hash"`
	Stages    []StageDef    `yaml:"stages" json:"stages" validate:"required,min=1,dive"`
	Subgraphs []SubgraphDef `yaml:"subgraphs" json:"subgraphs" validate:"dive"`
}

// SubgraphDef embeds the stages of another definition file. Its stages are
// renamed "<name>/<stage>". Links into the subgraph reach the stages with no
// upstream inside it, and its stages with no downstream link to Next.
type SubgraphDef struct {
	Name       string   `yaml:"name" json:"name" validate:"required,excludes=/"`
	ConfigPath string   `yaml:"config_path" json:"config_path" validate:"required"`
	Next       []string `yaml:"next_modules" json:"next_modules"`
}

// StageDef describes one stage of a Definition.
type StageDef struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	ClassName string `yaml:"class_name" json:"class_name" validate:"required"`
	// Parallelism is the number of conveyors and workers; 0 keeps the
	// pipeline default.
	Parallelism       int             `yaml:"parallelism" json:"parallelism" validate:"gte=0"`
	MaxInputQueueSize int             `yaml:"max_input_queue_size" json:"max_input_queue_size" validate:"gte=0"`
	Next              []string        `yaml:"next_modules" json:"next_modules"`
	Params            module.ParamSet `yaml:"custom_params" json:"custom_params"`
}

// LoadDefinition reads and validates a definition file. Subgraphs are
// expanded, their config paths resolved against the file's directory.
func LoadDefinition(path string) (*Definition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolving %s: %w", path, err)
	}
	return loadDefinition(abs, "", map[string]bool{})
}

func loadDefinition(path, prefix string, visiting map[string]bool) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parsing %s: %w", path, err)
	}
	if len(def.Subgraphs) == 0 && prefix == "" {
		return def, nil
	}
	visiting[path] = true
	defer delete(visiting, path)
	return def.flatten(filepath.Dir(path), prefix, visiting)
}

// Flatten returns def with every subgraph expanded into plain stages.
// Relative config paths are resolved against dir.
func (d *Definition) Flatten(dir string) (*Definition, error) {
	return d.flatten(dir, "", map[string]bool{})
}

func (d *Definition) flatten(dir, prefix string, visiting map[string]bool) (*Definition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	out := &Definition{Name: d.Name, Routing: d.Routing}

	type ends struct{ entries, exits []string }
	subs := make(map[string]ends, len(d.Subgraphs))
	for _, sg := range d.Subgraphs {
		path := sg.ConfigPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		path, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("pipeline: resolving subgraph %s: %w", sg.Name, err)
		}
		if visiting[path] {
			return nil, errors.InvalidGraph(fmt.Sprintf("subgraph %q includes itself through %s", sg.Name, path))
		}
		child, err := loadDefinition(path, prefix+sg.Name+"/", visiting)
		if err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, child.Stages...)
		subs[sg.Name] = ends{entries: child.entries(), exits: child.exits()}
	}

	resolve := func(target string) []string {
		if name, ok := strings.CutPrefix(target, SubgraphPrefix); ok {
			return subs[name].entries
		}
		return []string{prefix + target}
	}
	for _, sd := range d.Stages {
		next := sd.Next
		sd.Name = prefix + sd.Name
		sd.Next = nil
		for _, target := range next {
			sd.Next = append(sd.Next, resolve(target)...)
		}
		out.Stages = append(out.Stages, sd)
	}

	for _, sg := range d.Subgraphs {
		var targets []string
		for _, target := range sg.Next {
			targets = append(targets, resolve(target)...)
		}
		if len(targets) == 0 {
			continue
		}
		exits := make(map[string]bool)
		for _, name := range subs[sg.Name].exits {
			exits[name] = true
		}
		for i := range out.Stages {
			if exits[out.Stages[i].Name] {
				out.Stages[i].Next = append(out.Stages[i].Next, targets...)
			}
		}
	}
	return out, nil
}

// entries lists the stages nothing links to.
func (d *Definition) entries() []string {
	linked := make(map[string]bool)
	for _, sd := range d.Stages {
		for _, next := range sd.Next {
			linked[next] = true
		}
	}
	var out []string
	for _, sd := range d.Stages {
		if !linked[sd.Name] {
			out = append(out, sd.Name)
		}
	}
	return out
}

// exits lists the stages that link nowhere.
func (d *Definition) exits() []string {
	var out []string
	for _, sd := range d.Stages {
		if len(sd.Next) == 0 {
			out = append(out, sd.Name)
		}
	}
	return out
}

// ParseDefinition decodes and validates a YAML or JSON definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.InvalidConfig("malformed pipeline definition").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks required fields, unique stage names and link targets.
func (d *Definition) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	seen := make(map[string]bool, len(d.Stages))
	for _, s := range d.Stages {
		if seen[s.Name] {
			return errors.DuplicateStage(s.Name)
		}
		seen[s.Name] = true
	}
	subgraphs := make(map[string]bool, len(d.Subgraphs))
	for _, sg := range d.Subgraphs {
		if subgraphs[sg.Name] {
			return errors.InvalidGraph(fmt.Sprintf("duplicate subgraph %q", sg.Name))
		}
		subgraphs[sg.Name] = true
	}
	known := func(target string) bool {
		if name, ok := strings.CutPrefix(target, SubgraphPrefix); ok {
			return subgraphs[name]
		}
		return seen[target]
	}
	for _, s := range d.Stages {
		for _, next := range s.Next {
			if !known(next) {
				return errors.InvalidGraph(fmt.Sprintf("stage %q links to unknown stage %q", s.Name, next))
			}
		}
	}
	for _, sg := range d.Subgraphs {
		for _, next := range sg.Next {
			if !known(next) {
				return errors.InvalidGraph(fmt.Sprintf("subgraph %q links to unknown stage %q", sg.Name, next))
			}
		}
	}
	return nil
}

// Classes returns the distinct class names used, sorted.
func (d *Definition) Classes() []string {
	set := make(map[string]bool)
	for _, s := range d.Stages {
		set[s.ClassName] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Graph returns the stage topology of the definition.
func (d *Definition) Graph() *dag.Graph {
	g := &dag.Graph{}
	for _, s := range d.Stages {
		g.Nodes = append(g.Nodes, s.Name)
		for _, next := range s.Next {
			g.Edges = append(g.Edges, dag.Edge{From: s.Name, To: next})
		}
	}
	return g
}

// Build creates a pipeline from def, instantiating stages from reg. A nil
// reg uses registry.Default.
func Build(def *Definition, reg *registry.Registry, opts ...Option) (*Pipeline, error) {
	if def == nil {
		return nil, errors.InvalidConfig("nil pipeline definition")
	}
	p := New(def.Name, opts...)
	if err := p.BuildFromDefinition(def, reg); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildFromDefinition adds and links the stages of def. Every class name is
// checked against reg before any stage is created. Subgraphs left in def
// are expanded relative to the working directory.
func (p *Pipeline) BuildFromDefinition(def *Definition, reg *registry.Registry) error {
	if reg == nil {
		reg = registry.Default
	}
	if len(def.Subgraphs) > 0 {
		flat, err := def.Flatten(".")
		if err != nil {
			return err
		}
		def = flat
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if err := reg.Require(def.Classes()...); err != nil {
		return err
	}
	if len(def.Stages) > 1 {
		if isolated := dag.Isolated(def.Graph()); len(isolated) > 0 {
			return errors.InvalidGraph("stages without links: " + strings.Join(isolated, ", "))
		}
	}
	if def.Routing != "" {
		if err := p.setRouter(connector.RouterByName(def.Routing)); err != nil {
			return err
		}
	}

	for _, sd := range def.Stages {
		m := reg.CreateObject(sd.ClassName)
		if m == nil {
			return errors.UnknownStage(sd.ClassName)
		}
		m.SetName(sd.Name)
		if err := p.AddModule(m); err != nil {
			return err
		}

		if sd.Parallelism > 0 || sd.MaxInputQueueSize > 0 {
			parallelism := sd.Parallelism
			if parallelism == 0 {
				parallelism = p.cfg.Parallelism
			}
			if err := p.SetModuleAttribute(sd.Name, parallelism, sd.MaxInputQueueSize); err != nil {
				return err
			}
		}

		params := sd.Params
		if params == nil {
			params = module.ParamSet{}
		}
		if pc, ok := m.(module.ParamChecker); ok {
			if err := pc.CheckParamSet(params); err != nil {
				return errors.InvalidParams(sd.Name, err)
			}
		}
		if err := p.SetModuleParams(sd.Name, params); err != nil {
			return err
		}
	}

	for _, sd := range def.Stages {
		for _, next := range sd.Next {
			if _, err := p.LinkModules(sd.Name, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) setRouter(r connector.Router) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.IsRunning() {
		return errors.PipelineRunning("change routing")
	}
	if r == nil {
		return errors.InvalidConfig("unknown routing")
	}
	p.mu.Lock()
	p.router = r
	p.mu.Unlock()
	return nil
}
