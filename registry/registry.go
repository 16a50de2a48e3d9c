package registry

import (
	"sort"
	"sync"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
)

// Constructor creates a fresh, unnamed stage instance.
type Constructor func() module.Module

// ClassInfo describes a registrable stage class.
type ClassInfo struct {
	Name        string
	Description string
	Constructor Constructor
}

// Registry maps stage class names to constructors. Registration normally
// happens in init functions; lookups afterwards are concurrent reads.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]ClassInfo
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{classes: make(map[string]ClassInfo)}
}

// Register adds info. A name that is already registered keeps its first
// constructor and Register returns false; so does an empty name or a nil
// constructor.
func (r *Registry) Register(info ClassInfo) bool {
	if info.Name == "" || info.Constructor == nil {
		logger.Warn("stage class rejected: empty name or nil constructor", logger.Fields("class", info.Name))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[info.Name]; exists {
		logger.Warn("stage class already registered", logger.Fields("class", info.Name))
		return false
	}
	r.classes[info.Name] = info
	return true
}

// CreateObject constructs a new instance of the named class, or returns nil
// if the name is unknown.
func (r *Registry) CreateObject(name string) module.Module {
	r.mu.RLock()
	info, ok := r.classes[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return info.Constructor()
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[name]
	return ok
}

// Describe returns the class info registered under name.
func (r *Registry) Describe(name string) (ClassInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.classes[name]
	return info, ok
}

// List returns the sorted names of all registered classes.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Require checks that every name is registered. The error lists all
// missing names at once.
func (r *Registry) Require(names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.classes[name]; !ok && !seen[name] {
			missing = append(missing, name)
			seen[name] = true
		}
	}
	if len(missing) > 0 {
		return errors.UnknownStage(missing...)
	}
	return nil
}

// Remove unregisters name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[name]; !ok {
		return false
	}
	delete(r.classes, name)
	return true
}

// Reset removes every registration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]ClassInfo)
}
