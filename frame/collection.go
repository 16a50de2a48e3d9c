package frame

import (
	"fmt"
	"sort"
	"sync"
)

// Collection is a thread-safe bag of named values attached to a frame.
type Collection struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{data: make(map[string]any)}
}

// Get retrieves a value by key.
func (c *Collection) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Set stores a value by key, replacing any previous value.
func (c *Collection) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Has reports whether key is present.
func (c *Collection) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key.
func (c *Collection) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Keys returns the stored keys in sorted order.
func (c *Collection) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key is a typed accessor for a Collection entry. Stages that exchange data
// share a Key value so producer and consumer agree on the type.
type Key[T any] struct {
	Name string
}

// Get retrieves a typed value. It fails if the key is missing or holds a
// value of another type.
func Get[T any](c *Collection, key Key[T]) (T, error) {
	var zero T
	raw, ok := c.Get(key.Name)
	if !ok {
		return zero, fmt.Errorf("frame: collection key %q not found", key.Name)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("frame: collection key %q: expected %T, got %T", key.Name, zero, raw)
	}
	return val, nil
}

// Put stores a typed value.
func Put[T any](c *Collection, key Key[T], value T) {
	c.Set(key.Name, value)
}
