package hook

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Context is a per-crawl bag shared by all hooks of one run.
// It is safe for concurrent use; the layered strategy calls hooks from
// several goroutines.
type Context struct {
	runID string
	seed  string

	mu     sync.RWMutex
	values map[string]any
}

// NewContext creates a Context for a crawl starting at seed.
// The run ID is a random UUID.
func NewContext(seed string) *Context {
	return &Context{
		runID:  uuid.NewString(),
		seed:   seed,
		values: make(map[string]any),
	}
}

// RunID returns the crawl run's unique identifier.
func (c *Context) RunID() string {
	return c.runID
}

// Seed returns the normalized seed URL.
func (c *Context) Seed() string {
	return c.seed
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// View calls fn with the value stored under key while holding the read
// lock. Values that Update mutates in place must be read through View.
func (c *Context) View(key string, fn func(value any, ok bool)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	fn(v, ok)
}

// Update atomically replaces the value under key with fn(old).
// old is nil when the key is absent.
func (c *Context) Update(key string, fn func(old any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fn(c.values[key])
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
