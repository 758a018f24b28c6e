package tilewall

import "sync"

// Context is the extended state of one Machine, handed to every Enter and
// kept across transitions. Each change bumps Version so observers can tell
// whether anything moved since they last looked.
type Context struct {
	mu      sync.RWMutex
	values  map[string]any
	version uint64
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{values: map[string]any{}}
}

// Get returns the value under key, nil when unset.
func (c *Context) Get(key string) any {
	v, _ := c.Lookup(key)
	return v
}

// Lookup is Get that also reports whether key is set.
func (c *Context) Lookup(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *Context) Set(key string, value any) {
	c.Update(key, func(any, bool) any { return value })
}

func (c *Context) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.values[key]; ok {
		delete(c.values, key)
		c.version++
	}
	c.mu.Unlock()
}

// Update replaces the value under key with fn(old, ok) in one step and
// returns the new value. fn runs under the context lock and must not call
// back into c.
func (c *Context) Update(key string, fn func(old any, ok bool) any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.values[key]
	v := fn(old, ok)
	c.values[key] = v
	c.version++
	return v
}

// Version counts the changes made so far.
func (c *Context) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Snapshot copies the values, for status export.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Value returns the value under key as a T. ok is false when the key is
// unset or holds another type.
func Value[T any](c *Context, key string) (v T, ok bool) {
	raw, found := c.Lookup(key)
	if !found {
		return v, false
	}
	v, ok = raw.(T)
	return v, ok
}

// Incr adds one to the int under key, starting from zero, and returns the
// result.
func Incr(c *Context, key string) int {
	return c.Update(key, func(old any, _ bool) any {
		n, _ := old.(int)
		return n + 1
	}).(int)
}
