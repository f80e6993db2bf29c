package viewer

import "sync"

// Collection is one local, ordered copy of subjects (a feed page, a profile
// grid, a detail view). Several collections may hold the same subject.
type Collection[T any] struct {
	name string
	key  func(T) string

	mu    sync.RWMutex
	items []T
}

func NewCollection[T any](name string, key func(T) string, items ...T) *Collection[T] {
	c := &Collection[T]{name: name, key: key}
	c.items = append(c.items, items...)
	return c
}

func (c *Collection[T]) Name() string { return c.name }

// Items returns a copy of the current contents.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if c.key(it) == key {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Replace swaps the whole contents, e.g. after a page reload.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	c.items = append(c.items[:0:0], items...)
	c.mu.Unlock()
}

func (c *Collection[T]) Append(items ...T) {
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Update rewrites every entry with the given key and reports whether any
// matched.
func (c *Collection[T]) Update(key string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	for i, it := range c.items {
		if c.key(it) == key {
			c.items[i] = fn(it)
			found = true
		}
	}
	return found
}

func (c *Collection[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	removed := false
	for _, it := range c.items {
		if c.key(it) == key {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	var zero T
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = zero
	}
	c.items = kept
	return removed
}
