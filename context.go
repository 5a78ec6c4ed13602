package wabot

import "sync"

// ContextStore holds per-conversation state for the lifetime of the process.
// Bags are keyed by the remote party's WhatsApp identifier and created lazily
// on first access. The store is constructed explicitly and owned by the
// Client; build a fresh one per test for isolation.
type ContextStore struct {
	mu   sync.RWMutex
	bags map[string]map[string]any
}

// NewContextStore creates an empty conversation store.
func NewContextStore() *ContextStore {
	return &ContextStore{bags: make(map[string]map[string]any)}
}

// Context returns a handle over the identifier's bag, creating the bag if it
// does not exist yet. Handles created for the same identifier share the same
// underlying bag until Clear is called on one of them.
func (s *ContextStore) Context(id string) *UserContext {
	return &UserContext{store: s, id: id, bag: s.bag(id)}
}

func (s *ContextStore) bag(id string) map[string]any {
	s.mu.RLock()
	bag, ok := s.bags[id]
	s.mu.RUnlock()
	if ok {
		return bag
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bag, ok = s.bags[id]; ok {
		return bag
	}
	bag = make(map[string]any)
	s.bags[id] = bag
	return bag
}

// Delete removes the identifier's bag. Future handles start from an empty one.
func (s *ContextStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bags, id)
}

// Reset drops every bag. Intended for test isolation.
func (s *ContextStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bags = make(map[string]map[string]any)
}

// IDs lists the identifiers with an existing bag.
func (s *ContextStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.bags))
	for id := range s.bags {
		ids = append(ids, id)
	}
	return ids
}

// UserContext is a handle over one conversation's key/value bag. Values are
// opaque to the library; it never inspects their contents.
type UserContext struct {
	store *ContextStore
	id    string
	mu    sync.RWMutex
	bag   map[string]any
}

// ID returns the conversation identifier this handle is bound to.
func (c *UserContext) ID() string { return c.id }

// Set stores a value under key.
func (c *UserContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bag[key] = value
}

// Get returns the value stored under key, and whether it was present.
func (c *UserContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.bag[key]
	return v, ok
}

// GetDefault returns the value stored under key, or def when the key is
// absent or holds nil.
func (c *UserContext) GetDefault(key string, def any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.bag[key]; ok && v != nil {
		return v
	}
	return def
}

// Has reports whether key is present.
func (c *UserContext) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bag[key]
	return ok
}

// Delete removes key from the bag.
func (c *UserContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bag, key)
}

// Clear discards the bag in the store and rebinds this handle to a fresh
// empty one. Handles obtained for the same identifier before the clear keep
// referencing the orphaned bag; handles obtained afterwards see the fresh
// one. This mirrors the store replacing its canonical slot rather than
// emptying the shared map in place.
func (c *UserContext) Clear() {
	c.store.Delete(c.id)
	fresh := c.store.bag(c.id)
	c.mu.Lock()
	c.bag = fresh
	c.mu.Unlock()
}

// Keys lists the keys currently present in the bag.
func (c *UserContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.bag))
	for k := range c.bag {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of keys in the bag.
func (c *UserContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bag)
}
