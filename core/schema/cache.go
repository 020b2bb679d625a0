package schema

import (
	"sync"
	"sync/atomic"
)

// CacheBackend is an optional persistent store backing the in-process cache.
// Implementations must be safe for concurrent use.
type CacheBackend interface {
	Get(key string) (*SchemaDocument, bool)
	Set(key string, doc *SchemaDocument)
	Invalidate(key string)
}

// CacheKey builds the cache key for a model, optionally namespace-qualified.
func CacheKey(namespace, model string) string {
	if namespace == "" {
		return model
	}
	return namespace + "/" + model
}

// Cache memoizes normalized schema documents by model name. Documents are
// immutable once normalized, so reads go through an atomically swapped
// read-mostly map; writers copy, mutate, and swap under a mutex. An optional
// backend is consulted on miss and written through on set.
type Cache struct {
	entries atomic.Value // map[string]*SchemaDocument
	mu      sync.Mutex
	backend CacheBackend
}

// NewCache creates a cache, optionally backed by a persistent store.
func NewCache(backend CacheBackend) *Cache {
	c := &Cache{backend: backend}
	c.entries.Store(map[string]*SchemaDocument{})
	return c
}

// Get returns the cached document for a key. Documents coming back from the
// backend are re-normalized first: a backend that serializes documents loses
// the field policies and compiled expressions, which do not survive a wire
// round trip. A backend document that fails normalization counts as a miss.
func (c *Cache) Get(key string) (*SchemaDocument, bool) {
	entries := c.entries.Load().(map[string]*SchemaDocument)
	if doc, ok := entries[key]; ok {
		return doc, true
	}
	if c.backend != nil {
		if doc, ok := c.backend.Get(key); ok {
			if _, err := Normalize(doc); err != nil {
				return nil, false
			}
			c.Set(key, doc)
			return doc, true
		}
	}
	return nil, false
}

// Set stores a normalized document under a key.
func (c *Cache) Set(key string, doc *SchemaDocument) {
	c.swap(func(entries map[string]*SchemaDocument) {
		entries[key] = doc
	})
	if c.backend != nil {
		c.backend.Set(key, doc)
	}
}

// Invalidate removes a single key from the cache and its backend.
func (c *Cache) Invalidate(key string) {
	c.swap(func(entries map[string]*SchemaDocument) {
		delete(entries, key)
	})
	if c.backend != nil {
		c.backend.Invalidate(key)
	}
}

// Reset drops every in-process entry. Backend entries are left alone; they
// are re-validated through the read-through path.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Store(map[string]*SchemaDocument{})
}

func (c *Cache) swap(mutate func(map[string]*SchemaDocument)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.entries.Load().(map[string]*SchemaDocument)
	next := make(map[string]*SchemaDocument, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	mutate(next)
	c.entries.Store(next)
}

// MemoryBackend is a trivial CacheBackend kept entirely in memory. It exists
// for tests and single-process deployments.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]*SchemaDocument
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]*SchemaDocument)}
}

// Get returns the stored document for a key.
func (b *MemoryBackend) Get(key string) (*SchemaDocument, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.docs[key]
	return doc, ok
}

// Set stores a document under a key.
func (b *MemoryBackend) Set(key string, doc *SchemaDocument) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[key] = doc
}

// Invalidate removes a key.
func (b *MemoryBackend) Invalidate(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.docs, key)
}
