package pagestore

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/simidx/node"
)

// DefaultCacheSize is the default number of decoded nodes kept by Cached.
const DefaultCacheSize = 4096

type cachedNode struct {
	n    *node.Node
	size int64
}

// CacheStats holds cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64 // capacity evictions only
	Len       int
}

// Cached is a write-through LRU of decoded nodes in front of another store.
//
// When a resource controller is configured, every cached node reserves its
// estimated size from the memory budget; nodes that do not fit are served
// but not cached.
type Cached struct {
	inner Store
	cache *lru.Cache[node.PageID, cachedNode]
	opts  Options

	// mu serializes cache mutations; dropping is set while entries leave
	// the cache on purpose rather than by capacity.
	mu       sync.Mutex
	dropping bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCached wraps inner with a cache of up to size nodes.
func NewCached(inner Store, size int, optFns ...Option) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	c := &Cached{
		inner: inner,
		opts:  buildOptions(Options{}, optFns),
	}

	cache, err := lru.NewWithEvict(size, func(_ node.PageID, v cachedNode) {
		if !c.dropping {
			c.evictions.Add(1)
		}
		c.opts.Resource.ReleaseMemory(v.size)
	})
	if err != nil {
		return nil, fmt.Errorf("pagestore: create cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

func (c *Cached) put(n *node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop first so the replaced entry releases its reservation.
	c.dropLocked(n.ID)

	size := int64(SizeOf(n))
	if !c.opts.Resource.TryAcquireMemory(size) {
		return
	}
	c.cache.Add(n.ID, cachedNode{n: n, size: size})
}

func (c *Cached) drop(id node.PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(id)
}

func (c *Cached) dropLocked(id node.PageID) {
	c.dropping = true
	c.cache.Remove(id)
	c.dropping = false
}

// Read serves a page from the cache or loads it from the inner store.
func (c *Cached) Read(id node.PageID) (*node.Node, error) {
	if v, ok := c.cache.Get(id); ok {
		c.hits.Add(1)
		return v.n, nil
	}
	c.misses.Add(1)

	n, err := c.inner.Read(id)
	if err != nil {
		return nil, err
	}
	c.put(n)
	return n, nil
}

// Write stores the page in the inner store and caches it.
func (c *Cached) Write(n *node.Node) (node.PageID, error) {
	id, err := c.inner.Write(n)
	if err != nil {
		c.drop(n.ID)
		return node.NoPage, err
	}
	c.put(n)
	return id, nil
}

// Free evicts and frees a page.
func (c *Cached) Free(id node.PageID) error {
	c.drop(id)
	return c.inner.Free(id)
}

// ReadHeader delegates to the inner store.
func (c *Cached) ReadHeader() (Header, error) { return c.inner.ReadHeader() }

// WriteHeader delegates to the inner store.
func (c *Cached) WriteHeader(h Header) error { return c.inner.WriteHeader(h) }

// Pages returns the number of allocated pages of the inner store.
func (c *Cached) Pages() int { return c.inner.Pages() }

// Stats returns the cache counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.cache.Len(),
	}
}

// Purge drops all cached nodes.
func (c *Cached) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropping = true
	c.cache.Purge()
	c.dropping = false
}

// Close purges the cache and closes the inner store.
func (c *Cached) Close() error {
	c.Purge()
	return c.inner.Close()
}
