package pubcompose

import (
	"sync"
	"time"

	"github.com/eringen/pubcompose/compose"
)

// CatalogCache is an in-memory copy of the blog catalog with a TTL.
type CatalogCache struct {
	mu      sync.RWMutex
	blogs   compose.Catalog
	loaded  bool
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewCatalogCache creates a CatalogCache backed by the given Store.
func NewCatalogCache(s *Store, ttl time.Duration) *CatalogCache {
	return &CatalogCache{store: s, ttl: ttl}
}

func (c *CatalogCache) valid() bool {
	return c.loaded && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.blogs = nil
	c.loaded = false
	c.mu.Unlock()
}

// Catalog returns the cached catalog, reloading it when stale. It tries a
// read lock first and only takes the write lock if a reload is needed.
func (c *CatalogCache) Catalog() (compose.Catalog, error) {
	c.mu.RLock()
	if c.valid() {
		blogs := c.blogs
		c.mu.RUnlock()
		return blogs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.blogs, nil
	}
	blogs, err := c.store.ListBlogs()
	if err != nil {
		return nil, err
	}
	c.blogs = blogs
	c.loaded = true
	c.fetched = time.Now()
	return c.blogs, nil
}

// Blog returns a single blog from the cached catalog.
func (c *CatalogCache) Blog(id string) (compose.Blog, bool, error) {
	blogs, err := c.Catalog()
	if err != nil {
		return compose.Blog{}, false, err
	}
	b, ok := blogs.Find(id)
	return b, ok, nil
}
