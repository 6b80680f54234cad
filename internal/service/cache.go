package service

import (
	"sync"

	"github.com/locationprivacy/backend/internal/domain"
)

// DatasetCache holds generated datasets between requests.
// Implementations must replace entries wholesale.
type DatasetCache interface {
	Get(key string) (*domain.Dataset, bool)
	Set(key string, ds *domain.Dataset)
	Invalidate(key string)
}

// MemoryDatasetCache is an in-process DatasetCache
type MemoryDatasetCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.Dataset
}

// NewMemoryDatasetCache creates an empty cache
func NewMemoryDatasetCache() *MemoryDatasetCache {
	return &MemoryDatasetCache{entries: make(map[string]*domain.Dataset)}
}

func (c *MemoryDatasetCache) Get(key string) (*domain.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.entries[key]
	return ds, ok
}

func (c *MemoryDatasetCache) Set(key string, ds *domain.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ds
}

func (c *MemoryDatasetCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of cached datasets
func (c *MemoryDatasetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
