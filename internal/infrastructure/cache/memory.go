package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// cacheItem represents a single stored result with expiration
type cacheItem struct {
	Value      []byte
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory result store with TTL support
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new in-memory result store
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
		stop: make(chan struct{}),
	}

	// Start cleanup goroutine to remove expired entries every 10 minutes
	go cache.cleanupExpired(10 * time.Minute)

	return cache
}

// Get retrieves a stored result
func (c *MemoryCache) Get(ctx context.Context, id string) (*domain.ResultDocument, error) {
	c.mutex.RLock()
	item, exists := c.data[id]
	c.mutex.RUnlock()

	if !exists || time.Now().After(item.Expiration) {
		return nil, domain.ErrResultNotFound
	}

	var doc domain.ResultDocument
	if err := json.Unmarshal(item.Value, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save stores a result with TTL.
// The document is serialized on write so later changes by the caller are not visible.
func (c *MemoryCache) Save(ctx context.Context, id string, doc *domain.ResultDocument, ttl time.Duration) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[id] = cacheItem{
		Value:      jsonData,
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a stored result
func (c *MemoryCache) Delete(ctx context.Context, id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, id)
	return nil
}

// Exists checks if an id is stored and not expired
func (c *MemoryCache) Exists(ctx context.Context, id string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[id]
	if !exists {
		return false, nil
	}

	return !time.Now().After(item.Expiration), nil
}

// cleanupExpired removes expired entries periodically until Close is called
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

func (c *MemoryCache) removeExpired(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, item := range c.data {
		if now.After(item.Expiration) {
			delete(c.data, key)
		}
	}
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// Size returns the number of stored results, expired ones included
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}
