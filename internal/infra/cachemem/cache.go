package cachemem

import (
	"context"
	"strings"
	"sync"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"
)

// Cache is the in-process validation outcome cache used in tests and
// single-node deployments.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     domain.ValidationOutcome
	expiresAt time.Time
	hasExpiry bool
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.ValidationOutcome, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value domain.ValidationOutcome, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Delete drops every entry whose key starts with the prefix. Revocation
// invalidates by certificate fingerprint this way.
func (c *Cache) Delete(ctx context.Context, keyPrefix string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, keyPrefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

var _ usecase.ValidationCache = (*Cache)(nil)
