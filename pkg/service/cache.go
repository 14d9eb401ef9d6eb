package service

import (
	"fmt"
	"sync"

	"reelscraper/pkg/models"
)

// Signature is the stable cache key for one request: operation, subject and
// requested count.
func Signature(op, subject string, count int) string {
	return fmt.Sprintf("%s|%s|%d", op, subject, count)
}

// resultCache coalesces repeated identical requests. Entries carry no TTL:
// upstream freshness is enforced by the caller's own polling interval, so
// the only eviction is an explicit clear.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string][]models.ContentItem
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string][]models.ContentItem)}
}

func (c *resultCache) get(key string) ([]models.ContentItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items, ok := c.entries[key]
	return items, ok
}

func (c *resultCache) put(key string, items []models.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = items
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.ContentItem)
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
