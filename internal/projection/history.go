package projection

import (
	"sync"
)

// HistoryCache keeps the most recent per-vault notifications in memory so
// hot history queries skip Postgres. It is a bounded ring: once full, the
// oldest entries fall out and queries past the window hit the database.
type HistoryCache struct {
	mu      sync.RWMutex
	entries []Output
	maxSize int
	head    int
	full    bool
}

func NewHistoryCache(maxSize int) *HistoryCache {
	return &HistoryCache{
		entries: make([]Output, maxSize),
		maxSize: maxSize,
	}
}

// Add records one applied notification.
func (c *HistoryCache) Add(output Output) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = output
	c.head = (c.head + 1) % c.maxSize
	if c.head == 0 {
		c.full = true
	}
}

// QueryByVault returns the newest cached notifications for a vault, newest
// first, up to limit.
func (c *HistoryCache) QueryByVault(vaultID uint64, limit int) []Output {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.head
	if c.full {
		size = c.maxSize
	}

	result := make([]Output, 0, limit)
	for i := 1; i <= size && len(result) < limit; i++ {
		idx := (c.head - i + c.maxSize) % c.maxSize
		e := c.entries[idx]
		if e.VaultID != nil && uint64(*e.VaultID) == vaultID {
			result = append(result, e)
		}
	}
	return result
}

// Len reports how many notifications are cached.
func (c *HistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.full {
		return c.maxSize
	}
	return c.head
}
