// Package cache is a small in-process TTL cache for list views (accounts,
// transaction history). It sits entirely at the API edge: the ledger core
// never sees it and always works against authoritative store state. Keys
// are namespaced per user so one invalidation call drops every view a
// balance change could have staled.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

func New(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]entry), ttl: ttl}
}

// AccountsKey and TransactionsKey build the per-user view keys.
func AccountsKey(userID uuid.UUID) string     { return "user." + userID.String() + ".accounts" }
func TransactionsKey(userID uuid.UUID) string { return "user." + userID.String() + ".transactions" }

// Get returns the cached body if present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a response body under the key for the cache's TTL.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// InvalidateUser drops every cached view belonging to the user.
func (c *Cache) InvalidateUser(userID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, AccountsKey(userID))
	delete(c.entries, TransactionsKey(userID))
	c.mu.Unlock()
}
