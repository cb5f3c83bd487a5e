package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DeallocateFunc issues the engine's DEALLOCATE-equivalent for a prepared
// statement. It is supplied by the adapter that owns the connection.
type DeallocateFunc func(ctx context.Context, stmt *PreparedStatement) error

// PreparedStatementCache is a per-connection, capacity-bounded cache of
// server-side prepared statements. Eviction picks the least-recently-used
// entry, as tracked by the wrapped simplelru list; recency of *use* tracks
// reuse likelihood better than creation time, which is why LRU rather than
// FIFO or creation-order is used here.
//
// simplelru (rather than the top-level, thread-safe golang-lru/v2 cache)
// is used because the eviction path must be able to fail: if the engine's
// DEALLOCATE for the victim errors, the victim must NOT be removed and the
// whole insert must fail. The thread-safe cache's Add() evicts
// unconditionally before the caller can react; simplelru's GetOldest lets
// us peek the victim, attempt deallocation, and only then Remove it.
type PreparedStatementCache struct {
	mu          sync.Mutex
	lru         *simplelru.LRU[string, *PreparedStatement]
	capacity    int
	deallocate  DeallocateFunc
}

// NewPreparedStatementCache builds a cache of the given capacity. capacity
// <= 0 is not expected here (callers should resolve it via
// ConnectionConfig.cacheCapacity first) and is clamped to the default.
func NewPreparedStatementCache(capacity int, deallocate DeallocateFunc) *PreparedStatementCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	l, err := simplelru.NewLRU[string, *PreparedStatement](capacity, nil)
	if err != nil {
		// capacity is always > 0 here, so NewLRU cannot fail; keep a
		// degenerate single-slot cache rather than a nil pointer.
		l, _ = simplelru.NewLRU[string, *PreparedStatement](1, nil)
		capacity = 1
	}
	return &PreparedStatementCache{lru: l, capacity: capacity, deallocate: deallocate}
}

// Count returns the number of cached statements.
func (c *PreparedStatementCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the cache's configured size bound.
func (c *PreparedStatementCache) Capacity() int {
	return c.capacity
}

// Touch looks a statement up by name, bumping its recency and usage
// counter on a hit.
func (c *PreparedStatementCache) Touch(name string) (*PreparedStatement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stmt, ok := c.lru.Get(name)
	if ok {
		stmt.UsageCount++
	}
	return stmt, ok
}

// Insert adds a newly prepared statement to the cache. When the cache is
// at capacity it first evicts the LRU victim: it asks the engine to
// deallocate the victim's server-side statement, and only removes the
// victim from the cache if that succeeds. A failed deallocate leaves the
// cache untouched and Insert returns that error.
func (c *PreparedStatementCache) Insert(ctx context.Context, stmt *PreparedStatement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru.Len() >= c.capacity {
		victimName, victim, ok := c.lru.GetOldest()
		if ok {
			if c.deallocate != nil {
				if err := c.deallocate(ctx, victim); err != nil {
					return fmt.Errorf("database: evicting %q to make room for %q: %w", victimName, stmt.Name, err)
				}
			}
			c.lru.Remove(victimName)
		}
	}
	c.lru.Add(stmt.Name, stmt)
	return nil
}

// Remove unprepares a statement by name. On a failed deallocate the
// statement remains cached and the error is returned.
func (c *PreparedStatementCache) Remove(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, ok := c.lru.Peek(name)
	if !ok {
		return fmt.Errorf("database: no prepared statement named %q", name)
	}
	if c.deallocate != nil {
		if err := c.deallocate(ctx, stmt); err != nil {
			return err
		}
	}
	c.lru.Remove(name)
	return nil
}

// Names returns the cached statement names, oldest (next eviction victim)
// first. Intended for tests and diagnostics.
func (c *PreparedStatementCache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}
