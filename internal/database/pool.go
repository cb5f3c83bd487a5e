package database

import (
	"sync"
	"time"
)

// poolEntry is one slot in a ConnectionPool.
type poolEntry struct {
	Hash       string
	CreatedAt  time.Time
	LastUsedAt time.Time
	InUse      bool
	Conn       *ConnectionHandle
}

// ConnectionPool is a per-database slot pool of idle connections.
// All operations on a nil pool are no-ops rather than panics, so callers
// can thread a *ConnectionPool through code paths that may run before the
// pool is constructed (e.g. during shutdown).
type ConnectionPool struct {
	mu      sync.Mutex
	entries []*poolEntry
	maxSize int
}

// NewConnectionPool constructs an empty pool with room for maxSize
// entries. Put does not enforce that size.
func NewConnectionPool(maxSize int) *ConnectionPool {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ConnectionPool{entries: make([]*poolEntry, 0, maxSize), maxSize: maxSize}
}

// Acquire returns an idle, unused connection for hash if one exists and
// marks it in-use. It does not create connections; callers fall back to
// the adapter's Connect when Acquire returns false.
func (p *ConnectionPool) Acquire(hash string) (*ConnectionHandle, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.Hash == hash && !e.InUse {
			e.InUse = true
			e.LastUsedAt = time.Now()
			return e.Conn, true
		}
	}
	return nil, false
}

// Put inserts a freshly established connection into the pool, marked
// in-use. If the pool is already at maxSize the connection is appended
// anyway (refusing a live connection would leak it); like every new entry
// it stays in use, and out of CleanupIdle's reach, until Release.
func (p *ConnectionPool) Put(hash string, conn *ConnectionHandle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.entries = append(p.entries, &poolEntry{
		Hash:       hash,
		CreatedAt:  now,
		LastUsedAt: now,
		InUse:      true,
		Conn:       conn,
	})
}

// Release marks a connection idle again, making it eligible for reuse by
// Acquire and for eviction by CleanupIdle.
func (p *ConnectionPool) Release(conn *ConnectionHandle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.Conn == conn {
			e.InUse = false
			e.LastUsedAt = time.Now()
			return
		}
	}
}

// CleanupIdle removes entries that are not in use and have been idle for
// strictly longer than maxIdleSeconds; entries idle for exactly
// maxIdleSeconds are retained. It returns the removed connections so the
// caller can disconnect them.
func (p *ConnectionPool) CleanupIdle(maxIdleSeconds int) []*ConnectionHandle {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Duration(maxIdleSeconds) * time.Second
	now := time.Now()
	kept := p.entries[:0:0]
	var evicted []*ConnectionHandle

	for _, e := range p.entries {
		idle := now.Sub(e.LastUsedAt)
		if !e.InUse && idle > cutoff {
			evicted = append(evicted, e.Conn)
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return evicted
}

// Len reports the current number of pooled entries, in use or not.
func (p *ConnectionPool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Destroy drops every entry. It does not close the underlying connections;
// callers should disconnect them first via the owning adapter.
func (p *ConnectionPool) Destroy() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}
