package database

import "sync"

const qtcInitialCapacity = 64

// QueryTableCache (QTC) is a database's catalog of parameterized SQL
// templates, keyed by query_ref and loaded from the database itself at
// bootstrap. Entries are owned by the cache: Clear frees them.
type QueryTableCache struct {
	mu       sync.RWMutex
	entries  map[int]*QueryCacheEntry
	order    []int // insertion order, for Stats and deterministic iteration
	capacity int
}

// NewQueryTableCache constructs an empty QTC with the default initial
// capacity of 64 entries; Capacity doubles automatically as entries are
// added past it.
func NewQueryTableCache() *QueryTableCache {
	return &QueryTableCache{
		entries:  make(map[int]*QueryCacheEntry, qtcInitialCapacity),
		capacity: qtcInitialCapacity,
	}
}

// AddEntry inserts a new entry, rejecting duplicates of the same
// query_ref. Capacity doubles whenever the entry count would exceed it.
func (q *QueryTableCache) AddEntry(e *QueryCacheEntry) error {
	if e == nil {
		return errNilEntry
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[e.QueryRef]; exists {
		return errDuplicateQueryRef
	}
	if e.QueueType == "" {
		e.QueueType = QueueSlow
	}
	if len(q.entries)+1 > q.capacity {
		q.capacity *= 2
	}
	q.entries[e.QueryRef] = e
	q.order = append(q.order, e.QueryRef)
	return nil
}

// Lookup returns the entry for ref, incrementing its usage counter on a
// hit.
func (q *QueryTableCache) Lookup(ref int) (*QueryCacheEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[ref]
	if ok {
		e.UsageCount++
	}
	return e, ok
}

// UpdateUsage sets the usage counter for ref explicitly (used by callers
// replaying recorded counts, e.g. across a reconnect).
func (q *QueryTableCache) UpdateUsage(ref int, count uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[ref]; ok {
		e.UsageCount = count
	}
}

// Remove deletes ref if present, returning whether it was found. Along
// with AddEntry this gives create→add→remove→count idempotence: adding
// the same ref twice is a no-op via the duplicate-rejection rule above,
// and adding then removing returns the cache to empty.
func (q *QueryTableCache) Remove(ref int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[ref]; !ok {
		return false
	}
	delete(q.entries, ref)
	for i, r := range q.order {
		if r == ref {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the cache, freeing every entry, without resetting
// capacity.
func (q *QueryTableCache) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[int]*QueryCacheEntry, q.capacity)
	q.order = nil
}

// Count returns the number of entries currently cached.
func (q *QueryTableCache) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// QTCStats summarizes a QTC's current shape for diagnostics.
type QTCStats struct {
	Count      int
	Capacity   int
	TotalUsage uint64
}

// Stats reports the cache's current size, capacity and aggregate usage.
func (q *QueryTableCache) Stats() QTCStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var total uint64
	for _, e := range q.entries {
		total += e.UsageCount
	}
	return QTCStats{Count: len(q.entries), Capacity: q.capacity, TotalUsage: total}
}

// Entries returns a snapshot of all cached entries in insertion order.
func (q *QueryTableCache) Entries() []*QueryCacheEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*QueryCacheEntry, 0, len(q.order))
	for _, ref := range q.order {
		if e, ok := q.entries[ref]; ok {
			out = append(out, e)
		}
	}
	return out
}
