package database

import (
	"fmt"
	"sync"
	"time"
)

// ConnectionHandle owns a single backend-native connection. The mutex
// guards every mutating operation on the handle, including reads and
// writes of its PreparedStatementCache; callers that only need to observe
// Status may do so without the lock but must never dereference NativeConn
// without holding it.
type ConnectionHandle struct {
	mu sync.Mutex

	Kind       EngineKind
	Designator string
	Status     ConnectionStatus

	NativeConn interface{} // non-nil iff Status == StatusConnected

	ConnectedSince   time.Time
	LastHealthCheck  time.Time
	ConsecutiveFails int

	CurrentTx *Transaction

	Cache *PreparedStatementCache

	// Poisoned marks a handle whose state is no longer trusted. This
	// replaces the original implementation's raw pointer-pattern sentinel
	// check (see the corruption-detection design note) with an explicit
	// flag. The heartbeat loop tears down any handle with the flag set and
	// MarkConnected clears it; none of the adapters sets it (a failed
	// HealthCheck only calls MarkFailed, and the heartbeat then disconnects
	// and reconnects on its own path).
	Poisoned bool
}

// NewConnectionHandle constructs a disconnected handle with a freshly
// sized prepared-statement cache. deallocate is invoked on LRU eviction
// and on explicit Unprepare; it is typically the owning adapter's
// Unprepare/DEALLOCATE call.
func NewConnectionHandle(kind EngineKind, designator string, cfg *ConnectionConfig, deallocate DeallocateFunc) *ConnectionHandle {
	return &ConnectionHandle{
		Kind:       kind,
		Designator: designator,
		Status:     StatusDisconnected,
		Cache:      NewPreparedStatementCache(cfg.cacheCapacity(), deallocate),
	}
}

// WithLock runs fn while holding the handle's mutex. Every mutating
// operation on a ConnectionHandle must go through this (or lock it
// directly) per the invariant in the data model.
func (h *ConnectionHandle) WithLock(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

// MarkConnected transitions the handle to Connected and records the
// native opaque and timestamp.
func (h *ConnectionHandle) MarkConnected(native interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.NativeConn = native
	h.Status = StatusConnected
	h.ConnectedSince = time.Now()
	h.ConsecutiveFails = 0
	h.Poisoned = false
}

// MarkFailed transitions the handle to Unhealthy and increments the
// consecutive-failure counter.
func (h *ConnectionHandle) MarkFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Status = StatusUnhealthy
	h.ConsecutiveFails++
}

// MarkDisconnected clears the native opaque and any active transaction.
func (h *ConnectionHandle) MarkDisconnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.NativeConn = nil
	h.Status = StatusDisconnected
	h.CurrentTx = nil
}

// IsConnected reports the current status, reading it under the handle's
// lock; callers must still take the lock before dereferencing NativeConn.
func (h *ConnectionHandle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Status == StatusConnected
}

// BeginLocalTx records a new active transaction. It fails if one is
// already active, preserving the at-most-one-active invariant.
func (h *ConnectionHandle) BeginLocalTx(tx *Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CurrentTx != nil && h.CurrentTx.Active {
		return fmt.Errorf("database: connection %s already has an active transaction", h.Designator)
	}
	h.CurrentTx = tx
	return nil
}

// EndLocalTx clears the active transaction marker.
func (h *ConnectionHandle) EndLocalTx() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CurrentTx != nil {
		h.CurrentTx.Active = false
	}
	h.CurrentTx = nil
}
