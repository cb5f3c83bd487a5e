package database

import (
	"context"
	"time"

	"hydrogen.dev/dbsubsystem/internal/logging"
)

// HeartbeatInterval is the default period between heartbeat checks.
const HeartbeatInterval = 5 * time.Second

// RunHeartbeat runs the Lead queue's heartbeat loop until ctx is
// cancelled or shutdown is requested. Each tick it checks the persistent
// connection's health, detects a poisoned handle, tears down and
// reconnects on failure, and on success replaces PersistentConn and
// records LastHeartbeat. It blocks, so callers run it in its own
// goroutine.
func (q *DatabaseQueue) RunHeartbeat(ctx context.Context, adapter EngineAdapter, cfg *ConnectionConfig, log *logging.Logger) {
	if !q.IsLead {
		return
	}
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.mu.Lock()
			shuttingDown := q.ShutdownRequested
			q.mu.Unlock()
			if shuttingDown {
				return
			}
			q.heartbeatTick(ctx, adapter, cfg, log)
		}
	}
}

// heartbeatTick performs one check-and-reconnect cycle.
func (q *DatabaseQueue) heartbeatTick(ctx context.Context, adapter EngineAdapter, cfg *ConnectionConfig, log *logging.Logger) {
	masked := MaskConnectionString(q.ConnectionString)

	if adapter == nil || q.ConnectionString == "" {
		q.LastConnectionAttempt = time.Now()
		if log != nil {
			log.Warn("%s: heartbeat cannot determine engine for %s", q.Designator, masked)
		}
		return
	}

	q.LastConnectionAttempt = time.Now()

	if q.PersistentConn != nil && q.PersistentConn.Poisoned {
		if log != nil {
			log.Error("%s: detected corrupted connection state for %s, tearing down", q.Designator, masked)
		}
		_ = adapter.Disconnect(ctx, q.PersistentConn)
		q.PersistentConn = nil
	}

	if q.PersistentConn != nil {
		if err := adapter.HealthCheck(ctx, q.PersistentConn); err == nil {
			q.LastHeartbeat = time.Now()
			return
		}
		if log != nil {
			log.Warn("%s: health check failed for %s, reconnecting", q.Designator, masked)
		}
		_ = adapter.Disconnect(ctx, q.PersistentConn)
		q.PersistentConn = nil
	}

	conn, err := adapter.Connect(ctx, cfg)
	if err != nil {
		if log != nil {
			log.Error("%s: reconnect failed for %s: %v", q.Designator, masked, err)
		}
		q.markInitialConnectionAttempted()
		return
	}

	q.PersistentConn = conn
	q.LastHeartbeat = time.Now()
	q.markInitialConnectionAttempted()

	if !q.bootstrapAttempted() {
		if err := q.Bootstrap(ctx, adapter, conn, bootstrapQuery); err != nil && log != nil {
			log.Warn("%s: bootstrap reported %v (bootstrap still completes)", q.Designator, err)
		}
	}
}

// markInitialConnectionAttempted flips the one-shot flag that
// WaitForInitialConnection waits on and broadcasts it by closing
// initialConnCh. Closing a channel wakes every blocked waiter at once,
// which is the idiomatic Go stand-in for the source's bootstrap_cond
// broadcast; it is safe to call more than once thanks to sync.Once.
func (q *DatabaseQueue) markInitialConnectionAttempted() {
	q.bootstrapMu.Lock()
	q.initialConnAttempted = true
	q.bootstrapMu.Unlock()
	q.initialConnOnce.Do(func() { close(q.initialConnCh) })
}

// WaitForInitialConnection blocks until the Lead queue has attempted its
// first connection (successful or not) or until timeout elapses.
// Non-lead and nil queues return true immediately, matching the source
// behavior of treating "nothing to wait for" as success. On timeout the
// function returns false without panicking; it does not itself set
// LastConnectionAttempt, which stays zero if no heartbeat tick has run.
func (q *DatabaseQueue) WaitForInitialConnection(timeout time.Duration) bool {
	if q == nil || !q.IsLead {
		return true
	}
	select {
	case <-q.initialConnCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (q *DatabaseQueue) bootstrapAttempted() bool {
	q.bootstrapMu.Lock()
	defer q.bootstrapMu.Unlock()
	return q.BootstrapCompleted
}
