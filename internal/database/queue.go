package database

import (
	"fmt"
	"sync"
	"time"
)

// DatabaseQueue is a typed FIFO work queue for one database. Exactly one
// Lead queue exists per configured database; it owns the persistent
// heartbeat connection, the QTC, and the bootstrap flags, and spawns any
// number of typed worker queues as children. Worker queues carry a
// QueueType and process requests of that type only; they may not spawn
// children of their own.
type DatabaseQueue struct {
	IsLead           bool
	DatabaseName     string
	ConnectionString string // never logged unredacted; use MaskConnectionString
	Engine           EngineKind
	QueueType        QueueType
	Designator       string

	mu              sync.Mutex
	pending         []*QueryRequest
	depth           int
	lastRequestTime time.Time

	ShutdownRequested bool

	LastConnectionAttempt time.Time
	LastHeartbeat         time.Time

	// Lead-only fields.
	PersistentConn   *ConnectionHandle
	QTC              *QueryTableCache
	BootstrapCompleted    bool
	EmptyDatabase         bool
	OrphanedTableDropped  bool

	bootstrapMu          sync.Mutex
	initialConnAttempted bool
	initialConnOnce      sync.Once
	initialConnCh        chan struct{} // closed once, broadcasts initial-connection-attempted

	childrenMu sync.Mutex
	children   []*DatabaseQueue
}

// NewLeadQueue constructs the Lead queue for a database. Construction is
// staged so each stage can fail cleanly and roll back what came before:
// (1) required fields, (2) lead-only state, (3) the request FIFO (a plain
// slice guarded by mu; there is nothing to pre-allocate that can fail),
// (4) the lock/condition set, (5) final flags. In Go the only stage that
// can actually fail is validating the required fields, but the staging is
// kept explicit to mirror the source material and to give future stages
// (e.g. a bounded FIFO) a clear rollback point.
func NewLeadQueue(databaseName, connString string, engine EngineKind) (*DatabaseQueue, error) {
	if databaseName == "" || connString == "" {
		return nil, fmt.Errorf("%w: database name and connection string are required", ErrParameterInvalid)
	}
	q := &DatabaseQueue{
		IsLead:           true,
		DatabaseName:     databaseName,
		ConnectionString: connString,
		Engine:           engine,
		QueueType:        QueueLead,
		Designator:       fmt.Sprintf("DB-%s-%s-Lead", engine, databaseName),
		QTC:              NewQueryTableCache(),
		initialConnCh:    make(chan struct{}),
	}
	return q, nil
}

// NewWorkerQueue constructs a typed worker queue; it is attached to a lead
// separately with SpawnChild, which rejects a non-lead parent, an empty
// queueType, or a parent with shutdown in progress.
func NewWorkerQueue(databaseName, connString string, engine EngineKind, queueType QueueType) (*DatabaseQueue, error) {
	if databaseName == "" || connString == "" {
		return nil, fmt.Errorf("%w: database name and connection string are required", ErrParameterInvalid)
	}
	if queueType == "" {
		return nil, fmt.Errorf("%w: worker queue type is required", ErrParameterInvalid)
	}
	return &DatabaseQueue{
		IsLead:           false,
		DatabaseName:     databaseName,
		ConnectionString: connString,
		Engine:           engine,
		QueueType:        queueType,
		Designator:       fmt.Sprintf("DB-%s-%s-%s", engine, databaseName, queueType),
	}, nil
}

// SpawnChild attaches a worker queue as a child of a Lead queue.
func (q *DatabaseQueue) SpawnChild(child *DatabaseQueue) error {
	if q == nil || child == nil {
		return fmt.Errorf("%w: nil queue", ErrParameterInvalid)
	}
	if !q.IsLead {
		return fmt.Errorf("database: only a lead queue may spawn children")
	}
	if child.QueueType == "" {
		return fmt.Errorf("%w: child queue type is required", ErrParameterInvalid)
	}
	q.mu.Lock()
	shuttingDown := q.ShutdownRequested
	q.mu.Unlock()
	if shuttingDown {
		return fmt.Errorf("database: %s is shutting down, refusing new children", q.Designator)
	}

	q.childrenMu.Lock()
	defer q.childrenMu.Unlock()
	q.children = append(q.children, child)
	return nil
}

// Children returns a snapshot of the queue's spawned workers.
func (q *DatabaseQueue) Children() []*DatabaseQueue {
	q.childrenMu.Lock()
	defer q.childrenMu.Unlock()
	out := make([]*DatabaseQueue, len(q.children))
	copy(out, q.children)
	return out
}

// Enqueue appends a request to the FIFO and bumps the depth counter.
// Requests are rejected once shutdown has been requested; requests still
// pending at that point are not handed out by Dequeue.
func (q *DatabaseQueue) Enqueue(req *QueryRequest) error {
	if q == nil || req == nil {
		return fmt.Errorf("%w: nil queue or request", ErrParameterInvalid)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ShutdownRequested {
		return fmt.Errorf("database: %s is shutting down", q.Designator)
	}
	q.pending = append(q.pending, req)
	q.depth = len(q.pending)
	return nil
}

// Dequeue pops the oldest pending request, FIFO order preserved within
// this queue. It returns false when the queue is empty or once shutdown
// has been requested, even if requests remain pending; callers that
// already popped a request before shutdown was requested still run it to
// completion.
func (q *DatabaseQueue) Dequeue() (*QueryRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ShutdownRequested || len(q.pending) == 0 {
		return nil, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.depth = len(q.pending)
	return req, true
}

// Depth returns the current number of pending requests.
func (q *DatabaseQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// LastRequestTime returns the timestamp of the most recently dispatched
// request. The selector is the sole writer of this value; workers only
// read it.
func (q *DatabaseQueue) LastRequestTime() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastRequestTime
}

// touchLastRequestTime is called by the selector after a dispatch.
func (q *DatabaseQueue) touchLastRequestTime(t time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastRequestTime = t
}

// RequestShutdown short-circuits further Enqueue/Dequeue acceptance.
// In-flight requests already dequeued run to completion.
func (q *DatabaseQueue) RequestShutdown() {
	q.mu.Lock()
	q.ShutdownRequested = true
	q.mu.Unlock()
}
