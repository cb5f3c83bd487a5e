package database

import (
	"fmt"
	"sync"
	"time"
)

// DatabaseQueueManager owns the fleet of Lead queues and their spawned
// workers, keyed by database name.
type DatabaseQueueManager struct {
	mu    sync.RWMutex
	leads map[string]*DatabaseQueue
}

// NewDatabaseQueueManager constructs an empty manager.
func NewDatabaseQueueManager() *DatabaseQueueManager {
	return &DatabaseQueueManager{leads: make(map[string]*DatabaseQueue)}
}

// Register adds a Lead queue to the manager under its database name.
func (m *DatabaseQueueManager) Register(lead *DatabaseQueue) error {
	if lead == nil || !lead.IsLead {
		return fmt.Errorf("%w: only a lead queue may be registered", ErrParameterInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.leads[lead.DatabaseName]; exists {
		return fmt.Errorf("database: lead queue for %q already registered", lead.DatabaseName)
	}
	m.leads[lead.DatabaseName] = lead
	return nil
}

// Lead returns the registered Lead queue for a database.
func (m *DatabaseQueueManager) Lead(databaseName string) (*DatabaseQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.leads[databaseName]
	return q, ok
}

// allQueues returns every queue the manager knows about: every registered
// Lead plus its spawned children.
func (m *DatabaseQueueManager) allQueues() []*DatabaseQueue {
	m.mu.RLock()
	leads := make([]*DatabaseQueue, 0, len(m.leads))
	for _, l := range m.leads {
		leads = append(leads, l)
	}
	m.mu.RUnlock()

	all := make([]*DatabaseQueue, 0, len(leads)*2)
	for _, l := range leads {
		all = append(all, l)
		all = append(all, l.Children()...)
	}
	return all
}

// Select implements the lowest-depth-then-oldest-request algorithm: among
// every queue matching (databaseName, queueType), it returns the one with
// the smallest depth, breaking ties by the oldest last_request_time. It
// returns false when no queue matches. Null database name or queue type
// (the empty string) always yields no match.
func (m *DatabaseQueueManager) Select(databaseName string, queueType QueueType) (*DatabaseQueue, bool) {
	if databaseName == "" || queueType == "" {
		return nil, false
	}
	var best *DatabaseQueue
	var bestDepth int
	var bestTime time.Time

	for _, q := range m.allQueues() {
		if q.DatabaseName != databaseName || q.QueueType != queueType {
			continue
		}
		depth := q.Depth()
		lrt := q.LastRequestTime()
		if best == nil || depth < bestDepth || (depth == bestDepth && lrt.Before(bestTime)) {
			best = q
			bestDepth = depth
			bestTime = lrt
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Dispatch selects the best matching queue, enqueues req on it, and
// stamps its last_request_time as the current time. The selector is the
// sole writer of that timestamp.
func (m *DatabaseQueueManager) Dispatch(req *QueryRequest) (*DatabaseQueue, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrParameterInvalid)
	}
	q, ok := m.Select(req.Database, req.QueueType)
	if !ok {
		return nil, fmt.Errorf("database: no queue for database %q type %q", req.Database, req.QueueType)
	}
	if err := q.Enqueue(req); err != nil {
		return nil, err
	}
	q.touchLastRequestTime(time.Now())
	return q, nil
}

// QueueTypeCounts summarizes how many queues of each type are registered,
// across every database.
type QueueTypeCounts map[QueueType]int

// CountByType returns totals of queues per QueueType across the fleet.
func (m *DatabaseQueueManager) CountByType() QueueTypeCounts {
	counts := make(QueueTypeCounts)
	for _, q := range m.allQueues() {
		counts[q.QueueType]++
	}
	return counts
}

// Shutdown requests shutdown on every queue in the fleet.
func (m *DatabaseQueueManager) Shutdown() {
	for _, q := range m.allQueues() {
		q.RequestShutdown()
	}
}
