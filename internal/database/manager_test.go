package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLeadWithWorkers(t *testing.T, dbName string, queueTypes ...QueueType) (*DatabaseQueue, []*DatabaseQueue) {
	t.Helper()
	lead, err := NewLeadQueue(dbName, "conn", EnginePostgreSQL)
	require.NoError(t, err)

	workers := make([]*DatabaseQueue, 0, len(queueTypes))
	for _, qt := range queueTypes {
		w, err := NewWorkerQueue(dbName, "conn", EnginePostgreSQL, qt)
		require.NoError(t, err)
		require.NoError(t, lead.SpawnChild(w))
		workers = append(workers, w)
	}
	return lead, workers
}

func TestManagerRegisterAndLead(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, _ := newTestLeadWithWorkers(t, "primary")

	require.NoError(t, m.Register(lead))
	got, ok := m.Lead("primary")
	require.True(t, ok)
	assert.Same(t, lead, got)

	_, ok = m.Lead("missing")
	assert.False(t, ok)
}

func TestManagerRegisterRejectsNonLead(t *testing.T) {
	m := NewDatabaseQueueManager()
	worker, _ := NewWorkerQueue("primary", "conn", EnginePostgreSQL, QueueFast)

	err := m.Register(worker)
	assert.Error(t, err)
}

func TestManagerRegisterRejectsDuplicateDatabaseName(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead1, _ := newTestLeadWithWorkers(t, "primary")
	lead2, _ := newTestLeadWithWorkers(t, "primary")

	require.NoError(t, m.Register(lead1))
	err := m.Register(lead2)
	assert.Error(t, err)
}

func TestManagerSelectLowestDepthWins(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, workers := newTestLeadWithWorkers(t, "primary", QueueFast, QueueFast)
	require.NoError(t, m.Register(lead))

	require.NoError(t, workers[0].Enqueue(&QueryRequest{SQL: "a"}))
	require.NoError(t, workers[0].Enqueue(&QueryRequest{SQL: "b"}))
	require.NoError(t, workers[1].Enqueue(&QueryRequest{SQL: "c"}))

	selected, ok := m.Select("primary", QueueFast)
	require.True(t, ok)
	assert.Same(t, workers[1], selected)
}

func TestManagerSelectTieBreaksOnOldestLastRequestTime(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, workers := newTestLeadWithWorkers(t, "primary", QueueFast, QueueFast)
	require.NoError(t, m.Register(lead))

	now := time.Now()
	workers[0].touchLastRequestTime(now)
	workers[1].touchLastRequestTime(now.Add(-time.Minute))

	selected, ok := m.Select("primary", QueueFast)
	require.True(t, ok)
	assert.Same(t, workers[1], selected, "the queue with the older last_request_time should win the tie")
}

func TestManagerSelectReturnsFalseOnEmptyKeys(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, _ := newTestLeadWithWorkers(t, "primary", QueueFast)
	require.NoError(t, m.Register(lead))

	_, ok := m.Select("", QueueFast)
	assert.False(t, ok)
	_, ok = m.Select("primary", "")
	assert.False(t, ok)
	_, ok = m.Select("nonexistent", QueueFast)
	assert.False(t, ok)
}

func TestManagerDispatch(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, workers := newTestLeadWithWorkers(t, "primary", QueueFast)
	require.NoError(t, m.Register(lead))

	q, err := m.Dispatch(&QueryRequest{Database: "primary", QueueType: QueueFast, SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Same(t, workers[0], q)
	assert.Equal(t, 1, q.Depth())
	assert.False(t, q.LastRequestTime().IsZero())
}

func TestManagerDispatchNoMatchingQueue(t *testing.T) {
	m := NewDatabaseQueueManager()
	_, err := m.Dispatch(&QueryRequest{Database: "primary", QueueType: QueueFast})
	assert.Error(t, err)
}

func TestManagerCountByType(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, _ := newTestLeadWithWorkers(t, "primary", QueueFast, QueueSlow, QueueFast)
	require.NoError(t, m.Register(lead))

	counts := m.CountByType()
	assert.Equal(t, 1, counts[QueueLead])
	assert.Equal(t, 2, counts[QueueFast])
	assert.Equal(t, 1, counts[QueueSlow])
}

func TestManagerShutdown(t *testing.T) {
	m := NewDatabaseQueueManager()
	lead, workers := newTestLeadWithWorkers(t, "primary", QueueFast)
	require.NoError(t, m.Register(lead))

	m.Shutdown()
	assert.True(t, lead.ShutdownRequested)
	assert.True(t, workers[0].ShutdownRequested)
}
