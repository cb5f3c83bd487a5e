package database

import "time"

// EngineKind is the closed enumeration of backend engines the subsystem can
// dispatch to. AI is a reserved sentinel for a future non-SQL engine that
// shares the adapter contract; no adapter registers under it today.
type EngineKind int

const (
	EngineUnknown EngineKind = iota
	EnginePostgreSQL
	EngineMySQL
	EngineSQLite
	EngineDB2
	EngineAI
)

// String renders the engine kind the way it shows up in designators and
// log lines (upper-cased, matching the teacher's DB-<ENGINE>-... convention).
func (k EngineKind) String() string {
	switch k {
	case EnginePostgreSQL:
		return "POSTGRES"
	case EngineMySQL:
		return "MYSQL"
	case EngineSQLite:
		return "SQLITE"
	case EngineDB2:
		return "DB2"
	case EngineAI:
		return "AI"
	default:
		return "UNKNOWN"
	}
}

// QueueType names one of the typed worker queues a Lead queue can spawn.
type QueueType string

const (
	QueueLead   QueueType = "Lead"
	QueueSlow   QueueType = "slow"
	QueueMedium QueueType = "medium"
	QueueFast   QueueType = "fast"
	QueueCache  QueueType = "cache"
)

// queueTypeFromInt maps a bootstrap row's numeric queue field (1..4) to a
// QueueType. Anything outside the known set maps to QueueSlow; this is a
// documented quirk carried over from the original bootstrap payload format.
func queueTypeFromInt(n int) QueueType {
	switch n {
	case 1:
		return QueueFast
	case 2:
		return QueueMedium
	case 3:
		return QueueSlow
	case 4:
		return QueueCache
	default:
		return QueueSlow
	}
}

// ConnectionStatus is the lifecycle state of a ConnectionHandle.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusUnhealthy
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ConnectionConfig is the engine-agnostic set of fields used to build or
// validate a connection string and to size a connection's prepared
// statement cache.
type ConnectionConfig struct {
	Host             string
	Port             int
	Database         string
	Username         string
	Password         string
	ConnectionString string // takes precedence over the discrete fields when set
	TimeoutSeconds   int
	SSL              bool
	SSLCertPath      string
	SSLKeyPath       string
	CacheCapacity    int // <= 0 means default (1000)
}

// cacheCapacity returns the configured prepared-statement cache capacity,
// substituting the default when unset or non-positive.
func (c *ConnectionConfig) cacheCapacity() int {
	if c == nil || c.CacheCapacity <= 0 {
		return defaultCacheCapacity
	}
	return c.CacheCapacity
}

const defaultCacheCapacity = 1000

// PreparedStatement is a server-side prepared statement bound to exactly
// one connection. The same logical query prepared on two connections
// yields two distinct PreparedStatement values.
type PreparedStatement struct {
	Name       string
	SQL        string
	CreatedAt  time.Time
	UsageCount uint64
	Handle     interface{} // engine-specific prepared handle, opaque to the core
}

// Transaction describes a single in-flight transaction. At most one may be
// active on a ConnectionHandle at a time.
type Transaction struct {
	ID          string
	Isolation   string
	StartedAt   time.Time
	Active      bool
	EngineTxRef interface{}
}

// QueryRequest is what a caller submits to the subsystem.
type QueryRequest struct {
	QueryID        string
	Database       string
	QueueType      QueueType
	QueryRef       int    // looked up in the QTC when >0
	SQL            string // used verbatim when QueryRef == 0
	PreparedName   string
	Parameters     map[string]interface{}
	TimeoutSeconds int
	Isolation      string
	SubmittedAt    time.Time
}

// QueryResult is returned for every executed request, success or failure.
type QueryResult struct {
	Success       bool
	Rows          string // canonical JSON array-of-objects
	RowCount      int
	ColumnCount   int
	AffectedRows  int64
	ErrorMessage  string
	ExecutionTime time.Duration
}

// QueryCacheEntry is one parameterized query template held in a database's
// Query Template Cache.
type QueryCacheEntry struct {
	QueryRef    int
	QueryType   int
	SQL         string
	Description string
	QueueType   QueueType
	Timeout     int
	UsageCount  uint64
}
