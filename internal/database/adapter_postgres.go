package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresAdapter implements EngineAdapter against a live PostgreSQL
// server using pgx's native (non-database/sql) connection type. Each
// ConnectionHandle wraps exactly one *pgx.Conn; pooling of handles is the
// ConnectionPool's job, not the driver's, so pgxpool is deliberately not
// used here.
type PostgresAdapter struct{}

// NewPostgresAdapter constructs the PostgreSQL adapter.
func NewPostgresAdapter() *PostgresAdapter { return &PostgresAdapter{} }

func (a *PostgresAdapter) Name() string     { return "postgresql" }
func (a *PostgresAdapter) Kind() EngineKind { return EnginePostgreSQL }

func (a *PostgresAdapter) Connect(ctx context.Context, cfg *ConnectionConfig) (*ConnectionHandle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil connection config", ErrParameterInvalid)
	}
	connString, err := a.BuildConnectionString(cfg)
	if err != nil {
		return nil, err
	}
	timeout := connectTimeout(cfg.TimeoutSeconds)
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.Connect(connectCtx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: postgresql connect: %v", ErrConnectionLost, err)
	}

	// deallocate closes over this specific *pgx.Conn: DeallocateFunc carries
	// no connection reference of its own, and DEALLOCATE must run against
	// the same backend connection that issued the PREPARE.
	deallocate := func(ctx context.Context, stmt *PreparedStatement) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("DEALLOCATE %s", stmt.Name))
		return err
	}
	h := NewConnectionHandle(EnginePostgreSQL, fmt.Sprintf("DB-POSTGRES-conn-%s", shortID()), cfg, deallocate)
	h.MarkConnected(conn)
	return h, nil
}

func (a *PostgresAdapter) Disconnect(ctx context.Context, h *ConnectionHandle) error {
	if h == nil {
		return nil
	}
	var err error
	h.WithLock(func() {
		if conn, ok := h.NativeConn.(*pgx.Conn); ok && conn != nil {
			err = conn.Close(ctx)
		}
	})
	h.MarkDisconnected()
	return err
}

func (a *PostgresAdapter) HealthCheck(ctx context.Context, h *ConnectionHandle) error {
	if h == nil || h.Kind != EnginePostgreSQL {
		return fmt.Errorf("%w: handle is not a postgresql connection", ErrParameterInvalid)
	}
	conn, ok := h.NativeConn.(*pgx.Conn)
	if !ok || conn == nil {
		return fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	if err := conn.Ping(ctx); err != nil {
		h.MarkFailed()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	h.mu.Lock()
	h.LastHealthCheck = time.Now()
	h.mu.Unlock()
	return nil
}

func (a *PostgresAdapter) Reset(ctx context.Context, h *ConnectionHandle) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrParameterInvalid)
	}
	if h.CurrentTx != nil {
		_ = a.RollbackTx(ctx, h, h.CurrentTx)
	}
	return nil
}

func (a *PostgresAdapter) Execute(ctx context.Context, h *ConnectionHandle, req *QueryRequest) (*QueryResult, error) {
	if h == nil || req == nil {
		return nil, fmt.Errorf("%w: nil handle or request", ErrParameterInvalid)
	}
	conn, ok := h.NativeConn.(*pgx.Conn)
	if !ok || conn == nil {
		return &QueryResult{Success: false, ErrorMessage: "postgresql: connection not established"}, ErrConnectionLost
	}

	start := time.Now()
	execCtx, cancel := withRequestTimeout(ctx, req.TimeoutSeconds)
	defer cancel()

	rows, err := conn.Query(execCtx, req.SQL)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	defer rows.Close()

	result, err := rowsToResult(rows.FieldDescriptions(), rows)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	result.ExecutionTime = time.Since(start)
	result.Success = true
	result.AffectedRows = rows.CommandTag().RowsAffected()
	return result, nil
}

func (a *PostgresAdapter) ExecutePrepared(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement, req *QueryRequest) (*QueryResult, error) {
	if h == nil || stmt == nil || req == nil {
		return nil, fmt.Errorf("%w: nil handle, statement or request", ErrParameterInvalid)
	}
	conn, ok := h.NativeConn.(*pgx.Conn)
	if !ok || conn == nil {
		return &QueryResult{Success: false, ErrorMessage: "postgresql: connection not established"}, ErrConnectionLost
	}
	start := time.Now()
	execCtx, cancel := withRequestTimeout(ctx, req.TimeoutSeconds)
	defer cancel()

	rows, err := conn.Query(execCtx, stmt.Name)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	defer rows.Close()
	stmt.UsageCount++

	result, err := rowsToResult(rows.FieldDescriptions(), rows)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	result.ExecutionTime = time.Since(start)
	result.Success = true
	return result, nil
}

func (a *PostgresAdapter) BeginTx(ctx context.Context, h *ConnectionHandle, isolation string) (*Transaction, error) {
	conn, ok := h.NativeConn.(*pgx.Conn)
	if !ok || conn == nil {
		return nil, fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(strings.ToLower(isolation))})
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrBackendProtocol, err)
	}
	t := &Transaction{ID: shortID(), Isolation: isolation, StartedAt: time.Now(), Active: true, EngineTxRef: tx}
	if err := h.BeginLocalTx(t); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return t, nil
}

func (a *PostgresAdapter) CommitTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	pgTx, ok := tx.EngineTxRef.(pgx.Tx)
	if !ok {
		return fmt.Errorf("%w: not a postgresql transaction", ErrParameterInvalid)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBackendProtocol, err)
	}
	h.EndLocalTx()
	return nil
}

func (a *PostgresAdapter) RollbackTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	pgTx, ok := tx.EngineTxRef.(pgx.Tx)
	if !ok {
		return fmt.Errorf("%w: not a postgresql transaction", ErrParameterInvalid)
	}
	err := pgTx.Rollback(ctx)
	h.EndLocalTx()
	if err != nil {
		return fmt.Errorf("%w: rollback: %v", ErrBackendProtocol, err)
	}
	return nil
}

func (a *PostgresAdapter) Prepare(ctx context.Context, h *ConnectionHandle, name, sql string) (*PreparedStatement, error) {
	if h == nil || h.Kind != EnginePostgreSQL || name == "" || sql == "" {
		return nil, fmt.Errorf("%w: invalid prepare arguments", ErrParameterInvalid)
	}
	conn, ok := h.NativeConn.(*pgx.Conn)
	if !ok || conn == nil {
		return nil, fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	desc, err := conn.Prepare(ctx, name, sql)
	if err != nil {
		return nil, fmt.Errorf("%w: PREPARE %s: %v", ErrBackendProtocol, name, err)
	}
	stmt := &PreparedStatement{Name: name, SQL: sql, CreatedAt: time.Now(), Handle: desc}
	if err := h.Cache.Insert(ctx, stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (a *PostgresAdapter) Unprepare(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement) error {
	return h.Cache.Remove(ctx, stmt.Name)
}

func (a *PostgresAdapter) BuildConnectionString(cfg *ConnectionConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString, nil
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = "postgres"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", cfg.Username, cfg.Password, host, port, dbName), nil
}

// ValidateConnectionString requires the case-sensitive "postgresql://"
// prefix; the bare prefix with nothing following is accepted.
func (a *PostgresAdapter) ValidateConnectionString(s string) bool {
	return strings.HasPrefix(s, "postgresql://")
}

func (a *PostgresAdapter) EscapeIdentifier(h *ConnectionHandle, s string) (string, error) {
	if h != nil && h.Kind != EnginePostgreSQL {
		return "", fmt.Errorf("%w: handle is not a postgresql connection", ErrParameterInvalid)
	}
	return pgx.Identifier{s}.Sanitize(), nil
}

func connectTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func withRequestTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// shortID generates the short unique suffix connection handle designators
// carry: the first eight hex characters of a random UUID. It is not
// sortable or time-derived, and collisions are unlikely but not ruled out.
func shortID() string {
	return uuid.New().String()[:8]
}
