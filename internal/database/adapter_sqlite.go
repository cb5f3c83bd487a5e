package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteAdapter implements EngineAdapter over database/sql using the
// mattn/go-sqlite3 driver. SQLite has no user/password/host concept, so
// the file to open comes from ConnectionConfig.ConnectionString (a
// filesystem path or ":memory:"), falling back to the Database field.
type SQLiteAdapter struct{}

// NewSQLiteAdapter constructs the SQLite adapter.
func NewSQLiteAdapter() *SQLiteAdapter { return &SQLiteAdapter{} }

func (a *SQLiteAdapter) Name() string     { return "sqlite" }
func (a *SQLiteAdapter) Kind() EngineKind { return EngineSQLite }

func (a *SQLiteAdapter) Connect(ctx context.Context, cfg *ConnectionConfig) (*ConnectionHandle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil connection config", ErrParameterInvalid)
	}
	path, err := a.BuildConnectionString(cfg)
	if err != nil {
		return nil, err
	}
	if !a.ValidateConnectionString(path) {
		return nil, fmt.Errorf("%w: invalid sqlite path", ErrParameterInvalid)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite open: %v", ErrConnectionLost, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg.TimeoutSeconds))
	defer cancel()
	conn, err := db.Conn(connectCtx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite connect: %v", ErrConnectionLost, err)
	}
	if err := conn.PingContext(connectCtx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("%w: sqlite ping: %v", ErrConnectionLost, err)
	}

	h := NewConnectionHandle(EngineSQLite, fmt.Sprintf("DB-SQLITE-conn-%s", shortID()), cfg, a.deallocate)
	h.MarkConnected(&sqlNative{db: db, conn: conn})
	return h, nil
}

func (a *SQLiteAdapter) Disconnect(ctx context.Context, h *ConnectionHandle) error {
	if h == nil {
		return nil
	}
	var err error
	h.WithLock(func() {
		if n, ok := h.NativeConn.(*sqlNative); ok && n != nil {
			if cerr := n.conn.Close(); cerr != nil {
				err = cerr
			}
			_ = n.db.Close()
		}
	})
	h.MarkDisconnected()
	return err
}

func (a *SQLiteAdapter) HealthCheck(ctx context.Context, h *ConnectionHandle) error {
	if h == nil || h.Kind != EngineSQLite {
		return fmt.Errorf("%w: handle is not a sqlite connection", ErrParameterInvalid)
	}
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	if err := n.conn.PingContext(ctx); err != nil {
		h.MarkFailed()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	h.mu.Lock()
	h.LastHealthCheck = time.Now()
	h.mu.Unlock()
	return nil
}

func (a *SQLiteAdapter) Reset(ctx context.Context, h *ConnectionHandle) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrParameterInvalid)
	}
	if h.CurrentTx != nil {
		_ = a.RollbackTx(ctx, h, h.CurrentTx)
	}
	return nil
}

func (a *SQLiteAdapter) Execute(ctx context.Context, h *ConnectionHandle, req *QueryRequest) (*QueryResult, error) {
	if h == nil || req == nil {
		return nil, fmt.Errorf("%w: nil handle or request", ErrParameterInvalid)
	}
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return &QueryResult{Success: false, ErrorMessage: "sqlite: connection not established"}, ErrConnectionLost
	}
	start := time.Now()
	execCtx, cancel := withRequestTimeout(ctx, req.TimeoutSeconds)
	defer cancel()

	if isSelectLike(req.SQL) {
		rows, err := n.conn.QueryContext(execCtx, req.SQL)
		if err != nil {
			return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
		}
		defer rows.Close()
		result, err := sqlRowsToResult(rows)
		if err != nil {
			return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
		}
		result.Success = true
		result.ExecutionTime = time.Since(start)
		return result, nil
	}

	res, err := n.conn.ExecContext(execCtx, req.SQL)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	affected, _ := res.RowsAffected()
	return &QueryResult{Success: true, Rows: "[]", AffectedRows: affected, ExecutionTime: time.Since(start)}, nil
}

func (a *SQLiteAdapter) ExecutePrepared(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement, req *QueryRequest) (*QueryResult, error) {
	if h == nil || stmt == nil || req == nil {
		return nil, fmt.Errorf("%w: nil handle, statement or request", ErrParameterInvalid)
	}
	sqlStmt, ok := stmt.Handle.(*sql.Stmt)
	if !ok || sqlStmt == nil {
		return nil, fmt.Errorf("%w: statement not prepared", ErrBackendProtocol)
	}
	start := time.Now()
	execCtx, cancel := withRequestTimeout(ctx, req.TimeoutSeconds)
	defer cancel()

	rows, err := sqlStmt.QueryContext(execCtx)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	defer rows.Close()
	stmt.UsageCount++

	result, err := sqlRowsToResult(rows)
	if err != nil {
		return &QueryResult{Success: false, ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, nil
	}
	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (a *SQLiteAdapter) BeginTx(ctx context.Context, h *ConnectionHandle, isolation string) (*Transaction, error) {
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	// SQLite has no isolation-level concept beyond its single writer lock;
	// the requested isolation string is recorded but not passed to the driver.
	tx, err := n.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrBackendProtocol, err)
	}
	t := &Transaction{ID: shortID(), Isolation: isolation, StartedAt: time.Now(), Active: true, EngineTxRef: tx}
	if err := h.BeginLocalTx(t); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return t, nil
}

func (a *SQLiteAdapter) CommitTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	sqlTx, ok := tx.EngineTxRef.(*sql.Tx)
	if !ok {
		return fmt.Errorf("%w: not a sqlite transaction", ErrParameterInvalid)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBackendProtocol, err)
	}
	h.EndLocalTx()
	return nil
}

func (a *SQLiteAdapter) RollbackTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	sqlTx, ok := tx.EngineTxRef.(*sql.Tx)
	if !ok {
		return fmt.Errorf("%w: not a sqlite transaction", ErrParameterInvalid)
	}
	err := sqlTx.Rollback()
	h.EndLocalTx()
	if err != nil {
		return fmt.Errorf("%w: rollback: %v", ErrBackendProtocol, err)
	}
	return nil
}

func (a *SQLiteAdapter) Prepare(ctx context.Context, h *ConnectionHandle, name, sqlText string) (*PreparedStatement, error) {
	if h == nil || h.Kind != EngineSQLite || name == "" || sqlText == "" {
		return nil, fmt.Errorf("%w: invalid prepare arguments", ErrParameterInvalid)
	}
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
	prepared, err := n.conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("%w: PREPARE %s: %v", ErrBackendProtocol, name, err)
	}
	stmt := &PreparedStatement{Name: name, SQL: sqlText, CreatedAt: time.Now(), Handle: prepared}
	if err := h.Cache.Insert(ctx, stmt); err != nil {
		prepared.Close()
		return nil, err
	}
	return stmt, nil
}

func (a *SQLiteAdapter) Unprepare(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement) error {
	return h.Cache.Remove(ctx, stmt.Name)
}

func (a *SQLiteAdapter) deallocate(ctx context.Context, stmt *PreparedStatement) error {
	if sqlStmt, ok := stmt.Handle.(*sql.Stmt); ok && sqlStmt != nil {
		return sqlStmt.Close()
	}
	return nil
}

// BuildConnectionString returns the filesystem path (or ":memory:")
// unchanged: SQLite has no URL form to assemble from host/port/credentials.
func (a *SQLiteAdapter) BuildConnectionString(cfg *ConnectionConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString, nil
	}
	if cfg.Database != "" {
		return cfg.Database, nil
	}
	return "", fmt.Errorf("%w: sqlite requires a file path or connection string", ErrConfigMissing)
}

// ValidateConnectionString accepts any non-empty path, including ":memory:".
// Unlike the URL-based engines there is no prefix to check.
func (a *SQLiteAdapter) ValidateConnectionString(s string) bool {
	return s != ""
}

// EscapeIdentifier doubles embedded single quotes, SQLite's own
// escape_string rule for string literals. Empty input yields empty output.
func (a *SQLiteAdapter) EscapeIdentifier(h *ConnectionHandle, s string) (string, error) {
	if h != nil && h.Kind != EngineSQLite {
		return "", fmt.Errorf("%w: handle is not a sqlite connection", ErrParameterInvalid)
	}
	return strings.ReplaceAll(s, `'`, `''`), nil
}
