package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ibmdb/go_ibm_db"
)

// DB2Adapter implements EngineAdapter over database/sql using the IBM DB2
// CLI driver. DB2 connection strings are opaque "KEYWORD=value;..." strings
// (DATABASE=, HOSTNAME=, PORT=, UID=, PWD=, ...) rather than URLs, so unlike
// the other adapters there is no fixed prefix to validate against: any
// non-empty string is accepted, matching the source's permissive behavior
// around the one keyword (DATABASE=) it actually inspects.
type DB2Adapter struct{}

// NewDB2Adapter constructs the DB2 adapter.
func NewDB2Adapter() *DB2Adapter { return &DB2Adapter{} }

func (a *DB2Adapter) Name() string     { return "db2" }
func (a *DB2Adapter) Kind() EngineKind { return EngineDB2 }

func (a *DB2Adapter) Connect(ctx context.Context, cfg *ConnectionConfig) (*ConnectionHandle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil connection config", ErrParameterInvalid)
	}
	dsn := cfg.ConnectionString
	if dsn == "" {
		dsn = db2KeywordDSN(cfg)
	}
	if !a.ValidateConnectionString(dsn) {
		return nil, fmt.Errorf("%w: invalid db2 connection string", ErrParameterInvalid)
	}

	db, err := sql.Open("go_ibm_db", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: db2 open: %v", ErrConnectionLost, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg.TimeoutSeconds))
	defer cancel()
	conn, err := db.Conn(connectCtx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: db2 connect: %v", ErrConnectionLost, err)
	}
	if err := conn.PingContext(connectCtx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("%w: db2 ping: %v", ErrConnectionLost, err)
	}

	h := NewConnectionHandle(EngineDB2, fmt.Sprintf("DB-DB2-conn-%s", shortID()), cfg, a.deallocate)
	h.MarkConnected(&sqlNative{db: db, conn: conn})
	return h, nil
}

func (a *DB2Adapter) Disconnect(ctx context.Context, h *ConnectionHandle) error {
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

func (a *DB2Adapter) HealthCheck(ctx context.Context, h *ConnectionHandle) error {
	if h == nil || h.Kind != EngineDB2 {
		return fmt.Errorf("%w: handle is not a db2 connection", ErrParameterInvalid)
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

func (a *DB2Adapter) Reset(ctx context.Context, h *ConnectionHandle) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrParameterInvalid)
	}
	if h.CurrentTx != nil {
		_ = a.RollbackTx(ctx, h, h.CurrentTx)
	}
	return nil
}

func (a *DB2Adapter) Execute(ctx context.Context, h *ConnectionHandle, req *QueryRequest) (*QueryResult, error) {
	if h == nil || req == nil {
		return nil, fmt.Errorf("%w: nil handle or request", ErrParameterInvalid)
	}
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return &QueryResult{Success: false, ErrorMessage: "db2: connection not established"}, ErrConnectionLost
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

func (a *DB2Adapter) ExecutePrepared(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement, req *QueryRequest) (*QueryResult, error) {
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

func (a *DB2Adapter) BeginTx(ctx context.Context, h *ConnectionHandle, isolation string) (*Transaction, error) {
	n, ok := h.NativeConn.(*sqlNative)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: connection not established", ErrConnectionLost)
	}
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

func (a *DB2Adapter) CommitTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	sqlTx, ok := tx.EngineTxRef.(*sql.Tx)
	if !ok {
		return fmt.Errorf("%w: not a db2 transaction", ErrParameterInvalid)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBackendProtocol, err)
	}
	h.EndLocalTx()
	return nil
}

func (a *DB2Adapter) RollbackTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	sqlTx, ok := tx.EngineTxRef.(*sql.Tx)
	if !ok {
		return fmt.Errorf("%w: not a db2 transaction", ErrParameterInvalid)
	}
	err := sqlTx.Rollback()
	h.EndLocalTx()
	if err != nil {
		return fmt.Errorf("%w: rollback: %v", ErrBackendProtocol, err)
	}
	return nil
}

func (a *DB2Adapter) Prepare(ctx context.Context, h *ConnectionHandle, name, sqlText string) (*PreparedStatement, error) {
	if h == nil || h.Kind != EngineDB2 || name == "" || sqlText == "" {
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

func (a *DB2Adapter) Unprepare(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement) error {
	return h.Cache.Remove(ctx, stmt.Name)
}

func (a *DB2Adapter) deallocate(ctx context.Context, stmt *PreparedStatement) error {
	if sqlStmt, ok := stmt.Handle.(*sql.Stmt); ok && sqlStmt != nil {
		return sqlStmt.Close()
	}
	return nil
}

// BuildConnectionString returns the caller-supplied ConnectionString
// unchanged when set; otherwise it returns the Database field unchanged,
// same as SQLiteAdapter. DB2's keyword-string DSN is only assembled
// internally, by db2KeywordDSN, when actually opening a connection.
func (a *DB2Adapter) BuildConnectionString(cfg *ConnectionConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString, nil
	}
	return cfg.Database, nil
}

// db2KeywordDSN assembles the DB2 CLI keyword string used to actually open
// a connection when the caller hasn't supplied a full ConnectionString.
func db2KeywordDSN(cfg *ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 50000
	}
	return fmt.Sprintf("DATABASE=%s;HOSTNAME=%s;PORT=%d;UID=%s;PWD=%s;",
		cfg.Database, cfg.Host, port, cfg.Username, cfg.Password)
}

// ValidateConnectionString accepts any non-empty string, including one
// that is pure whitespace: DB2 CLI DSNs have no single required keyword
// this layer can check for without a real keyword parser.
func (a *DB2Adapter) ValidateConnectionString(s string) bool {
	return s != ""
}

// EscapeIdentifier doubles embedded double quotes, matching DB2's quoted
// identifier escaping rule.
func (a *DB2Adapter) EscapeIdentifier(h *ConnectionHandle, s string) (string, error) {
	if h != nil && h.Kind != EngineDB2 {
		return "", fmt.Errorf("%w: handle is not a db2 connection", ErrParameterInvalid)
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`, nil
}
