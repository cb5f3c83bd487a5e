package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockAdapter is a testify/mock-based EngineAdapter stand-in shared by this
// package's tests, so queue/manager/heartbeat/migration logic can be
// exercised without a live backend.
type mockAdapter struct {
	mock.Mock
	kind EngineKind
	name string
}

func newMockAdapter(kind EngineKind, name string) *mockAdapter {
	return &mockAdapter{kind: kind, name: name}
}

func (m *mockAdapter) Name() string     { return m.name }
func (m *mockAdapter) Kind() EngineKind { return m.kind }

func (m *mockAdapter) Connect(ctx context.Context, cfg *ConnectionConfig) (*ConnectionHandle, error) {
	args := m.Called(ctx, cfg)
	h, _ := args.Get(0).(*ConnectionHandle)
	return h, args.Error(1)
}

func (m *mockAdapter) Disconnect(ctx context.Context, h *ConnectionHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *mockAdapter) HealthCheck(ctx context.Context, h *ConnectionHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *mockAdapter) Reset(ctx context.Context, h *ConnectionHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *mockAdapter) Execute(ctx context.Context, h *ConnectionHandle, req *QueryRequest) (*QueryResult, error) {
	args := m.Called(ctx, h, req)
	r, _ := args.Get(0).(*QueryResult)
	return r, args.Error(1)
}

func (m *mockAdapter) ExecutePrepared(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement, req *QueryRequest) (*QueryResult, error) {
	args := m.Called(ctx, h, stmt, req)
	r, _ := args.Get(0).(*QueryResult)
	return r, args.Error(1)
}

func (m *mockAdapter) BeginTx(ctx context.Context, h *ConnectionHandle, isolation string) (*Transaction, error) {
	args := m.Called(ctx, h, isolation)
	tx, _ := args.Get(0).(*Transaction)
	return tx, args.Error(1)
}

func (m *mockAdapter) CommitTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	args := m.Called(ctx, h, tx)
	return args.Error(0)
}

func (m *mockAdapter) RollbackTx(ctx context.Context, h *ConnectionHandle, tx *Transaction) error {
	args := m.Called(ctx, h, tx)
	return args.Error(0)
}

func (m *mockAdapter) Prepare(ctx context.Context, h *ConnectionHandle, name, sql string) (*PreparedStatement, error) {
	args := m.Called(ctx, h, name, sql)
	s, _ := args.Get(0).(*PreparedStatement)
	return s, args.Error(1)
}

func (m *mockAdapter) Unprepare(ctx context.Context, h *ConnectionHandle, stmt *PreparedStatement) error {
	args := m.Called(ctx, h, stmt)
	return args.Error(0)
}

func (m *mockAdapter) BuildConnectionString(cfg *ConnectionConfig) (string, error) {
	args := m.Called(cfg)
	return args.String(0), args.Error(1)
}

func (m *mockAdapter) ValidateConnectionString(s string) bool {
	args := m.Called(s)
	return args.Bool(0)
}

func (m *mockAdapter) EscapeIdentifier(h *ConnectionHandle, s string) (string, error) {
	args := m.Called(h, s)
	return args.String(0), args.Error(1)
}
