package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLAdapterNameAndKind(t *testing.T) {
	a := NewMySQLAdapter()
	assert.Equal(t, "mysql", a.Name())
	assert.Equal(t, EngineMySQL, a.Kind())
}

func TestMySQLBuildConnectionStringNilConfig(t *testing.T) {
	a := NewMySQLAdapter()
	s, err := a.BuildConnectionString(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestMySQLBuildConnectionStringUsesExplicitConnectionString(t *testing.T) {
	a := NewMySQLAdapter()
	s, err := a.BuildConnectionString(&ConnectionConfig{ConnectionString: "mysql://explicit"})
	require.NoError(t, err)
	assert.Equal(t, "mysql://explicit", s)
}

func TestMySQLBuildConnectionStringDefaults(t *testing.T) {
	a := NewMySQLAdapter()
	s, err := a.BuildConnectionString(&ConnectionConfig{Username: "root", Password: "pw", Database: "app"})
	require.NoError(t, err)
	assert.Equal(t, "mysql://root:pw@localhost:3306/app", s)
}

func TestMySQLValidateConnectionString(t *testing.T) {
	a := NewMySQLAdapter()
	assert.True(t, a.ValidateConnectionString("mysql://localhost/db"))
	assert.False(t, a.ValidateConnectionString("postgresql://localhost/db"))
}

func TestMySQLEscapeIdentifierBackticksAndDoubles(t *testing.T) {
	a := NewMySQLAdapter()
	s, err := a.EscapeIdentifier(nil, "weird`col")
	require.NoError(t, err)
	assert.Equal(t, "`weird``col`", s)
}

func TestMySQLEscapeIdentifierRejectsWrongEngineHandle(t *testing.T) {
	a := NewMySQLAdapter()
	h := NewConnectionHandle(EnginePostgreSQL, "d", &ConnectionConfig{}, nil)
	_, err := a.EscapeIdentifier(h, "col")
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestMySQLDSNFromURL(t *testing.T) {
	dsn := mysqlDSNFromURL("mysql://root:pw@db.internal:3306/app")
	assert.Equal(t, "root:pw@tcp(db.internal:3306)/app", dsn)
}

func TestMySQLDSNFromURLNoCredentials(t *testing.T) {
	dsn := mysqlDSNFromURL("mysql://localhost:3306/app")
	assert.Equal(t, "localhost:3306/app", dsn, "no '@' means nothing is rewritten into tcp() form")
}

func TestMySQLIsolation(t *testing.T) {
	assert.Equal(t, sql.LevelReadCommitted, mysqlIsolation("Read Committed"))
	assert.Equal(t, sql.LevelRepeatableRead, mysqlIsolation("repeatable read"))
	assert.Equal(t, sql.LevelSerializable, mysqlIsolation("SERIALIZABLE"))
	assert.Equal(t, sql.LevelDefault, mysqlIsolation("bogus"))
}

func TestIsSelectLike(t *testing.T) {
	assert.True(t, isSelectLike("select * from t"))
	assert.True(t, isSelectLike("  SHOW TABLES"))
	assert.True(t, isSelectLike("with cte as (select 1) select * from cte"))
	assert.False(t, isSelectLike("INSERT INTO t VALUES (1)"))
	assert.False(t, isSelectLike("UPDATE t SET x=1"))
}

func TestMySQLResetRejectsNilHandle(t *testing.T) {
	a := NewMySQLAdapter()
	err := a.Reset(context.Background(), nil)
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestMySQLDisconnectNilHandleIsNoop(t *testing.T) {
	a := NewMySQLAdapter()
	assert.NoError(t, a.Disconnect(context.Background(), nil))
}

func TestMySQLHealthCheckRejectsWrongKindOrNilHandle(t *testing.T) {
	a := NewMySQLAdapter()
	assert.Error(t, a.HealthCheck(context.Background(), nil))

	h := NewConnectionHandle(EnginePostgreSQL, "d", &ConnectionConfig{}, nil)
	assert.Error(t, a.HealthCheck(context.Background(), h))
}

func TestMySQLHealthCheckRejectsUnestablishedConnection(t *testing.T) {
	a := NewMySQLAdapter()
	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	err := a.HealthCheck(context.Background(), h)
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestMySQLExecuteRejectsNilArgs(t *testing.T) {
	a := NewMySQLAdapter()
	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	_, err := a.Execute(context.Background(), nil, &QueryRequest{})
	assert.ErrorIs(t, err, ErrParameterInvalid)

	_, err = a.Execute(context.Background(), h, nil)
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestMySQLExecuteFailsWithoutEstablishedConnection(t *testing.T) {
	a := NewMySQLAdapter()
	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	result, err := a.Execute(context.Background(), h, &QueryRequest{SQL: "SELECT 1"})
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.False(t, result.Success)
}

func TestMySQLPrepareRejectsInvalidArguments(t *testing.T) {
	a := NewMySQLAdapter()
	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	_, err := a.Prepare(context.Background(), h, "", "SELECT 1")
	assert.ErrorIs(t, err, ErrParameterInvalid)

	_, err = a.Prepare(context.Background(), h, "stmt1", "")
	assert.ErrorIs(t, err, ErrParameterInvalid)

	wrongKind := NewConnectionHandle(EnginePostgreSQL, "d", &ConnectionConfig{}, nil)
	_, err = a.Prepare(context.Background(), wrongKind, "stmt1", "SELECT 1")
	assert.ErrorIs(t, err, ErrParameterInvalid)
}
