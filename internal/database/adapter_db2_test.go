package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB2AdapterNameAndKind(t *testing.T) {
	a := NewDB2Adapter()
	assert.Equal(t, "db2", a.Name())
	assert.Equal(t, EngineDB2, a.Kind())
}

func TestDB2BuildConnectionStringNilConfig(t *testing.T) {
	a := NewDB2Adapter()
	s, err := a.BuildConnectionString(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestDB2BuildConnectionStringUsesExplicitConnectionString(t *testing.T) {
	a := NewDB2Adapter()
	s, err := a.BuildConnectionString(&ConnectionConfig{ConnectionString: "DATABASE=explicit;"})
	require.NoError(t, err)
	assert.Equal(t, "DATABASE=explicit;", s)
}

func TestDB2BuildConnectionStringReturnsDatabaseFieldUnchanged(t *testing.T) {
	a := NewDB2Adapter()
	s, err := a.BuildConnectionString(&ConnectionConfig{
		Database: "SAMPLE", Host: "db2.internal", Username: "db2inst1", Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "SAMPLE", s)
}

func TestDB2KeywordDSNAssemblesFromConfig(t *testing.T) {
	dsn := db2KeywordDSN(&ConnectionConfig{
		Database: "SAMPLE", Host: "db2.internal", Username: "db2inst1", Password: "secret",
	})
	assert.Equal(t, "DATABASE=SAMPLE;HOSTNAME=db2.internal;PORT=50000;UID=db2inst1;PWD=secret;", dsn)
}

func TestDB2ValidateConnectionStringAcceptsAnyNonEmptyString(t *testing.T) {
	a := NewDB2Adapter()
	assert.True(t, a.ValidateConnectionString("DATABASE=SAMPLE;"))
	assert.True(t, a.ValidateConnectionString("anything"))
	assert.False(t, a.ValidateConnectionString(""))
}

func TestDB2EscapeIdentifierDoublesQuotes(t *testing.T) {
	a := NewDB2Adapter()
	s, err := a.EscapeIdentifier(nil, `we"ird`)
	require.NoError(t, err)
	assert.Equal(t, `"we""ird"`, s)
}

func TestDB2EscapeIdentifierRejectsWrongEngineHandle(t *testing.T) {
	a := NewDB2Adapter()
	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	_, err := a.EscapeIdentifier(h, "col")
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestDB2BuildConnectionStringEmptyConfigReturnsEmptyDatabase(t *testing.T) {
	a := NewDB2Adapter()
	s, err := a.BuildConnectionString(&ConnectionConfig{})
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestDB2ResetRejectsNilHandle(t *testing.T) {
	a := NewDB2Adapter()
	err := a.Reset(context.Background(), nil)
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestDB2DisconnectNilHandleIsNoop(t *testing.T) {
	a := NewDB2Adapter()
	assert.NoError(t, a.Disconnect(context.Background(), nil))
}

func TestDB2HealthCheckRejectsWrongKindOrNilHandle(t *testing.T) {
	a := NewDB2Adapter()
	assert.Error(t, a.HealthCheck(context.Background(), nil))

	h := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	assert.Error(t, a.HealthCheck(context.Background(), h))
}

func TestDB2ExecuteFailsWithoutEstablishedConnection(t *testing.T) {
	a := NewDB2Adapter()
	h := NewConnectionHandle(EngineDB2, "d", &ConnectionConfig{}, nil)
	result, err := a.Execute(context.Background(), h, &QueryRequest{SQL: "SELECT 1"})
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.False(t, result.Success)
}

func TestDB2PrepareRejectsInvalidArguments(t *testing.T) {
	a := NewDB2Adapter()
	h := NewConnectionHandle(EngineDB2, "d", &ConnectionConfig{}, nil)
	_, err := a.Prepare(context.Background(), h, "", "SELECT 1")
	assert.ErrorIs(t, err, ErrParameterInvalid)

	_, err = a.Prepare(context.Background(), h, "stmt1", "")
	assert.ErrorIs(t, err, ErrParameterInvalid)

	wrongKind := NewConnectionHandle(EngineMySQL, "d", &ConnectionConfig{}, nil)
	_, err = a.Prepare(context.Background(), wrongKind, "stmt1", "SELECT 1")
	assert.ErrorIs(t, err, ErrParameterInvalid)
}
