package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRegistryRegisterAndGetByKind(t *testing.T) {
	r := NewEngineRegistry()
	a := newMockAdapter(EnginePostgreSQL, "postgresql")

	require.NoError(t, r.Register(a))

	got, ok := r.GetByKind(EnginePostgreSQL)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.GetByKind(EngineMySQL)
	assert.False(t, ok)
}

func TestEngineRegistryRejectsNilAdapter(t *testing.T) {
	r := NewEngineRegistry()
	err := r.Register(nil)
	assert.Error(t, err)
}

func TestEngineRegistryRejectsUninitialized(t *testing.T) {
	r := &EngineRegistry{}
	err := r.Register(newMockAdapter(EnginePostgreSQL, "postgresql"))
	assert.Error(t, err)
}

func TestEngineRegistryRejectsDoubleRegistration(t *testing.T) {
	r := NewEngineRegistry()
	require.NoError(t, r.Register(newMockAdapter(EnginePostgreSQL, "postgresql")))

	err := r.Register(newMockAdapter(EnginePostgreSQL, "postgresql-again"))
	assert.Error(t, err)
}

func TestEngineRegistryGetByName(t *testing.T) {
	r := NewEngineRegistry()
	a := newMockAdapter(EngineMySQL, "mysql")
	require.NoError(t, r.Register(a))

	got, ok := r.GetByName("mysql")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.GetByName("nonexistent")
	assert.False(t, ok)
}

func TestEngineRegistryBuildConnectionStringDispatches(t *testing.T) {
	r := NewEngineRegistry()
	a := newMockAdapter(EngineSQLite, "sqlite")
	cfg := &ConnectionConfig{Database: "test.db"}
	a.On("BuildConnectionString", cfg).Return("test.db", nil)
	require.NoError(t, r.Register(a))

	s, err := r.BuildConnectionString(EngineSQLite, cfg)
	require.NoError(t, err)
	assert.Equal(t, "test.db", s)
	a.AssertExpectations(t)
}

func TestEngineRegistryBuildConnectionStringNoAdapter(t *testing.T) {
	r := NewEngineRegistry()
	_, err := r.BuildConnectionString(EngineDB2, &ConnectionConfig{})
	assert.Error(t, err)
}

func TestEngineRegistryValidateConnectionStringDispatches(t *testing.T) {
	r := NewEngineRegistry()
	a := newMockAdapter(EngineMySQL, "mysql")
	a.On("ValidateConnectionString", "mysql://host/db").Return(true)
	require.NoError(t, r.Register(a))

	ok, err := r.ValidateConnectionString(EngineMySQL, "mysql://host/db")
	require.NoError(t, err)
	assert.True(t, ok)
	a.AssertExpectations(t)
}
