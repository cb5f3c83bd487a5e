package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparedStatementCacheInsertAndTouch(t *testing.T) {
	cache := NewPreparedStatementCache(2, nil)
	ctx := context.Background()

	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s1", SQL: "SELECT 1"}))
	assert.Equal(t, 1, cache.Count())

	stmt, ok := cache.Touch("s1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stmt.UsageCount)

	_, ok = cache.Touch("missing")
	assert.False(t, ok)
}

func TestPreparedStatementCacheEvictsOldestOnCapacity(t *testing.T) {
	var deallocated []string
	dealloc := func(ctx context.Context, stmt *PreparedStatement) error {
		deallocated = append(deallocated, stmt.Name)
		return nil
	}
	cache := NewPreparedStatementCache(2, dealloc)
	ctx := context.Background()

	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s1"}))
	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s2"}))
	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s3"}))

	assert.Equal(t, 2, cache.Count())
	assert.Equal(t, []string{"s1"}, deallocated)
	assert.ElementsMatch(t, []string{"s2", "s3"}, cache.Names())
}

func TestPreparedStatementCacheFailedEvictionLeavesCacheUntouched(t *testing.T) {
	dealloc := func(ctx context.Context, stmt *PreparedStatement) error {
		return errors.New("deallocate failed")
	}
	cache := NewPreparedStatementCache(1, dealloc)
	ctx := context.Background()

	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s1"}))

	err := cache.Insert(ctx, &PreparedStatement{Name: "s2"})
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Count())
	assert.Equal(t, []string{"s1"}, cache.Names())
}

func TestPreparedStatementCacheRemove(t *testing.T) {
	cache := NewPreparedStatementCache(2, nil)
	ctx := context.Background()
	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s1"}))

	require.NoError(t, cache.Remove(ctx, "s1"))
	assert.Equal(t, 0, cache.Count())

	err := cache.Remove(ctx, "missing")
	assert.Error(t, err)
}

func TestPreparedStatementCacheRemoveFailedDeallocateKeepsEntry(t *testing.T) {
	dealloc := func(ctx context.Context, stmt *PreparedStatement) error {
		return errors.New("deallocate failed")
	}
	cache := NewPreparedStatementCache(2, dealloc)
	ctx := context.Background()
	require.NoError(t, cache.Insert(ctx, &PreparedStatement{Name: "s1"}))

	err := cache.Remove(ctx, "s1")
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Count())
}

func TestNewPreparedStatementCacheClampsNonPositiveCapacity(t *testing.T) {
	cache := NewPreparedStatementCache(0, nil)
	assert.Equal(t, defaultCacheCapacity, cache.Capacity())
}
