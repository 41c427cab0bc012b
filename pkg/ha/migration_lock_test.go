package ha

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Shared cache so every goroutine in a test sees the same database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func lockRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&lockRow{}).Count(&count).Error)
	return count
}

func TestMigrationLocker_NilDB(t *testing.T) {
	called := false
	err := NewMigrationLocker(nil).WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRowLock_ReleasesAfterSuccess(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	called := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		called = true
		assert.Equal(t, int64(1), lockRows(t, db))
		return nil
	}))
	assert.True(t, called)
	assert.Zero(t, lockRows(t, db))
}

func TestRowLock_ReleasesAfterError(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	boom := errors.New("migration failed")
	err := locker.WithLock(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, lockRows(t, db))
}

func TestRowLock_Serializes(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLockerWithOptions(db, LockOptions{
		MaxAttempts:   200,
		RetryInterval: 5 * time.Millisecond,
		StaleAfter:    time.Minute,
	})

	var concurrent, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), func() error {
				cur := concurrent.Add(1)
				for {
					prev := peak.Load()
					if cur <= prev || peak.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				concurrent.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(1))
}

func TestRowLock_ContextCancelled(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	err := locker.WithLock(context.Background(), func() error {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		inner := locker.WithLock(ctx, func() error {
			t.Error("lock acquired while held")
			return nil
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)
}

func TestRowLock_ClearsStaleHolder(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLockerWithOptions(db, LockOptions{MaxAttempts: 1, StaleAfter: time.Minute})

	require.NoError(t, db.Create(&lockRow{Name: lockName, LockedAt: time.Now().Add(-time.Hour), LockedBy: "crashed"}).Error)

	called := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
