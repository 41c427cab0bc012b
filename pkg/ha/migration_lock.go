// Package ha serializes schema migrations when several shiftgate replicas
// start against the same database.
package ha

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// lockName identifies the migration lock across replicas.
const lockName = "shiftgate-schema-migration"

// MigrationLocker runs a function while holding an exclusive, database-wide
// migration lock.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// LockOptions tunes the table-based lock used outside PostgreSQL.
type LockOptions struct {
	MaxAttempts   int
	RetryInterval time.Duration
	StaleAfter    time.Duration
}

// DefaultLockOptions returns the retry policy used by NewMigrationLocker.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		MaxAttempts:   30,
		RetryInterval: time.Second,
		StaleAfter:    5 * time.Minute,
	}
}

// NewMigrationLocker picks a lock strategy from the gorm dialect: advisory
// locks on postgres, a lock row everywhere else.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	return NewMigrationLockerWithOptions(db, DefaultLockOptions())
}

// NewMigrationLockerWithOptions is NewMigrationLocker with explicit retry settings.
func NewMigrationLockerWithOptions(db *gorm.DB, opts LockOptions) MigrationLocker {
	if db == nil {
		return noopLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{db: db, key: int64(crc32.ChecksumIEEE([]byte(lockName)))}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	// The lock table must exist before the first WithLock call so concurrent
	// callers never race on its creation.
	_ = db.AutoMigrate(&lockRow{})
	return &rowLock{db: db, opts: opts}
}

type noopLock struct{}

func (noopLock) WithLock(_ context.Context, fn func() error) error { return fn() }

type advisoryLock struct {
	db  *gorm.DB
	key int64
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
		return fmt.Errorf("acquire advisory migration lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.key).Error
	}()
	return fn()
}

type lockRow struct {
	Name     string    `gorm:"primaryKey;column:name;size:128"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (lockRow) TableName() string { return "schema_migration_lock" }

// rowLock relies on primary-key uniqueness: only one replica can insert the
// lock row. Rows older than StaleAfter belong to crashed holders and are
// cleared before each attempt.
type rowLock struct {
	db   *gorm.DB
	opts LockOptions
}

func (l *rowLock) WithLock(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	var lastErr error
	acquired := false
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		l.db.WithContext(ctx).
			Where("name = ? AND locked_at < ?", lockName, time.Now().Add(-l.opts.StaleAfter)).
			Delete(&lockRow{})

		row := lockRow{Name: lockName, LockedAt: time.Now(), LockedBy: holder}
		if lastErr = l.db.WithContext(ctx).Create(&row).Error; lastErr == nil {
			acquired = true
			break
		}
		if attempt == l.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opts.RetryInterval):
		}
	}
	if !acquired {
		return fmt.Errorf("acquire migration lock after %d attempts: %w", l.opts.MaxAttempts, lastErr)
	}

	defer l.db.Where("name = ?", lockName).Delete(&lockRow{})
	return fn()
}
