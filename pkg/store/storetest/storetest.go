// Package storetest provides an in-memory database and fixture helpers for
// tests of packages built on the store.
package storetest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solaius/shiftgate/pkg/ha"
	"github.com/solaius/shiftgate/pkg/store"
)

// Options selects which optional tables NewDB provisions.
type Options struct {
	Compliance bool
	Extra      []any
}

// NewDB opens an in-memory SQLite database with the core tables migrated.
// The pool is capped at one connection: every connection to ":memory:" is a
// separate database.
func NewDB(t testing.TB, opts Options) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	locker := ha.NewMigrationLocker(nil)
	require.NoError(t, store.AutoMigrate(ctx, db, locker, opts.Extra...))
	if opts.Compliance {
		require.NoError(t, store.MigrateCompliance(ctx, db, locker))
	}
	return db
}

// Create inserts every record, failing the test on error.
func Create(t testing.TB, db *gorm.DB, records ...any) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, db.Create(r).Error)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
