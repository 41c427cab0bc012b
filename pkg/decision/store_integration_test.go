//go:build integration

package decision

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solaius/shiftgate/pkg/ha"
	"github.com/solaius/shiftgate/pkg/store"
)

func TestResolve_PostgresConcurrentUpsert(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shiftgate"),
		tcpostgres.WithUsername("shiftgate"),
		tcpostgres.WithPassword("shiftgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.Open(store.TypePostgres, dsn, logger.Silent)
	require.NoError(t, err)
	assertConcurrentUpsertConverges(t, db)
}

func TestResolve_MySQLConcurrentUpsert(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("shiftgate"),
		tcmysql.WithUsername("shiftgate"),
		tcmysql.WithPassword("shiftgate"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := store.Open(store.TypeMySQL, dsn, logger.Silent)
	require.NoError(t, err)
	assertConcurrentUpsertConverges(t, db)
}

func assertConcurrentUpsertConverges(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AutoMigrate(ctx, db, ha.NewMigrationLocker(db), &Record{}))

	s := NewStore(db)
	target, err := LineShiftTargetID("2025-06-01", "Day", "L1")
	require.NoError(t, err)
	key := NaturalKey{DecisionType: "resolve_no_go", TargetType: TargetTypeLineShift, TargetID: target}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Resolve(ctx, key, Payload{OrgID: "O1", Reason: "concurrent"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, db.Model(&Record{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	active, err := s.ListActive(ctx, "O1", "resolve_no_go", TargetTypeLineShift, []string{target})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, active)
}
