// Package store is the relational boundary of the engine: gorm models and
// read stores for shifts, stations, units, policies and compliance, plus the
// policy snapshot writer.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solaius/shiftgate/pkg/ha"
)

// Supported database types.
const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// Open connects to the database of the given type.
func Open(dbType, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(dbType) {
	case TypePostgres, "":
		dialector = postgres.Open(dsn)
	case TypeMySQL:
		dialector = mysql.Open(dsn)
	case TypeSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql or sqlite)", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbType, err)
	}
	return db, nil
}

// coreModels are the tables every deployment has.
var coreModels = []any{
	&ShiftRecord{},
	&OrgUnitRecord{},
	&StationRecord{},
	&UnitPolicyRecord{},
	&AssignmentRecord{},
	&PolicySnapshotRecord{},
}

// complianceModels belong to the optional compliance module. Their absence is
// what makes the compliance-aware readiness calculation unavailable.
var complianceModels = []any{
	&StationRequirementRecord{},
	&EmployeeComplianceRecord{},
}

// AutoMigrate creates or updates the core tables plus any extra models
// (audit, decisions) under the migration lock.
func AutoMigrate(ctx context.Context, db *gorm.DB, locker ha.MigrationLocker, extra ...any) error {
	if locker == nil {
		locker = ha.NewMigrationLocker(db)
	}
	models := append(append([]any{}, coreModels...), extra...)
	return locker.WithLock(ctx, func() error {
		if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
			return fmt.Errorf("auto-migrate core tables: %w", err)
		}
		return nil
	})
}

// MigrateCompliance provisions the compliance module tables.
func MigrateCompliance(ctx context.Context, db *gorm.DB, locker ha.MigrationLocker) error {
	if locker == nil {
		locker = ha.NewMigrationLocker(db)
	}
	return locker.WithLock(ctx, func() error {
		if err := db.WithContext(ctx).AutoMigrate(complianceModels...); err != nil {
			return fmt.Errorf("auto-migrate compliance tables: %w", err)
		}
		return nil
	})
}
