package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotStore persists policy snapshots for audit replay.
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Upsert writes a snapshot. Concurrent writers of the same snapshot converge
// on one row; the last writer's CapturedAt wins.
func (s *SnapshotStore) Upsert(ctx context.Context, record *PolicySnapshotRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"captured_at"}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("upsert policy snapshot: %w", err)
	}
	return nil
}

// Get returns the snapshot with the given id.
// Returns nil, nil if no record exists.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*PolicySnapshotRecord, error) {
	var record PolicySnapshotRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get policy snapshot: %w", err)
	}
	return &record, nil
}

// LatestForShift returns the most recently captured snapshot of a shift.
// Returns nil, nil if the shift has none.
func (s *SnapshotStore) LatestForShift(ctx context.Context, shiftID string) (*PolicySnapshotRecord, error) {
	var record PolicySnapshotRecord
	err := s.db.WithContext(ctx).Where("shift_id = ?", shiftID).Order("captured_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest policy snapshot: %w", err)
	}
	return &record, nil
}
