package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStationNotOnShift is returned when a station is not covered by the
// shift it is being staffed for.
var ErrStationNotOnShift = errors.New("station is not covered by the shift")

// AssignmentStore writes roster assignments. Its writes are governed
// mutations; callers run them through the governance gate.
type AssignmentStore struct {
	db *gorm.DB
}

// NewAssignmentStore creates a new AssignmentStore.
func NewAssignmentStore(db *gorm.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

// Assign places employeeID on stationID for shift. The station must be an
// active station of the shift's site and line. Assigning the same employee
// to the same station twice returns the existing assignment.
func (s *AssignmentStore) Assign(ctx context.Context, shift *ShiftRecord, stationID, employeeID string) (*AssignmentRecord, error) {
	if employeeID == "" {
		return nil, errors.New("employee is required")
	}

	var record *AssignmentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ? AND org_id = ? AND site_id = ? AND retired = ?", stationID, shift.OrgID, shift.SiteID, false)
		if shift.LineCode != "" {
			query = query.Where("line_code = ?", shift.LineCode)
		}
		var station StationRecord
		if err := query.First(&station).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStationNotOnShift
			}
			return fmt.Errorf("get station: %w", err)
		}

		var existing AssignmentRecord
		err := tx.Where("shift_id = ? AND station_id = ? AND employee_id = ?", shift.ID, stationID, employeeID).First(&existing).Error
		if err == nil {
			record = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find assignment: %w", err)
		}

		record = &AssignmentRecord{
			ID:         uuid.NewString(),
			OrgID:      shift.OrgID,
			ShiftID:    shift.ID,
			StationID:  stationID,
			EmployeeID: employeeID,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Unassign removes an assignment of shift. Returns false if there was none.
func (s *AssignmentStore) Unassign(ctx context.Context, shift *ShiftRecord, assignmentID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("id = ? AND shift_id = ? AND org_id = ?", assignmentID, shift.ID, shift.OrgID).
		Delete(&AssignmentRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("delete assignment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
