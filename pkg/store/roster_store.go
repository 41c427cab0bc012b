package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// RosterStore reads shifts, the stations they cover and their assignments.
type RosterStore struct {
	db *gorm.DB
}

// NewRosterStore creates a new RosterStore.
func NewRosterStore(db *gorm.DB) *RosterStore {
	return &RosterStore{db: db}
}

// GetShift returns the shift with the given id inside org.
// Returns nil, nil if no such shift exists.
func (s *RosterStore) GetShift(ctx context.Context, orgID, shiftID string) (*ShiftRecord, error) {
	var record ShiftRecord
	err := s.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, shiftID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	return &record, nil
}

// FindShift looks a shift up by calendar date and shift code. The code match
// is case-insensitive. An empty siteID searches the whole org; when several
// sites match, the lowest id wins so the answer is stable.
// Returns nil, nil if nothing matches.
func (s *RosterStore) FindShift(ctx context.Context, orgID, siteID, date, shiftCode string) (*ShiftRecord, error) {
	query := s.db.WithContext(ctx).
		Where("org_id = ? AND shift_date = ? AND LOWER(shift_code) = ?", orgID, date, strings.ToLower(strings.TrimSpace(shiftCode)))
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}

	var record ShiftRecord
	err := query.Order("id ASC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find shift: %w", err)
	}
	return &record, nil
}

// StationsForShift returns the active stations a shift covers: every active
// station of the shift's site, restricted to the shift's line when it has one.
func (s *RosterStore) StationsForShift(ctx context.Context, shift *ShiftRecord) ([]StationRecord, error) {
	query := s.db.WithContext(ctx).
		Where("org_id = ? AND site_id = ? AND retired = ?", shift.OrgID, shift.SiteID, false)
	if shift.LineCode != "" {
		query = query.Where("line_code = ?", shift.LineCode)
	}

	var stations []StationRecord
	if err := query.Order("id ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("list stations for shift: %w", err)
	}
	return stations, nil
}

// AssignmentsForShift returns every assignment of a shift.
func (s *RosterStore) AssignmentsForShift(ctx context.Context, shiftID string) ([]AssignmentRecord, error) {
	var assignments []AssignmentRecord
	err := s.db.WithContext(ctx).Where("shift_id = ?", shiftID).Order("station_id ASC, employee_id ASC").Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("list assignments for shift: %w", err)
	}
	return assignments, nil
}

// CountAssignments returns how many assignments a shift has.
func (s *RosterStore) CountAssignments(ctx context.Context, shiftID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&AssignmentRecord{}).Where("shift_id = ?", shiftID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}
