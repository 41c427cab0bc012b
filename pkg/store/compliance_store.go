package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ComplianceStore reads the optional compliance module tables.
type ComplianceStore struct {
	db *gorm.DB
}

// NewComplianceStore creates a new ComplianceStore.
func NewComplianceStore(db *gorm.DB) *ComplianceStore {
	return &ComplianceStore{db: db}
}

// Provisioned reports whether the compliance module tables exist.
func (s *ComplianceStore) Provisioned(ctx context.Context) bool {
	m := s.db.WithContext(ctx).Migrator()
	return m.HasTable(&StationRequirementRecord{}) && m.HasTable(&EmployeeComplianceRecord{})
}

// RequirementsByStation returns the requirements of the listed stations,
// grouped by station id.
func (s *ComplianceStore) RequirementsByStation(ctx context.Context, stationIDs []string) (map[string][]StationRequirementRecord, error) {
	out := make(map[string][]StationRequirementRecord)
	if len(stationIDs) == 0 {
		return out, nil
	}
	var reqs []StationRequirementRecord
	err := s.db.WithContext(ctx).Where("station_id IN ?", stationIDs).
		Order("station_id ASC, requirement_code ASC").Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list station requirements: %w", err)
	}
	for _, r := range reqs {
		out[r.StationID] = append(out[r.StationID], r)
	}
	return out, nil
}

// ComplianceByEmployee returns the compliance items of the listed employees,
// keyed by employee id and then requirement code.
func (s *ComplianceStore) ComplianceByEmployee(ctx context.Context, employeeIDs []string) (map[string]map[string]EmployeeComplianceRecord, error) {
	out := make(map[string]map[string]EmployeeComplianceRecord)
	if len(employeeIDs) == 0 {
		return out, nil
	}
	var items []EmployeeComplianceRecord
	if err := s.db.WithContext(ctx).Where("employee_id IN ?", employeeIDs).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list employee compliance: %w", err)
	}
	for _, it := range items {
		if out[it.EmployeeID] == nil {
			out[it.EmployeeID] = make(map[string]EmployeeComplianceRecord)
		}
		out[it.EmployeeID][it.RequirementCode] = it
	}
	return out, nil
}
