package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PolicyStore reads organizational units and the policy bound to each.
type PolicyStore struct {
	db *gorm.DB
}

// NewPolicyStore creates a new PolicyStore.
func NewPolicyStore(db *gorm.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

// UnitsByID returns the units of org whose ids are listed, keyed by id.
// Ids that do not resolve are simply absent from the map.
func (s *PolicyStore) UnitsByID(ctx context.Context, orgID string, unitIDs []string) (map[string]OrgUnitRecord, error) {
	out := make(map[string]OrgUnitRecord, len(unitIDs))
	if len(unitIDs) == 0 {
		return out, nil
	}
	var units []OrgUnitRecord
	if err := s.db.WithContext(ctx).Where("org_id = ? AND id IN ?", orgID, unitIDs).Find(&units).Error; err != nil {
		return nil, fmt.Errorf("list org units: %w", err)
	}
	for _, u := range units {
		out[u.ID] = u
	}
	return out, nil
}

// PoliciesByUnit returns the bound policy of each listed unit, keyed by unit id.
// Units without a policy are absent from the map.
func (s *PolicyStore) PoliciesByUnit(ctx context.Context, unitIDs []string) (map[string]UnitPolicyRecord, error) {
	out := make(map[string]UnitPolicyRecord, len(unitIDs))
	if len(unitIDs) == 0 {
		return out, nil
	}
	var policies []UnitPolicyRecord
	if err := s.db.WithContext(ctx).Where("unit_id IN ?", unitIDs).Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("list unit policies: %w", err)
	}
	for _, p := range policies {
		out[p.UnitID] = p
	}
	return out, nil
}

// BindPolicy creates or replaces the policy bound to a unit.
// The conflict is resolved on the unit_id primary key.
func (s *PolicyStore) BindPolicy(ctx context.Context, record *UnitPolicyRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unit_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"org_id", "industry_type", "version", "updated_at"}),
	}).Create(record).Error
}
