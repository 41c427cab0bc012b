// Package decision persists the resolved outcome of governed actions keyed
// by business identity. Repeat resolutions of the same key update the one
// row in place.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Status of a decision row.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// Record is the GORM model for execution decisions.
type Record struct {
	ID           string         `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	OrgID        string         `gorm:"column:org_id;size:128;uniqueIndex:uq_execution_decision_key,priority:1;not null" json:"org_id"`
	SiteID       string         `gorm:"column:site_id" json:"site_id"`
	DecisionType string         `gorm:"column:decision_type;size:128;uniqueIndex:uq_execution_decision_key,priority:2;not null" json:"decision_type"`
	TargetType   string         `gorm:"column:target_type;size:128;uniqueIndex:uq_execution_decision_key,priority:3;not null" json:"target_type"`
	TargetID     string         `gorm:"column:target_id;size:128;uniqueIndex:uq_execution_decision_key,priority:4;not null" json:"target_id"`
	Reason       string         `gorm:"column:reason" json:"reason"`
	RootCause    datatypes.JSON `gorm:"column:root_cause;not null" json:"root_cause"`
	Actions      datatypes.JSON `gorm:"column:actions;not null" json:"actions"`
	Status       Status         `gorm:"column:status;not null;default:active" json:"status"`
	CreatedBy    string         `gorm:"column:created_by" json:"created_by"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedBy    string         `gorm:"column:updated_by" json:"updated_by"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "execution_decisions" }

// Key returns the natural key of the record.
func (r Record) Key() NaturalKey {
	return NaturalKey{DecisionType: r.DecisionType, TargetType: r.TargetType, TargetID: r.TargetID}
}

// Payload carries the mutable fields of a resolution.
type Payload struct {
	OrgID     string
	SiteID    string
	Reason    string
	RootCause json.RawMessage
	Actions   json.RawMessage
	Actor     string
}

// Store provides the natural-key upsert and active lookups. Keys are
// scoped to an organization: two organizations resolving the same key
// own separate rows.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Resolve records a decision. If the key already has a row, its reason,
// root cause and actions are replaced and it is (re)marked active; the
// original id and creation fields are kept. Concurrent writers on one key
// converge on one row, the last writer's fields winning.
func (s *Store) Resolve(ctx context.Context, key NaturalKey, p Payload) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if p.OrgID == "" {
		return nil, errors.New("organization is required")
	}
	rootCause, err := jsonColumn(p.RootCause, `{}`)
	if err != nil {
		return nil, fmt.Errorf("root_cause: %w", err)
	}
	actions, err := jsonColumn(p.Actions, `[]`)
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}

	now := s.now().UTC()
	record := &Record{
		ID:           uuid.NewString(),
		OrgID:        p.OrgID,
		SiteID:       p.SiteID,
		DecisionType: key.DecisionType,
		TargetType:   key.TargetType,
		TargetID:     key.TargetID,
		Reason:       p.Reason,
		RootCause:    rootCause,
		Actions:      actions,
		Status:       StatusActive,
		CreatedBy:    p.Actor,
		CreatedAt:    now,
		UpdatedBy:    p.Actor,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "decision_type"}, {Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reason", "root_cause", "actions", "status", "updated_by", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("upsert execution decision: %w", err)
	}

	stored, err := s.Get(ctx, p.OrgID, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("execution decision %s/%s/%s vanished after upsert", key.DecisionType, key.TargetType, key.TargetID)
	}
	return stored, nil
}

// Get returns the decision an organization stored under key.
// Returns nil, nil if no record exists.
func (s *Store) Get(ctx context.Context, orgID string, key NaturalKey) (*Record, error) {
	var record Record
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND decision_type = ? AND target_type = ? AND target_id = ?",
			orgID, key.DecisionType, key.TargetType, key.TargetID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get execution decision: %w", err)
	}
	return &record, nil
}

// ListActive returns which of targetIDs have an active decision of
// decisionType in the organization, sorted.
func (s *Store) ListActive(ctx context.Context, orgID, decisionType, targetType string, targetIDs []string) ([]string, error) {
	if len(targetIDs) == 0 {
		return []string{}, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("org_id = ? AND decision_type = ? AND target_type = ? AND status = ? AND target_id IN ?",
			orgID, decisionType, targetType, StatusActive, targetIDs).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active execution decisions: %w", err)
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Supersede marks the organization's decision under key superseded.
// Returns false if no row exists.
func (s *Store) Supersede(ctx context.Context, orgID string, key NaturalKey, actor string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Record{}).
		Where("org_id = ? AND decision_type = ? AND target_type = ? AND target_id = ?",
			orgID, key.DecisionType, key.TargetType, key.TargetID).
		Updates(map[string]any{"status": StatusSuperseded, "updated_by": actor, "updated_at": s.now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("supersede execution decision: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// jsonColumn validates raw, substituting empty for an absent value so the
// column is never NULL.
func jsonColumn(raw json.RawMessage, empty string) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return datatypes.JSON(empty), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("not valid JSON")
	}
	return datatypes.JSON(raw), nil
}
