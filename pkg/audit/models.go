// Package audit is the append-only sink for governance events and the
// read surface operators use to replay them.
package audit

import (
	"time"

	"github.com/solaius/shiftgate/pkg/store"
)

// EventRecord is the GORM model for governance events. Rows are immutable
// once written.
type EventRecord struct {
	ID                string        `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID             string        `gorm:"column:org_id;size:128;index:idx_gov_event_org_time,priority:1;not null"`
	SiteID            string        `gorm:"column:site_id"`
	Action            string        `gorm:"column:action;size:128;index;not null"`
	TargetType        string        `gorm:"column:target_type;size:128;index:idx_gov_event_target,priority:1"`
	TargetID          string        `gorm:"column:target_id;size:128;index:idx_gov_event_target,priority:2"`
	Meta              store.JSONAny `gorm:"column:meta;type:text"`
	PolicyFingerprint string        `gorm:"column:policy_fingerprint"`
	SnapshotID        string        `gorm:"column:snapshot_id"`
	RequestID         string        `gorm:"column:request_id"`
	CreatedBy         string        `gorm:"column:created_by"`
	CreatedAt         time.Time     `gorm:"column:created_at;index:idx_gov_event_org_time,priority:2;not null"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "governance_events" }

// ListFilter narrows an event listing. OrgID is required.
type ListFilter struct {
	OrgID      string
	Action     string
	TargetType string
	TargetID   string
}
