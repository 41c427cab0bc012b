package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ShiftRecord is a planned (org, site, date, shift code, line) slot. The
// engine only reads shifts; they are created by the scheduling CRUD layer.
type ShiftRecord struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID     string    `gorm:"column:org_id;size:128;index:idx_shift_lookup,priority:1;not null"`
	SiteID    string    `gorm:"column:site_id;size:128;index:idx_shift_lookup,priority:2;not null"`
	ShiftDate string    `gorm:"column:shift_date;type:varchar(10);index:idx_shift_lookup,priority:3;not null"`
	ShiftCode string    `gorm:"column:shift_code;size:128;index:idx_shift_lookup,priority:4;not null"`
	LineCode  string    `gorm:"column:line_code"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ShiftRecord) TableName() string { return "shifts" }

// OrgUnitRecord is a node of the organization tree that a policy binds to.
type OrgUnitRecord struct {
	ID     string  `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID  string  `gorm:"column:org_id;size:128;index;not null"`
	SiteID *string `gorm:"column:site_id"`
	Name   string  `gorm:"column:name"`
}

// TableName returns the GORM table name.
func (OrgUnitRecord) TableName() string { return "org_units" }

// StationRecord is a work position on a line.
type StationRecord struct {
	ID                string  `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID             string  `gorm:"column:org_id;size:128;index:idx_station_line,priority:1;not null"`
	SiteID            string  `gorm:"column:site_id;size:128;index:idx_station_line,priority:2;not null"`
	LineCode          string  `gorm:"column:line_code;size:128;index:idx_station_line,priority:3"`
	UnitID            *string `gorm:"column:unit_id;size:128;index"`
	Name              string  `gorm:"column:name"`
	RequiredHeadcount int     `gorm:"column:required_headcount;default:1;not null"`
	Retired           bool    `gorm:"column:retired;default:false;not null"`
}

// TableName returns the GORM table name.
func (StationRecord) TableName() string { return "stations" }

// Required returns the headcount a station needs, never less than one.
func (s StationRecord) Required() int {
	if s.RequiredHeadcount < 1 {
		return 1
	}
	return s.RequiredHeadcount
}

// UnitPolicyRecord binds one policy version to an organizational unit.
type UnitPolicyRecord struct {
	UnitID       string    `gorm:"primaryKey;column:unit_id;type:varchar(36)"`
	OrgID        string    `gorm:"column:org_id;size:128;index;not null"`
	IndustryType string    `gorm:"column:industry_type;not null"`
	Version      string    `gorm:"column:version;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (UnitPolicyRecord) TableName() string { return "unit_policies" }

// AssignmentRecord places an employee on a station for a shift.
type AssignmentRecord struct {
	ID         string `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID      string `gorm:"column:org_id;not null"`
	ShiftID    string `gorm:"column:shift_id;size:128;index;not null"`
	StationID  string `gorm:"column:station_id;size:128;index;not null"`
	EmployeeID string `gorm:"column:employee_id;not null"`
}

// TableName returns the GORM table name.
func (AssignmentRecord) TableName() string { return "assignments" }

// StationRequirementRecord is a compliance item every employee on the
// station must hold. Legal requirements stop the shift when violated.
type StationRequirementRecord struct {
	StationID       string `gorm:"primaryKey;column:station_id;type:varchar(36)"`
	RequirementCode string `gorm:"primaryKey;column:requirement_code;size:128"`
	Legal           bool   `gorm:"column:legal;default:false;not null"`
}

// TableName returns the GORM table name.
func (StationRequirementRecord) TableName() string { return "station_requirements" }

// ComplianceStatus is the state of one employee compliance item.
type ComplianceStatus string

const (
	ComplianceValid   ComplianceStatus = "valid"
	ComplianceExpired ComplianceStatus = "expired"
	ComplianceRevoked ComplianceStatus = "revoked"
)

// EmployeeComplianceRecord is an employee's standing for one requirement.
type EmployeeComplianceRecord struct {
	EmployeeID      string           `gorm:"primaryKey;column:employee_id;type:varchar(36)"`
	RequirementCode string           `gorm:"primaryKey;column:requirement_code;size:128"`
	Status          ComplianceStatus `gorm:"column:status;not null"`
	ExpiresOn       *string          `gorm:"column:expires_on;type:varchar(10)"`
}

// TableName returns the GORM table name.
func (EmployeeComplianceRecord) TableName() string { return "employee_compliance" }

// PolicySnapshotRecord pins the policy versions a readiness computation used
// for a shift. Its ID is derived from (shift, fingerprint), so rewriting the
// same snapshot only refreshes CapturedAt.
type PolicySnapshotRecord struct {
	ID          string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrgID       string         `gorm:"column:org_id;not null"`
	ShiftID     string         `gorm:"column:shift_id;size:128;index:idx_snapshot_shift_time,priority:1;not null"`
	Fingerprint string         `gorm:"column:fingerprint;not null"`
	Policy      datatypes.JSON `gorm:"column:policy;not null"`
	CapturedAt  time.Time      `gorm:"column:captured_at;index:idx_snapshot_shift_time,priority:2;not null"`
}

// TableName returns the GORM table name.
func (PolicySnapshotRecord) TableName() string { return "policy_snapshots" }
