package readiness

import "github.com/solaius/shiftgate/pkg/policy"

// Status is the tri-state readiness of a shift.
type Status string

const (
	StatusGo      Status = "GO"
	StatusWarning Status = "WARNING"
	StatusNoGo    Status = "NO_GO"
)

// Legitimacy says whether a legal rule unconditionally forbids the shift,
// independent of its score.
type Legitimacy string

const (
	LegitimacyOK        Legitimacy = "OK"
	LegitimacyLegalStop Legitimacy = "LEGAL_STOP"
)

// StationCompliance is the compliance outcome of one station.
type StationCompliance struct {
	StationID     string   `json:"station_id"`
	LegalStop     bool     `json:"legal_stop"`
	BlockingCount int      `json:"blocking_count"`
	WarningCount  int      `json:"warning_count"`
	ReasonCodes   []string `json:"reason_codes"`
}

// ComplianceTotals sums the per-station breakdown.
type ComplianceTotals struct {
	Stations   int `json:"stations"`
	LegalStops int `json:"legal_stops"`
	Blocking   int `json:"blocking"`
	Warnings   int `json:"warnings"`
}

// ComplianceBreakdown is only produced by the compliance-aware calculation.
type ComplianceBreakdown struct {
	Stations []StationCompliance `json:"stations"`
	Totals   ComplianceTotals    `json:"totals"`
}

// Result is the readiness of one shift.
type Result struct {
	ShiftID           string               `json:"shift_id,omitempty"`
	Score             float64              `json:"score"`
	Status            Status               `json:"status"`
	BlockingStations  []string             `json:"blocking_stations"`
	ReasonCodes       []string             `json:"reason_codes"`
	LegitimacyStatus  Legitimacy           `json:"legitimacy_status"`
	Policy            []policy.Ref         `json:"policy"`
	PolicyCompliance  *ComplianceBreakdown `json:"policy_compliance,omitempty"`
	PolicyFingerprint string               `json:"policy_fingerprint,omitempty"`
	SnapshotID        string               `json:"snapshot_id,omitempty"`
	Calculation       string               `json:"calculation,omitempty"`

	diagnostics Diagnostics
}

// Diagnostics is internal-only detail about a computation. It never
// appears in the serialized result.
type Diagnostics struct {
	// UnknownReasonCodes are raw codes outside the taxonomy.
	UnknownReasonCodes []string
	// Skipped lists calculations that were tried and fell through.
	Skipped []string
}

// Diagnostics returns the internal diagnostics of the computation.
func (r Result) Diagnostics() Diagnostics { return r.diagnostics }
