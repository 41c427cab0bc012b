package readiness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/solaius/shiftgate/pkg/reasoncode"
	"github.com/solaius/shiftgate/pkg/store"
)

// ErrUnavailable is returned by a Strategy that cannot serve the shift. The
// calculator moves on to the next strategy.
var ErrUnavailable = errors.New("readiness calculation unavailable")

// Raw is the unnormalized output of one calculation strategy.
type Raw struct {
	Score            float64
	BlockingStations []string
	Warnings         int
	ReasonCodes      []string
	LegalStop        bool
	Compliance       *ComplianceBreakdown
}

// Strategy is one readiness calculation. Strategies are tried in order and
// the first usable result wins.
type Strategy interface {
	Name() string
	Compute(ctx context.Context, orgID, siteID, shiftID string) (*Raw, error)
}

// Roster is the shift, station and assignment lookup used by strategies.
type Roster interface {
	GetShift(ctx context.Context, orgID, shiftID string) (*store.ShiftRecord, error)
	StationsForShift(ctx context.Context, shift *store.ShiftRecord) ([]store.StationRecord, error)
	AssignmentsForShift(ctx context.Context, shiftID string) ([]store.AssignmentRecord, error)
	CountAssignments(ctx context.Context, shiftID string) (int64, error)
}

// Compliance is the compliance module lookup used by the v2 strategy.
type Compliance interface {
	Provisioned(ctx context.Context) bool
	RequirementsByStation(ctx context.Context, stationIDs []string) (map[string][]store.StationRequirementRecord, error)
	ComplianceByEmployee(ctx context.Context, employeeIDs []string) (map[string]map[string]store.EmployeeComplianceRecord, error)
}

// DefaultStrategies returns the compliance-aware, legacy staffing and
// compatibility calculations, in fallback order.
func DefaultStrategies(roster Roster, compliance Compliance) []Strategy {
	return []Strategy{
		&ComplianceStrategy{roster: roster, compliance: compliance},
		&StaffingStrategy{roster: roster},
		&AssignmentStrategy{roster: roster},
	}
}

// ExpiringWindow is how far past the shift date a compliance item may expire
// before it is flagged.
const ExpiringWindow = 30 * 24 * time.Hour

// ComplianceStrategy scores staffing and per-employee compliance against
// station requirements. It is unavailable until the compliance tables exist.
type ComplianceStrategy struct {
	roster     Roster
	compliance Compliance
}

func (s *ComplianceStrategy) Name() string { return "v2" }

func (s *ComplianceStrategy) Compute(ctx context.Context, orgID, _, shiftID string) (*Raw, error) {
	if s.compliance == nil || !s.compliance.Provisioned(ctx) {
		return nil, ErrUnavailable
	}
	shift, stations, assignments, err := loadRoster(ctx, s.roster, orgID, shiftID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		raw := noAssignments(stations)
		raw.Compliance = unstaffedBreakdown(stations)
		return raw, nil
	}
	shiftDay, err := time.Parse(time.DateOnly, shift.ShiftDate)
	if err != nil {
		return nil, fmt.Errorf("shift %s has malformed date %q: %w", shift.ID, shift.ShiftDate, err)
	}

	byStation := groupAssignments(assignments)
	stationIDs := make([]string, 0, len(stations))
	var employeeIDs []string
	for _, st := range stations {
		stationIDs = append(stationIDs, st.ID)
		employeeIDs = append(employeeIDs, byStation[st.ID]...)
	}
	reqs, err := s.compliance.RequirementsByStation(ctx, stationIDs)
	if err != nil {
		return nil, err
	}
	items, err := s.compliance.ComplianceByEmployee(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}

	raw := &Raw{Compliance: &ComplianceBreakdown{Stations: []StationCompliance{}}}
	ratios := make([]float64, 0, len(stations))
	for _, st := range stations {
		sc := StationCompliance{StationID: st.ID, ReasonCodes: []string{}}
		assigned := byStation[st.ID]

		switch {
		case len(assigned) == 0:
			sc.BlockingCount++
			sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.StationUnstaffed)
		case len(assigned) < st.Required():
			sc.WarningCount++
			sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.StationUnderstaffed)
		}

		for _, emp := range assigned {
			for _, req := range reqs[st.ID] {
				item, held := items[emp][req.RequirementCode]
				switch evaluateItem(item, held, shiftDay) {
				case itemMissing:
					sc.BlockingCount++
					sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.ComplianceMissing)
					sc.LegalStop = sc.LegalStop || req.Legal
				case itemExpired:
					sc.BlockingCount++
					sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.ComplianceExpired)
					sc.LegalStop = sc.LegalStop || req.Legal
				case itemExpiring:
					sc.WarningCount++
					sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.ComplianceExpiring)
				}
			}
		}
		if sc.LegalStop {
			sc.ReasonCodes = append(sc.ReasonCodes, reasoncode.LegalStop)
		}
		sc.ReasonCodes = reasoncode.Normalize(sc.ReasonCodes).ReasonCodes

		if sc.BlockingCount > 0 {
			raw.BlockingStations = append(raw.BlockingStations, st.ID)
			ratios = append(ratios, 0)
		} else {
			ratios = append(ratios, staffingRatio(len(assigned), st.Required()))
		}
		raw.Warnings += sc.WarningCount
		raw.LegalStop = raw.LegalStop || sc.LegalStop
		raw.ReasonCodes = append(raw.ReasonCodes, sc.ReasonCodes...)

		raw.Compliance.Stations = append(raw.Compliance.Stations, sc)
		raw.Compliance.Totals.Stations++
		raw.Compliance.Totals.Blocking += sc.BlockingCount
		raw.Compliance.Totals.Warnings += sc.WarningCount
		if sc.LegalStop {
			raw.Compliance.Totals.LegalStops++
		}
	}
	raw.Score = meanScore(ratios)
	return raw, nil
}

// StaffingStrategy is the legacy calculation: assigned versus required
// headcount, no compliance, no legal stop detection.
type StaffingStrategy struct {
	roster Roster
}

func (s *StaffingStrategy) Name() string { return "v1" }

func (s *StaffingStrategy) Compute(ctx context.Context, orgID, _, shiftID string) (*Raw, error) {
	_, stations, assignments, err := loadRoster(ctx, s.roster, orgID, shiftID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return noAssignments(stations), nil
	}

	byStation := groupAssignments(assignments)
	raw := &Raw{}
	ratios := make([]float64, 0, len(stations))
	for _, st := range stations {
		n := len(byStation[st.ID])
		switch {
		case n == 0:
			raw.BlockingStations = append(raw.BlockingStations, st.ID)
			raw.ReasonCodes = append(raw.ReasonCodes, reasoncode.StationUnstaffed)
			ratios = append(ratios, 0)
			continue
		case n < st.Required():
			raw.Warnings++
			raw.ReasonCodes = append(raw.ReasonCodes, reasoncode.StationUnderstaffed)
		}
		ratios = append(ratios, staffingRatio(n, st.Required()))
	}
	raw.Score = meanScore(ratios)
	return raw, nil
}

// AssignmentStrategy is the compatibility calculation of last resort: a
// shift with any assignment is GO.
type AssignmentStrategy struct {
	roster Roster
}

func (s *AssignmentStrategy) Name() string { return "v0" }

func (s *AssignmentStrategy) Compute(ctx context.Context, _, _, shiftID string) (*Raw, error) {
	n, err := s.roster.CountAssignments(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrUnavailable
	}
	return &Raw{Score: 100}, nil
}

type itemState int

const (
	itemOK itemState = iota
	itemMissing
	itemExpired
	itemExpiring
)

func evaluateItem(item store.EmployeeComplianceRecord, held bool, shiftDay time.Time) itemState {
	if !held {
		return itemMissing
	}
	if item.Status != store.ComplianceValid {
		return itemExpired
	}
	if item.ExpiresOn == nil || *item.ExpiresOn == "" {
		return itemOK
	}
	expires, err := time.Parse(time.DateOnly, *item.ExpiresOn)
	if err != nil {
		// An unreadable expiry cannot prove the item is held.
		return itemMissing
	}
	switch {
	case expires.Before(shiftDay):
		return itemExpired
	case !expires.After(shiftDay.Add(ExpiringWindow)):
		return itemExpiring
	}
	return itemOK
}

func loadRoster(ctx context.Context, roster Roster, orgID, shiftID string) (*store.ShiftRecord, []store.StationRecord, []store.AssignmentRecord, error) {
	shift, err := roster.GetShift(ctx, orgID, shiftID)
	if err != nil {
		return nil, nil, nil, err
	}
	if shift == nil {
		return nil, nil, nil, fmt.Errorf("shift %s: %w", shiftID, ErrUnavailable)
	}
	stations, err := roster.StationsForShift(ctx, shift)
	if err != nil {
		return nil, nil, nil, err
	}
	assignments, err := roster.AssignmentsForShift(ctx, shiftID)
	if err != nil {
		return nil, nil, nil, err
	}
	return shift, stations, assignments, nil
}

// groupAssignments maps station id to its distinct assigned employees.
func groupAssignments(assignments []store.AssignmentRecord) map[string][]string {
	seen := make(map[string]map[string]bool)
	out := make(map[string][]string)
	for _, a := range assignments {
		if seen[a.StationID] == nil {
			seen[a.StationID] = make(map[string]bool)
		}
		if seen[a.StationID][a.EmployeeID] {
			continue
		}
		seen[a.StationID][a.EmployeeID] = true
		out[a.StationID] = append(out[a.StationID], a.EmployeeID)
	}
	for _, emps := range out {
		sort.Strings(emps)
	}
	return out
}

func noAssignments(stations []store.StationRecord) *Raw {
	raw := &Raw{ReasonCodes: []string{reasoncode.NoAssignments}}
	for _, st := range stations {
		raw.BlockingStations = append(raw.BlockingStations, st.ID)
	}
	return raw
}

// unstaffedBreakdown reports every station as blocked for lack of staff.
func unstaffedBreakdown(stations []store.StationRecord) *ComplianceBreakdown {
	b := &ComplianceBreakdown{Stations: make([]StationCompliance, 0, len(stations))}
	for _, st := range stations {
		b.Stations = append(b.Stations, StationCompliance{
			StationID:     st.ID,
			BlockingCount: 1,
			ReasonCodes:   []string{reasoncode.StationUnstaffed},
		})
	}
	b.Totals = ComplianceTotals{Stations: len(stations), Blocking: len(stations)}
	return b
}

func staffingRatio(assigned, required int) float64 {
	if assigned >= required {
		return 1
	}
	return float64(assigned) / float64(required)
}

// meanScore is 100 times the mean ratio, to one decimal. A shift that has
// assignments but no stations is fully staffed.
func meanScore(ratios []float64) float64 {
	if len(ratios) == 0 {
		return 100
	}
	var sum float64
	for _, r := range ratios {
		sum += r
	}
	return math.Round(sum/float64(len(ratios))*1000) / 10
}
