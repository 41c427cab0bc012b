// Package reasoncode holds the closed taxonomy of readiness and governance
// reason codes and the normalizer that keeps unrecognized codes out of
// client-facing results.
package reasoncode

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Code is a member of the reason-code taxonomy.
type Code = string

const (
	NoSite              Code = "NO_SITE"
	NoShift             Code = "NO_SHIFT"
	PolicyMissing       Code = "POLICY_MISSING"
	UnitMissing         Code = "UNIT_MISSING"
	NoAssignments       Code = "NO_ASSIGNMENTS"
	StationUnstaffed    Code = "STATION_UNSTAFFED"
	StationUnderstaffed Code = "STATION_UNDERSTAFFED"
	ComplianceMissing   Code = "COMPLIANCE_MISSING"
	ComplianceExpired   Code = "COMPLIANCE_EXPIRED"
	ComplianceExpiring  Code = "COMPLIANCE_EXPIRING"
	LegalStop           Code = "LEGAL_STOP"
)

// taxonomy is the closed set of codes that may reach a client.
var taxonomy = mapset.NewThreadUnsafeSet[string](
	NoSite,
	NoShift,
	PolicyMissing,
	UnitMissing,
	NoAssignments,
	StationUnstaffed,
	StationUnderstaffed,
	ComplianceMissing,
	ComplianceExpired,
	ComplianceExpiring,
	LegalStop,
)

// Known reports whether code belongs to the taxonomy.
func Known(code string) bool {
	return taxonomy.Contains(code)
}

// Taxonomy returns every known code in lexicographic order.
func Taxonomy() []string {
	codes := taxonomy.ToSlice()
	sort.Strings(codes)
	return codes
}

// Normalized is the output of Normalize. ReasonCodes is safe to expose;
// Unknown is for internal diagnostics only.
type Normalized struct {
	ReasonCodes []string
	Unknown     []string
}

// Normalize splits raw codes into the sorted, deduplicated subset that belongs
// to the taxonomy and the sorted, deduplicated remainder. Blank entries are
// dropped. ReasonCodes is never nil so callers can serialize it as [].
func Normalize(codes []string) Normalized {
	known := mapset.NewThreadUnsafeSet[string]()
	unknown := mapset.NewThreadUnsafeSet[string]()
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if taxonomy.Contains(code) {
			known.Add(code)
		} else {
			unknown.Add(code)
		}
	}

	out := Normalized{ReasonCodes: sortedSlice(known)}
	if unknown.Cardinality() > 0 {
		out.Unknown = sortedSlice(unknown)
	}
	return out
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
