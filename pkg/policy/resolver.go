// Package policy resolves which policy versions govern a shift.
//
// Resolution fails closed: a shift is only considered bound when every
// organizational unit its stations reference exists and carries a policy.
package policy

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/solaius/shiftgate/pkg/reasoncode"
	"github.com/solaius/shiftgate/pkg/store"
)

// Ref is one (unit, industry type, version) tuple in force for a unit.
type Ref struct {
	UnitID       string `json:"unit_id" yaml:"unit_id"`
	IndustryType string `json:"industry_type" yaml:"industry_type"`
	Version      string `json:"version" yaml:"version"`
}

// Roster is the shift and station lookup the resolver needs.
type Roster interface {
	GetShift(ctx context.Context, orgID, shiftID string) (*store.ShiftRecord, error)
	StationsForShift(ctx context.Context, shift *store.ShiftRecord) ([]store.StationRecord, error)
}

// Bindings is the unit and policy lookup the resolver needs.
type Bindings interface {
	UnitsByID(ctx context.Context, orgID string, unitIDs []string) (map[string]store.OrgUnitRecord, error)
	PoliciesByUnit(ctx context.Context, unitIDs []string) (map[string]store.UnitPolicyRecord, error)
}

// Result is the outcome of a binding resolution. When OK is false,
// PoliciesByUnit is empty and ReasonCodes says why.
type Result struct {
	OK             bool
	PoliciesByUnit map[string]Ref
	UnitIDs        []string
	ReasonCodes    []string
}

// Refs returns the bound policies ordered by unit id.
func (r Result) Refs() []Ref {
	refs := make([]Ref, 0, len(r.UnitIDs))
	for _, id := range r.UnitIDs {
		if p, ok := r.PoliciesByUnit[id]; ok {
			refs = append(refs, p)
		}
	}
	return refs
}

// Resolver implements policy binding resolution over the store.
type Resolver struct {
	roster   Roster
	bindings Bindings
}

// NewResolver creates a new Resolver.
func NewResolver(roster Roster, bindings Bindings) *Resolver {
	return &Resolver{roster: roster, bindings: bindings}
}

// Resolve determines the units referenced by the shift's stations and the
// policy bound to each. A store error is returned as an error; a missing
// binding is a failed Result, not an error.
func (r *Resolver) Resolve(ctx context.Context, orgID, shiftID string) (Result, error) {
	shift, err := r.roster.GetShift(ctx, orgID, shiftID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve policy binding: %w", err)
	}
	if shift == nil {
		return failed(reasoncode.NoShift), nil
	}

	stations, err := r.roster.StationsForShift(ctx, shift)
	if err != nil {
		return Result{}, fmt.Errorf("resolve policy binding: %w", err)
	}

	referenced := mapset.NewThreadUnsafeSet[string]()
	for _, st := range stations {
		if st.UnitID != nil && *st.UnitID != "" {
			referenced.Add(*st.UnitID)
		}
	}
	unitIDs := referenced.ToSlice()
	sort.Strings(unitIDs)

	if len(unitIDs) == 0 {
		return Result{OK: true, PoliciesByUnit: map[string]Ref{}, UnitIDs: []string{}, ReasonCodes: []string{}}, nil
	}

	units, err := r.bindings.UnitsByID(ctx, orgID, unitIDs)
	if err != nil {
		return Result{}, fmt.Errorf("resolve policy binding: %w", err)
	}
	policies, err := r.bindings.PoliciesByUnit(ctx, unitIDs)
	if err != nil {
		return Result{}, fmt.Errorf("resolve policy binding: %w", err)
	}

	var codes []string
	bound := make(map[string]Ref, len(unitIDs))
	for _, id := range unitIDs {
		if _, ok := units[id]; !ok {
			codes = append(codes, reasoncode.UnitMissing)
			continue
		}
		p, ok := policies[id]
		if !ok {
			codes = append(codes, reasoncode.PolicyMissing)
			continue
		}
		bound[id] = Ref{UnitID: id, IndustryType: p.IndustryType, Version: p.Version}
	}
	if len(codes) > 0 {
		return failed(codes...), nil
	}

	return Result{OK: true, PoliciesByUnit: bound, UnitIDs: unitIDs, ReasonCodes: []string{}}, nil
}

func failed(codes ...string) Result {
	return Result{
		OK:             false,
		PoliciesByUnit: map[string]Ref{},
		UnitIDs:        []string{},
		ReasonCodes:    reasoncode.Normalize(codes).ReasonCodes,
	}
}
