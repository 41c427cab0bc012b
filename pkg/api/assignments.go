package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solaius/shiftgate/pkg/gate"
	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

type assignRequest struct {
	Date       string `json:"date"`
	ShiftCode  string `json:"shift_code"`
	StationID  string `json:"station_id"`
	EmployeeID string `json:"employee_id"`
}

// assignEmployee handles POST /assignments, governed as assign_employee.
func (s *Server) assignEmployee(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if req.StationID == "" || req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "BODY_INVALID", "station_id and employee_id are required")
		return
	}

	tc, _ := tenancy.TenantFromContext(r.Context())
	gc := s.governedContext(r, tc, "assign_employee", "station", req.StationID, req.Date, req.ShiftCode)
	gc.Meta = map[string]any{"employee_id": req.EmployeeID}

	out, err := s.deps.Gate.Guard(r.Context(), gc, func(ctx context.Context, flow gate.Flow) (any, error) {
		shift, err := s.shiftFor(ctx, tc, flow.Date, flow.ShiftCode)
		if err != nil {
			return nil, err
		}
		rec, err := s.deps.Assignments.Assign(ctx, shift, req.StationID, req.EmployeeID)
		if errors.Is(err, store.ErrStationNotOnShift) {
			return nil, badRequest("STATION_NOT_ON_SHIFT", fmt.Sprintf("station %q is not covered by shift %s@%s", req.StationID, flow.Date, flow.ShiftCode))
		}
		return rec, err
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeGoverned(w, http.StatusCreated, out)
}

// unassignEmployee handles DELETE /assignments/{assignmentId}?date=&shift_code=,
// governed as unassign_employee.
func (s *Server) unassignEmployee(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")
	q := r.URL.Query()

	tc, _ := tenancy.TenantFromContext(r.Context())
	gc := s.governedContext(r, tc, "unassign_employee", "assignment", assignmentID, q.Get("date"), q.Get("shift_code"))

	out, err := s.deps.Gate.Guard(r.Context(), gc, func(ctx context.Context, flow gate.Flow) (any, error) {
		shift, err := s.shiftFor(ctx, tc, flow.Date, flow.ShiftCode)
		if err != nil {
			return nil, err
		}
		removed, err := s.deps.Assignments.Unassign(ctx, shift, assignmentID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, notFound("ASSIGNMENT_NOT_FOUND", fmt.Sprintf("assignment %q not found on shift %s@%s", assignmentID, flow.Date, flow.ShiftCode))
		}
		return map[string]any{"id": assignmentID, "removed": true}, nil
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeGoverned(w, http.StatusOK, out)
}

func (s *Server) shiftFor(ctx context.Context, tc tenancy.TenantContext, date, shiftCode string) (*store.ShiftRecord, error) {
	shift, err := s.deps.Shifts.FindShift(ctx, tc.OrgID, tc.SiteID, date, shiftCode)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, notFound("NO_SHIFT", fmt.Sprintf("no shift %s@%s", date, shiftCode))
	}
	return shift, nil
}
