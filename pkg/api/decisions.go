package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solaius/shiftgate/pkg/decision"
	"github.com/solaius/shiftgate/pkg/gate"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

// lineShiftTarget addresses one line during one shift.
type lineShiftTarget struct {
	Date      string `json:"date"`
	ShiftCode string `json:"shift_code"`
	Line      string `json:"line"`
}

// targetRequest names a decision target. Exactly one form is set.
type targetRequest struct {
	LineShift  *lineShiftTarget `json:"line_shift,omitempty"`
	LegacySlot string           `json:"legacy_slot,omitempty"`
	Type       string           `json:"type,omitempty"`
	ID         string           `json:"id,omitempty"`
}

type resolveRequest struct {
	Target    targetRequest   `json:"target"`
	Reason    string          `json:"reason"`
	RootCause json.RawMessage `json:"root_cause,omitempty"`
	Actions   json.RawMessage `json:"actions,omitempty"`
	Date      string          `json:"date,omitempty"`
	ShiftCode string          `json:"shift_code,omitempty"`
}

// key translates the target to its stored natural key. When the request
// carries no shift context, it is taken from the target if the target
// names a shift.
func (req *resolveRequest) key(decisionType string) (decision.NaturalKey, error) {
	t := req.Target
	forms := 0
	if t.LineShift != nil {
		forms++
	}
	if t.LegacySlot != "" {
		forms++
	}
	if t.Type != "" || t.ID != "" {
		forms++
	}
	if forms != 1 {
		return decision.NaturalKey{}, badRequest("TARGET_INVALID", "target must be exactly one of line_shift, legacy_slot or type and id")
	}

	inherit := func(date, code string) {
		if req.Date == "" && req.ShiftCode == "" {
			req.Date, req.ShiftCode = date, code
		}
	}

	var (
		key decision.NaturalKey
		err error
	)
	switch {
	case t.LineShift != nil:
		var id string
		id, err = decision.LineShiftTargetID(t.LineShift.Date, t.LineShift.ShiftCode, t.LineShift.Line)
		if err == nil {
			key, err = decision.CanonicalKey(decisionType, decision.TargetTypeLineShift, id)
			inherit(t.LineShift.Date, t.LineShift.ShiftCode)
		}
	case t.LegacySlot != "":
		var slot decision.LegacySlot
		slot, err = decision.ParseLegacySlot(t.LegacySlot)
		if err == nil {
			key, err = slot.Canonical(decisionType)
			inherit(slot.Date, slot.ShiftCode)
		}
	default:
		key, err = decision.CanonicalKey(decisionType, t.Type, t.ID)
	}
	if err != nil {
		return decision.NaturalKey{}, badRequest("TARGET_INVALID", err.Error())
	}
	return key, nil
}

// resolveDecision handles POST /decisions/{decisionType}/resolve. The
// decision type is the governed action.
func (s *Server) resolveDecision(w http.ResponseWriter, r *http.Request) {
	decisionType := chi.URLParam(r, "decisionType")
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	key, err := req.key(decisionType)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	tc, _ := tenancy.TenantFromContext(r.Context())
	gc := s.governedContext(r, tc, decisionType, key.TargetType, key.TargetID, req.Date, req.ShiftCode)
	gc.Meta = map[string]any{"reason": req.Reason}

	out, err := s.deps.Gate.Guard(r.Context(), gc, func(ctx context.Context, _ gate.Flow) (any, error) {
		return s.deps.Decisions.Resolve(ctx, key, decision.Payload{
			OrgID:     tc.OrgID,
			SiteID:    tc.SiteID,
			Reason:    req.Reason,
			RootCause: req.RootCause,
			Actions:   req.Actions,
			Actor:     tc.User,
		})
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeGoverned(w, http.StatusOK, out)
}

// activeDecisions handles GET /decisions/{decisionType}/active. target_id
// may repeat or be comma separated. Legacy slot ids are answered in their
// own scheme.
func (s *Server) activeDecisions(w http.ResponseWriter, r *http.Request) {
	decisionType := chi.URLParam(r, "decisionType")
	targetType := r.URL.Query().Get("target_type")
	if targetType == "" {
		writeError(w, http.StatusBadRequest, "TARGET_INVALID", "target_type is required")
		return
	}
	var ids []string
	for _, v := range r.URL.Query()["target_id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	// Group requested ids by the stored key they translate to.
	byStored := map[string][]string{}
	storedType := targetType
	for _, id := range ids {
		key, err := decision.CanonicalKey(decisionType, targetType, id)
		if err != nil {
			writeError(w, http.StatusBadRequest, "TARGET_INVALID", err.Error())
			return
		}
		storedType = key.TargetType
		byStored[key.TargetID] = append(byStored[key.TargetID], id)
	}
	stored := make([]string, 0, len(byStored))
	for id := range byStored {
		stored = append(stored, id)
	}

	tc, _ := tenancy.TenantFromContext(r.Context())
	active, err := s.deps.Decisions.ListActive(r.Context(), tc.OrgID, decisionType, storedType, stored)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	out := []string{}
	for _, id := range active {
		out = append(out, byStored[id]...)
	}
	sort.Strings(out)
	writeJSON(w, http.StatusOK, map[string]any{
		"decision_type": decisionType,
		"target_type":   targetType,
		"active":        out,
	})
}

func (s *Server) governedContext(r *http.Request, tc tenancy.TenantContext, action, targetType, targetID, date, shiftCode string) gate.Context {
	return gate.Context{
		OrgID:      tc.OrgID,
		SiteID:     tc.SiteID,
		Actor:      tc.User,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Date:       date,
		ShiftCode:  shiftCode,
		Token:      r.Header.Get(HeaderExecutionToken),
		RequestID:  middleware.GetReqID(r.Context()),
	}
}
