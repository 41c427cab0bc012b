package api

import (
	"net/http"

	"github.com/solaius/shiftgate/pkg/readiness"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

// getReadiness handles GET /readiness?shift=<ref>, where ref is "#<id>" or
// "<date>@<shift code>". A caller without a site gets NO_SITE whatever the
// ref says.
func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenancy.TenantFromContext(r.Context())
	var ref readiness.ShiftRef
	if tc.SiteID != "" {
		var err error
		ref, err = readiness.ParseShiftRef(r.URL.Query().Get("shift"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "SHIFT_REF_INVALID", err.Error())
			return
		}
	}

	res, err := s.deps.Readiness.Compute(r.Context(), tc.OrgID, tc.SiteID, ref)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if res.PolicyFingerprint != "" {
		w.Header().Set(HeaderPolicyFingerprint, res.PolicyFingerprint)
	}
	if res.SnapshotID != "" {
		w.Header().Set(HeaderSnapshotID, res.SnapshotID)
	}
	writeJSON(w, http.StatusOK, res)
}
