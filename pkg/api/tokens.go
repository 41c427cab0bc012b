package api

import (
	"net/http"
)

type verifyRequest struct {
	Token string `json:"token"`
}

// verifyToken handles POST /tokens/verify. Rejected tokens are reported in
// the body with status 200; the endpoint itself only fails on bad input.
func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "TOKENS_UNCONFIGURED", "execution tokens are not configured")
		return
	}
	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Verifier.Verify(req.Token))
}
