package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solaius/shiftgate/pkg/gate"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// statusError is a delegate failure that maps to a specific status.
type statusError struct {
	status  int
	code    string
	message string
}

func (e *statusError) Error() string { return e.message }

func notFound(code, msg string) error {
	return &statusError{status: http.StatusNotFound, code: code, message: msg}
}

func badRequest(code, msg string) error {
	return &statusError{status: http.StatusBadRequest, code: code, message: msg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeFailure maps gate errors, delegate status errors and anything else
// to a response.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if ge, ok := gate.AsError(err); ok {
		if ge.Kind == gate.KindInternal || ge.Kind == gate.KindConfiguration {
			s.logger.Error("governed request failed", "path", r.URL.Path, "code", ge.Code, "error", err)
		}
		writeJSON(w, ge.HTTPStatus(), errorBody{Code: ge.Code, Message: ge.Message, ReasonCodes: ge.Reasons})
		return
	}
	var se *statusError
	if errors.As(err, &se) {
		writeError(w, se.status, se.code, se.message)
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// writeGoverned writes a successful governed outcome with its enrichment
// headers.
func writeGoverned(w http.ResponseWriter, status int, out gate.Outcome) {
	w.Header().Set(HeaderGoverned, "true")
	if out.PolicyFingerprint != "" {
		w.Header().Set(HeaderPolicyFingerprint, out.PolicyFingerprint)
	}
	if out.SnapshotID != "" {
		w.Header().Set(HeaderSnapshotID, out.SnapshotID)
	}
	if out.EventID != "" {
		w.Header().Set(HeaderEventID, out.EventID)
	}
	writeJSON(w, status, out.Value)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("BODY_INVALID", "request body is not valid: "+err.Error())
	}
	return nil
}
