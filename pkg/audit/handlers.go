package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

// ListEventsHandler handles GET /audit/events
// Query params: action, target_type, target_id, pageSize, pageToken
func ListEventsHandler(events *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			OrgID:      tenancy.OrgFromContext(r.Context()),
			Action:     q.Get("action"),
			TargetType: q.Get("target_type"),
			TargetID:   q.Get("target_id"),
		}
		if filter.OrgID == "" {
			writeError(w, http.StatusBadRequest, "TENANT_CONTEXT_INVALID", "organization is required")
			return
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := q.Get("pageToken")
		if pageToken != "" {
			if _, err := time.Parse(time.RFC3339Nano, pageToken); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_PAGE_TOKEN", fmt.Sprintf("invalid page token %q", pageToken))
				return
			}
		}

		records, nextToken, total, err := events.List(r.Context(), filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("failed to list governance events: %v", err))
			return
		}

		items := make([]EventResponse, len(records))
		for i, rec := range records {
			items[i] = RecordToResponse(rec)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        items,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// GetEventHandler handles GET /audit/events/{eventId}
func GetEventHandler(events *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		record, err := events.GetByID(r.Context(), tenancy.OrgFromContext(r.Context()), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("failed to get governance event: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("governance event %q not found", eventID))
			return
		}
		writeJSON(w, http.StatusOK, RecordToResponse(*record))
	}
}

// GetSnapshotHandler handles GET /audit/snapshots/{snapshotId}. It returns
// the policy versions a past readiness computation was bound to.
func GetSnapshotHandler(snapshots *store.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "snapshotId")
		record, err := snapshots.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("failed to get policy snapshot: %v", err))
			return
		}
		// Snapshots of other organizations are reported as missing.
		if record == nil || record.OrgID != tenancy.OrgFromContext(r.Context()) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("policy snapshot %q not found", id))
			return
		}
		writeJSON(w, http.StatusOK, SnapshotResponse{
			ID:          record.ID,
			ShiftID:     record.ShiftID,
			Fingerprint: record.Fingerprint,
			Policy:      json.RawMessage(record.Policy),
			CapturedAt:  record.CapturedAt.UTC().Format(time.RFC3339),
		})
	}
}

// EventResponse is the API representation of a governance event.
type EventResponse struct {
	ID                string         `json:"id"`
	OrgID             string         `json:"orgId"`
	SiteID            string         `json:"siteId,omitempty"`
	Action            string         `json:"action"`
	TargetType        string         `json:"targetType,omitempty"`
	TargetID          string         `json:"targetId,omitempty"`
	Meta              map[string]any `json:"meta,omitempty"`
	PolicyFingerprint string         `json:"policyFingerprint,omitempty"`
	SnapshotID        string         `json:"snapshotId,omitempty"`
	RequestID         string         `json:"requestId,omitempty"`
	CreatedBy         string         `json:"createdBy,omitempty"`
	CreatedAt         string         `json:"createdAt"`
}

// SnapshotResponse is the API representation of a policy snapshot.
type SnapshotResponse struct {
	ID          string          `json:"id"`
	ShiftID     string          `json:"shiftId"`
	Fingerprint string          `json:"fingerprint"`
	Policy      json.RawMessage `json:"policy"`
	CapturedAt  string          `json:"capturedAt"`
}

// RecordToResponse converts a stored event to its API shape.
func RecordToResponse(rec EventRecord) EventResponse {
	return EventResponse{
		ID:                rec.ID,
		OrgID:             rec.OrgID,
		SiteID:            rec.SiteID,
		Action:            rec.Action,
		TargetType:        rec.TargetType,
		TargetID:          rec.TargetID,
		Meta:              map[string]any(rec.Meta),
		PolicyFingerprint: rec.PolicyFingerprint,
		SnapshotID:        rec.SnapshotID,
		RequestID:         rec.RequestID,
		CreatedBy:         rec.CreatedBy,
		CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ErrorResponse is the JSON body of every error this package writes.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeError reads an ErrorResponse, for clients.
func DecodeError(body []byte) (ErrorResponse, error) {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ErrorResponse{}, err
	}
	if e.Code == "" {
		return ErrorResponse{}, errors.New("not an error response")
	}
	return e, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
