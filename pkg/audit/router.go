package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solaius/shiftgate/pkg/store"
)

// Router creates a chi.Router for the audit API. Routes expect tenant
// context on the request. snapshotMW wraps only the snapshot route, whose
// responses never change.
func Router(events *Store, snapshots *store.SnapshotStore, snapshotMW ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", ListEventsHandler(events))
	r.Get("/events/{eventId}", GetEventHandler(events))
	r.With(snapshotMW...).Get("/snapshots/{snapshotId}", GetSnapshotHandler(snapshots))
	return r
}
