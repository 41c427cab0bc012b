// Package api is the HTTP surface of the engine: readiness queries,
// governed decision and roster mutations, token verification and audit
// replay.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/solaius/shiftgate/pkg/audit"
	"github.com/solaius/shiftgate/pkg/cache"
	"github.com/solaius/shiftgate/pkg/decision"
	"github.com/solaius/shiftgate/pkg/gate"
	"github.com/solaius/shiftgate/pkg/readiness"
	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/tenancy"
	"github.com/solaius/shiftgate/pkg/token"
)

// Response headers carrying governance enrichment.
const (
	HeaderGoverned          = "X-Governed"
	HeaderPolicyFingerprint = "X-Policy-Fingerprint"
	HeaderSnapshotID        = "X-Policy-Snapshot-Id"
	HeaderEventID           = "X-Governance-Event-Id"
	// HeaderExecutionToken carries the execution token of token-gated actions.
	HeaderExecutionToken = "X-Execution-Token"
)

// Readiness computes shift readiness.
type Readiness interface {
	Compute(ctx context.Context, orgID, siteID string, ref readiness.ShiftRef) (readiness.Result, error)
}

// Deps are the components the server exposes.
type Deps struct {
	DB          *gorm.DB
	Gate        *gate.Gate
	Readiness   Readiness
	Shifts      *store.RosterStore
	Assignments *store.AssignmentStore
	Decisions   *decision.Store
	Events      *audit.Store
	Snapshots   *store.SnapshotStore
	// Verifier may be nil when execution tokens are not configured.
	Verifier *token.Verifier
}

// Options tune the router.
type Options struct {
	TenancyMode    tenancy.TenancyMode
	DefaultOrg     string
	AllowedOrigins []string

	// SnapshotCache caches policy snapshot reads. Nil disables caching.
	SnapshotCache *cache.LRUCache
}

// Server serves the HTTP API.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// NewServer creates a Server. A nil logger uses slog.Default().
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"https://*", "http://*"}
	}
	return &Server{deps: deps, opts: opts, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			tenancy.OrgHeader, tenancy.SiteHeader, tenancy.UserHeader, HeaderExecutionToken},
		ExposedHeaders:   []string{HeaderGoverned, HeaderPolicyFingerprint, HeaderSnapshotID, HeaderEventID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readyHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tenancy.NewMiddleware(s.opts.TenancyMode, s.opts.DefaultOrg))

		r.Get("/actions", s.listActions)
		r.Get("/readiness", s.getReadiness)
		r.Post("/decisions/{decisionType}/resolve", s.resolveDecision)
		r.Get("/decisions/{decisionType}/active", s.activeDecisions)
		r.Post("/assignments", s.assignEmployee)
		r.Delete("/assignments/{assignmentId}", s.unassignEmployee)
		r.Post("/tokens/verify", s.verifyToken)
		r.Mount("/audit", audit.Router(s.deps.Events, s.deps.Snapshots, cache.Middleware(s.opts.SnapshotCache)))
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	sqlDB, err := s.deps.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		s.logger.Warn("readiness probe failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "database is unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.deps.Gate.Registry().Policies()})
}
