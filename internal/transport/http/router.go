// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business rules stay below this package.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustcore/internal/audit"
	"trustcore/internal/audit/integrity"
	"trustcore/internal/audit/retention"
	"trustcore/internal/auth/models"
	"trustcore/internal/platform/middleware"
	"trustcore/internal/token"
)

// AuthService is the credential lifecycle surface the transport consumes.
type AuthService interface {
	Authenticate(ctx context.Context, identifier, secret string, meta models.ClientMeta) (*models.TokenPair, error)
	Refresh(ctx context.Context, rawToken string) (*models.TokenPair, error)
	ProcessFederatedCallback(ctx context.Context, code, redirectURI string, meta models.ClientMeta) (*models.TokenPair, error)
	Revoke(ctx context.Context, rawToken string) (bool, error)
	Logout(ctx context.Context, subjectID uuid.UUID) (int, error)
	ValidateAccessToken(tokenString string) (*token.AccessTokenClaims, error)
}

// AuditReader is the query slice of the audit store.
type AuditReader interface {
	Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error)
}

// IntegrityService produces verification reports.
type IntegrityService interface {
	GenerateReport(ctx context.Context, from, to int64) (*integrity.Report, error)
}

// RetentionService is the operator surface of the retention scheduler.
type RetentionService interface {
	Policy() retention.Policy
	UpdatePolicy(policy retention.Policy) error
	Run(ctx context.Context) (retention.TaskResult, error)
	Statistics() retention.Statistics
}

// Handler holds the services behind the HTTP surface.
type Handler struct {
	auth      AuthService
	audits    AuditReader
	integrity IntegrityService
	retention RetentionService
	logger    *slog.Logger
}

func NewHandler(auth AuthService, audits AuditReader, integrity IntegrityService, retention RetentionService, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		audits:    audits,
		integrity: integrity,
		retention: retention,
		logger:    logger,
	}
}

// NewRouter wires all endpoints with the standard middleware stack.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/refresh", h.handleRefresh)
		r.Post("/auth/revoke", h.handleRevoke)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/federated/callback", h.handleFederatedCallback)

		r.Get("/audit/entries", h.handleAuditQuery)
		r.Get("/audit/export", h.handleAuditExport)
		r.Get("/audit/integrity/report", h.handleIntegrityReport)

		r.Get("/audit/retention/policy", h.handleRetentionPolicyGet)
		r.Put("/audit/retention/policy", h.handleRetentionPolicyPut)
		r.Post("/audit/retention/run", h.handleRetentionRun)
		r.Get("/audit/retention/stats", h.handleRetentionStats)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// clientMeta extracts request provenance for refresh record bookkeeping.
func clientMeta(r *http.Request) models.ClientMeta {
	addr := r.Header.Get("X-Forwarded-For")
	if addr == "" {
		addr = r.RemoteAddr
	}
	return models.ClientMeta{
		Address: addr,
		Agent:   r.UserAgent(),
	}
}
