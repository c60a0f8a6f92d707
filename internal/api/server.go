package api

import (
	"net/http"

	"github.com/grantd/grantd/internal/api/middleware"
	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/clients"
	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
	"github.com/grantd/grantd/internal/metrics"
	"github.com/grantd/grantd/internal/signing"
	"github.com/grantd/grantd/internal/tasks"
)

type Server struct {
	grants        *grant.Service
	authenticator *clients.Authenticator
	signer        *signing.Signer
	store         core.AuthorizationStore
	auditor       core.Auditor
	taskManager   *tasks.Manager
	metrics       *metrics.Metrics
}

func NewServer(
	grants *grant.Service,
	authenticator *clients.Authenticator,
	signer *signing.Signer,
	store core.AuthorizationStore,
	auditor core.Auditor,
	taskManager *tasks.Manager,
	m *metrics.Metrics,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if m == nil {
		m = metrics.New()
	}

	return &Server{
		grants:        grants,
		authenticator: authenticator,
		signer:        signer,
		store:         store,
		auditor:       auditor,
		taskManager:   taskManager,
		metrics:       m,
	}
}

// Routes assembles the handler tree. The admin surface is only mounted when
// an admin signing secret is configured.
func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+JWKSRoute, s.handleJWKS)
	mux.Handle("GET "+MetricsRoute, s.metrics.Handler())

	// token endpoint
	mux.HandleFunc("POST "+TokenRoute, s.handleToken)

	// admin routes
	if len(adminSigningKey) > 0 {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
		adminMux.HandleFunc("GET "+ListGrantsRoute, s.handleAdminGrants)
		adminMux.HandleFunc("POST "+IssueGrantRoute, s.handleAdminIssueGrant)
		adminMux.HandleFunc("DELETE "+RevokeGrantRoute, s.handleAdminRevokeGrant)
		adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
		adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
		adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
		mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))
	}

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
