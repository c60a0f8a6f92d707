package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"
	JWKSRoute        = "/.well-known/jwks.json"
	MetricsRoute     = "/metrics"

	// TokenRoute is the RFC 6749 token endpoint.
	TokenRoute = "/v1/token"

	AdminParent = "/v1/admin/"

	ListAuditsRoute = AdminParent + "audit"

	ListGrantsRoute  = AdminParent + "grants"
	IssueGrantRoute  = AdminParent + "grants"
	RevokeGrantRoute = AdminParent + "grants/{code}"

	TaskParent       = AdminParent + "tasks"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "/{name}/trigger"
	LogsForTaskRoute = TaskParent + "/{name}/logs"
)
