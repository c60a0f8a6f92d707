package core

import "time"

// Audit event names.
const (
	AuditEventExchange = "grant.exchange"
	AuditEventIssue    = "grant.issue"
	AuditEventRevoke   = "grant.revoke"
)

// AuditOutcomeSuccess marks a successful operation; failures carry the
// taxonomy kind instead.
const AuditOutcomeSuccess = "success"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Event describes what happened (e.g. "grant.exchange")
	Event string `json:"event"`

	// Outcome is "success" or the failure kind
	Outcome string `json:"outcome"`

	// ClientID is the public client_id of the caller, if resolved
	ClientID string `json:"client_id,omitempty"`
	// RegisteredClientID is the internal client identifier, if resolved
	RegisteredClientID string `json:"registered_client_id,omitempty"`

	// PrincipalName is the resource owner bound to the grant, if resolved
	PrincipalName string `json:"principal_name,omitempty"`

	// GrantFingerprint identifies the authorization code without storing it
	GrantFingerprint string `json:"grant_fingerprint,omitempty"`
	// TokenFingerprint identifies the minted token without storing it
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Scopes granted on success
	Scopes []string `json:"scopes,omitempty"`

	// Detail carries the server-side failure cause. Never sent to clients.
	Detail string `json:"detail,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors that can be queried back, e.g. for
// the admin API. The file and memory auditors implement it; noop does not.
type AuditReader interface {
	Auditor

	// GetRecent returns up to limit most recent entries.
	GetRecent(limit int) ([]AuditEntry, error)

	// Find returns up to limit entries matching the filter.
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}

// Fingerprinter reduces a credential value to a storable identifier.
type Fingerprinter func(value string) string
