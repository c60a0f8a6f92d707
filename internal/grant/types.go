package grant

import "github.com/grantd/grantd/internal/core"

// ExchangeRequest carries one authorization-code exchange attempt.
type ExchangeRequest struct {
	// Code is the authorization code presented at the token endpoint.
	Code string

	// Client is the already-authenticated caller. The pipeline trusts it;
	// credential verification happened upstream.
	Client *core.ClientIdentity

	// RedirectURI is the redirect_uri presented at the token endpoint.
	RedirectURI string

	// RequestedScopes are scope values sent along with the exchange. The
	// code's original grant is authoritative; these are recorded for audit
	// only and never widen or narrow the minted token.
	RequestedScopes []string
}

// ExchangeResult is returned on a successful exchange. It carries enough
// identity context for the caller to build its own response representation.
type ExchangeResult struct {
	// Token is the minted access token.
	Token *core.AccessToken

	// Client echoes the authenticated caller.
	Client *core.ClientIdentity

	// PrincipalName is the resource owner the token was minted for.
	PrincipalName string

	// Record is the consumed record snapshot, token attached.
	Record *core.AuthorizationRecord
}

// IssueRequest asks for a fresh authorization code.
type IssueRequest struct {
	// ClientID is the public client_id the code is issued to.
	ClientID string

	// PrincipalName is the resource owner approving the grant.
	PrincipalName string

	// RedirectURI the code is bound to. May be empty only for clients
	// without registered redirect URIs.
	RedirectURI string

	// Scopes to grant. Must be a subset of the client's allowed scopes.
	Scopes []string

	// State is the opaque state value of the authorization request, if any.
	State string
}

// IssueResult is returned on successful code issuance.
type IssueResult struct {
	// Record is the stored grant.
	Record *core.AuthorizationRecord

	// Code is the generated authorization code value.
	Code string
}

// ClientDirectory resolves registered clients for code issuance.
type ClientDirectory interface {
	// Lookup returns the client registered under the public client_id.
	Lookup(clientID string) (*core.RegisteredClient, bool)
}
