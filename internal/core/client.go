package core

// Client authentication methods.
const (
	ClientAuthBasic = "client_secret_basic"
	ClientAuthPost  = "client_secret_post"
	ClientAuthNone  = "none"
)

// RegisteredClient is a statically registered OAuth2 client.
type RegisteredClient struct {
	// ID is the internal stable identifier. Authorization records reference
	// clients by this value, not by the public client_id.
	ID string `json:"id" yaml:"id"`

	// ClientID is the public client identifier presented at the endpoints.
	ClientID string `json:"client_id" yaml:"client_id"`

	// Secret is the shared client secret. Empty for public clients.
	Secret string `json:"-" yaml:"secret"`

	// Public marks clients that authenticate without a secret.
	Public bool `json:"public,omitempty" yaml:"public"`

	// RedirectURIs are the callback URIs codes may be issued for.
	RedirectURIs []string `json:"redirect_uris,omitempty" yaml:"redirect_uris"`

	// Scopes limits what the client may be granted. Empty means unrestricted.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes"`
}

// Confidential reports whether the client authenticates with a secret.
func (c *RegisteredClient) Confidential() bool {
	return !c.Public
}

// AllowsRedirectURI reports whether uri is one of the client's registered
// redirect URIs. Comparison is exact, no normalization.
func (c *RegisteredClient) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// ClientIdentity is the authenticated caller of the token endpoint. It is
// produced by the client authenticator; the exchange pipeline trusts it
// without re-verifying credentials.
type ClientIdentity struct {
	// ClientID is the public client_id string. This value ends up in the
	// minted token's audience.
	ClientID string `json:"client_id"`

	// RegisteredClientID is the internal identifier authorization records
	// are bound to. Deliberately distinct from ClientID.
	RegisteredClientID string `json:"registered_client_id"`

	// Method records how the client authenticated.
	Method string `json:"method,omitempty"`

	// Authenticated is false for a zero or unresolved identity.
	Authenticated bool `json:"authenticated"`
}

// IdentityForClient builds the ClientIdentity for a successfully
// authenticated registered client.
func IdentityForClient(c *RegisteredClient, method string) *ClientIdentity {
	return &ClientIdentity{
		ClientID:           c.ClientID,
		RegisteredClientID: c.ID,
		Method:             method,
		Authenticated:      true,
	}
}
