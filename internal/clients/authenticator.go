package clients

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"net/url"

	"github.com/grantd/grantd/internal/core"
)

// Authenticator verifies client credentials on token-endpoint requests and
// turns them into the identity the exchange pipeline trusts.
type Authenticator struct {
	registry *Registry
}

func NewAuthenticator(registry *Registry) *Authenticator {
	return &Authenticator{registry: registry}
}

// Authenticate resolves the caller from HTTP Basic credentials (RFC 6749
// §2.3.1) or from client_id/client_secret form parameters. Public clients
// authenticate by client_id alone. Every failure is the same invalid_client;
// unknown client and wrong secret are indistinguishable to the caller.
func (a *Authenticator) Authenticate(r *http.Request) (*core.ClientIdentity, error) {
	clientID, secret, method, err := extractCredentials(r)
	if err != nil {
		return nil, err
	}

	client, ok := a.registry.Lookup(clientID)
	if !ok {
		// burn the comparison anyway so unknown ids cost the same
		secretsEqual(clientID, secret)
		return nil, core.InvalidClientError("client authentication failed")
	}

	if client.Confidential() {
		if secret == "" || !secretsEqual(client.Secret, secret) {
			return nil, core.InvalidClientError("client authentication failed")
		}
		return core.IdentityForClient(client, method), nil
	}

	// public client: no secret registered, none may be presented
	if secret != "" {
		return nil, core.InvalidClientError("client authentication failed")
	}
	return core.IdentityForClient(client, core.ClientAuthNone), nil
}

func extractCredentials(r *http.Request) (clientID, secret, method string, err error) {
	if user, pass, ok := r.BasicAuth(); ok {
		// RFC 6749 encodes both values with the form-urlencoding before
		// they go into the basic auth header
		id, idErr := url.QueryUnescape(user)
		pw, pwErr := url.QueryUnescape(pass)
		if idErr != nil || pwErr != nil || id == "" {
			return "", "", "", core.InvalidClientError("malformed basic auth credentials")
		}
		return id, pw, core.ClientAuthBasic, nil
	}

	clientID = r.PostFormValue("client_id")
	if clientID == "" {
		return "", "", "", core.InvalidClientError("missing client credentials")
	}
	return clientID, r.PostFormValue("client_secret"), core.ClientAuthPost, nil
}

// secretsEqual compares in constant time. Hashing both sides first keeps the
// comparison length-independent.
func secretsEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
