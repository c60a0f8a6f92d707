package signing

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// PublicJWKS returns the verification key set served at the JWKS endpoint.
// Only public key material leaves this function.
func (s *Signer) PublicJWKS() (*jose.JSONWebKeySet, error) {
	jwk := jose.JSONWebKey{
		Key:       s.key.Public(),
		KeyID:     s.keyID,
		Algorithm: s.Algorithm(),
		Use:       "sig",
	}
	if !jwk.Valid() {
		return nil, fmt.Errorf("signing key does not yield a valid JWK")
	}
	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{jwk},
	}, nil
}
