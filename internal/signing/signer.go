package signing

import (
	"context"
	"crypto"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grantd/grantd/internal/core"
)

var _ core.TokenSigner = (*Signer)(nil)

// Signer serializes claim sets as JWTs signed with an asymmetric key.
type Signer struct {
	key    crypto.Signer
	method jwt.SigningMethod
	keyID  string
}

// NewSigner builds a signer for the key. An empty algorithm is derived from
// the key type; an empty key id becomes the key's RFC 7638 thumbprint.
// Incompatible algorithm/key pairs are rejected here, not at request time.
func NewSigner(key crypto.Signer, algorithm, keyID string) (*Signer, error) {
	if algorithm == "" {
		derived, err := DeriveAlgorithm(key)
		if err != nil {
			return nil, err
		}
		algorithm = derived
	}
	if err := ValidateAlgorithmForKey(algorithm, key); err != nil {
		return nil, err
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}

	if keyID == "" {
		derived, err := DeriveKeyID(key)
		if err != nil {
			return nil, err
		}
		keyID = derived
	}

	return &Signer{
		key:    key,
		method: method,
		keyID:  keyID,
	}, nil
}

func (s *Signer) Algorithm() string {
	return s.method.Alg()
}

func (s *Signer) KeyID() string {
	return s.keyID
}

// Sign produces the compact JWS for the claim set. The returned artifact
// echoes the claims exactly as signed.
func (s *Signer) Sign(_ context.Context, claims core.ClaimSet) (*core.SignedToken, error) {
	token := jwt.NewWithClaims(s.method, jwt.MapClaims(claims.Map()))
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &core.SignedToken{
		Value:     signed,
		Claims:    claims,
		Algorithm: s.method.Alg(),
		KeyID:     s.keyID,
	}, nil
}

// VerifyToken parses and verifies a token minted by this signer. Used by the
// debug tooling, not by the exchange path.
func (s *Signer) VerifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return s.key.Public(), nil
	}, jwt.WithValidMethods([]string{s.method.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	return token, nil
}
