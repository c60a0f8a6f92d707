package core

import "time"

// TokenTypeBearer is the only token type this service issues (RFC 6750).
const TokenTypeBearer = "Bearer"

// AccessToken is the result of a successful code exchange. It is immutable
// after creation; value, timestamps and scopes are copied from the signed
// artifact, never recomputed.
type AccessToken struct {
	// Value is the serialized signed token.
	Value string `json:"value"`

	// TokenType is the OAuth2 token type, always bearer.
	TokenType string `json:"token_type"`

	// IssuedAt is the instant the claim set was built.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt indicates when this token becomes invalid.
	ExpiresAt time.Time `json:"expires_at"`

	// Scopes are the granted scopes carried in the token.
	Scopes []string `json:"scopes,omitempty"`
}

// ClaimSet is the set of assertions embedded in a signed token. It is built
// fresh per exchange from the authorization record and the authenticated
// client, and is never persisted directly.
type ClaimSet struct {
	// Issuer is the configured issuer identifier ("iss").
	Issuer string

	// Subject is the resource owner's principal name ("sub").
	Subject string

	// Audience contains the public client_id of the requesting client ("aud").
	Audience []string

	// ID is a unique token identifier ("jti").
	ID string

	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time

	// Scopes are the granted scopes ("scope"), sorted.
	Scopes []string
}

// Map renders the claim set with its registered JWT claim names. Timestamps
// become NumericDate values (seconds since epoch).
func (c ClaimSet) Map() map[string]any {
	m := map[string]any{
		"iss": c.Issuer,
		"sub": c.Subject,
		"aud": c.Audience,
		"iat": c.IssuedAt.Unix(),
		"nbf": c.NotBefore.Unix(),
		"exp": c.ExpiresAt.Unix(),
	}
	if c.ID != "" {
		m["jti"] = c.ID
	}
	if len(c.Scopes) > 0 {
		m["scope"] = c.Scopes
	}
	return m
}

// SignedToken is the artifact produced by a TokenSigner.
type SignedToken struct {
	// Value is the compact serialization of the signed token.
	Value string `json:"value"`

	// Claims is the claim set exactly as signed.
	Claims ClaimSet `json:"claims"`

	// Algorithm is the signature algorithm used, e.g. "RS256".
	Algorithm string `json:"algorithm"`

	// KeyID is the identifier of the signing key, if any.
	KeyID string `json:"key_id,omitempty"`
}
