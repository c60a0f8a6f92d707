package core

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TokenKind identifies the class of credential a store entry represents.
type TokenKind string

const (
	// TokenKindAuthorizationCode is the single-use code redeemed at the token endpoint.
	TokenKindAuthorizationCode TokenKind = "authorization_code"
)

// Attribute keys used in AuthorizationRecord.Attributes.
const (
	// AttrKeyAuthorizationRequest holds the original authorization request
	// the code was issued for.
	AttrKeyAuthorizationRequest = "authorization_request"

	// AttrKeyAccessTokenClaims holds the claim set of the signed access token
	// after the code has been consumed.
	AttrKeyAccessTokenClaims = "access_token.claims"
)

// AuthorizationRecord represents one authorization-code grant in flight.
// A record transitions from "code issued, no token" to "code consumed, token
// attached" exactly once and never regresses.
type AuthorizationRecord struct {
	// ClientID is the registered (internal) identifier of the client the
	// code was issued to. Note: this is NOT the public client_id string.
	ClientID string `json:"client_id"`

	// PrincipalName identifies the resource owner who approved the grant.
	PrincipalName string `json:"principal_name"`

	// Code is the opaque single-use credential value.
	Code string `json:"code"`

	// RedirectURI is the redirect URI supplied at the original authorization
	// request, or empty if none was required.
	RedirectURI string `json:"redirect_uri,omitempty"`

	// Scopes are the granted scope strings.
	Scopes []string `json:"scopes,omitempty"`

	// AccessToken is set once a token has been minted for this record.
	// A nil value means the code is still unconsumed.
	AccessToken *AccessToken `json:"access_token,omitempty"`

	// Attributes is an extensible bag, e.g. the original authorization
	// request and, after consumption, the signed claim set.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Consumed reports whether a token has already been minted for this record.
func (r *AuthorizationRecord) Consumed() bool {
	return r.AccessToken != nil
}

// Clone returns a deep copy of the record.
func (r *AuthorizationRecord) Clone() *AuthorizationRecord {
	cp := *r
	cp.Scopes = append([]string(nil), r.Scopes...)
	if r.AccessToken != nil {
		tok := *r.AccessToken
		tok.Scopes = append([]string(nil), r.AccessToken.Scopes...)
		cp.AccessToken = &tok
	}
	if r.Attributes != nil {
		cp.Attributes = make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// WithAccessToken returns a copy of the record with the access token attached
// and the signed claim set retained in the attribute bag. The receiver is not
// modified; concurrent readers of the old snapshot never observe the update.
func (r *AuthorizationRecord) WithAccessToken(token *AccessToken, signed *SignedToken) *AuthorizationRecord {
	cp := r.Clone()
	cp.AccessToken = token
	if cp.Attributes == nil {
		cp.Attributes = make(map[string]any, 1)
	}
	if signed != nil {
		cp.Attributes[AttrKeyAccessTokenClaims] = signed.Claims.Map()
	}
	return cp
}

// AuthorizationRequest captures the parameters of the original authorization
// request. It travels inside the record's attribute bag and survives JSON
// round-trips through the persistent stores.
type AuthorizationRequest struct {
	ClientID    string   `json:"client_id" mapstructure:"client_id"`
	RedirectURI string   `json:"redirect_uri,omitempty" mapstructure:"redirect_uri"`
	Scopes      []string `json:"scopes,omitempty" mapstructure:"scopes"`
	State       string   `json:"state,omitempty" mapstructure:"state"`
}

// DecodeAuthorizationRequest extracts the original authorization request from
// a record's attribute bag. Returns nil if the attribute is absent.
func DecodeAuthorizationRequest(attributes map[string]any) (*AuthorizationRequest, error) {
	raw, ok := attributes[AttrKeyAuthorizationRequest]
	if !ok {
		return nil, nil
	}
	if typed, ok := raw.(*AuthorizationRequest); ok {
		return typed, nil
	}
	var req AuthorizationRequest
	if err := mapstructure.Decode(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding authorization request attribute: %w", err)
	}
	return &req, nil
}
