package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Store-level sentinels. Stores speak these; the exchange service translates
// them into the OAuth2 taxonomy below.
var (
	// ErrGrantNotFound means no record exists for a code, including expired
	// entries and entries of another kind.
	ErrGrantNotFound = errors.New("authorization grant not found")

	// ErrCodeConsumed means a consume attempt lost the race: the record
	// already carries an access token.
	ErrCodeConsumed = errors.New("authorization code already consumed")

	// ErrCodeExists means an insert collided with an existing code.
	ErrCodeExists = errors.New("authorization code already exists")
)

// OAuth2 wire-level error codes (RFC 6749 §5.2).
const (
	OAuthErrInvalidRequest       = "invalid_request"
	OAuthErrInvalidClient        = "invalid_client"
	OAuthErrInvalidGrant         = "invalid_grant"
	OAuthErrUnsupportedGrantType = "unsupported_grant_type"
	OAuthErrServerError          = "server_error"
)

// ErrorKind classifies token-endpoint failures.
type ErrorKind string

const (
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindInvalidClient    ErrorKind = "invalid_client"
	KindInvalidGrant     ErrorKind = "invalid_grant"
	KindUnsupportedGrant ErrorKind = "unsupported_grant"
	KindTokenMinting     ErrorKind = "token_minting_failed"
	KindStorage          ErrorKind = "storage_failure"
)

// invalidGrantDescription is the one description every invalid_grant cause
// shares. Unknown code, expired code, consumed code, wrong client and
// redirect mismatch must be indistinguishable to the caller.
const invalidGrantDescription = "the provided authorization code is invalid, expired, revoked, or was issued to another client"

// Error carries an exchange failure: the taxonomy kind, the description safe
// to put on the wire, and an optional wrapped cause for logs. Internal causes
// never reach the response body.
type Error struct {
	Kind        ErrorKind
	Description string
	wrapped     error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// OAuthCode maps the kind to its RFC 6749 error code.
func (e *Error) OAuthCode() string {
	switch e.Kind {
	case KindInvalidRequest:
		return OAuthErrInvalidRequest
	case KindInvalidClient:
		return OAuthErrInvalidClient
	case KindInvalidGrant:
		return OAuthErrInvalidGrant
	case KindUnsupportedGrant:
		return OAuthErrUnsupportedGrantType
	default:
		return OAuthErrServerError
	}
}

// HTTPStatus maps the kind to the token-endpoint response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidClient:
		return http.StatusUnauthorized
	case KindTokenMinting, KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func InvalidRequestError(description string) *Error {
	return &Error{Kind: KindInvalidRequest, Description: description}
}

func InvalidClientError(description string) *Error {
	return &Error{Kind: KindInvalidClient, Description: description}
}

// InvalidGrantError deliberately takes no cause description for the wire.
// The detailed cause belongs in logs and audit entries only.
func InvalidGrantError() *Error {
	return &Error{Kind: KindInvalidGrant, Description: invalidGrantDescription}
}

func UnsupportedGrantTypeError(grantType string) *Error {
	return &Error{
		Kind:        KindUnsupportedGrant,
		Description: fmt.Sprintf("grant type %q is not supported", grantType),
	}
}

// TokenMintingError wraps a signer failure. No state was mutated.
func TokenMintingError(err error) *Error {
	return &Error{
		Kind:        KindTokenMinting,
		Description: "the authorization server failed to issue the token",
		wrapped:     err,
	}
}

// StorageError wraps a persistence failure after minting. The code's
// consumption state is ambiguous and is treated as consumed.
func StorageError(err error) *Error {
	return &Error{
		Kind:        KindStorage,
		Description: "the authorization server failed to complete the exchange",
		wrapped:     err,
	}
}

// KindOf returns the taxonomy kind of err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
