package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorWireMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        *Error
		wantCode   string
		wantStatus int
	}{
		{"invalid request", InvalidRequestError("missing code"), OAuthErrInvalidRequest, http.StatusBadRequest},
		{"invalid client", InvalidClientError("client authentication failed"), OAuthErrInvalidClient, http.StatusUnauthorized},
		{"invalid grant", InvalidGrantError(), OAuthErrInvalidGrant, http.StatusBadRequest},
		{"unsupported grant type", UnsupportedGrantTypeError("password"), OAuthErrUnsupportedGrantType, http.StatusBadRequest},
		{"minting failure", TokenMintingError(errors.New("no key")), OAuthErrServerError, http.StatusInternalServerError},
		{"storage failure", StorageError(errors.New("connection reset")), OAuthErrServerError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.OAuthCode(); got != tc.wantCode {
				t.Errorf("OAuthCode() = %q, want %q", got, tc.wantCode)
			}
			if got := tc.err.HTTPStatus(); got != tc.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tc.wantStatus)
			}
		})
	}
}

func TestInvalidGrantDescriptionIsUniform(t *testing.T) {
	// Every invalid_grant, regardless of cause, must present the same body.
	a := InvalidGrantError()
	b := InvalidGrantError()
	if a.Description != b.Description {
		t.Fatalf("descriptions differ: %q vs %q", a.Description, b.Description)
	}
	if a.Description == "" {
		t.Fatal("invalid_grant description is empty")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := StorageError(cause)

	if !errors.Is(err, cause) {
		t.Error("StorageError does not unwrap to its cause")
	}
	wrapped := fmt.Errorf("exchanging code: %w", err)
	if !IsKind(wrapped, KindStorage) {
		t.Error("IsKind does not see through fmt.Errorf wrapping")
	}
	if got := KindOf(wrapped); got != KindStorage {
		t.Errorf("KindOf() = %q, want %q", got, KindStorage)
	}
	if got := KindOf(cause); got != "" {
		t.Errorf("KindOf(plain error) = %q, want empty", got)
	}
}

func TestErrorStringRedactsNothingForLogs(t *testing.T) {
	err := TokenMintingError(errors.New("key expired"))
	if got := err.Error(); got != "token_minting_failed: key expired" {
		t.Errorf("Error() = %q", got)
	}
	plain := InvalidGrantError()
	if got := plain.Error(); got == "" {
		t.Error("Error() is empty for unwrapped error")
	}
}
