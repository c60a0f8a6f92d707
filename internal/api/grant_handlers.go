package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/api/presenter"
	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
)

// IssueGrantPayload asks for a fresh authorization code for a registered
// client. This stands in for the browser-facing authorization endpoint,
// which is out of scope.
type IssueGrantPayload struct {
	ClientID      string   `json:"client_id"`
	PrincipalName string   `json:"principal_name"`
	RedirectURI   string   `json:"redirect_uri,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	State         string   `json:"state,omitempty"`
}

// IssueGrantResponse returns the generated code. The code is shown exactly
// once; afterwards only its fingerprint appears in audit and admin views.
type IssueGrantResponse struct {
	Code          string   `json:"code"`
	ClientID      string   `json:"client_id"`
	PrincipalName string   `json:"principal_name"`
	RedirectURI   string   `json:"redirect_uri,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// handleAdminIssueGrant creates a single-use authorization code.
func (s *Server) handleAdminIssueGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload IssueGrantPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode grant issuance payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := s.grants.IssueAuthorizationCode(ctx, grant.IssueRequest{
		ClientID:      payload.ClientID,
		PrincipalName: payload.PrincipalName,
		RedirectURI:   payload.RedirectURI,
		Scopes:        payload.Scopes,
		State:         payload.State,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("grant issuance failed")
		var exchangeErr *core.Error
		if errors.As(err, &exchangeErr) {
			presenter.Error(w, r, exchangeErr.Description, exchangeErr.HTTPStatus())
			return
		}
		presenter.Error(w, r, "grant issuance failed", http.StatusInternalServerError)
		return
	}

	s.metrics.ObserveIssuedCode()

	record := result.Record
	presenter.JSON(w, r, IssueGrantResponse{
		Code:          result.Code,
		ClientID:      payload.ClientID,
		PrincipalName: record.PrincipalName,
		RedirectURI:   record.RedirectURI,
		Scopes:        record.Scopes,
	}, http.StatusCreated)
}

// handleAdminRevokeGrant removes an in-flight grant by its code.
func (s *Server) handleAdminRevokeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	code := r.PathValue("code")
	if code == "" {
		presenter.Error(w, r, "missing code", http.StatusBadRequest)
		return
	}

	if err := s.grants.RevokeGrant(ctx, code); err != nil {
		if errors.Is(err, core.ErrGrantNotFound) {
			presenter.Error(w, r, "no grant for the given code", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Msg("grant revocation failed")
		presenter.Error(w, r, "grant revocation failed", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, map[string]string{"status": "revoked"}, http.StatusOK)
}
