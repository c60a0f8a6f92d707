package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/api/presenter"
	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
)

// GrantTypeAuthorizationCode is the only grant type this service supports.
const GrantTypeAuthorizationCode = "authorization_code"

// TokenResponse is the RFC 6749 §5.1 success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// handleToken is the token endpoint. It authenticates the caller, dispatches
// on grant_type explicitly, and hands authorization_code requests to the
// exchange pipeline.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)
	start := time.Now()

	outcome := "success"
	defer func() {
		s.metrics.ObserveExchange(outcome, time.Since(start).Seconds())
	}()

	if err := r.ParseForm(); err != nil {
		outcome = string(core.KindInvalidRequest)
		presenter.OAuthError(w, r, core.InvalidRequestError("malformed request body"))
		return
	}

	identity, err := s.authenticator.Authenticate(r)
	if err != nil {
		outcome = string(core.KindInvalidClient)
		logger.Warn().Err(err).Msg("client authentication failed")
		presenter.OAuthError(w, r, err)
		return
	}

	switch grantType := r.PostFormValue("grant_type"); grantType {
	case GrantTypeAuthorizationCode:
		s.exchangeCode(w, r, identity, &outcome)
	case "":
		outcome = string(core.KindInvalidRequest)
		presenter.OAuthError(w, r, core.InvalidRequestError("grant_type is required"))
	default:
		outcome = string(core.KindUnsupportedGrant)
		logger.Warn().Str("grant_type", grantType).Msg("unsupported grant type requested")
		presenter.OAuthError(w, r, core.UnsupportedGrantTypeError(grantType))
	}
}

func (s *Server) exchangeCode(w http.ResponseWriter, r *http.Request, identity *core.ClientIdentity, outcome *string) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	code := r.PostFormValue("code")
	if code == "" {
		*outcome = string(core.KindInvalidRequest)
		presenter.OAuthError(w, r, core.InvalidRequestError("code is required"))
		return
	}

	result, err := s.grants.ExchangeAuthorizationCode(ctx, grant.ExchangeRequest{
		Code:            code,
		Client:          identity,
		RedirectURI:     r.PostFormValue("redirect_uri"),
		RequestedScopes: strings.Fields(r.PostFormValue("scope")),
	})
	if err != nil {
		if kind := core.KindOf(err); kind != "" {
			*outcome = string(kind)
		} else {
			*outcome = string(core.KindStorage)
		}
		logger.Warn().Err(err).Msg("code exchange failed")
		presenter.OAuthError(w, r, err)
		return
	}

	token := result.Token

	// token responses must never be cached (RFC 6749 §5.1)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	presenter.JSON(w, r, TokenResponse{
		AccessToken: token.Value,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
		Scope:       strings.Join(token.Scopes, " "),
	}, http.StatusOK)
}
