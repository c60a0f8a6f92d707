package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/core"
)

// ErrorResponse is the generic error body of the admin surface.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

// OAuthErrorResponse is the RFC 6749 §5.2 error body of the token endpoint.
// The correlation id is an extension field so callers can reference a failed
// exchange when talking to operators.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	correlationID, _ := r.Context().Value("correlation_id").(string)
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: correlationID,
	}
	JSON(w, r, resp, status)
}

// OAuthError renders an exchange failure as the OAuth2 wire error. Only the
// taxonomy kind and its fixed description reach the body; wrapped causes stay
// in the logs. Non-taxonomy errors collapse to server_error.
func OAuthError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID, _ := r.Context().Value("correlation_id").(string)

	code := core.OAuthErrServerError
	description := "the authorization server encountered an unexpected condition"
	status := http.StatusInternalServerError

	var exchangeErr *core.Error
	if errors.As(err, &exchangeErr) {
		code = exchangeErr.OAuthCode()
		description = exchangeErr.Description
		status = exchangeErr.HTTPStatus()
	}

	// token responses and their errors must never be cached (RFC 6749 §5)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="grantd", charset="UTF-8"`)
	}

	JSON(w, r, OAuthErrorResponse{
		Error:            code,
		ErrorDescription: description,
		CorrelationID:    correlationID,
	}, status)
}
