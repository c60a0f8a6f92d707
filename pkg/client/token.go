package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/grantd/grantd/internal/api"
)

// ExchangeOptions carry one authorization-code exchange.
type ExchangeOptions struct {
	// Code is the single-use authorization code to redeem.
	Code string

	// ClientID and ClientSecret authenticate the client via HTTP Basic.
	// Leave ClientSecret empty for public clients.
	ClientID     string
	ClientSecret string

	// RedirectURI must match the redirect URI of the original authorization
	// request when one was recorded.
	RedirectURI string
}

// ExchangeAuthorizationCode redeems a code at the token endpoint. The
// request is form-encoded per RFC 6749 §4.1.3; client credentials travel in
// the Authorization header.
func (c *Client) ExchangeAuthorizationCode(
	ctx context.Context,
	opts ExchangeOptions,
) (*api.TokenResponse, string, error) {
	form := url.Values{}
	form.Set("grant_type", api.GrantTypeAuthorizationCode)
	form.Set("code", opts.Code)
	if opts.RedirectURI != "" {
		form.Set("redirect_uri", opts.RedirectURI)
	}
	if opts.ClientSecret == "" {
		// public clients authenticate by client_id alone, in the form
		form.Set("client_id", opts.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url().
		setPath(api.TokenRoute).
		build(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if opts.ClientSecret != "" {
		// RFC 6749 §2.3.1: credentials are form-urlencoded before basic auth
		req.SetBasicAuth(url.QueryEscape(opts.ClientID), url.QueryEscape(opts.ClientSecret))
	}

	var result api.TokenResponse
	correlation, err := c.do(req, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}
