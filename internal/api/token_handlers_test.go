package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/grantd/grantd/internal/api/presenter"
	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/clients"
	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
	"github.com/grantd/grantd/internal/signing"
	"github.com/grantd/grantd/internal/store"
)

var testAdminSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	server  *httptest.Server
	store   *store.InMemoryStore
	grants  *grant.Service
	signer  *signing.Signer
	auditor *audit.InMemoryAuditor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating signing key: %v", err)
	}
	signer, err := signing.NewSigner(key, "ES256", "test-key")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	registry, err := clients.NewRegistry([]core.RegisteredClient{
		{
			ID:           "C1",
			ClientID:     "app-client",
			Secret:       "s3cret",
			RedirectURIs: []string{"https://app/cb"},
		},
		{
			ID:       "C2",
			ClientID: "spa-client",
			Public:   true,
		},
	})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	st := store.NewInMemoryStore(5 * time.Minute)
	auditor := audit.NewInMemoryAuditor(100)
	grants := grant.NewService(st, signer, registry, auditor, grant.Options{
		Issuer:         "https://auth.example.com",
		AccessTokenTTL: time.Hour,
	})

	srv := NewServer(grants, clients.NewAuthenticator(registry), signer, st, auditor, nil, nil)
	ts := httptest.NewServer(srv.Routes(testAdminSecret))
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, grants: grants, signer: signer, auditor: auditor}
}

func (e *testEnv) seedGrant(t *testing.T) string {
	t.Helper()
	result, err := e.grants.IssueAuthorizationCode(t.Context(), grant.IssueRequest{
		ClientID:      "app-client",
		PrincipalName: "alice",
		RedirectURI:   "https://app/cb",
		Scopes:        []string{"read"},
	})
	if err != nil {
		t.Fatalf("seeding grant: %v", err)
	}
	return result.Code
}

func (e *testEnv) postToken(t *testing.T, form url.Values, user, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+TokenRoute, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != "" {
		req.SetBasicAuth(url.QueryEscape(user), url.QueryEscape(pass))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var body T
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestTokenEndpointSuccess(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedGrant(t)

	resp := env.postToken(t, url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"code":         {code},
		"redirect_uri": {"https://app/cb"},
	}, "app-client", "s3cret")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	if pragma := resp.Header.Get("Pragma"); pragma != "no-cache" {
		t.Errorf("Pragma = %q, want no-cache", pragma)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	body := decodeBody[TokenResponse](t, resp)
	if body.TokenType != core.TokenTypeBearer {
		t.Errorf("token_type = %q, want Bearer", body.TokenType)
	}
	if body.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", body.ExpiresIn)
	}
	if body.Scope != "read" {
		t.Errorf("scope = %q, want read", body.Scope)
	}

	// the issued token verifies against the server's own key and carries
	// the public client_id as audience
	token, err := env.signer.VerifyToken(body.AccessToken)
	if err != nil {
		t.Fatalf("verifying issued token: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	aud, err := claims.GetAudience()
	if err != nil {
		t.Fatalf("reading audience: %v", err)
	}
	if diff := cmp.Diff(jwt.ClaimStrings{"app-client"}, aud); diff != "" {
		t.Errorf("audience mismatch (-want +got):\n%s", diff)
	}
	if claims["sub"] != "alice" {
		t.Errorf("sub = %v, want alice", claims["sub"])
	}
}

func TestTokenEndpointSingleUse(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedGrant(t)

	form := url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"code":         {code},
		"redirect_uri": {"https://app/cb"},
	}

	first := env.postToken(t, form, "app-client", "s3cret")
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first exchange status = %d, want 200", first.StatusCode)
	}

	second := env.postToken(t, form, "app-client", "s3cret")
	if second.StatusCode != http.StatusBadRequest {
		t.Fatalf("second exchange status = %d, want 400", second.StatusCode)
	}
	body := decodeBody[presenter.OAuthErrorResponse](t, second)
	if body.Error != core.OAuthErrInvalidGrant {
		t.Errorf("error = %q, want invalid_grant", body.Error)
	}
}

func TestTokenEndpointErrorBodies(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedGrant(t)

	tests := []struct {
		name        string
		form        url.Values
		user, pass  string
		wantStatus  int
		wantError   string
	}{
		{
			name: "unknown code",
			form: url.Values{
				"grant_type":   {GrantTypeAuthorizationCode},
				"code":         {"never-issued"},
				"redirect_uri": {"https://app/cb"},
			},
			user: "app-client", pass: "s3cret",
			wantStatus: http.StatusBadRequest,
			wantError:  core.OAuthErrInvalidGrant,
		},
		{
			name: "redirect mismatch",
			form: url.Values{
				"grant_type":   {GrantTypeAuthorizationCode},
				"code":         {code},
				"redirect_uri": {"https://evil.example/cb"},
			},
			user: "app-client", pass: "s3cret",
			wantStatus: http.StatusBadRequest,
			wantError:  core.OAuthErrInvalidGrant,
		},
		{
			name: "bad client secret",
			form: url.Values{
				"grant_type": {GrantTypeAuthorizationCode},
				"code":       {code},
			},
			user: "app-client", pass: "wrong",
			wantStatus: http.StatusUnauthorized,
			wantError:  core.OAuthErrInvalidClient,
		},
		{
			name: "missing grant_type",
			form: url.Values{
				"code": {code},
			},
			user: "app-client", pass: "s3cret",
			wantStatus: http.StatusBadRequest,
			wantError:  core.OAuthErrInvalidRequest,
		},
		{
			name: "unsupported grant type",
			form: url.Values{
				"grant_type": {"client_credentials"},
			},
			user: "app-client", pass: "s3cret",
			wantStatus: http.StatusBadRequest,
			wantError:  core.OAuthErrUnsupportedGrantType,
		},
		{
			name: "missing code",
			form: url.Values{
				"grant_type": {GrantTypeAuthorizationCode},
			},
			user: "app-client", pass: "s3cret",
			wantStatus: http.StatusBadRequest,
			wantError:  core.OAuthErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postToken(t, tt.form, tt.user, tt.pass)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.StatusCode == http.StatusUnauthorized {
				if wa := resp.Header.Get("WWW-Authenticate"); !strings.Contains(wa, "Basic") {
					t.Errorf("WWW-Authenticate = %q, want Basic challenge", wa)
				}
			}
			if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}

			body := decodeBody[presenter.OAuthErrorResponse](t, resp)
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if body.CorrelationID == "" {
				t.Error("error body has no correlation id")
			}
		})
	}

	// all invalid_grant causes share one description
	t.Run("invalid_grant descriptions are uniform", func(t *testing.T) {
		causes := []url.Values{
			{"grant_type": {GrantTypeAuthorizationCode}, "code": {"unknown"}},
			{"grant_type": {GrantTypeAuthorizationCode}, "code": {code}, "redirect_uri": {"https://wrong/cb"}},
		}
		var descriptions []string
		for _, form := range causes {
			resp := env.postToken(t, form, "app-client", "s3cret")
			body := decodeBody[presenter.OAuthErrorResponse](t, resp)
			if body.Error == core.OAuthErrInvalidGrant {
				descriptions = append(descriptions, body.ErrorDescription)
			}
		}
		for i := 1; i < len(descriptions); i++ {
			if descriptions[i] != descriptions[0] {
				t.Errorf("descriptions differ: %q vs %q", descriptions[0], descriptions[i])
			}
		}
	})
}

func TestTokenEndpointRequestedScopesIgnored(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedGrant(t)

	resp := env.postToken(t, url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"code":         {code},
		"redirect_uri": {"https://app/cb"},
		"scope":        {"read write admin"},
	}, "app-client", "s3cret")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[TokenResponse](t, resp)
	if body.Scope != "read" {
		t.Errorf("scope = %q, want the grant's original scope", body.Scope)
	}
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + HealthCheckRoute)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("jwks serves the verification key", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + JWKSRoute)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body := decodeBody[struct {
			Keys []map[string]any `json:"keys"`
		}](t, resp)
		if len(body.Keys) != 1 {
			t.Fatalf("JWKS has %d keys, want 1", len(body.Keys))
		}
		if kid := body.Keys[0]["kid"]; kid != "test-key" {
			t.Errorf("kid = %v, want test-key", kid)
		}
		if _, leaked := body.Keys[0]["d"]; leaked {
			t.Error("JWKS contains private key material")
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + MetricsRoute)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("correlation id header on every response", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + HealthCheckRoute)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.Header.Get("X-Correlation-ID") == "" {
			t.Error("response is missing the correlation id header")
		}
	})
}
