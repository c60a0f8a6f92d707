package grant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/core"
)

// DefaultAccessTokenTTL applies when no token TTL is configured.
const DefaultAccessTokenTTL = time.Hour

// Options configure the exchange pipeline.
type Options struct {
	// Issuer is the "iss" claim value. Must be a validated absolute URL;
	// configuration validation guarantees that before the service is built.
	Issuer string

	// AccessTokenTTL is the lifetime of minted tokens.
	AccessTokenTTL time.Duration

	// Clock overrides the time source. Defaults to the system clock.
	Clock core.Clock
}

// Service redeems single-use authorization codes for signed access tokens.
// Each exchange runs resolve, binding validation and minting in that order;
// any failure short-circuits with a taxonomy error and no state mutation.
type Service struct {
	store    core.AuthorizationStore
	signer   core.TokenSigner
	clients  ClientDirectory
	auditor  core.Auditor
	clock    core.Clock
	issuer   string
	tokenTTL time.Duration
}

func NewService(
	store core.AuthorizationStore,
	signer core.TokenSigner,
	clients ClientDirectory,
	auditor core.Auditor,
	opts Options,
) *Service {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock()
	}
	ttl := opts.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Service{
		store:    store,
		signer:   signer,
		clients:  clients,
		auditor:  auditor,
		clock:    clock,
		issuer:   opts.Issuer,
		tokenTTL: ttl,
	}
}

// ExchangeAuthorizationCode redeems a code for an access token.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:               reqID,
		Time:             s.clock.Now(),
		Event:            core.AuditEventExchange,
		GrantFingerprint: audit.Fingerprint(req.Code),
	}
	if req.Client != nil {
		auditEntry.ClientID = req.Client.ClientID
		auditEntry.RegisteredClientID = req.Client.RegisteredClientID
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for code exchange")
		}
	}()

	record, err := s.resolve(ctx, req, &auditEntry)
	if err != nil {
		return nil, err
	}
	auditEntry.PrincipalName = record.PrincipalName

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("sub", record.PrincipalName)
	})

	if err := s.validateBinding(ctx, record, req, &auditEntry); err != nil {
		return nil, err
	}

	result, err := s.mint(ctx, record, req, &auditEntry)
	if err != nil {
		return nil, err
	}

	auditEntry.Outcome = core.AuditOutcomeSuccess
	auditEntry.Scopes = result.Token.Scopes
	auditEntry.TokenFingerprint = audit.Fingerprint(result.Token.Value)
	return result, nil
}

// resolve looks up the grant for the presented code. Read-only. All lookup
// failures collapse into one invalid_grant: distinguishing "never existed"
// from "expired" from "already used" would hand an attacker an enumeration
// oracle.
func (s *Service) resolve(ctx context.Context, req ExchangeRequest, auditEntry *core.AuditEntry) (*core.AuthorizationRecord, error) {
	logger := log.Ctx(ctx)

	// the transport layer authenticates callers before dispatching here, but
	// an unauthenticated identity must not reach the store lookup either
	if req.Client == nil || !req.Client.Authenticated {
		auditEntry.Outcome = string(core.KindInvalidClient)
		auditEntry.Detail = "caller is not an authenticated client"
		logger.Warn().Msg("code exchange rejected: unauthenticated caller")
		return nil, core.InvalidClientError("client authentication required")
	}

	record, err := s.store.FindByCode(ctx, req.Code, core.TokenKindAuthorizationCode)
	if err != nil {
		if errors.Is(err, core.ErrGrantNotFound) {
			auditEntry.Outcome = string(core.KindInvalidGrant)
			auditEntry.Detail = "no grant for presented code"
			logger.Debug().Msg("code exchange rejected: unknown authorization code")
			return nil, core.InvalidGrantError()
		}
		auditEntry.Outcome = string(core.KindStorage)
		auditEntry.Detail = err.Error()
		return nil, core.StorageError(fmt.Errorf("looking up authorization code: %w", err))
	}

	if record.Consumed() {
		auditEntry.Outcome = string(core.KindInvalidGrant)
		auditEntry.Detail = "code already consumed"
		logger.Warn().Msg("code exchange rejected: authorization code already used")
		return nil, core.InvalidGrantError()
	}

	return record, nil
}

// validateBinding confirms the code is bound to the caller. Client binding
// runs first: the client is the stronger anchor, and both checks must pass
// before any signing work starts.
func (s *Service) validateBinding(ctx context.Context, record *core.AuthorizationRecord, req ExchangeRequest, auditEntry *core.AuditEntry) error {
	logger := log.Ctx(ctx)

	if record.ClientID != req.Client.RegisteredClientID {
		auditEntry.Outcome = string(core.KindInvalidGrant)
		auditEntry.Detail = "code issued to a different client"
		logger.Warn().
			Str("client_id", req.Client.ClientID).
			Msg("code exchange rejected: code was issued to another client")
		return core.InvalidGrantError()
	}

	if record.RedirectURI != "" {
		// exact string equality, no normalization
		if req.RedirectURI != record.RedirectURI {
			auditEntry.Outcome = string(core.KindInvalidGrant)
			auditEntry.Detail = "redirect_uri mismatch"
			logger.Warn().
				Str("client_id", req.Client.ClientID).
				Msg("code exchange rejected: redirect_uri does not match the authorization request")
			return core.InvalidGrantError()
		}
	}
	// when the original authorization request carried no redirect URI the
	// replay check is intentionally skipped: there is nothing to compare
	// against, and codes without a stored URI are only issued to clients
	// without registered redirect URIs

	return nil
}

// mint builds the claim set, signs it, and persists the consumed record.
// The store save is the consumption point; a signing failure leaves the code
// unconsumed, a save failure burns it.
func (s *Service) mint(ctx context.Context, record *core.AuthorizationRecord, req ExchangeRequest, auditEntry *core.AuditEntry) (*ExchangeResult, error) {
	logger := log.Ctx(ctx)

	issuedAt := s.clock.Now()
	claims := core.ClaimSet{
		Issuer:  s.issuer,
		Subject: record.PrincipalName,
		// audience is the public client_id, not the registered id
		Audience:  []string{req.Client.ClientID},
		ID:        uuid.NewString(),
		IssuedAt:  issuedAt,
		NotBefore: issuedAt,
		ExpiresAt: issuedAt.Add(s.tokenTTL),
		// the code's original grant is authoritative, token-endpoint scope
		// parameters are ignored
		Scopes: NormalizeScopes(record.Scopes),
	}

	signed, err := s.signer.Sign(ctx, claims)
	if err != nil {
		// nothing was persisted, the code stays unconsumed
		auditEntry.Outcome = string(core.KindTokenMinting)
		auditEntry.Detail = err.Error()
		logger.Error().Err(err).Msg("signing access token failed")
		return nil, core.TokenMintingError(fmt.Errorf("signing access token: %w", err))
	}

	// value, timestamps and scopes come from the signed artifact so the
	// returned token matches exactly what was signed
	token := &core.AccessToken{
		Value:     signed.Value,
		TokenType: core.TokenTypeBearer,
		IssuedAt:  signed.Claims.IssuedAt,
		ExpiresAt: signed.Claims.ExpiresAt,
		Scopes:    signed.Claims.Scopes,
	}

	consumed := record.WithAccessToken(token, signed)
	if err := s.store.Save(ctx, consumed); err != nil {
		if errors.Is(err, core.ErrCodeConsumed) || errors.Is(err, core.ErrGrantNotFound) {
			// a concurrent exchange won, or the code expired between
			// resolution and consumption; at most one mint per code
			auditEntry.Outcome = string(core.KindInvalidGrant)
			auditEntry.Detail = "grant consumed or gone at save"
			logger.Warn().Msg("code exchange rejected: code no longer redeemable")
			return nil, core.InvalidGrantError()
		}
		// fail closed: consumption state is ambiguous, treat the code as burned
		auditEntry.Outcome = string(core.KindStorage)
		auditEntry.Detail = err.Error()
		logger.Error().Err(err).Msg("saving consumed grant failed")
		return nil, core.StorageError(fmt.Errorf("saving consumed grant: %w", err))
	}

	logger.Info().
		Str("client_id", req.Client.ClientID).
		Strs("scopes", token.Scopes).
		Time("expires_at", token.ExpiresAt).
		Msg("minted access token")

	return &ExchangeResult{
		Token:         token,
		Client:        req.Client,
		PrincipalName: record.PrincipalName,
		Record:        consumed,
	}, nil
}

// NormalizeScopes returns a sorted copy with duplicates removed.
func NormalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
