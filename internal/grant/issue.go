package grant

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/core"
)

// codeEntropyBytes is the number of random bytes behind a generated code.
const codeEntropyBytes = 32

// IssueAuthorizationCode creates and stores a fresh single-use grant.
func (s *Service) IssueAuthorizationCode(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:            reqID,
		Time:          s.clock.Now(),
		Event:         core.AuditEventIssue,
		ClientID:      req.ClientID,
		PrincipalName: req.PrincipalName,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for code issuance")
		}
	}()

	if s.clients == nil {
		auditEntry.Outcome = string(core.KindInvalidRequest)
		auditEntry.Detail = "no client directory configured"
		return nil, core.InvalidRequestError("code issuance is not available")
	}
	if req.PrincipalName == "" {
		auditEntry.Outcome = string(core.KindInvalidRequest)
		auditEntry.Detail = "missing principal"
		return nil, core.InvalidRequestError("principal is required")
	}

	client, ok := s.clients.Lookup(req.ClientID)
	if !ok {
		auditEntry.Outcome = string(core.KindInvalidRequest)
		auditEntry.Detail = fmt.Sprintf("unknown client %q", req.ClientID)
		return nil, core.InvalidRequestError("unknown client_id")
	}
	auditEntry.RegisteredClientID = client.ID

	if err := validateIssueBinding(client, req); err != nil {
		auditEntry.Outcome = string(core.KindInvalidRequest)
		auditEntry.Detail = err.Error()
		return nil, core.InvalidRequestError(err.Error())
	}

	code, err := generateCode()
	if err != nil {
		auditEntry.Outcome = string(core.KindStorage)
		auditEntry.Detail = err.Error()
		return nil, core.StorageError(fmt.Errorf("generating authorization code: %w", err))
	}

	scopes := NormalizeScopes(req.Scopes)
	record := &core.AuthorizationRecord{
		ClientID:      client.ID,
		PrincipalName: req.PrincipalName,
		Code:          code,
		RedirectURI:   req.RedirectURI,
		Scopes:        scopes,
		Attributes: map[string]any{
			core.AttrKeyAuthorizationRequest: &core.AuthorizationRequest{
				ClientID:    client.ClientID,
				RedirectURI: req.RedirectURI,
				Scopes:      scopes,
				State:       req.State,
			},
		},
	}

	if err := s.store.Save(ctx, record); err != nil {
		auditEntry.Outcome = string(core.KindStorage)
		auditEntry.Detail = err.Error()
		return nil, core.StorageError(fmt.Errorf("saving authorization grant: %w", err))
	}

	auditEntry.Outcome = core.AuditOutcomeSuccess
	auditEntry.GrantFingerprint = audit.Fingerprint(code)
	auditEntry.Scopes = scopes

	logger.Info().
		Str("client_id", client.ClientID).
		Str("principal", req.PrincipalName).
		Msg("issued authorization code")

	return &IssueResult{Record: record, Code: code}, nil
}

// validateIssueBinding checks the requested redirect URI and scopes against
// the client's registration.
func validateIssueBinding(client *core.RegisteredClient, req IssueRequest) error {
	if req.RedirectURI == "" {
		if len(client.RedirectURIs) > 0 {
			return errors.New("redirect_uri is required for this client")
		}
	} else if !client.AllowsRedirectURI(req.RedirectURI) {
		return errors.New("redirect_uri is not registered for this client")
	}

	if len(client.Scopes) > 0 {
		allowed := make(map[string]struct{}, len(client.Scopes))
		for _, scope := range client.Scopes {
			allowed[scope] = struct{}{}
		}
		for _, scope := range req.Scopes {
			if _, ok := allowed[scope]; !ok {
				return fmt.Errorf("scope %q is not allowed for this client", scope)
			}
		}
	}
	return nil
}

// RevokeGrant removes an in-flight grant so its code can no longer be
// exchanged. Returns core.ErrGrantNotFound if no grant exists for the code.
func (s *Service) RevokeGrant(ctx context.Context, code string) error {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:               reqID,
		Time:             s.clock.Now(),
		Event:            core.AuditEventRevoke,
		GrantFingerprint: audit.Fingerprint(code),
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for grant revocation")
		}
	}()

	if err := s.store.Delete(ctx, code); err != nil {
		if errors.Is(err, core.ErrGrantNotFound) {
			auditEntry.Outcome = string(core.KindInvalidGrant)
			auditEntry.Detail = "no grant for presented code"
			return fmt.Errorf("revoking grant: %w", err)
		}
		auditEntry.Outcome = string(core.KindStorage)
		auditEntry.Detail = err.Error()
		return core.StorageError(fmt.Errorf("revoking grant: %w", err))
	}

	auditEntry.Outcome = core.AuditOutcomeSuccess
	logger.Info().Msg("revoked authorization grant")
	return nil
}

// generateCode returns a URL-safe authorization code with 256 bits of entropy.
func generateCode() (string, error) {
	b := make([]byte, codeEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
