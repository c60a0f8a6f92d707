package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/api/presenter"
	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/core"
)

// handleAdminAudit retrieves audit log entries, optionally filtered.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	reader, ok := s.auditor.(core.AuditReader)
	if !ok {
		presenter.Error(w, r, "audit backend does not support queries", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterClientID := q.Get("client_id")
	filterFingerprint := q.Get("fingerprint")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterClientID != "" || filterFingerprint != "" {
		entries, err = reader.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterClientID != "" && entry.ClientID != filterClientID {
				return false
			}
			// a fingerprint filter matches either the grant or the token
			if filterFingerprint != "" &&
				entry.GrantFingerprint != filterFingerprint &&
				entry.TokenFingerprint != filterFingerprint {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = reader.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}

// GrantSummary is the admin view of an in-flight grant. The raw code never
// leaves the store; only its fingerprint is shown.
type GrantSummary struct {
	CodeFingerprint string   `json:"code_fingerprint"`
	ClientID        string   `json:"client_id"`
	PrincipalName   string   `json:"principal_name"`
	RedirectURI     string   `json:"redirect_uri,omitempty"`
	Scopes          []string `json:"scopes,omitempty"`
	Consumed        bool     `json:"consumed"`
}

// handleAdminGrants lists the unexpired authorization grants.
func (s *Server) handleAdminGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	records, err := s.store.ListActive(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list active grants")
		presenter.Error(w, r, "failed to list active grants", http.StatusInternalServerError)
		return
	}

	summaries := make([]GrantSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, GrantSummary{
			CodeFingerprint: audit.Fingerprint(record.Code),
			ClientID:        record.ClientID,
			PrincipalName:   record.PrincipalName,
			RedirectURI:     record.RedirectURI,
			Scopes:          record.Scopes,
			Consumed:        record.Consumed(),
		})
	}

	presenter.JSON(w, r, summaries, http.StatusOK)
}
