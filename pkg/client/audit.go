package client

import (
	"context"

	"github.com/grantd/grantd/internal/api"
	"github.com/grantd/grantd/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	ClientID      string
	Fingerprint   string
}

// ListAudits retrieves the latest audit entries, optionally filtered.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.ClientID != "" {
		ub = ub.addQueryParam("client_id", opts.ClientID)
	}
	if opts.Fingerprint != "" {
		ub = ub.addQueryParam("fingerprint", opts.Fingerprint)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}

// ListActiveGrants retrieves the unexpired authorization grants.
func (c *Client) ListActiveGrants(ctx context.Context) ([]api.GrantSummary, string, error) {
	var resp []api.GrantSummary
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListGrantsRoute).
		build(), &resp)
	return resp, correlation, err
}
