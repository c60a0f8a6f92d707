package client

import (
	"context"

	"github.com/grantd/grantd/internal/api"
)

// IssueCode asks the server to mint a fresh authorization code. Requires an
// authenticated admin session.
func (c *Client) IssueCode(
	ctx context.Context,
	payload api.IssueGrantPayload,
) (*api.IssueGrantResponse, string, error) {
	var resp api.IssueGrantResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.IssueGrantRoute).
		build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// RevokeGrant removes an in-flight grant so its code can no longer be
// exchanged. Requires an authenticated admin session.
func (c *Client) RevokeGrant(ctx context.Context, code string) (string, error) {
	return c.delete(ctx, c.url().
		setPath(api.RevokeGrantRoute).
		setPathParam("code", code).
		build(), nil)
}
