package validation

import (
	"fmt"
	"net/url"

	"github.com/grantd/grantd/internal/core"
)

// ValidateClients checks the static client registrations for internal
// consistency: unique identifiers, secret/public coherence, and absolute
// redirect URIs.
func ValidateClients(clients []core.RegisteredClient) ([]core.RegisteredClient, error) {
	seenIDs := make(map[string]struct{})
	seenClientIDs := make(map[string]struct{})
	var validClients []core.RegisteredClient

	for i, client := range clients {
		if client.ID == "" {
			return nil, fmt.Errorf("client #%d missing id", i)
		}
		if client.ClientID == "" {
			return nil, fmt.Errorf("client '%s' missing client_id", client.ID)
		}
		if _, exists := seenIDs[client.ID]; exists {
			return nil, fmt.Errorf("client id '%s' is not unique", client.ID)
		}
		seenIDs[client.ID] = struct{}{}
		if _, exists := seenClientIDs[client.ClientID]; exists {
			return nil, fmt.Errorf("client_id '%s' is not unique", client.ClientID)
		}
		seenClientIDs[client.ClientID] = struct{}{}

		if !client.Public && client.Secret == "" {
			return nil, fmt.Errorf("client '%s' is confidential but has no secret", client.ClientID)
		}
		if client.Public && client.Secret != "" {
			return nil, fmt.Errorf("client '%s' is public but has a secret set", client.ClientID)
		}

		for _, uri := range client.RedirectURIs {
			parsed, err := url.Parse(uri)
			if err != nil {
				return nil, fmt.Errorf("client '%s' redirect URI '%s': %w", client.ClientID, uri, err)
			}
			if !parsed.IsAbs() || parsed.Host == "" {
				return nil, fmt.Errorf("client '%s' redirect URI '%s' must be absolute", client.ClientID, uri)
			}
		}

		validClients = append(validClients, client)
	}

	return validClients, nil
}
