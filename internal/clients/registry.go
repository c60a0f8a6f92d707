package clients

import (
	"fmt"

	"github.com/grantd/grantd/internal/core"
)

// Registry resolves statically registered clients. Registration happens at
// config load only; there is no dynamic client registration.
type Registry struct {
	byClientID map[string]*core.RegisteredClient
	byID       map[string]*core.RegisteredClient
}

func NewRegistry(clients []core.RegisteredClient) (*Registry, error) {
	r := &Registry{
		byClientID: make(map[string]*core.RegisteredClient, len(clients)),
		byID:       make(map[string]*core.RegisteredClient, len(clients)),
	}
	for i := range clients {
		client := clients[i]
		if client.ID == "" {
			return nil, fmt.Errorf("client %q has no internal id", client.ClientID)
		}
		if client.ClientID == "" {
			return nil, fmt.Errorf("client %q has no client_id", client.ID)
		}
		if _, ok := r.byClientID[client.ClientID]; ok {
			return nil, fmt.Errorf("duplicate client_id %q", client.ClientID)
		}
		if _, ok := r.byID[client.ID]; ok {
			return nil, fmt.Errorf("duplicate client id %q", client.ID)
		}
		if client.Confidential() && client.Secret == "" {
			return nil, fmt.Errorf("client %q has no secret and is not marked public", client.ClientID)
		}
		r.byClientID[client.ClientID] = &client
		r.byID[client.ID] = &client
	}
	return r, nil
}

// Lookup resolves a client by its public client_id.
func (r *Registry) Lookup(clientID string) (*core.RegisteredClient, bool) {
	client, ok := r.byClientID[clientID]
	return client, ok
}

// LookupByID resolves a client by its internal registered id.
func (r *Registry) LookupByID(id string) (*core.RegisteredClient, bool) {
	client, ok := r.byID[id]
	return client, ok
}

func (r *Registry) Len() int {
	return len(r.byClientID)
}
