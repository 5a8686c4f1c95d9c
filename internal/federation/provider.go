// Package federation exchanges external authorization codes for federated
// identity claims. Providers are capability interfaces selected by
// configuration; the authentication service never knows which concrete
// provider it is talking to.
package federation

import (
	"context"

	"trustcore/internal/auth/models"
)

// Tokens is the result of a successful code exchange.
type Tokens struct {
	AccessToken string
	IDToken     string
}

// Provider is the capability interface for an external identity provider.
// Both calls are network round-trips to a party outside this system's
// control; implementations carry their own timeout, distinct from store
// deadlines.
type Provider interface {
	// ExchangeCode redeems an authorization code for provider tokens.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Tokens, error)

	// FetchUserInfo resolves the provider access token into identity claims.
	FetchUserInfo(ctx context.Context, accessToken string) (*models.FederatedProfile, error)
}
