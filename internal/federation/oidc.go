package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"trustcore/internal/auth/models"
	"trustcore/internal/platform/config"
	dErrors "trustcore/pkg/domain-errors"
)

const defaultProviderTimeout = 10 * time.Second

// OIDCProvider implements Provider against any OIDC-style identity provider
// with a standard authorization-code flow and a userinfo endpoint.
type OIDCProvider struct {
	oauth       oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewOIDC constructs an OIDC provider from configuration. The timeout bounds
// every provider round-trip; provider latency is outside this system's
// control and must not inherit store deadlines.
func NewOIDC(cfg config.Federation) (*OIDCProvider, error) {
	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "federation provider requires client id, token URL, and userinfo URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &OIDCProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// ExchangeCode redeems an authorization code at the provider's token
// endpoint. Any provider error maps to federation_error; no local state is
// touched here.
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*Tokens, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeFederationError, "authorization code is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	opts := []oauth2.AuthCodeOption{}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	tok, err := p.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFederationError, "code exchange failed")
	}

	tokens := &Tokens{AccessToken: tok.AccessToken}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	return tokens, nil
}

// userInfoResponse mirrors the standard OIDC userinfo claim names.
type userInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// FetchUserInfo resolves the provider access token into identity claims.
// A missing email claim is a federation error: the local identity match
// keys on email and cannot proceed without it.
func (p *OIDCProvider) FetchUserInfo(ctx context.Context, accessToken string) (*models.FederatedProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFederationError, "userinfo request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeFederationError,
			fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFederationError, "decode userinfo response")
	}
	if info.Email == "" {
		return nil, dErrors.New(dErrors.CodeFederationError, "userinfo response missing email claim")
	}

	return &models.FederatedProfile{
		ExternalID:    info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
	}, nil
}
