package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/platform/config"
	dErrors "trustcore/pkg/domain-errors"
)

func newProviderServer(t *testing.T, userInfoStatus int, userInfo map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"id_token":     "provider-id-token",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userInfoStatus)
		if userInfoStatus == http.StatusOK {
			_ = json.NewEncoder(w).Encode(userInfo)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, base string) *OIDCProvider {
	t.Helper()
	provider, err := NewOIDC(config.Federation{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      base + "/auth",
		TokenURL:     base + "/token",
		UserInfoURL:  base + "/userinfo",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return provider
}

func TestNewOIDC_RequiresEndpoints(t *testing.T) {
	_, err := NewOIDC(config.Federation{ClientID: "id"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestExchangeCode_Success(t *testing.T) {
	server := newProviderServer(t, http.StatusOK, nil)
	provider := newTestProvider(t, server.URL)

	tokens, err := provider.ExchangeCode(context.Background(), "good-code", "https://app.example.com/cb")
	require.NoError(t, err)
	assert.Equal(t, "provider-access", tokens.AccessToken)
	assert.Equal(t, "provider-id-token", tokens.IDToken)
}

func TestExchangeCode_Rejected(t *testing.T) {
	server := newProviderServer(t, http.StatusOK, nil)
	provider := newTestProvider(t, server.URL)

	_, err := provider.ExchangeCode(context.Background(), "bad-code", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFederationError))
}

func TestExchangeCode_EmptyCode(t *testing.T) {
	server := newProviderServer(t, http.StatusOK, nil)
	provider := newTestProvider(t, server.URL)

	_, err := provider.ExchangeCode(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFederationError))
}

func TestFetchUserInfo_Success(t *testing.T) {
	server := newProviderServer(t, http.StatusOK, map[string]any{
		"sub":            "ext-1",
		"email":          "ada@example.com",
		"email_verified": true,
		"given_name":     "Ada",
		"family_name":    "Lovelace",
	})
	provider := newTestProvider(t, server.URL)

	profile, err := provider.FetchUserInfo(context.Background(), "provider-access")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", profile.ExternalID)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Ada", profile.GivenName)
}

func TestFetchUserInfo_MissingEmail(t *testing.T) {
	server := newProviderServer(t, http.StatusOK, map[string]any{"sub": "ext-1"})
	provider := newTestProvider(t, server.URL)

	_, err := provider.FetchUserInfo(context.Background(), "provider-access")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFederationError))
}

func TestFetchUserInfo_ProviderError(t *testing.T) {
	server := newProviderServer(t, http.StatusInternalServerError, nil)
	provider := newTestProvider(t, server.URL)

	_, err := provider.FetchUserInfo(context.Background(), "provider-access")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFederationError))
}
