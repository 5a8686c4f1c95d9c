package httptransport

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "trustcore/pkg/domain-errors"
)

type tokenPairResponse struct {
	AccessToken     string `json:"access_token"`
	AccessExpiresAt string `json:"access_expires_at"`
	RefreshToken    string `json:"refresh_token"`
	TokenType       string `json:"token_type"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Secret     string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	pair, err := h.auth.Authenticate(r.Context(), req.Identifier, req.Secret, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:    pair.RefreshToken,
		TokenType:       "Bearer",
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:    pair.RefreshToken,
		TokenType:       "Bearer",
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	existed, err := h.auth.Revoke(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": existed})
}

// handleLogout revokes every session of the subject named by the bearer
// access token.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.ValidateAccessToken(bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	subjectID, err := uuid.Parse(claims.SubjectID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidToken, "malformed subject claim"))
		return
	}

	revoked, err := h.auth.Logout(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sessions_revoked": revoked})
}

func (h *Handler) handleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	redirectURI := r.URL.Query().Get("redirect_uri")

	pair, err := h.auth.ProcessFederatedCallback(r.Context(), code, redirectURI, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:    pair.RefreshToken,
		TokenType:       "Bearer",
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
