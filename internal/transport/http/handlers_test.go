package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/audit"
	"trustcore/internal/audit/integrity"
	"trustcore/internal/audit/retention"
	"trustcore/internal/auth/models"
	"trustcore/internal/token"
	dErrors "trustcore/pkg/domain-errors"
)

// stubAuth returns canned results so status mapping can be tested without
// real credential state.
type stubAuth struct {
	pair       *models.TokenPair
	err        error
	claims     *token.AccessTokenClaims
	revoked    bool
	logoutN    int
	lastMeta   models.ClientMeta
	lastSecret string
}

func (a *stubAuth) Authenticate(_ context.Context, _, secret string, meta models.ClientMeta) (*models.TokenPair, error) {
	a.lastSecret = secret
	a.lastMeta = meta
	return a.pair, a.err
}

func (a *stubAuth) Refresh(context.Context, string) (*models.TokenPair, error) {
	return a.pair, a.err
}

func (a *stubAuth) ProcessFederatedCallback(_ context.Context, _, _ string, meta models.ClientMeta) (*models.TokenPair, error) {
	a.lastMeta = meta
	return a.pair, a.err
}

func (a *stubAuth) Revoke(context.Context, string) (bool, error) {
	return a.revoked, a.err
}

func (a *stubAuth) Logout(context.Context, uuid.UUID) (int, error) {
	return a.logoutN, a.err
}

func (a *stubAuth) ValidateAccessToken(string) (*token.AccessTokenClaims, error) {
	if a.claims == nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid access token")
	}
	return a.claims, nil
}

type testEnv struct {
	auth      *stubAuth
	store     *audit.InMemoryStore
	scheduler *retention.Scheduler
	router    http.Handler
}

type storeVerifier struct {
	store audit.Store
}

func (v storeVerifier) VerifyEntry(ctx context.Context, seq int64) (bool, error) {
	entry, err := v.store.GetBySequence(ctx, seq)
	if err != nil {
		return false, err
	}
	return audit.Verify(entry), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(store)
	t.Cleanup(recorder.Close)
	for i := 0; i < 3; i++ {
		_, err := recorder.Append(context.Background(), audit.UserAction("subject-1", "login", "session", ""))
		require.NoError(t, err)
	}

	engine := integrity.New(store)
	scheduler, err := retention.New(store, storeVerifier{store}, retention.Policy{
		ActiveRetention:  30 * 24 * time.Hour,
		ArchiveRetention: 365 * 24 * time.Hour,
		TaskInterval:     time.Hour,
		AutoArchive:      true,
	})
	require.NoError(t, err)

	auth := &stubAuth{}
	handler := NewHandler(auth, store, engine, scheduler, logger)
	return &testEnv{
		auth:      auth,
		store:     store,
		scheduler: scheduler,
		router:    NewRouter(handler, logger),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.auth.pair = &models.TokenPair{
		AccessToken:     "access",
		AccessExpiresAt: time.Now().Add(15 * time.Minute),
		RefreshToken:    "refresh",
	}

	rec := env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"identifier": "ada@example.com",
		"secret":     "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp["access_token"])
	assert.Equal(t, "refresh", resp["refresh_token"])
	assert.Equal(t, "Bearer", resp["token_type"])
	assert.Equal(t, "secret", env.auth.lastSecret)
}

func TestLogin_StatusMapping(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeInvalidCredentials, http.StatusUnauthorized},
		{dErrors.CodeAccountInactive, http.StatusForbidden},
		{dErrors.CodeUnverifiedIdentity, http.StatusForbidden},
		{dErrors.CodeTransientStore, http.StatusServiceUnavailable},
		{dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		env.auth.err = dErrors.New(tc.code, "boom")

		rec := env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"identifier": "a", "secret": "b"})
		assert.Equal(t, tc.status, rec.Code, "code %s", tc.code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(tc.code), resp["error"])
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_RevokedMapsTo401(t *testing.T) {
	env := newTestEnv(t)
	env.auth.err = dErrors.New(dErrors.CodeTokenRevoked, "refresh token has been revoked")

	rec := env.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": "spent"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.auth.revoked = true

	rec := env.do(t, http.MethodPost, "/v1/auth/revoke", map[string]string{"refresh_token": "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["revoked"])
}

func TestLogout_RequiresValidBearer(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_Success(t *testing.T) {
	env := newTestEnv(t)
	subject := uuid.New()
	env.auth.claims = &token.AccessTokenClaims{SubjectID: subject.String()}
	env.auth.logoutN = 2

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer some-access-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["sessions_revoked"])
}

func TestFederatedCallback_BadGatewayOnProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.auth.err = dErrors.New(dErrors.CodeFederationError, "code exchange failed")

	rec := env.do(t, http.MethodGet, "/v1/auth/federated/callback?code=x", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuditQuery(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/audit/entries?subject=subject-1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0]["entry_hash"])
}

func TestAuditQuery_BadParams(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/audit/entries?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/audit/entries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditExport_CSV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/audit/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4, "header plus three entries")
}

func TestAuditExport_BadFormat(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/audit/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegrityReport(t *testing.T) {
	env := newTestEnv(t)
	env.store.Mutate(2, func(e *audit.Entry) { e.Subject = "forged" })

	rec := env.do(t, http.MethodGet, "/v1/audit/integrity/report?from=1&to=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report integrity.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Verified)
	assert.Equal(t, []int64{2, 3}, report.FailedIDs)
}

func TestIntegrityReport_MissingParams(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/audit/integrity/report", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetentionPolicy_GetAndPut(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/audit/retention/policy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto retentionPolicyDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "720h0m0s", dto.ActiveRetention)

	dto.ActiveRetention = "168h"
	rec = env.do(t, http.MethodPut, "/v1/audit/retention/policy", dto)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7*24*time.Hour, env.scheduler.Policy().ActiveRetention)
}

func TestRetentionPolicy_PutRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v1/audit/retention/policy", retentionPolicyDTO{
		ActiveRetention:  "0s",
		ArchiveRetention: "720h",
		TaskInterval:     "1h",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/audit/retention/policy", retentionPolicyDTO{
		ActiveRetention: "not-a-duration",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetentionRunAndStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/audit/retention/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result retention.TaskResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)

	rec = env.do(t, http.MethodGet, "/v1/audit/retention/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats retention.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Cycles)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
