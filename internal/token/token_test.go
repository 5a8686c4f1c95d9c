package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustcore/pkg/domain-errors"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-signing-key", "trustcore-test", "test-clients", ttl)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_RequiresKeyAndTTL(t *testing.T) {
	_, err := NewIssuer("", "iss", "aud", time.Minute)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, err = NewIssuer("key", "iss", "aud", 0)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestIssueAccessToken_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute)
	now := time.Now()

	signed, expiry, err := issuer.IssueAccessToken("subject-1", []string{"user", "admin"}, now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(15*time.Minute), expiry, time.Second)

	claims, err := issuer.ValidateAccessToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.SubjectID)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.NotEmpty(t, claims.ID, "jti must be set")
}

func TestIssueAccessToken_RequiresSubject(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	_, _, err := issuer.IssueAccessToken("", nil, time.Now())
	require.Error(t, err)
}

func TestValidateAccessToken_RejectsTamperedSignature(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	other := newTestIssuerWithKey(t, "different-key")

	signed, _, err := other.IssueAccessToken("subject-1", nil, time.Now())
	require.NoError(t, err)

	_, err = issuer.ValidateAccessToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
}

func TestValidateAccessToken_Expired(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)

	signed, _, err := issuer.IssueAccessToken("subject-1", nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = issuer.ValidateAccessToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func TestValidateAccessToken_Empty(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	_, err := issuer.ValidateAccessToken("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
}

func TestIssueRefreshToken_Opaque(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	a, err := issuer.IssueRefreshToken()
	require.NoError(t, err)
	b, err := issuer.IssueRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Opaque tokens are not JWTs and must not validate as access tokens.
	_, err = issuer.ValidateAccessToken(a)
	require.Error(t, err)
}

func newTestIssuerWithKey(t *testing.T, key string) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(key, "trustcore-test", "test-clients", time.Minute)
	require.NoError(t, err)
	return issuer
}
