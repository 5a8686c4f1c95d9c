package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustcore/pkg/domain-errors"
)

func TestGenerateToken_UniqueAndOpaque(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateToken()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(tok), 40, "256 bits of entropy should encode to 43 chars")
		assert.False(t, seen[tok], "tokens must not repeat")
		seen[tok] = true
	}
}

func TestTokenDigest_Deterministic(t *testing.T) {
	a, err := TokenDigest("some-token")
	require.NoError(t, err)
	b, err := TokenDigest("some-token")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := TokenDigest("other-token")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestTokenDigest_EmptyRejected(t *testing.T) {
	_, err := TokenDigest("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestHashSecret_VerifyRoundTrip(t *testing.T) {
	hash, err := HashSecret("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	require.NoError(t, VerifySecret("correct horse battery staple", hash))

	err = VerifySecret("wrong secret", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHashSecret_EmptyRejected(t *testing.T) {
	_, err := HashSecret("")
	require.Error(t, err)
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("abc", "abc"))
	assert.False(t, ConstantTimeEquals("abc", "abd"))
	assert.False(t, ConstantTimeEquals("abc", "abcd"))
}
