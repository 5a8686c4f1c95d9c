// Package token issues and validates the two credential artifacts: signed,
// short-lived access tokens and opaque, high-entropy refresh tokens. Access
// token validation is pure computation with no storage round-trip, trading
// instant revocability for fast authorization checks. Revocation bites on the
// refresh token; access tokens self-expire.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/secrets"
)

// AccessTokenClaims represents the JWT claims for access tokens.
type AccessTokenClaims struct {
	SubjectID string   `json:"subject_id"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer creates and validates tokens. The signing key is set once at
// construction and never mutated at runtime; key rotation is an operational
// procedure that restarts the process with a new key.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
}

// NewIssuer constructs a token issuer. The key must be non-empty and the TTL
// positive; both are configuration errors, not runtime conditions.
func NewIssuer(signingKey, issuer, audience string, accessTTL time.Duration) (*Issuer, error) {
	if signingKey == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "signing key is required")
	}
	if accessTTL <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "access token TTL must be positive")
	}
	return &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *Issuer) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken creates a signed HS256 access token embedding the subject
// identity and role set. Returns the signed token and its expiry.
func (s *Issuer) IssueAccessToken(subjectID string, roles []string, now time.Time) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate jti")
	}
	jti := hex.EncodeToString(b)
	expiry := now.Add(s.accessTTL)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		SubjectID: subjectID,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign access token")
	}
	return signed, expiry, nil
}

// IssueRefreshToken creates an opaque refresh token. It carries no claims;
// all state about it lives in the refresh token store, keyed by digest.
func (s *Issuer) IssueRefreshToken() (string, error) {
	return secrets.GenerateToken()
}

// ValidateAccessToken checks signature and expiry only. It is stateless by
// contract and must never consult storage.
func (s *Issuer) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "empty token")
	}

	claims := new(AccessTokenClaims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "unexpected signing algorithm")
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeTokenExpired, "access token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidToken, "invalid access token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid access token")
	}
	return claims, nil
}
