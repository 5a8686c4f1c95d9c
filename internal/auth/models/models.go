package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"trustcore/internal/sentinel"
)

// Revocation reasons recorded on refresh token records. "rotated" is written
// by the single-use rotation path; the others by explicit revocation.
const (
	ReasonRotated     = "rotated"
	ReasonUserRevoked = "user_revoked"
	ReasonLogoutAll   = "logout_all"
)

// RefreshTokenRecord is the stored shadow of an opaque refresh token. The raw
// token never lands here; TokenHash is the SHA-256 digest used as the lookup
// key. Records are never deleted; revocation is a terminal state, not
// removal, so the forensic trail survives.
type RefreshTokenRecord struct {
	ID            uuid.UUID
	TokenHash     string
	SubjectID     uuid.UUID
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	RevokedReason string
	RevokedAt     *time.Time
	ClientAddress string
	ClientAgent   string
}

// Usable reports whether the record can still be redeemed at the given time.
func (r *RefreshTokenRecord) Usable(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// ValidateForRotation checks the single-use rotation preconditions. The order
// matters: a revoked record reports revoked even when it is also expired, so
// a concurrent loser observes the rotation rather than a generic expiry.
func (r *RefreshTokenRecord) ValidateForRotation(now time.Time) error {
	if r.Revoked {
		return sentinel.ErrAlreadyRevoked
	}
	if !now.Before(r.ExpiresAt) {
		return sentinel.ErrExpired
	}
	return nil
}

// MarkRevoked flips the record into its terminal state. Calling it on an
// already-revoked record is a no-op so repeated revocation stays idempotent.
func (r *RefreshTokenRecord) MarkRevoked(reason string, now time.Time) {
	if r.Revoked {
		return
	}
	r.Revoked = true
	r.RevokedReason = reason
	r.RevokedAt = &now
}

// TokenPair is the session credential pair returned by every successful
// credential-lifecycle transition. The access token is self-contained and
// never persisted; the refresh token's stored shadow is RefreshTokenRecord.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// ClientMeta captures request provenance persisted alongside refresh records
// and carried forward across rotations.
type ClientMeta struct {
	Address string
	Agent   string
}

// DisplayName renders the client agent as "Browser on OS" for audit
// readability. Unparseable agents fall back to the raw string.
func (m ClientMeta) DisplayName() string {
	if m.Agent == "" {
		return "unknown client"
	}
	ua := useragent.New(m.Agent)
	browser, _ := ua.Browser()
	os := ua.OS()
	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)
	if browser == "" || os == "" {
		return m.Agent
	}
	return browser + " on " + os
}

// Identity is the slice of the user domain model the trust core needs. It is
// produced by the external identity lookup collaborator.
type Identity struct {
	SubjectID     uuid.UUID
	Identifier    string
	SecretDigest  string
	Active        bool
	EmailVerified bool
	Roles         []string
}

// FederatedProfile is the claim set returned by the federation provider's
// userinfo endpoint.
type FederatedProfile struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}
