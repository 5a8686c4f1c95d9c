// Package integrity verifies the audit hash chain and produces exportable
// evidence. Verification is read-only: a broken chain is never auto-repaired,
// only reported, so operators can localize the break.
package integrity

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"trustcore/internal/audit"
	"trustcore/internal/sentinel"
	dErrors "trustcore/pkg/domain-errors"
)

// EntrySource is the slice of the audit store contract the engine reads.
type EntrySource interface {
	GetBySequence(ctx context.Context, seq int64) (*audit.Entry, error)
}

// Engine verifies entries and signs entry hashes for export. Signatures use
// Ed25519 so exported evidence is verifiable by anyone holding the public
// key, without access to this process's secrets.
type Engine struct {
	source  EntrySource
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// Option configures the Engine.
type Option func(*Engine)

// WithSigningSeed enables signing from a hex-encoded 32-byte Ed25519 seed.
func WithSigningSeed(seedHex string) Option {
	return func(e *Engine) {
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return
		}
		e.private = ed25519.NewKeyFromSeed(seed)
		e.public = e.private.Public().(ed25519.PublicKey)
	}
}

// New constructs an Engine over an entry source.
func New(source EntrySource, opts ...Option) *Engine {
	e := &Engine{source: source}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VerifyEntry recomputes one entry's hash from its stored fields and stored
// previous-hash and compares it to the stored entry hash.
func (e *Engine) VerifyEntry(ctx context.Context, seq int64) (bool, error) {
	entry, err := e.source.GetBySequence(ctx, seq)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeNotFound, "audit entry not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not load audit entry")
	}
	return audit.Verify(entry), nil
}

// VerifyRange walks the chain from seq from to to inclusive. Chain
// semantics apply: once a link breaks (a recomputed hash mismatch, or a
// previous-hash that does not match the prior entry's stored hash), every
// subsequent entry in the range is reported invalid, individually, so the
// break can be localized.
func (e *Engine) VerifyRange(ctx context.Context, from, to int64) (map[int64]bool, error) {
	if from <= 0 || to < from {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid verification range")
	}

	results := make(map[int64]bool, to-from+1)
	broken := false
	var prevStoredHash string

	for seq := from; seq <= to; seq++ {
		entry, err := e.source.GetBySequence(ctx, seq)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Purged entries fall out of the range without breaking
				// the chain for survivors.
				prevStoredHash = ""
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not load audit entry")
		}

		valid := audit.Verify(entry)
		if valid && prevStoredHash != "" && entry.PreviousEntryHash != prevStoredHash {
			valid = false
		}
		if broken {
			valid = false
		}
		if !valid {
			broken = true
		}

		results[seq] = valid
		prevStoredHash = entry.EntryHash
	}
	return results, nil
}

// Sign produces a detached Ed25519 signature over an entry's stored hash.
func (e *Engine) Sign(ctx context.Context, seq int64) (string, error) {
	if e.private == nil {
		return "", dErrors.New(dErrors.CodeConfiguration, "signing key not configured")
	}
	entry, err := e.source.GetBySequence(ctx, seq)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeNotFound, "audit entry not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeTransientStore, "could not load audit entry")
	}
	sig := ed25519.Sign(e.private, []byte(entry.EntryHash))
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifySignature checks a detached signature against an entry's stored hash.
func (e *Engine) VerifySignature(ctx context.Context, seq int64, signature string) (bool, error) {
	if e.public == nil {
		return false, dErrors.New(dErrors.CodeConfiguration, "signing key not configured")
	}
	entry, err := e.source.GetBySequence(ctx, seq)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeNotFound, "audit entry not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not load audit entry")
	}
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false, dErrors.New(dErrors.CodeInvalidInput, "malformed signature")
	}
	return ed25519.Verify(e.public, []byte(entry.EntryHash), sig), nil
}

// Report aggregates a range verification for operators.
type Report struct {
	From      int64   `json:"from"`
	To        int64   `json:"to"`
	Total     int     `json:"total"`
	Verified  int     `json:"verified"`
	FailedIDs []int64 `json:"failed_ids"`
	Score     float64 `json:"score"`
}

// GenerateReport runs VerifyRange and aggregates the outcome. Score is the
// verified fraction, 1.0 for an empty range.
func (e *Engine) GenerateReport(ctx context.Context, from, to int64) (*Report, error) {
	results, err := e.VerifyRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &Report{From: from, To: to, Total: len(results), Score: 1.0}
	for seq := from; seq <= to; seq++ {
		valid, ok := results[seq]
		if !ok {
			continue
		}
		if valid {
			report.Verified++
		} else {
			report.FailedIDs = append(report.FailedIDs, seq)
		}
	}
	if report.Total > 0 {
		report.Score = float64(report.Verified) / float64(report.Total)
	}
	return report, nil
}
