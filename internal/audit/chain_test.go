package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleEntry(seq int64, prev string) *Entry {
	e := &Entry{
		SequenceID: seq,
		Timestamp:  time.Unix(1700000000, 42),
		Subject:    "subject-1",
		Category:   CategoryAuthentication,
		Action:     "login",
		EntityType: "session",
		EntityID:   "Chrome on Windows",
		Severity:   SeverityInfo,
		Tier:       TierActive,
	}
	e.PreviousEntryHash = prev
	e.EntryHash = ComputeHash(e, prev)
	return e
}

func TestComputeHash_Deterministic(t *testing.T) {
	a := sampleEntry(1, GenesisHash)
	b := sampleEntry(1, GenesisHash)
	assert.Equal(t, a.EntryHash, b.EntryHash)
	assert.Len(t, a.EntryHash, 64)
}

func TestComputeHash_CoversEveryField(t *testing.T) {
	base := sampleEntry(1, GenesisHash)

	mutations := map[string]func(*Entry){
		"sequence":    func(e *Entry) { e.SequenceID = 2 },
		"timestamp":   func(e *Entry) { e.Timestamp = e.Timestamp.Add(time.Nanosecond) },
		"subject":     func(e *Entry) { e.Subject = "subject-2" },
		"category":    func(e *Entry) { e.Category = CategorySecurity },
		"action":      func(e *Entry) { e.Action = "logout" },
		"entity type": func(e *Entry) { e.EntityType = "policy" },
		"entity id":   func(e *Entry) { e.EntityID = "other" },
		"severity":    func(e *Entry) { e.Severity = SeverityCritical },
		"before":      func(e *Entry) { e.BeforeState = "x" },
		"after":       func(e *Entry) { e.AfterState = "y" },
	}
	for name, mutate := range mutations {
		copied := *base
		mutate(&copied)
		assert.NotEqual(t, base.EntryHash, ComputeHash(&copied, GenesisHash), "mutating %s must change the hash", name)
	}
}

func TestComputeHash_ExcludesRetentionState(t *testing.T) {
	base := sampleEntry(1, GenesisHash)

	copied := *base
	copied.Tier = TierArchived
	now := time.Now()
	copied.ArchivedAt = &now
	copied.Flagged = true
	copied.FlagReason = "whatever"

	// Tier reclassification and flagging happen after the fact and must not
	// invalidate the chain.
	assert.Equal(t, base.EntryHash, ComputeHash(&copied, GenesisHash))
}

func TestComputeHash_ChainsOnPreviousHash(t *testing.T) {
	first := sampleEntry(1, GenesisHash)
	second := sampleEntry(2, first.EntryHash)
	assert.NotEqual(t, ComputeHash(second, first.EntryHash), ComputeHash(second, GenesisHash))
}

func TestComputeHash_LengthPrefixPreventsFieldSliding(t *testing.T) {
	a := sampleEntry(1, GenesisHash)
	b := sampleEntry(1, GenesisHash)
	a.Subject, a.Action = "ab", "c"
	b.Subject, b.Action = "a", "bc"
	assert.NotEqual(t, ComputeHash(a, GenesisHash), ComputeHash(b, GenesisHash))
}

func TestVerify(t *testing.T) {
	entry := sampleEntry(1, GenesisHash)
	assert.True(t, Verify(entry))

	entry.AfterState = "rewritten"
	assert.False(t, Verify(entry))
}
