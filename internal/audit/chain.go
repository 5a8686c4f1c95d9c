package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// GenesisHash is the fixed previous-hash of the first entry in a store.
var GenesisHash = strings.Repeat("0", 64)

// canonicalBytes produces the deterministic serialization hashed into the
// chain. Fields are length-prefixed in a fixed order, so no two distinct
// entries can share an encoding and no JSON map-ordering ambiguity exists.
// EntryHash, tier, and flag state are excluded: the first is the output, the
// others are mutable classifications outside the tamper-evidence boundary.
func canonicalBytes(e *Entry) []byte {
	var buf []byte

	appendInt := func(v int64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		buf = append(buf, b[:]...)
	}
	appendStr := func(s string) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(s)))
		buf = append(buf, b[:]...)
		buf = append(buf, s...)
	}

	appendInt(e.SequenceID)
	appendInt(e.Timestamp.UnixNano())
	appendStr(e.Subject)
	appendStr(string(e.Category))
	appendStr(e.Action)
	appendStr(e.EntityType)
	appendStr(e.EntityID)
	appendStr(string(e.Severity))
	appendStr(e.BeforeState)
	appendStr(e.AfterState)

	return buf
}

// ComputeHash derives an entry's chain hash from its canonical serialization
// and the previous entry's hash.
func ComputeHash(e *Entry, previousHash string) string {
	h := sha256.New()
	h.Write(canonicalBytes(e))
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes an entry's hash from its stored fields and stored
// previous-hash and compares it to the stored EntryHash.
func Verify(e *Entry) bool {
	return ComputeHash(e, e.PreviousEntryHash) == e.EntryHash
}

// approximateSize estimates an entry's storage footprint for space-freed
// accounting during purge.
func approximateSize(e *Entry) int64 {
	return int64(len(canonicalBytes(e)) + len(e.EntryHash) + len(e.PreviousEntryHash) + len(e.FlagReason))
}
