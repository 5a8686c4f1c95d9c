// Package audit records tamper-evident audit entries. Every entry's hash
// covers its own canonical serialization plus the previous entry's hash, so
// retroactive mutation or reordering breaks the chain for every subsequent
// entry. Entries are append-only; the only state that changes after write is
// the retention tier classification and the operator flag.
package audit

import "time"

// Category classifies what kind of occurrence an entry records.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
	CategoryUserAction     Category = "user_action"
)

// Severity grades how much an entry should worry an operator.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Tier is a retention classification, not a separate entity type. Entries
// start active and may be re-classified archived by the retention scheduler.
type Tier string

const (
	TierActive   Tier = "active"
	TierArchived Tier = "archived"
)

// Entry is one immutable line of the audit trail.
type Entry struct {
	SequenceID  int64
	Timestamp   time.Time
	Subject     string
	Category    Category
	Action      string
	EntityType  string
	EntityID    string
	Severity    Severity
	BeforeState string
	AfterState  string

	EntryHash         string
	PreviousEntryHash string

	Tier       Tier
	ArchivedAt *time.Time

	// Flagged marks an entry that failed hash verification during a
	// retention cycle. Flagged entries are never archived.
	Flagged    bool
	FlagReason string
}

// Draft carries the caller-supplied fields of an entry before the recorder
// assigns sequence, hash, and tier.
type Draft struct {
	Timestamp   time.Time
	Subject     string
	Category    Category
	Action      string
	EntityType  string
	EntityID    string
	Severity    Severity
	BeforeState string
	AfterState  string
}

// UserAction builds a draft for a routine user-initiated change.
func UserAction(subject, action, entityType, entityID string) Draft {
	return Draft{
		Subject:    subject,
		Category:   CategoryUserAction,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Severity:   SeverityInfo,
	}
}

// SecurityEvent builds a draft for a security-relevant occurrence.
func SecurityEvent(subject, action, reason string) Draft {
	return Draft{
		Subject:    subject,
		Category:   CategorySecurity,
		Action:     action,
		EntityType: "security",
		Severity:   SeverityWarning,
		AfterState: reason,
	}
}

// SystemAction builds a draft for an operation this system performed on its
// own behalf, such as a retention cycle.
func SystemAction(action, entityType, entityID string) Draft {
	return Draft{
		Category:   CategorySystem,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Severity:   SeverityInfo,
	}
}
