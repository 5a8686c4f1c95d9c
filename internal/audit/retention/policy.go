package retention

import (
	"time"

	dErrors "trustcore/pkg/domain-errors"
)

// Policy governs when audit entries leave the active tier and when archived
// entries are purged. It is operator-driven singleton configuration: updates
// go through Scheduler.UpdatePolicy and last-writer-wins is acceptable.
type Policy struct {
	ActiveRetention  time.Duration `json:"active_retention"`
	ArchiveRetention time.Duration `json:"archive_retention"`
	TaskInterval     time.Duration `json:"task_interval"`
	AutoArchive      bool          `json:"auto_archive"`
	AutoPurge        bool          `json:"auto_purge"`
	MaxStoreBytes    int64         `json:"max_store_bytes"`
	CompressArchive  bool          `json:"compress_archive"`
	EncryptArchive   bool          `json:"encrypt_archive"`
	NotifyAddress    string        `json:"notify_address,omitempty"`
}

// Validate rejects policies that would archive or purge immediately or never
// run. Misconfiguration is a startup error, not something to discover on the
// first destructive cycle.
func (p Policy) Validate() error {
	if p.ActiveRetention <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "active retention must be positive")
	}
	if p.ArchiveRetention <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "archive retention must be positive")
	}
	if p.TaskInterval <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "task interval must be positive")
	}
	if p.MaxStoreBytes < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "max store size cannot be negative")
	}
	return nil
}

// TaskResult summarizes one retention cycle for observability.
type TaskResult struct {
	ExecutedAt time.Time     `json:"executed_at"`
	Archived   int           `json:"archived"`
	Purged     int           `json:"purged"`
	Flagged    int           `json:"flagged"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	SpaceFreed int64         `json:"space_freed"`
}

// Statistics aggregates scheduler activity since process start.
type Statistics struct {
	Cycles          int         `json:"cycles"`
	FailedCycles    int         `json:"failed_cycles"`
	TotalArchived   int         `json:"total_archived"`
	TotalPurged     int         `json:"total_purged"`
	TotalFlagged    int         `json:"total_flagged"`
	TotalSpaceFreed int64       `json:"total_space_freed"`
	LastResult      *TaskResult `json:"last_result,omitempty"`
}
