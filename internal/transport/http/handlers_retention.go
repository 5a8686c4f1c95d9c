package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"trustcore/internal/audit/retention"
	dErrors "trustcore/pkg/domain-errors"
)

// retentionPolicyDTO is the operator-facing wire shape. Durations travel as
// Go duration strings ("720h") rather than raw nanoseconds.
type retentionPolicyDTO struct {
	ActiveRetention  string `json:"active_retention"`
	ArchiveRetention string `json:"archive_retention"`
	TaskInterval     string `json:"task_interval"`
	AutoArchive      bool   `json:"auto_archive"`
	AutoPurge        bool   `json:"auto_purge"`
	MaxStoreBytes    int64  `json:"max_store_bytes"`
	CompressArchive  bool   `json:"compress_archive"`
	EncryptArchive   bool   `json:"encrypt_archive"`
	NotifyAddress    string `json:"notify_address,omitempty"`
}

func policyToDTO(p retention.Policy) retentionPolicyDTO {
	return retentionPolicyDTO{
		ActiveRetention:  p.ActiveRetention.String(),
		ArchiveRetention: p.ArchiveRetention.String(),
		TaskInterval:     p.TaskInterval.String(),
		AutoArchive:      p.AutoArchive,
		AutoPurge:        p.AutoPurge,
		MaxStoreBytes:    p.MaxStoreBytes,
		CompressArchive:  p.CompressArchive,
		EncryptArchive:   p.EncryptArchive,
		NotifyAddress:    p.NotifyAddress,
	}
}

func (dto retentionPolicyDTO) toPolicy() (retention.Policy, error) {
	parse := func(s, field string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, dErrors.New(dErrors.CodeInvalidInput, field+" must be a duration string")
		}
		return d, nil
	}
	active, err := parse(dto.ActiveRetention, "active_retention")
	if err != nil {
		return retention.Policy{}, err
	}
	archive, err := parse(dto.ArchiveRetention, "archive_retention")
	if err != nil {
		return retention.Policy{}, err
	}
	interval, err := parse(dto.TaskInterval, "task_interval")
	if err != nil {
		return retention.Policy{}, err
	}
	return retention.Policy{
		ActiveRetention:  active,
		ArchiveRetention: archive,
		TaskInterval:     interval,
		AutoArchive:      dto.AutoArchive,
		AutoPurge:        dto.AutoPurge,
		MaxStoreBytes:    dto.MaxStoreBytes,
		CompressArchive:  dto.CompressArchive,
		EncryptArchive:   dto.EncryptArchive,
		NotifyAddress:    dto.NotifyAddress,
	}, nil
}

func (h *Handler) handleRetentionPolicyGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, policyToDTO(h.retention.Policy()))
}

func (h *Handler) handleRetentionPolicyPut(w http.ResponseWriter, r *http.Request) {
	var dto retentionPolicyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	policy, err := dto.toPolicy()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.retention.UpdatePolicy(policy); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyToDTO(h.retention.Policy()))
}

// handleRetentionRun triggers a cycle outside the schedule. An in-flight
// cycle is reported as a conflict rather than queued behind.
func (h *Handler) handleRetentionRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.retention.Run(r.Context())
	if err != nil && result.ExecutedAt.IsZero() {
		writeError(w, dErrors.New(dErrors.CodeConflict, "retention cycle already running"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRetentionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.retention.Statistics())
}
