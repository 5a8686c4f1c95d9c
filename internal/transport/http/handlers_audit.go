package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"trustcore/internal/audit"
	dErrors "trustcore/pkg/domain-errors"
)

const defaultQueryLimit = 100

// filterFromQuery builds an audit filter from URL query parameters. Absent
// parameters mean "any".
func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Subject:    q.Get("subject"),
		Category:   audit.Category(q.Get("category")),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		Severity:   audit.Severity(q.Get("severity")),
		Tier:       audit.Tier(q.Get("tier")),
		Limit:      defaultQueryLimit,
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC3339")
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC3339")
		}
		filter.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func (h *Handler) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := audit.ExportEntries(w, entries, audit.FormatJSON); err != nil {
		h.logger.Error("audit query encode failed", "error", err)
	}
}

func (h *Handler) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := audit.ExportFormat(r.URL.Query().Get("format"))
	switch format {
	case audit.FormatJSON, audit.FormatCSV, "":
	default:
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "format must be json or csv"))
		return
	}

	entries, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	if format == audit.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if err := audit.ExportEntries(w, entries, format); err != nil {
		h.logger.Error("audit export failed", "error", err)
	}
}

func (h *Handler) handleIntegrityReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "from must be a sequence id"))
		return
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "to must be a sequence id"))
		return
	}

	report, err := h.integrity.GenerateReport(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
