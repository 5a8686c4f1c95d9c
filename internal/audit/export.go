package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportFormat selects the serialization for ExportEntries.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// exportedEntry is the stable wire shape for exported entries. Hashes are
// included so exported evidence remains independently verifiable.
type exportedEntry struct {
	SequenceID        int64  `json:"sequence_id"`
	Timestamp         string `json:"timestamp"`
	Subject           string `json:"subject,omitempty"`
	Category          string `json:"category"`
	Action            string `json:"action"`
	EntityType        string `json:"entity_type"`
	EntityID          string `json:"entity_id,omitempty"`
	Severity          string `json:"severity"`
	BeforeState       string `json:"before_state,omitempty"`
	AfterState        string `json:"after_state,omitempty"`
	EntryHash         string `json:"entry_hash"`
	PreviousEntryHash string `json:"previous_entry_hash"`
	Tier              string `json:"tier"`
}

func toExported(e *Entry) exportedEntry {
	return exportedEntry{
		SequenceID:        e.SequenceID,
		Timestamp:         e.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:           e.Subject,
		Category:          string(e.Category),
		Action:            e.Action,
		EntityType:        e.EntityType,
		EntityID:          e.EntityID,
		Severity:          string(e.Severity),
		BeforeState:       e.BeforeState,
		AfterState:        e.AfterState,
		EntryHash:         e.EntryHash,
		PreviousEntryHash: e.PreviousEntryHash,
		Tier:              string(e.Tier),
	}
}

// ExportEntries writes entries to w in the requested format.
func ExportEntries(w io.Writer, entries []*Entry, format ExportFormat) error {
	switch format {
	case FormatJSON, "":
		return exportJSON(w, entries)
	case FormatCSV:
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func exportJSON(w io.Writer, entries []*Entry) error {
	exported := make([]exportedEntry, 0, len(entries))
	for _, e := range entries {
		exported = append(exported, toExported(e))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exported)
}

var csvHeader = []string{
	"sequence_id", "timestamp", "subject", "category", "action", "entity_type",
	"entity_id", "severity", "before_state", "after_state", "entry_hash",
	"previous_entry_hash", "tier",
}

func exportCSV(w io.Writer, entries []*Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		x := toExported(e)
		record := []string{
			strconv.FormatInt(x.SequenceID, 10),
			x.Timestamp,
			x.Subject,
			x.Category,
			x.Action,
			x.EntityType,
			x.EntityID,
			x.Severity,
			x.BeforeState,
			x.AfterState,
			x.EntryHash,
			x.PreviousEntryHash,
			x.Tier,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
