package models

import (
	"encoding/json"
	"strings"
)

// MechanicNoteItem is one line item of the mechanic notes field: free-text
// note plus optional cost.
type MechanicNoteItem struct {
	Note string   `json:"note"`
	Cost *float64 `json:"cost,omitempty"`
}

// ParseMechanicNotes decodes the raw mechanic_notes column value.
// The column historically held plain prose; anything that does not decode
// as a structured list is treated as a single legacy note with no cost.
// The function is total: it never fails.
func ParseMechanicNotes(raw string) []MechanicNoteItem {
	if raw == "" {
		return nil
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var items []MechanicNoteItem
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			return items
		}
	}

	// Legacy plain-text value: keep it verbatim as one item.
	return []MechanicNoteItem{{Note: raw}}
}

// SerializeMechanicNotes encodes a note list for storage. Note text is
// trimmed and items that trim to nothing are dropped; nil is returned when
// the list empties out so the column can be cleared.
func SerializeMechanicNotes(items []MechanicNoteItem) *string {
	kept := make([]MechanicNoteItem, 0, len(items))
	for _, item := range items {
		note := strings.TrimSpace(item.Note)
		if note == "" {
			continue
		}
		kept = append(kept, MechanicNoteItem{Note: note, Cost: item.Cost})
	}
	if len(kept) == 0 {
		return nil
	}

	raw, err := json.Marshal(kept)
	if err != nil {
		// []MechanicNoteItem has no unmarshalable values; unreachable.
		return nil
	}
	s := string(raw)
	return &s
}

// NotesTotalCost sums the present costs, treating a missing cost as 0.
func NotesTotalCost(items []MechanicNoteItem) float64 {
	var total float64
	for _, item := range items {
		if item.Cost != nil {
			total += *item.Cost
		}
	}
	return total
}

// NotesSummary joins the note texts into a single line for audit records.
func NotesSummary(items []MechanicNoteItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if note := strings.TrimSpace(item.Note); note != "" {
			parts = append(parts, note)
		}
	}
	return strings.Join(parts, "; ")
}
