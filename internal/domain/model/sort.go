package model

import "sort"

// SortEventRows orders rows by timestamp; ties keep views before actions
// and then fall back to session id so output is stable.
func SortEventRows(rows []EventRow) {
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if !ra.Timestamp.Equal(rb.Timestamp) {
			return ra.Timestamp.Before(rb.Timestamp)
		}
		if ra.Kind != rb.Kind {
			return ra.Kind == EventKindView
		}
		return ra.SessionID < rb.SessionID
	})
}
