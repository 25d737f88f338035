package model

import "time"

// VisitorSummary is one row of the visitor view. Descriptive fields come
// from the visitor's most recently updated journey.
type VisitorSummary struct {
	VisitorID     string    `json:"visitorId"`
	LastSessionID string    `json:"lastSessionId"`
	LandingPage   string    `json:"landingPage"`
	Referrer      string    `json:"referrer"`
	Device        Device    `json:"device"`
	Location      Location  `json:"location"`
	StartTime     time.Time `json:"startTime"` // start of the latest session
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	SessionCount  int       `json:"sessionCount"`
	TotalDuration int64     `json:"totalDuration"` // ms
	TotalEvents   int       `json:"totalEvents"`
}

// Event row kinds.
const (
	EventKindView   = "View"
	EventKindAction = "Action"
)

// EventRow is a flattened impression or action.
type EventRow struct {
	VisitorID string         `json:"visitorId"`
	SessionID string         `json:"sessionId"`
	Kind      string         `json:"type"` // View or Action
	Timestamp time.Time      `json:"timestamp"`
	Detail    string         `json:"detail"`
	Duration  int64          `json:"duration"` // ms, zero for actions
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Flatten returns the journey's impressions and actions as event rows in
// chronological order.
func (j Journey) Flatten() []EventRow {
	rows := make([]EventRow, 0, j.EventCount())
	for _, imp := range j.Impressions {
		rows = append(rows, EventRow{
			VisitorID: j.VisitorID,
			SessionID: j.SessionID,
			Kind:      EventKindView,
			Timestamp: imp.ViewedAt,
			Detail:    imp.SectionID,
			Duration:  imp.Duration,
			Metadata: map[string]any{
				"interactionId": imp.InteractionID,
				"scrollDepth":   imp.ScrollDepth,
				"interactions":  imp.Interactions,
			},
		})
	}
	for _, a := range j.Actions {
		rows = append(rows, EventRow{
			VisitorID: j.VisitorID,
			SessionID: j.SessionID,
			Kind:      EventKindAction,
			Timestamp: a.Timestamp,
			Detail:    actionDetail(a),
			Metadata:  a.Metadata,
		})
	}
	SortEventRows(rows)
	return rows
}

// actionDetail renders "type: target", or just the type when untargeted.
func actionDetail(a ActionEvent) string {
	if a.Target == "" {
		return a.Type
	}
	return a.Type + ": " + a.Target
}
