package tracker

import "time"

// SignalKind names a client-side tracking signal.
type SignalKind string

const (
	SignalImpressionStart SignalKind = "impression.start"
	SignalImpressionEnd   SignalKind = "impression.end"
	SignalAction          SignalKind = "action"
)

// Signal is published on the client hub for every report sent. Other UI
// components subscribe to it instead of being called directly.
type Signal struct {
	Kind          SignalKind
	SessionID     string
	SectionID     string
	InteractionID string
	Duration      int64 // ms
	ScrollDepth   int
	Interactions  int
	ActionType    string
	Target        string
	Metadata      map[string]any
	At            time.Time
}
