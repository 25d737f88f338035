package model

import "time"

// TelemetryKind names a telemetry event published by ingestion.
type TelemetryKind string

const (
	KindSessionCreated     TelemetryKind = "session.created"
	KindImpressionRecorded TelemetryKind = "impression.recorded"
	KindActionRecorded     TelemetryKind = "action.recorded"
)

// TelemetryEvent is the journey bus payload.
type TelemetryEvent struct {
	Kind       TelemetryKind      `json:"kind"`
	SessionID  string             `json:"sessionId"`
	VisitorID  string             `json:"visitorId"`
	At         time.Time          `json:"at"`
	Journey    *Journey           `json:"journey,omitempty"` // set for session.created
	Impression *SectionImpression `json:"impression,omitempty"`
	Action     *ActionEvent       `json:"action,omitempty"`
}
