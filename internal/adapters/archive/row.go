// Package archive stores raw journey telemetry in ClickHouse for offline
// analysis. It is fed asynchronously from the journey bus.
package archive

import (
	"encoding/json"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Row is one archived telemetry event in column order.
type Row struct {
	Kind          string
	SessionID     string
	VisitorID     string
	OccurredAt    time.Time
	SectionID     string
	InteractionID string
	DurationMS    int64
	ScrollDepth   uint8
	ActionType    string
	ActionTarget  string
	Metadata      string
}

// ToRow flattens e into an archive row.
func ToRow(e model.TelemetryEvent) Row {
	r := Row{
		Kind:       string(e.Kind),
		SessionID:  e.SessionID,
		VisitorID:  e.VisitorID,
		OccurredAt: e.At.UTC(),
		Metadata:   "{}",
	}
	switch {
	case e.Impression != nil:
		r.SectionID = e.Impression.SectionID
		r.InteractionID = e.Impression.InteractionID
		r.DurationMS = e.Impression.Duration
		r.ScrollDepth = uint8(model.ClampScrollDepth(e.Impression.ScrollDepth))
	case e.Action != nil:
		r.ActionType = e.Action.Type
		r.ActionTarget = e.Action.Target
		if len(e.Action.Metadata) > 0 {
			if b, err := json.Marshal(e.Action.Metadata); err == nil {
				r.Metadata = string(b)
			}
		}
	case e.Journey != nil:
		if b, err := json.Marshal(map[string]any{
			"landingPage": e.Journey.LandingPage,
			"referrer":    e.Journey.Referrer,
			"device":      e.Journey.Device,
			"country":     e.Journey.Location.Country,
			"city":        e.Journey.Location.City,
		}); err == nil {
			r.Metadata = string(b)
		}
	}
	return r
}

func (r Row) values() []any {
	return []any{
		r.Kind, r.SessionID, r.VisitorID, r.OccurredAt,
		r.SectionID, r.InteractionID, r.DurationMS, r.ScrollDepth,
		r.ActionType, r.ActionTarget, r.Metadata,
	}
}
