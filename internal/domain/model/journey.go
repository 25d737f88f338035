// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// UnknownLocation is reported for missing countries and cities and selects
// them in location filters.
const UnknownLocation = "Unknown"

// Device describes the client device parsed from the user agent.
type Device struct {
	Type       string `json:"type"` // desktop, mobile, tablet, bot
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	DeviceName string `json:"deviceName"`
}

// Location is the coarse client location taken from edge headers.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
	IP      string `json:"ip"`
}

// SectionImpression is one confirmed dwell on a page section.
type SectionImpression struct {
	InteractionID string    `json:"interactionId"`
	SectionID     string    `json:"sectionId"`
	ViewedAt      time.Time `json:"viewedAt"`
	Duration      int64     `json:"duration"`    // ms
	ScrollDepth   int       `json:"scrollDepth"` // 0-100
	Interactions  int       `json:"interactions"`
}

// ActionEvent is a discrete user action. Actions are append-only.
type ActionEvent struct {
	Type      string         `json:"type"`
	Target    string         `json:"target"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Journey aggregates one session's telemetry.
type Journey struct {
	SessionID     string              `json:"sessionId"`
	VisitorID     string              `json:"visitorId"`
	LandingPage   string              `json:"landingPage"`
	Referrer      string              `json:"referrer"`
	UserAgent     string              `json:"userAgent"`
	Device        Device              `json:"device"`
	Location      Location            `json:"location"`
	StartTime     time.Time           `json:"startTime"`
	EndTime       time.Time           `json:"endTime"`
	TotalDuration int64               `json:"totalDuration"` // ms, sum of impression durations
	Impressions   []SectionImpression `json:"impressions"`
	Actions       []ActionEvent       `json:"actions"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// ImpressionPatch is an impression report. Nil fields leave the stored
// value untouched when the interaction already exists.
type ImpressionPatch struct {
	InteractionID string
	SectionID     string
	Duration      *int64
	ScrollDepth   *int
	Interactions  *int
}

// Normalize clamps the patch values into their valid ranges.
func (p ImpressionPatch) Normalize() ImpressionPatch {
	if p.Duration != nil && *p.Duration < 0 {
		zero := int64(0)
		p.Duration = &zero
	}
	if p.ScrollDepth != nil {
		d := ClampScrollDepth(*p.ScrollDepth)
		p.ScrollDepth = &d
	}
	if p.Interactions != nil && *p.Interactions < 0 {
		zero := 0
		p.Interactions = &zero
	}
	return p
}

// ClampScrollDepth bounds a percentage to [0, 100].
func ClampScrollDepth(d int) int {
	switch {
	case d < 0:
		return 0
	case d > 100:
		return 100
	default:
		return d
	}
}

// NewJourney returns an empty journey started at now.
func NewJourney(sessionID, visitorID string, now time.Time) Journey {
	return Journey{
		SessionID:   sessionID,
		VisitorID:   visitorID,
		StartTime:   now,
		EndTime:     now,
		UpdatedAt:   now,
		Impressions: []SectionImpression{},
		Actions:     []ActionEvent{},
	}
}

// MergeImpression applies p: an existing interaction is overwritten field
// by field, a new one is appended. It reports whether an existing entry was
// merged.
func (j *Journey) MergeImpression(p ImpressionPatch, now time.Time) bool {
	p = p.Normalize()
	merged := false
	for i := range j.Impressions {
		imp := &j.Impressions[i]
		if imp.InteractionID != p.InteractionID {
			continue
		}
		if p.Duration != nil {
			imp.Duration = *p.Duration
		}
		if p.ScrollDepth != nil {
			imp.ScrollDepth = *p.ScrollDepth
		}
		if p.Interactions != nil {
			imp.Interactions = *p.Interactions
		}
		merged = true
		break
	}
	if !merged {
		imp := SectionImpression{
			InteractionID: p.InteractionID,
			SectionID:     p.SectionID,
			ViewedAt:      now,
		}
		if p.Duration != nil {
			imp.Duration = *p.Duration
		}
		if p.ScrollDepth != nil {
			imp.ScrollDepth = *p.ScrollDepth
		}
		if p.Interactions != nil {
			imp.Interactions = *p.Interactions
		}
		j.Impressions = append(j.Impressions, imp)
	}
	j.TotalDuration = j.sumDurations()
	j.touch(now)
	return merged
}

// AppendAction records a, stamping it with now when it has no timestamp.
func (j *Journey) AppendAction(a ActionEvent, now time.Time) {
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	j.Actions = append(j.Actions, a)
	j.touch(now)
}

// EventCount is the number of impressions and actions.
func (j *Journey) EventCount() int {
	return len(j.Impressions) + len(j.Actions)
}

// Clone returns a deep copy safe to hand across goroutines.
func (j Journey) Clone() Journey {
	out := j
	out.Impressions = append([]SectionImpression(nil), j.Impressions...)
	out.Actions = make([]ActionEvent, len(j.Actions))
	for i, a := range j.Actions {
		if a.Metadata != nil {
			md := make(map[string]any, len(a.Metadata))
			for k, v := range a.Metadata {
				md[k] = v
			}
			a.Metadata = md
		}
		out.Actions[i] = a
	}
	if out.Impressions == nil {
		out.Impressions = []SectionImpression{}
	}
	return out
}

// SortEvents orders impressions by viewedAt and actions by timestamp.
func (j *Journey) SortEvents() {
	sort.SliceStable(j.Impressions, func(a, b int) bool {
		return j.Impressions[a].ViewedAt.Before(j.Impressions[b].ViewedAt)
	})
	sort.SliceStable(j.Actions, func(a, b int) bool {
		return j.Actions[a].Timestamp.Before(j.Actions[b].Timestamp)
	})
}

func (j *Journey) sumDurations() int64 {
	var total int64
	for _, imp := range j.Impressions {
		total += imp.Duration
	}
	return total
}

func (j *Journey) touch(now time.Time) {
	j.UpdatedAt = now
	if now.After(j.EndTime) {
		j.EndTime = now
	}
}
