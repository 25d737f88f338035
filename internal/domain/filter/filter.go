// Package filter turns dashboard query parameters into a typed journey
// filter. Criteria are a closed set; a Filter matches when all of its
// criteria match.
package filter

import (
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Criterion is one filter clause. The set of implementations is closed.
type Criterion interface {
	Match(j *model.Journey, now time.Time) bool
	criterion()
}

// Window is a relative time range on journey start time.
type Window string

const (
	WindowToday      Window = "today"
	WindowLast7Days  Window = "7d"
	WindowLast30Days Window = "30d"
	WindowAll        Window = "all"
)

// Since returns the earliest start time admitted by w, or the zero time
// for WindowAll.
func (w Window) Since(now time.Time) time.Time {
	switch w {
	case WindowToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case WindowLast7Days:
		return now.Add(-7 * 24 * time.Hour)
	case WindowLast30Days:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// TimeWindow keeps journeys started inside the window.
type TimeWindow struct{ Window Window }

// TextSearch matches sessionId, visitorId or landingPage by substring.
type TextSearch struct{ Term string }

// InteractionSearch matches impression sections and action target, type
// or metadata label by substring.
type InteractionSearch struct{ Term string }

// Field names a device attribute.
type Field string

const (
	FieldDeviceType Field = "device"
	FieldOS         Field = "os"
	FieldBrowser    Field = "browser"
)

// FieldIn matches when the device attribute equals any of Values.
type FieldIn struct {
	Field  Field
	Values []string
}

// LocationIn matches any of Cities. model.UnknownLocation also selects
// journeys whose city is missing, empty or literally "Unknown".
type LocationIn struct{ Cities []string }

// DurationRange bounds totalDuration in milliseconds; nil bounds are open.
type DurationRange struct {
	Min *int64
	Max *int64
}

func (TimeWindow) criterion()        {}
func (TextSearch) criterion()        {}
func (InteractionSearch) criterion() {}
func (FieldIn) criterion()           {}
func (LocationIn) criterion()        {}
func (DurationRange) criterion()     {}

func (c TimeWindow) Match(j *model.Journey, now time.Time) bool {
	since := c.Window.Since(now)
	return since.IsZero() || !j.StartTime.Before(since)
}

func (c TextSearch) Match(j *model.Journey, _ time.Time) bool {
	return containsFold(j.SessionID, c.Term) ||
		containsFold(j.VisitorID, c.Term) ||
		containsFold(j.LandingPage, c.Term)
}

func (c InteractionSearch) Match(j *model.Journey, _ time.Time) bool {
	for _, imp := range j.Impressions {
		if containsFold(imp.SectionID, c.Term) {
			return true
		}
	}
	for _, a := range j.Actions {
		if containsFold(a.Target, c.Term) || containsFold(a.Type, c.Term) {
			return true
		}
		if label, ok := a.Metadata["label"].(string); ok && containsFold(label, c.Term) {
			return true
		}
	}
	return false
}

func (c FieldIn) Match(j *model.Journey, _ time.Time) bool {
	var v string
	switch c.Field {
	case FieldDeviceType:
		v = j.Device.Type
	case FieldOS:
		v = j.Device.OS
	case FieldBrowser:
		v = j.Device.Browser
	}
	for _, want := range c.Values {
		if v == want {
			return true
		}
	}
	return false
}

func (c LocationIn) Match(j *model.Journey, _ time.Time) bool {
	city := j.Location.City
	for _, want := range c.Cities {
		if want == model.UnknownLocation && (city == "" || city == model.UnknownLocation) {
			return true
		}
		if city == want {
			return true
		}
	}
	return false
}

func (c DurationRange) Match(j *model.Journey, _ time.Time) bool {
	if c.Min != nil && j.TotalDuration < *c.Min {
		return false
	}
	if c.Max != nil && j.TotalDuration > *c.Max {
		return false
	}
	return true
}

// Filter is a conjunction of criteria. The zero Filter matches everything.
type Filter struct {
	Criteria []Criterion
}

// Match reports whether j satisfies every criterion.
func (f Filter) Match(j *model.Journey, now time.Time) bool {
	for _, c := range f.Criteria {
		if !c.Match(j, now) {
			return false
		}
	}
	return true
}

// Since returns the lower start-time bound implied by the filter so stores
// can narrow their scan. Zero means unbounded.
func (f Filter) Since(now time.Time) time.Time {
	var since time.Time
	for _, c := range f.Criteria {
		if tw, ok := c.(TimeWindow); ok {
			if s := tw.Window.Since(now); s.After(since) {
				since = s
			}
		}
	}
	return since
}

// Apply returns the journeys matching f, preserving order.
func (f Filter) Apply(journeys []model.Journey, now time.Time) []model.Journey {
	out := make([]model.Journey, 0, len(journeys))
	for i := range journeys {
		if f.Match(&journeys[i], now) {
			out = append(out, journeys[i])
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
