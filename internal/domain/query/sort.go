package query

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Sort fields accepted for the session view.
var sessionKeys = map[string]func(a, b *model.Journey) int{
	"updatedAt":     func(a, b *model.Journey) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
	"startTime":     func(a, b *model.Journey) int { return cmpTime(a.StartTime, b.StartTime) },
	"endTime":       func(a, b *model.Journey) int { return cmpTime(a.EndTime, b.EndTime) },
	"totalDuration": func(a, b *model.Journey) int { return cmpInt(a.TotalDuration, b.TotalDuration) },
	"landingPage":   func(a, b *model.Journey) int { return strings.Compare(a.LandingPage, b.LandingPage) },
	"visitorId":     func(a, b *model.Journey) int { return strings.Compare(a.VisitorID, b.VisitorID) },
	"sessionId":     func(a, b *model.Journey) int { return strings.Compare(a.SessionID, b.SessionID) },
	"impressions":   func(a, b *model.Journey) int { return cmpInt(int64(len(a.Impressions)), int64(len(b.Impressions))) },
	"actions":       func(a, b *model.Journey) int { return cmpInt(int64(len(a.Actions)), int64(len(b.Actions))) },
	"country":       func(a, b *model.Journey) int { return strings.Compare(a.Location.Country, b.Location.Country) },
	"city":          func(a, b *model.Journey) int { return strings.Compare(a.Location.City, b.Location.City) },
}

// Sort fields accepted for the visitor view. updatedAt is an alias of
// lastSeen.
var visitorKeys = map[string]func(a, b *model.VisitorSummary) int{
	"updatedAt":     func(a, b *model.VisitorSummary) int { return cmpTime(a.LastSeen, b.LastSeen) },
	"lastSeen":      func(a, b *model.VisitorSummary) int { return cmpTime(a.LastSeen, b.LastSeen) },
	"firstSeen":     func(a, b *model.VisitorSummary) int { return cmpTime(a.FirstSeen, b.FirstSeen) },
	"startTime":     func(a, b *model.VisitorSummary) int { return cmpTime(a.StartTime, b.StartTime) },
	"totalDuration": func(a, b *model.VisitorSummary) int { return cmpInt(a.TotalDuration, b.TotalDuration) },
	"sessionCount":  func(a, b *model.VisitorSummary) int { return cmpInt(int64(a.SessionCount), int64(b.SessionCount)) },
	"totalEvents":   func(a, b *model.VisitorSummary) int { return cmpInt(int64(a.TotalEvents), int64(b.TotalEvents)) },
	"visitorId":     func(a, b *model.VisitorSummary) int { return strings.Compare(a.VisitorID, b.VisitorID) },
	"landingPage":   func(a, b *model.VisitorSummary) int { return strings.Compare(a.LandingPage, b.LandingPage) },
}

const defaultSortField = "updatedAt"

// resolveSort applies the defaults for unknown fields and orders. An
// unknown field resets the order to descending as well.
func resolveSort(field, order string, known func(string) bool) (string, bool) {
	if !known(field) {
		return defaultSortField, true
	}
	return field, !strings.EqualFold(order, string(OrderAsc))
}

func sortSessions(rows []model.Journey, field, order string) {
	field, desc := resolveSort(field, order, func(f string) bool { _, ok := sessionKeys[f]; return ok })
	cmp := sessionKeys[field]
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if c := cmp(a, b); c != 0 {
			return (c < 0) != desc
		}
		return a.SessionID < b.SessionID
	})
}

func sortVisitors(rows []model.VisitorSummary, field, order string) {
	field, desc := resolveSort(field, order, func(f string) bool { _, ok := visitorKeys[f]; return ok })
	cmp := visitorKeys[field]
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if c := cmp(a, b); c != 0 {
			return (c < 0) != desc
		}
		return a.VisitorID < b.VisitorID
	})
}

func cmpTime(a, b time.Time) int {
	return a.Compare(b)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
