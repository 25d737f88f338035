package query

import (
	"sort"
	"strings"

	"github.com/okian/footprint/internal/domain/model"
)

// summarize computes stats over journeys.
func summarize(journeys []model.Journey) Stats {
	st := Stats{TotalSessions: len(journeys)}
	for i := range journeys {
		st.TotalDuration += journeys[i].TotalDuration
		st.TotalEvents += journeys[i].EventCount()
	}
	return st
}

// groupVisitors folds journeys into one summary per visitor. Descriptive
// fields come from the most recently updated journey.
func groupVisitors(journeys []model.Journey) []model.VisitorSummary {
	idx := make(map[string]int)
	out := make([]model.VisitorSummary, 0)
	latest := make([]*model.Journey, 0)

	for i := range journeys {
		j := &journeys[i]
		k, ok := idx[j.VisitorID]
		if !ok {
			k = len(out)
			idx[j.VisitorID] = k
			out = append(out, model.VisitorSummary{VisitorID: j.VisitorID, FirstSeen: j.StartTime})
			latest = append(latest, j)
		}
		v := &out[k]
		v.SessionCount++
		v.TotalDuration += j.TotalDuration
		v.TotalEvents += j.EventCount()
		if j.StartTime.Before(v.FirstSeen) {
			v.FirstSeen = j.StartTime
		}
		if newer(j, latest[k]) {
			latest[k] = j
		}
	}

	for k := range out {
		j := latest[k]
		v := &out[k]
		v.LastSessionID = j.SessionID
		v.LandingPage = j.LandingPage
		v.Referrer = j.Referrer
		v.Device = j.Device
		v.Location = j.Location
		v.StartTime = j.StartTime
		v.LastSeen = j.UpdatedAt
	}
	return out
}

func newer(a, b *model.Journey) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.SessionID > b.SessionID
}

// flatten returns every event of journeys in chronological order.
func flatten(journeys []model.Journey) []model.EventRow {
	var rows []model.EventRow
	for i := range journeys {
		rows = append(rows, journeys[i].Flatten()...)
	}
	model.SortEventRows(rows)
	if rows == nil {
		rows = []model.EventRow{}
	}
	return rows
}

// facets collects distinct filter values. Empty countries and cities are
// reported as model.UnknownLocation.
func facets(journeys []model.Journey) Facets {
	locations := make(map[string]map[string]struct{})
	devices := make(map[string]struct{})
	oses := make(map[string]struct{})
	browsers := make(map[string]struct{})

	for i := range journeys {
		j := &journeys[i]
		country := orUnknown(j.Location.Country)
		if locations[country] == nil {
			locations[country] = make(map[string]struct{})
		}
		locations[country][orUnknown(j.Location.City)] = struct{}{}
		addNonEmpty(devices, j.Device.Type)
		addNonEmpty(oses, j.Device.OS)
		addNonEmpty(browsers, j.Device.Browser)
	}

	f := Facets{
		Locations: make(map[string][]string, len(locations)),
		Devices:   sortedKeys(devices),
		OS:        sortedKeys(oses),
		Browsers:  sortedKeys(browsers),
	}
	for country, cities := range locations {
		f.Locations[country] = sortedKeys(cities)
	}
	return f
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.UnknownLocation
	}
	return s
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
