package filter

import (
	"math"
	"strconv"
	"strings"
)

// Params carries raw dashboard filter values. Multi-valued fields may hold
// comma separated entries.
type Params struct {
	Range       string
	Search      string
	Interaction string
	Devices     []string
	OS          []string
	Browsers    []string
	Locations   []string
	MinDuration string // seconds
	MaxDuration string // seconds
}

// Build composes a Filter from p. Empty or unparseable values add no
// criterion.
func Build(p Params) Filter {
	var f Filter

	switch w := Window(strings.ToLower(strings.TrimSpace(p.Range))); w {
	case WindowToday, WindowLast7Days, WindowLast30Days:
		f.Criteria = append(f.Criteria, TimeWindow{Window: w})
	}

	if term := strings.TrimSpace(p.Search); term != "" {
		f.Criteria = append(f.Criteria, TextSearch{Term: term})
	}
	if term := strings.TrimSpace(p.Interaction); term != "" {
		f.Criteria = append(f.Criteria, InteractionSearch{Term: term})
	}

	for _, fv := range []struct {
		field  Field
		values []string
	}{
		{FieldDeviceType, p.Devices},
		{FieldOS, p.OS},
		{FieldBrowser, p.Browsers},
	} {
		if vals := SplitValues(fv.values); len(vals) > 0 {
			f.Criteria = append(f.Criteria, FieldIn{Field: fv.field, Values: vals})
		}
	}

	if cities := SplitValues(p.Locations); len(cities) > 0 {
		f.Criteria = append(f.Criteria, LocationIn{Cities: cities})
	}

	minMS, okMin := secondsToMillis(p.MinDuration)
	maxMS, okMax := secondsToMillis(p.MaxDuration)
	if okMin || okMax {
		r := DurationRange{}
		if okMin {
			r.Min = &minMS
		}
		if okMax {
			r.Max = &maxMS
		}
		f.Criteria = append(f.Criteria, r)
	}
	return f
}

// SplitValues flattens repeated and comma separated values, dropping blanks.
func SplitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func secondsToMillis(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil || sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0, false
	}
	return int64(math.Round(sec * 1000)), true
}
