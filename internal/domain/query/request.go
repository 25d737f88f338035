package query

import (
	"strings"

	"github.com/okian/footprint/internal/domain/filter"
	"github.com/okian/footprint/internal/domain/model"
)

// Mode selects how journeys are aggregated into rows.
type Mode string

const (
	ModeVisitor Mode = "visitor"
	ModeSession Mode = "session"
	ModeEvent   Mode = "event"
)

// ParseMode returns the mode named by s, defaulting to ModeSession.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeVisitor, ModeSession, ModeEvent:
		return m
	default:
		return ModeSession
	}
}

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Request is one journeys query. Zero values select defaults.
type Request struct {
	Filter    filter.Filter
	Mode      Mode
	SortField string
	SortOrder string
	Page      int
	PageSize  int
}

// Pagination describes the returned page.
type Pagination struct {
	Total    int `json:"total"`
	Pages    int `json:"pages"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Stats summarise a set of journeys.
type Stats struct {
	TotalSessions int   `json:"totalSessions"`
	TotalDuration int64 `json:"totalDuration"` // ms
	TotalEvents   int   `json:"totalEvents"`
}

// Result is one page of rows. Only the slice matching Mode is set.
// Stats cover every matching journey; PageStats only the rows returned.
type Result struct {
	Mode       Mode
	Visitors   []model.VisitorSummary
	Sessions   []model.Journey
	Events     []model.EventRow
	Pagination Pagination
	Stats      Stats
	PageStats  Stats
}

// Rows returns the populated row slice.
func (r Result) Rows() any {
	switch r.Mode {
	case ModeVisitor:
		return r.Visitors
	case ModeEvent:
		return r.Events
	default:
		return r.Sessions
	}
}

// Facets are the distinct filter values present in storage.
type Facets struct {
	Locations map[string][]string `json:"locations"` // country -> cities
	Devices   []string            `json:"devices"`
	OS        []string            `json:"os"`
	Browsers  []string            `json:"browsers"`
}
