// Package simulate drives synthetic visitors through the tracker SDK
// against a running journeys API and checks what the dashboard reports.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Visitors  int           // Number of visitors to simulate
	Workers   int           // Number of concurrent visitors
	Timeout   time.Duration // HTTP request timeout
	TimeScale float64       // Real time per simulated second, e.g. 0.01
	Seed      uint64        // Plan generator seed; zero picks one
	Verbose   bool          // Enable verbose logging
}

// Visit is one section read by a visitor.
type Visit struct {
	Section      string
	Dwell        time.Duration // simulated time after confirmation
	ScrollDepth  int           // percent of the section seen
	Interactions int
}

// Click is an action emitted after the visit at index After.
type Click struct {
	After  int
	Type   string
	Target string
	Label  string
}

// Plan is the scripted behaviour of one visitor.
type Plan struct {
	UserAgent   string
	LandingPage string
	Referrer    string
	Country     string
	City        string
	Visits      []Visit
	Clicks      []Click
}

// Stats holds run statistics.
type Stats struct {
	VisitorsPlanned    int
	VisitorsStarted    int
	VisitorsFailed     int
	ImpressionsPlanned int
	ActionsPlanned     int
	SessionsReported   int
	EventsReported     int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
