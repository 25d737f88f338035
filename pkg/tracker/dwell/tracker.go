// Package dwell detects confirmed impressions of a page section with a
// debounced IDLE, PENDING, ACTIVE state machine.
package dwell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/okian/footprint/pkg/logger"
)

// DefaultConfirmationDelay is how long a section must stay highly visible
// before an impression starts.
const DefaultConfirmationDelay = time.Second

// State is the tracker state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateActive
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// ReportKind tells impression start and end reports apart.
type ReportKind string

const (
	ReportStart ReportKind = "start"
	ReportEnd   ReportKind = "end"
)

// Report is an impression start or end.
type Report struct {
	Kind          ReportKind
	SectionID     string
	InteractionID string
	At            time.Time
	Duration      int64 // ms
	ScrollDepth   int
	Interactions  int
}

// Reporter receives reports. It is called with the tracker locked and must
// neither block nor call back into the tracker.
type Reporter interface {
	Report(r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r Report)

func (f ReporterFunc) Report(r Report) { f(r) }

// Tracker follows one section.
type Tracker struct {
	mu       sync.Mutex
	section  string
	clock    quartz.Clock
	delay    time.Duration
	reporter Reporter
	log      logger.Logger

	state         State
	gen           uint64
	timer         *quartz.Timer
	interactionID string
	startedAt     time.Time
	maxDepth      int
	interactions  int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock driving the confirmation timer.
func WithClock(c quartz.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithConfirmationDelay overrides DefaultConfirmationDelay.
func WithConfirmationDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// New returns an idle tracker for section.
func New(section string, r Reporter, opts ...Option) *Tracker {
	t := &Tracker{
		section:  section,
		clock:    quartz.NewReal(),
		delay:    DefaultConfirmationDelay,
		reporter: r,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe feeds one visibility observation.
func (t *Tracker) Observe(o Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := o.Classify()
	switch t.state {
	case StateIdle:
		if v == HighlyVisible {
			t.state = StatePending
			t.gen++
			gen := t.gen
			t.timer = t.clock.AfterFunc(t.delay, func() { t.confirm(gen) }, "dwell", "confirm")
		}
	case StatePending:
		if v != HighlyVisible {
			t.cancelLocked()
		}
	case StateActive:
		if v == NotVisible {
			t.endLocked()
			return
		}
		if d := o.ScrollDepth(); d > t.maxDepth {
			t.maxDepth = d
		}
	}
}

// RecordInteraction attributes one interaction to the active impression.
func (t *Tracker) RecordInteraction() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateActive {
		t.interactions++
	}
}

// Flush ends an active impression or cancels a pending one. It is called
// on teardown.
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StatePending:
		t.cancelLocked()
	case StateActive:
		t.endLocked()
	}
}

func (t *Tracker) confirm(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state != StatePending {
		return
	}

	now := t.clock.Now()
	t.state = StateActive
	t.timer = nil
	t.interactionID = newInteractionID(now)
	t.startedAt = now
	t.maxDepth = 0
	t.interactions = 0

	t.log.Debug(context.Background(), "impression started",
		logger.String("section", t.section),
		logger.String("interaction_id", t.interactionID),
	)
	t.reporter.Report(Report{
		Kind:          ReportStart,
		SectionID:     t.section,
		InteractionID: t.interactionID,
		At:            now,
	})
}

func (t *Tracker) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.state = StateIdle
}

func (t *Tracker) endLocked() {
	now := t.clock.Now()
	duration := now.Sub(t.startedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	r := Report{
		Kind:          ReportEnd,
		SectionID:     t.section,
		InteractionID: t.interactionID,
		At:            now,
		Duration:      duration,
		ScrollDepth:   t.maxDepth,
		Interactions:  t.interactions,
	}
	t.state = StateIdle
	t.gen++
	t.interactionID = ""

	t.log.Debug(context.Background(), "impression ended",
		logger.String("section", t.section),
		logger.String("interaction_id", r.InteractionID),
		logger.Int64("duration_ms", r.Duration),
	)
	t.reporter.Report(r)
}

// newInteractionID combines the start time with a random suffix so
// revisits of a section never share an id.
func newInteractionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
