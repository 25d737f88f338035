// Package ingest records sessions, impressions and actions reported by the
// tracker. Calls are stateless; all merge rules run inside the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/dedupe"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

const tracerName = "github.com/okian/footprint/internal/domain/ingest"

// Operation names used in metrics and spans.
const (
	opCreateSession    = "create_session"
	opRecordImpression = "record_impression"
	opRecordAction     = "record_action"
)

// Publisher receives telemetry events after they are stored.
type Publisher interface {
	Publish(ctx context.Context, e model.TelemetryEvent) error
}

// SessionInput starts a journey.
type SessionInput struct {
	VisitorID   string
	LandingPage string
	Referrer    string
	UserAgent   string
	IP          string
	Country     string
	City        string
}

// ImpressionInput is an impression start or end report. Nil values leave
// the stored ones untouched.
type ImpressionInput struct {
	SessionID     string
	InteractionID string
	SectionID     string
	Duration      *int64
	ScrollDepth   *int
	Interactions  *int
}

// ActionInput is a discrete action report. ActionID is optional and only
// used to drop replays.
type ActionInput struct {
	SessionID string
	ActionID  string
	Type      string
	Target    string
	Metadata  map[string]any
}

// Service implements the ingestion operations.
type Service struct {
	store     repository.Store
	deduper   dedupe.Deduper
	publisher Publisher
	clock     quartz.Clock
	tracer    trace.Tracer
	log       logger.Logger
}

// New returns a Service writing to store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  quartz.NewReal(),
		tracer: otel.Tracer(tracerName),
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper()
	}
	return s
}

// CreateSession stores a new journey for in and returns it.
func (s *Service) CreateSession(ctx context.Context, in SessionInput) (model.Journey, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.CreateSession")
	defer span.End()
	start := time.Now()

	if strings.TrimSpace(in.VisitorID) == "" {
		return model.Journey{}, s.fail(ctx, span, opCreateSession, fmt.Errorf("%w: visitorId is required", ErrInvalidInput))
	}

	now := s.clock.Now()
	j := model.NewJourney(uuid.NewString(), in.VisitorID, now)
	j.LandingPage = in.LandingPage
	j.Referrer = in.Referrer
	j.UserAgent = in.UserAgent
	j.Device = ParseDevice(in.UserAgent)
	j.Location = model.Location{Country: in.Country, City: in.City, IP: in.IP}
	span.SetAttributes(attribute.String("session.id", j.SessionID), attribute.String("visitor.id", j.VisitorID))

	if err := s.store.CreateJourney(ctx, j); err != nil {
		return model.Journey{}, s.fail(ctx, span, opCreateSession, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	metrics.RecordSessionCreated()
	metrics.RecordIngestLatency(opCreateSession, sinceMillis(start))
	created := j.Clone()
	s.publish(ctx, model.TelemetryEvent{
		Kind: model.KindSessionCreated, SessionID: j.SessionID, VisitorID: j.VisitorID, At: now, Journey: &created,
	})
	s.log.Debug(ctx, "session created",
		logger.String("session_id", j.SessionID),
		logger.String("visitor_id", j.VisitorID),
		logger.String("device", j.Device.Type),
	)
	return j, nil
}

// RecordImpression merges in by interaction id. It reports whether an
// existing impression was updated.
func (s *Service) RecordImpression(ctx context.Context, in ImpressionInput) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.RecordImpression", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("interaction.id", in.InteractionID),
	))
	defer span.End()
	start := time.Now()

	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.InteractionID) == "" {
		return false, s.fail(ctx, span, opRecordImpression, fmt.Errorf("%w: sessionId and interactionId are required", ErrInvalidInput))
	}

	now := s.clock.Now()
	patch := model.ImpressionPatch{
		InteractionID: in.InteractionID,
		SectionID:     in.SectionID,
		Duration:      in.Duration,
		ScrollDepth:   in.ScrollDepth,
		Interactions:  in.Interactions,
	}.Normalize()

	w, err := s.store.UpsertImpression(ctx, in.SessionID, patch, now)
	if err != nil {
		return false, s.fail(ctx, span, opRecordImpression, s.storeError(err))
	}

	metrics.RecordImpression(w.Merged)
	metrics.RecordIngestLatency(opRecordImpression, sinceMillis(start))
	imp := model.SectionImpression{InteractionID: patch.InteractionID, SectionID: patch.SectionID, ViewedAt: now}
	if patch.Duration != nil {
		imp.Duration = *patch.Duration
	}
	if patch.ScrollDepth != nil {
		imp.ScrollDepth = *patch.ScrollDepth
	}
	if patch.Interactions != nil {
		imp.Interactions = *patch.Interactions
	}
	s.publish(ctx, model.TelemetryEvent{
		Kind: model.KindImpressionRecorded, SessionID: in.SessionID, VisitorID: w.VisitorID, At: now, Impression: &imp,
	})
	return w.Merged, nil
}

// RecordAction appends an action. A replayed action id is acknowledged as
// a duplicate and not stored again.
func (s *Service) RecordAction(ctx context.Context, in ActionInput) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.RecordAction", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("action.type", in.Type),
	))
	defer span.End()
	start := time.Now()

	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.Type) == "" {
		return false, s.fail(ctx, span, opRecordAction, fmt.Errorf("%w: sessionId and type are required", ErrInvalidInput))
	}

	if s.deduper.SeenAndRecord(ctx, in.ActionID) {
		metrics.RecordAction(true)
		span.SetAttributes(attribute.Bool("action.duplicate", true))
		s.log.Debug(ctx, "duplicate action dropped",
			logger.String("session_id", in.SessionID),
			logger.String("action_id", in.ActionID),
		)
		return true, nil
	}

	now := s.clock.Now()
	a := model.ActionEvent{Type: in.Type, Target: in.Target, Timestamp: now, Metadata: in.Metadata}
	w, err := s.store.AppendAction(ctx, in.SessionID, a, now)
	if err != nil {
		s.deduper.Unrecord(ctx, in.ActionID)
		return false, s.fail(ctx, span, opRecordAction, s.storeError(err))
	}

	metrics.RecordAction(false)
	metrics.RecordIngestLatency(opRecordAction, sinceMillis(start))
	s.publish(ctx, model.TelemetryEvent{
		Kind: model.KindActionRecorded, SessionID: in.SessionID, VisitorID: w.VisitorID, At: now, Action: &a,
	})
	return false, nil
}

func (s *Service) storeError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnknownSession, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind := "persistence"
	switch {
	case errors.Is(err, ErrInvalidInput):
		kind = "invalid_input"
	case errors.Is(err, ErrUnknownSession):
		kind = "unknown_session"
	}
	metrics.RecordIngestError(op, kind)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)

	if kind == "persistence" {
		s.log.Error(ctx, "ingestion failed", logger.String("op", op), logger.Error(err))
	} else {
		s.log.Debug(ctx, "ingestion rejected", logger.String("op", op), logger.String("kind", kind), logger.Error(err))
	}
	return err
}

func (s *Service) publish(ctx context.Context, e model.TelemetryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		metrics.RecordBusPublishError()
		s.log.Warn(ctx, "telemetry publish failed",
			logger.String("kind", string(e.Kind)),
			logger.String("session_id", e.SessionID),
			logger.Error(err),
		)
	}
}

func sinceMillis(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
