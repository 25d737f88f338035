// Package repository persists journeys. Implementations must apply the
// impression merge rule atomically per session.
package repository

import (
	"context"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Write describes the journey a write landed on.
type Write struct {
	// VisitorID owns the written session.
	VisitorID string
	// Merged is true when an impression overwrote one with the same
	// interaction id.
	Merged bool
}

// Store provides read/write access to journeys.
type Store interface {
	// CreateJourney stores a new journey. Returns ErrAlreadyExists when the
	// session id is taken.
	CreateJourney(ctx context.Context, j model.Journey) error

	// GetJourney returns a journey by session id or ErrNotFound.
	GetJourney(ctx context.Context, sessionID string) (model.Journey, error)

	// UpsertImpression merges p into the session's impressions by
	// interaction id and refreshes the derived journey fields. Concurrent
	// calls on one session are serialised.
	UpsertImpression(ctx context.Context, sessionID string, p model.ImpressionPatch, now time.Time) (Write, error)

	// AppendAction appends a to the session's actions.
	AppendAction(ctx context.Context, sessionID string, a model.ActionEvent, now time.Time) (Write, error)

	// ListJourneys returns journeys started at or after since (zero means
	// all), ordered by start time then session id. Impressions and actions
	// are in chronological order.
	ListJourneys(ctx context.Context, since time.Time) ([]model.Journey, error)

	// Count returns the number of stored journeys.
	Count(ctx context.Context) (int, error)

	Close() error
}
