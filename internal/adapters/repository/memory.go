package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// MemoryStore keeps journeys in process memory. Writes are serialised by a
// single lock so the merge rule is atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	journeys map[string]*model.Journey
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{journeys: make(map[string]*model.Journey)}
}

func (s *MemoryStore) CreateJourney(_ context.Context, j model.Journey) error {
	if j.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidJourney)
	}
	defer observeWrite(time.Now())

	s.mu.Lock()
	if _, ok := s.journeys[j.SessionID]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	c := j.Clone()
	s.journeys[j.SessionID] = &c
	n := len(s.journeys)
	s.mu.Unlock()

	metrics.UpdateJourneysTotal(n)
	return nil
}

func (s *MemoryStore) GetJourney(_ context.Context, sessionID string) (model.Journey, error) {
	defer observeRead(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[sessionID]
	if !ok {
		return model.Journey{}, ErrNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) UpsertImpression(_ context.Context, sessionID string, p model.ImpressionPatch, now time.Time) (Write, error) {
	defer observeWrite(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[sessionID]
	if !ok {
		return Write{}, ErrNotFound
	}
	return Write{VisitorID: j.VisitorID, Merged: j.MergeImpression(p, now)}, nil
}

func (s *MemoryStore) AppendAction(_ context.Context, sessionID string, a model.ActionEvent, now time.Time) (Write, error) {
	defer observeWrite(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[sessionID]
	if !ok {
		return Write{}, ErrNotFound
	}
	j.AppendAction(a, now)
	return Write{VisitorID: j.VisitorID}, nil
}

func (s *MemoryStore) ListJourneys(_ context.Context, since time.Time) ([]model.Journey, error) {
	defer observeRead(time.Now())

	s.mu.RLock()
	out := make([]model.Journey, 0, len(s.journeys))
	for _, j := range s.journeys {
		if !since.IsZero() && j.StartTime.Before(since) {
			continue
		}
		c := j.Clone()
		c.SortEvents()
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].StartTime.Equal(out[b].StartTime) {
			return out[a].StartTime.Before(out[b].StartTime)
		}
		return out[a].SessionID < out[b].SessionID
	})
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.journeys), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func observeWrite(start time.Time) {
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeRead(start time.Time) {
	metrics.RecordRepositoryReadLatency(float64(time.Since(start).Microseconds()) / 1000)
}
