// Package identity keeps the durable visitor id and the ephemeral session
// id of one browsing context.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker/kv"
)

// Storage keys.
const (
	VisitorKey = "footprint.visitor_id"
	SessionKey = "footprint.session_id"
)

// SessionCreator starts a server-side journey and returns its session id.
type SessionCreator interface {
	CreateSession(ctx context.Context, visitorID, landingPage, referrer, userAgent string) (string, error)
}

// Store resolves visitor and session ids.
type Store struct {
	storage kv.Storage
	creator SessionCreator
	signals Signals
	log     logger.Logger
	group   singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithSignals sets the device traits used for the visitor fingerprint.
func WithSignals(s Signals) Option {
	return func(st *Store) {
		st.signals = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.log = l
		}
	}
}

// New returns a Store on storage that starts sessions through creator.
func New(storage kv.Storage, creator SessionCreator, opts ...Option) *Store {
	s := &Store{storage: storage, creator: creator, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureVisitorID returns the durable visitor id, creating it on first use.
// The fingerprint is salted with a fresh UUID, so two devices with identical
// signals still get different ids and a cleared storage yields a new one.
// The id is effectively random; persistence alone makes it stable.
// A storage failure yields a fresh random id that is not persisted.
func (s *Store) EnsureVisitorID(ctx context.Context) string {
	id, err := s.storage.GetOrCreate(VisitorKey, func() (string, error) {
		return Fingerprint(s.signals, uuid.NewString()), nil
	})
	if err != nil || id == "" {
		s.log.Warn(ctx, "visitor storage unavailable, using a temporary id", logger.Error(err))
		return randomVisitorID()
	}
	return id
}

// EnsureSession returns the active session id, starting a session when
// there is none. Concurrent callers share one create call. On failure
// nothing is stored and ErrUninitialized is returned; there is no retry.
func (s *Store) EnsureSession(ctx context.Context, landingPage, referrer, userAgent string) (string, error) {
	if id, ok := s.storage.GetEphemeral(SessionKey); ok {
		return id, nil
	}

	v, err, _ := s.group.Do(SessionKey, func() (any, error) {
		if id, ok := s.storage.GetEphemeral(SessionKey); ok {
			return id, nil
		}
		visitorID := s.EnsureVisitorID(ctx)
		id, err := s.creator.CreateSession(ctx, visitorID, landingPage, referrer, userAgent)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUninitialized, err)
		}
		if id == "" {
			return "", fmt.Errorf("%w: empty session id", ErrUninitialized)
		}
		s.storage.SetEphemeral(SessionKey, id)
		s.log.Debug(ctx, "tracking session started",
			logger.String("session_id", id),
			logger.String("visitor_id", visitorID),
		)
		return id, nil
	})
	if err != nil {
		s.log.Warn(ctx, "tracking disabled for this page view", logger.Error(err))
		return "", err
	}
	return v.(string), nil
}

// SessionID returns the active session id, if any.
func (s *Store) SessionID() (string, bool) {
	return s.storage.GetEphemeral(SessionKey)
}
