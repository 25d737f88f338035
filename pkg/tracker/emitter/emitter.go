// Package emitter records discrete user actions. Sends are fire and forget
// and outlive the caller's context, as a beacon outlives page unload.
package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker/transport"
)

const defaultTimeout = transport.DefaultTimeout

// SessionSource reports the active session.
type SessionSource interface {
	SessionID() (string, bool)
}

// Sender delivers an action report.
type Sender interface {
	SendAction(ctx context.Context, r transport.ActionRequest) error
}

// Emitter sends actions for the active session.
type Emitter struct {
	sessions SessionSource
	sender   Sender
	timeout  time.Duration
	observer func(ctx context.Context, r transport.ActionRequest)
	log      logger.Logger
	wg       sync.WaitGroup
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithTimeout bounds each send.
func WithTimeout(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithObserver is called synchronously for every emitted action.
func WithObserver(fn func(ctx context.Context, r transport.ActionRequest)) Option {
	return func(e *Emitter) {
		e.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Emitter.
func New(sessions SessionSource, sender Sender, opts ...Option) *Emitter {
	e := &Emitter{sessions: sessions, sender: sender, timeout: defaultTimeout, log: logger.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit sends an action without waiting for it. Without an active session
// it does nothing. Cancelling ctx does not abort the send; failures are
// logged only.
func (e *Emitter) Emit(ctx context.Context, actionType, target string, metadata map[string]any) {
	sessionID, ok := e.sessions.SessionID()
	if !ok {
		return
	}
	r := transport.ActionRequest{
		SessionID: sessionID,
		ActionID:  uuid.NewString(),
		Type:      actionType,
		Target:    target,
		Metadata:  metadata,
	}
	if e.observer != nil {
		e.observer(ctx, r)
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		if err := e.sender.SendAction(sendCtx, r); err != nil {
			e.log.Warn(sendCtx, "action not recorded",
				logger.String("type", r.Type),
				logger.String("target", r.Target),
				logger.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight sends finish.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
