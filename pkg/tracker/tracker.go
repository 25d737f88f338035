// Package tracker is the visitor telemetry SDK. A Client bundles the
// identity store, one dwell tracker per observed section and the action
// emitter, and sends their reports to the journeys API.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/okian/footprint/pkg/bus"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker/dwell"
	"github.com/okian/footprint/pkg/tracker/emitter"
	"github.com/okian/footprint/pkg/tracker/identity"
	"github.com/okian/footprint/pkg/tracker/kv"
	"github.com/okian/footprint/pkg/tracker/transport"
)

// Client tracks one browsing context.
type Client struct {
	storage       kv.Storage
	clock         quartz.Clock
	log           logger.Logger
	delay         time.Duration
	signals       identity.Signals
	queueSize     int
	transportOpts []transport.Option

	api      *transport.Client
	identity *identity.Store
	emitter  *emitter.Emitter
	delivery *delivery
	hub      *bus.Hub[Signal]

	mu       sync.Mutex
	sections map[string]*dwell.Tracker
}

// New returns a Client reporting to the API at endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		clock:     quartz.NewReal(),
		log:       logger.Discard(),
		delay:     dwell.DefaultConfirmationDelay,
		queueSize: defaultQueueSize,
		sections:  make(map[string]*dwell.Tracker),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = kv.NewMemory(kv.WithClock(c.clock))
	}

	c.api = transport.New(endpoint, c.transportOpts...)
	c.identity = identity.New(c.storage, c.api, identity.WithSignals(c.signals), identity.WithLogger(c.log))
	c.hub = bus.NewHub(bus.WithPanicHandler[Signal](func(r any) {
		c.log.Error(context.Background(), "signal subscriber panicked", logger.Any("panic", r))
	}))
	c.emitter = emitter.New(c.identity, c.api,
		emitter.WithTimeout(c.api.Timeout()),
		emitter.WithLogger(c.log),
		emitter.WithObserver(c.publishAction),
	)
	c.delivery = newDelivery(c.api, c.queueSize, c.api.Timeout(), c.log)
	return c
}

// Start makes sure a session exists. On failure tracking stays disabled
// and every other call is a no-op.
func (c *Client) Start(ctx context.Context, landingPage, referrer, userAgent string) (string, error) {
	return c.identity.EnsureSession(ctx, landingPage, referrer, userAgent)
}

// VisitorID returns the durable visitor id.
func (c *Client) VisitorID(ctx context.Context) string {
	return c.identity.EnsureVisitorID(ctx)
}

// SessionID returns the active session id.
func (c *Client) SessionID() (string, bool) {
	return c.identity.SessionID()
}

// Observe feeds a visibility observation for section.
func (c *Client) Observe(section string, o dwell.Observation) {
	c.section(section).Observe(o)
}

// RecordInteraction attributes a click inside section to its active
// impression.
func (c *Client) RecordInteraction(section string) {
	c.section(section).RecordInteraction()
}

// Emit records an action. See emitter.Emitter.Emit.
func (c *Client) Emit(ctx context.Context, actionType, target string, metadata map[string]any) {
	c.emitter.Emit(ctx, actionType, target, metadata)
}

// Subscribe registers h for every signal. Handlers run synchronously and
// must not call back into the Client.
func (c *Client) Subscribe(h bus.Handler[Signal]) (unsubscribe func()) {
	return c.hub.Subscribe(h)
}

// Flush ends active impressions and waits for outstanding reports.
func (c *Client) Flush() {
	c.mu.Lock()
	trackers := make([]*dwell.Tracker, 0, len(c.sections))
	for _, t := range c.sections {
		trackers = append(trackers, t)
	}
	c.mu.Unlock()

	for _, t := range trackers {
		t.Flush()
	}
	c.delivery.wait()
	c.emitter.Wait()
}

// Close flushes and stops the report sender.
func (c *Client) Close() {
	c.Flush()
	c.delivery.close()
}

func (c *Client) section(id string) *dwell.Tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.sections[id]
	if !ok {
		t = dwell.New(id, dwell.ReporterFunc(c.report),
			dwell.WithClock(c.clock),
			dwell.WithConfirmationDelay(c.delay),
			dwell.WithLogger(c.log),
		)
		c.sections[id] = t
	}
	return t
}

func (c *Client) report(r dwell.Report) {
	sessionID, ok := c.identity.SessionID()
	if !ok {
		return
	}

	req := transport.ImpressionRequest{
		SessionID:     sessionID,
		InteractionID: r.InteractionID,
		SectionID:     r.SectionID,
	}
	sig := Signal{
		SessionID:     sessionID,
		SectionID:     r.SectionID,
		InteractionID: r.InteractionID,
		At:            r.At,
	}
	switch r.Kind {
	case dwell.ReportStart:
		zero, depth := int64(0), 0
		req.Duration, req.ScrollDepth = &zero, &depth
		sig.Kind = SignalImpressionStart
	default:
		duration, depth, interactions := r.Duration, r.ScrollDepth, r.Interactions
		req.Duration, req.ScrollDepth, req.Interactions = &duration, &depth, &interactions
		sig.Kind = SignalImpressionEnd
		sig.Duration, sig.ScrollDepth, sig.Interactions = duration, depth, interactions
	}

	c.hub.Publish(context.Background(), sig)
	c.delivery.enqueue(req)
}

func (c *Client) publishAction(ctx context.Context, r transport.ActionRequest) {
	c.hub.Publish(ctx, Signal{
		Kind:       SignalAction,
		SessionID:  r.SessionID,
		ActionType: r.Type,
		Target:     r.Target,
		Metadata:   r.Metadata,
		At:         c.clock.Now(),
	})
}
