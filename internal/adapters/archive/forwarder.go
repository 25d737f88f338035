package archive

import (
	"context"

	"github.com/okian/footprint/internal/adapters/mq/bus"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
)

// Subscriber is the part of the journey bus the forwarder needs.
type Subscriber interface {
	SubscribeOwn(h bus.Handler) (unsubscribe func())
}

// Enqueuer accepts events without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.TelemetryEvent) bool
}

// Forward enqueues every event this instance publishes for archiving.
// Events relayed from other instances are archived by their publisher, so
// each event is stored once however many instances share the bus. Events
// that do not fit are dropped; archiving never slows ingestion down.
func Forward(sub Subscriber, q Enqueuer, log logger.Logger) (unsubscribe func()) {
	return sub.SubscribeOwn(func(ctx context.Context, e model.TelemetryEvent) {
		if !q.Enqueue(context.WithoutCancel(ctx), e) {
			log.Debug(ctx, "archive queue full, dropping event",
				logger.String("session_id", e.SessionID),
				logger.String("kind", string(e.Kind)),
			)
		}
	})
}
