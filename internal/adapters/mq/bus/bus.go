// Package bus publishes journey telemetry to in-process subscribers and,
// optionally, to other instances through redis pub/sub.
package bus

import (
	"context"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/bus"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

// Event is the bus payload.
type Event = model.TelemetryEvent

// Handler receives bus events.
type Handler = bus.Handler[Event]

// Publisher publishes telemetry events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus is a Publisher that subscribers can observe.
type Bus interface {
	Publisher
	// Subscribe observes events published by any instance on the bus.
	Subscribe(h Handler) (unsubscribe func())
	// SubscribeOwn observes only events published through this instance.
	SubscribeOwn(h Handler) (unsubscribe func())
	Close() error
}

// LocalBus delivers events synchronously inside the process.
type LocalBus struct {
	hub *bus.Hub[Event]
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus returns an in-process bus.
func NewLocalBus(log logger.Logger) *LocalBus {
	return &LocalBus{hub: newHub(log)}
}

func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	b.hub.Publish(ctx, e)
	metrics.RecordBusPublish(string(e.Kind))
	return nil
}

func (b *LocalBus) Subscribe(h Handler) func() {
	return b.hub.Subscribe(h)
}

// SubscribeOwn is Subscribe; a local bus only carries its own events.
func (b *LocalBus) SubscribeOwn(h Handler) func() {
	return b.hub.Subscribe(h)
}

// Close is a no-op.
func (b *LocalBus) Close() error { return nil }

func newHub(log logger.Logger) *bus.Hub[Event] {
	return bus.NewHub(bus.WithPanicHandler[Event](func(r any) {
		log.Error(context.Background(), "journey bus subscriber panicked", logger.Any("panic", r))
	}))
}
