package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/internal/adapters/mq/bus"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type collector struct {
	mu     sync.Mutex
	events []bus.Event
}

func (c *collector) handle(_ context.Context, e bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestLocalBus(t *testing.T) {
	Convey("Given a local bus with a subscriber", t, func() {
		b := newLocal()
		c := &collector{}
		unsubscribe := b.Subscribe(c.handle)
		own := &collector{}
		b.SubscribeOwn(own.handle)

		Convey("When an event is published", func() {
			err := b.Publish(context.Background(), bus.Event{Kind: model.KindSessionCreated, SessionID: "s-1"})

			Convey("Then it is delivered synchronously", func() {
				So(err, ShouldBeNil)
				So(c.len(), ShouldEqual, 1)
				So(own.len(), ShouldEqual, 1)
				So(c.events[0].SessionID, ShouldEqual, "s-1")
			})
		})

		Convey("When the subscriber leaves", func() {
			unsubscribe()
			_ = b.Publish(context.Background(), bus.Event{Kind: model.KindSessionCreated})

			So(c.len(), ShouldEqual, 0)
		})
	})
}

func TestRedisBus(t *testing.T) {
	Convey("Given two redis bus instances on one channel", t, func() {
		mr := miniredis.RunT(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		log := logger.Get()

		a, err := bus.NewRedisBus(ctx, bus.RedisConfig{Addr: mr.Addr(), Channel: "journeys"}, log)
		So(err, ShouldBeNil)
		defer func() { _ = a.Close() }()
		b, err := bus.NewRedisBus(ctx, bus.RedisConfig{Addr: mr.Addr(), Channel: "journeys"}, log)
		So(err, ShouldBeNil)
		defer func() { _ = b.Close() }()

		So(a.StartForwarder(ctx), ShouldBeNil)
		So(b.StartForwarder(ctx), ShouldBeNil)
		ca, cb := &collector{}, &collector{}
		a.Subscribe(ca.handle)
		b.Subscribe(cb.handle)
		oa, ob := &collector{}, &collector{}
		a.SubscribeOwn(oa.handle)
		b.SubscribeOwn(ob.handle)

		Convey("When one instance publishes", func() {
			at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			err := a.Publish(ctx, bus.Event{
				Kind:      model.KindActionRecorded,
				SessionID: "s-1",
				At:        at,
				Action:    &model.ActionEvent{Type: "click", Target: "resume-button"},
			})
			So(err, ShouldBeNil)

			Convey("Then only the publishing instance delivers it to own-event subscribers", func() {
				So(eventually(func() bool { return ca.len() == 1 && cb.len() == 1 }), ShouldBeTrue)
				So(oa.len(), ShouldEqual, 1)
				So(ob.len(), ShouldEqual, 0)
			})

			Convey("Then both instances deliver it to their subscribers", func() {
				So(eventually(func() bool { return ca.len() == 1 && cb.len() == 1 }), ShouldBeTrue)
				got := cb.events[0]
				So(got.Kind, ShouldEqual, model.KindActionRecorded)
				So(got.Action.Target, ShouldEqual, "resume-button")
				So(got.At.Equal(at), ShouldBeTrue)
			})
		})
	})

	Convey("Given no redis address", t, func() {
		_, err := bus.NewRedisBus(context.Background(), bus.RedisConfig{}, logger.Get())
		So(err, ShouldNotBeNil)
	})
}

func newLocal() *bus.LocalBus {
	return bus.NewLocalBus(logger.Get())
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
