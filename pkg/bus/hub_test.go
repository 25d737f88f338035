package bus_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/bus"
)

func TestHub(t *testing.T) {
	Convey("Given a hub with two subscribers", t, func() {
		ctx := context.Background()
		var panics []any
		hub := bus.NewHub[string](bus.WithPanicHandler[string](func(r any) { panics = append(panics, r) }))

		var got []string
		unsubA := hub.Subscribe(func(_ context.Context, e string) { got = append(got, "a:"+e) })
		hub.Subscribe(func(_ context.Context, e string) { got = append(got, "b:"+e) })

		Convey("When an event is published", func() {
			hub.Publish(ctx, "x")

			Convey("Then every subscriber receives it in subscription order", func() {
				So(got, ShouldResemble, []string{"a:x", "b:x"})
			})
		})

		Convey("When a subscriber unsubscribes", func() {
			unsubA()
			unsubA()
			hub.Publish(ctx, "y")

			Convey("Then it no longer receives events", func() {
				So(hub.Len(), ShouldEqual, 1)
				So(got, ShouldResemble, []string{"b:y"})
			})
		})

		Convey("When a subscriber panics", func() {
			hub.Subscribe(func(context.Context, string) { panic("boom") })
			hub.Subscribe(func(_ context.Context, e string) { got = append(got, "c:"+e) })
			hub.Publish(ctx, "z")

			Convey("Then later subscribers still run and the panic is reported", func() {
				So(got, ShouldResemble, []string{"a:z", "b:z", "c:z"})
				So(panics, ShouldResemble, []any{"boom"})
			})
		})
	})
}
