package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/tracker/kv"
)

func TestDurable(t *testing.T) {
	Convey("Given empty memory storage", t, func() {
		m := kv.NewMemory()
		calls := 0
		factory := func() (string, error) {
			calls++
			return "v_1", nil
		}

		Convey("When the same key is requested twice", func() {
			a, errA := m.GetOrCreate("visitor", factory)
			b, errB := m.GetOrCreate("visitor", func() (string, error) { return "v_2", nil })

			Convey("Then the first value sticks and the factory ran once", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldEqual, "v_1")
				So(b, ShouldEqual, "v_1")
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the factory fails", func() {
			_, err := m.GetOrCreate("visitor", func() (string, error) { return "", errors.New("quota") })

			Convey("Then nothing is stored", func() {
				So(err, ShouldNotBeNil)
				v, _ := m.GetOrCreate("visitor", factory)
				So(v, ShouldEqual, "v_1")
			})
		})

		Convey("When the browsing context ends", func() {
			_, _ = m.GetOrCreate("visitor", factory)
			m.SetEphemeral("session", "s-1")
			m.EndContext()

			Convey("Then only ephemeral values are gone", func() {
				_, ok := m.GetEphemeral("session")
				So(ok, ShouldBeFalse)
				v, _ := m.GetOrCreate("visitor", factory)
				So(v, ShouldEqual, "v_1")
			})
		})
	})
}

func TestInactivityWindow(t *testing.T) {
	Convey("Given an ephemeral value with a 30 minute window", t, func() {
		ctx := context.Background()
		clock := quartz.NewMock(t)
		m := kv.NewMemory(kv.WithClock(clock))
		m.SetEphemeral("session", "s-1")

		Convey("When it is read every 20 minutes", func() {
			clock.Advance(20 * time.Minute).MustWait(ctx)
			_, ok1 := m.GetEphemeral("session")
			clock.Advance(20 * time.Minute).MustWait(ctx)
			v, ok2 := m.GetEphemeral("session")

			Convey("Then reads keep it alive", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(v, ShouldEqual, "s-1")
			})
		})

		Convey("When it is left unread for 30 minutes", func() {
			clock.Advance(30 * time.Minute).MustWait(ctx)
			_, ok := m.GetEphemeral("session")

			Convey("Then it expires", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When it is deleted", func() {
			m.DeleteEphemeral("session")
			_, ok := m.GetEphemeral("session")
			So(ok, ShouldBeFalse)
		})
	})
}
